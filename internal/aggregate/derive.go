package aggregate

import (
	"sort"

	"github.com/UkralStul/carreras-sync/internal/domain"
)

// Percentage - доля голосов в процентах; при нуле голосов всегда 0.
func Percentage(votes, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(votes) / float64(total) * 100
}

// TotalVotes суммирует голоса по вариантам.
func TotalVotes(options []domain.PollOption) int {
	total := 0
	for _, o := range options {
		total += o.VotesCount
	}
	return total
}

// Percentages возвращает процент по каждому варианту (ключ - ID варианта).
func Percentages(options []domain.PollOption) map[string]float64 {
	total := TotalVotes(options)
	out := make(map[string]float64, len(options))
	for _, o := range options {
		out[o.ID] = Percentage(o.VotesCount, total)
	}
	return out
}

// CountByCategory считает посты по категориям; все известные категории присутствуют.
func CountByCategory(posts []domain.Post) map[domain.Category]int {
	out := make(map[domain.Category]int, len(domain.Categories()))
	for _, c := range domain.Categories() {
		out[c] = 0
	}
	for _, p := range posts {
		out[p.Category]++
	}
	return out
}

// Conversation - диалог с одним собеседником.
type Conversation struct {
	PartnerID   string               `json:"partner_id"`
	LastMessage domain.DirectMessage `json:"last_message"`
	UnreadCount int                  `json:"unread_count"`
}

// Conversations группирует сообщения по собеседнику. Непрочитанные - входящие без read_at.
// Самый свежий диалог первым.
func Conversations(messages []domain.DirectMessage, me string) []Conversation {
	byPartner := make(map[string]*Conversation)
	for _, m := range messages {
		partner := m.Counterpart(me)
		c, ok := byPartner[partner]
		if !ok {
			c = &Conversation{PartnerID: partner, LastMessage: m}
			byPartner[partner] = c
		} else if m.CreatedAt.After(c.LastMessage.CreatedAt) {
			c.LastMessage = m
		}
		if m.ReceiverID == me && m.ReadAt == nil {
			c.UnreadCount++
		}
	}

	out := make([]Conversation, 0, len(byPartner))
	for _, c := range byPartner {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessage.CreatedAt, out[j].LastMessage.CreatedAt
		if a.Equal(b) {
			return out[i].PartnerID < out[j].PartnerID
		}
		return a.After(b)
	})
	return out
}
