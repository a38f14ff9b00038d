package hooks

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/UkralStul/carreras-sync/internal/aggregate"
	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/storage"
)

// DirectMessages - входящие и исходящие сообщения текущего пользователя, новые первыми.
type DirectMessages struct {
	base
	items *collection[domain.DirectMessage]
}

func NewDirectMessages(d Deps) *DirectMessages {
	return &DirectMessages{
		base:  newBase(d),
		items: newCollection(func(m domain.DirectMessage) string { return m.ID }),
	}
}

func (m *DirectMessages) Items() []domain.DirectMessage { return m.items.snapshot() }

func (m *DirectMessages) Loading() bool { return m.items.loading() }

func (m *DirectMessages) Close() { m.items.close() }

func (m *DirectMessages) Load(ctx context.Context) error {
	defer m.items.track()()
	t := m.items.startLoad()

	me, ok := m.deps.Identity.UserID()
	if !ok {
		m.items.replaceAll(t, nil)
		return nil
	}
	messages, err := storage.Find[domain.DirectMessage](ctx, m.deps.Store, storage.Query{
		Any:   []storage.Filter{{"sender_id": me}, {"receiver_id": me}},
		Order: []storage.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return m.fail(ctx, "load messages", err, msgMessagesLoad)
	}
	m.items.replaceAll(t, messages)
	return nil
}

// Watch перечитывает сообщения на любое изменение, где пользователь отправитель или получатель.
func (m *DirectMessages) Watch(ctx context.Context) (func(), error) {
	me, ok := m.deps.Identity.UserID()
	if !ok {
		return func() {}, nil
	}
	return watchReload(ctx, m.base, domain.DirectMessage{}.TableName(), m,
		storage.Filter{"sender_id": me}, storage.Filter{"receiver_id": me})
}

// Send отправляет сообщение и ставит его в начало списка.
func (m *DirectMessages) Send(ctx context.Context, receiverID, content string) (domain.DirectMessage, error) {
	me, err := m.user(ctx, msgMessageLogin)
	if err != nil {
		return domain.DirectMessage{}, err
	}
	defer m.items.track()()
	t := m.items.current()

	content = strings.TrimSpace(content)
	if content == "" {
		return domain.DirectMessage{}, m.fail(ctx, "send message", invalid("message content cannot be empty"), msgMessageEmpty)
	}
	if receiverID == "" || receiverID == me {
		return domain.DirectMessage{}, m.fail(ctx, "send message", invalid("invalid receiver %q", receiverID), msgMessageFailed)
	}

	msg := &domain.DirectMessage{SenderID: me, ReceiverID: receiverID, Content: content}
	if err := m.deps.Store.Insert(ctx, msg); err != nil {
		return domain.DirectMessage{}, m.fail(ctx, "send message", err, msgMessageFailed)
	}
	m.items.prepend(t, *msg)
	return *msg, nil
}

// MarkAsRead отмечает входящее сообщение прочитанным. Отметить можно только адресованное себе.
func (m *DirectMessages) MarkAsRead(ctx context.Context, id string) (domain.DirectMessage, error) {
	me, err := m.user(ctx, msgMessageLogin)
	if err != nil {
		return domain.DirectMessage{}, err
	}
	defer m.items.track()()
	t := m.items.current()

	rows, err := storage.Update[domain.DirectMessage](ctx, m.deps.Store,
		map[string]any{"read_at": time.Now().UTC()},
		storage.Filter{"id": id, "receiver_id": me})
	if err != nil {
		return domain.DirectMessage{}, m.fail(ctx, "mark message read", err, msgMessageReadFailed)
	}
	if len(rows) == 0 {
		return domain.DirectMessage{}, m.fail(ctx, "mark message read", ErrNoOwnerMatch, msgMessageReadFailed)
	}
	m.items.replace(t, rows[0])
	return rows[0], nil
}

// Conversations группирует загруженные сообщения по собеседникам.
func (m *DirectMessages) Conversations() []aggregate.Conversation {
	me, ok := m.deps.Identity.UserID()
	if !ok {
		return nil
	}
	return aggregate.Conversations(m.items.snapshot(), me)
}

// Thread возвращает переписку с собеседником в хронологическом порядке.
func (m *DirectMessages) Thread(partnerID string) []domain.DirectMessage {
	me, ok := m.deps.Identity.UserID()
	if !ok {
		return nil
	}
	var out []domain.DirectMessage
	for _, msg := range m.items.snapshot() {
		if msg.Counterpart(me) == partnerID {
			out = append(out, msg)
		}
	}
	slices.Reverse(out)
	return out
}
