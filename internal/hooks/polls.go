package hooks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/UkralStul/carreras-sync/internal/aggregate"
	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/notify"
	"github.com/UkralStul/carreras-sync/internal/storage"
	"github.com/google/uuid"
)

// PollInput - вопрос и варианты нового опроса.
type PollInput struct {
	Question  string
	Options   []string
	ExpiresAt *time.Time
}

func (in PollInput) normalize() (PollInput, error) {
	in.Question = strings.TrimSpace(in.Question)
	options := make([]string, 0, len(in.Options))
	for _, o := range in.Options {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}
	in.Options = options
	if in.Question == "" || len(in.Options) < 2 {
		return in, invalid("poll needs a question and at least two options")
	}
	return in, nil
}

// Polls - опросы одного поста вместе с вариантами.
type Polls struct {
	base
	items *collection[domain.Poll]

	mu     sync.RWMutex
	postID string
}

func NewPolls(d Deps, postID string) *Polls {
	return &Polls{
		base:   newBase(d),
		items:  newCollection(func(p domain.Poll) string { return p.ID }),
		postID: postID,
	}
}

func (p *Polls) Items() []domain.Poll { return p.items.snapshot() }

func (p *Polls) Loading() bool { return p.items.loading() }

func (p *Polls) Close() { p.items.close() }

func (p *Polls) PostID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.postID
}

// SetScope переключает хук на опросы другого поста.
func (p *Polls) SetScope(ctx context.Context, postID string) error {
	p.mu.Lock()
	p.postID = postID
	p.items.rescope()
	p.mu.Unlock()
	return p.Load(ctx)
}

func (p *Polls) scoped(load bool) (string, ticket) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if load {
		return p.postID, p.items.startLoad()
	}
	return p.postID, p.items.current()
}

// Load читает опросы поста и их варианты двумя запросами.
func (p *Polls) Load(ctx context.Context) error {
	if op, err := p.refetch(ctx); err != nil {
		return p.fail(ctx, op, err, msgPollsLoad)
	}
	return nil
}

func (p *Polls) refetch(ctx context.Context) (string, error) {
	defer p.items.track()()
	postID, t := p.scoped(true)

	polls, err := storage.Find[domain.Poll](ctx, p.deps.Store, storage.Query{
		Filter: storage.Filter{"post_id": postID},
		Order:  []storage.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return "load polls", err
	}
	if len(polls) > 0 {
		ids := make([]string, len(polls))
		for i := range polls {
			ids[i] = polls[i].ID
		}
		options, err := storage.Find[domain.PollOption](ctx, p.deps.Store, storage.Query{
			Filter: storage.Filter{"poll_id": ids},
			Order:  []storage.Order{{Column: "created_at"}, {Column: "id"}},
		})
		if err != nil {
			return "load poll options", err
		}
		byPoll := make(map[string][]domain.PollOption, len(polls))
		for _, o := range options {
			byPoll[o.PollID] = append(byPoll[o.PollID], o)
		}
		for i := range polls {
			polls[i].Options = byPoll[polls[i].ID]
		}
	}
	p.items.replaceAll(t, polls)
	return "", nil
}

// Create сохраняет опрос и его варианты одной транзакцией.
func (p *Polls) Create(ctx context.Context, in PollInput) (domain.Poll, error) {
	userID, err := p.user(ctx, msgPollLogin)
	if err != nil {
		return domain.Poll{}, err
	}
	defer p.items.track()()
	postID, t := p.scoped(false)

	in, err = in.normalize()
	if err != nil {
		return domain.Poll{}, p.fail(ctx, "create poll", err, msgPollInvalid)
	}

	// ID опроса нужен вариантам до вставки
	poll := &domain.Poll{
		Base:      domain.Base{ID: uuid.NewString()},
		PostID:    postID,
		UserID:    userID,
		Question:  in.Question,
		ExpiresAt: in.ExpiresAt,
	}
	rows := []domain.Record{poll}
	options := make([]*domain.PollOption, len(in.Options))
	for i, text := range in.Options {
		options[i] = &domain.PollOption{PollID: poll.ID, OptionText: text}
		rows = append(rows, options[i])
	}
	if err := p.deps.Store.Insert(ctx, rows...); err != nil {
		return domain.Poll{}, p.fail(ctx, "create poll", err, msgPollFailed)
	}

	for _, o := range options {
		poll.Options = append(poll.Options, *o)
	}
	p.items.prepend(t, *poll)
	p.notify(ctx, notify.Toast{Title: msgPollTitle, Description: msgPollCreated, Variant: notify.Default})
	return *poll, nil
}

// AddOption добавляет вариант в существующий опрос.
func (p *Polls) AddOption(ctx context.Context, pollID, text string) (domain.PollOption, error) {
	if _, err := p.user(ctx, msgOptionLogin); err != nil {
		return domain.PollOption{}, err
	}
	defer p.items.track()()
	_, t := p.scoped(false)

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.PollOption{}, p.fail(ctx, "add poll option", invalid("option text cannot be empty"), msgOptionFailed)
	}
	option := &domain.PollOption{PollID: pollID, OptionText: text}
	if err := p.deps.Store.Insert(ctx, option); err != nil {
		return domain.PollOption{}, p.fail(ctx, "add poll option", err, msgOptionFailed)
	}

	p.items.apply(t, func(polls []domain.Poll) []domain.Poll {
		out := make([]domain.Poll, len(polls))
		for i, poll := range polls {
			if poll.ID == pollID {
				poll.Options = append(append([]domain.PollOption(nil), poll.Options...), *option)
			}
			out[i] = poll
		}
		return out
	})
	p.notify(ctx, notify.Toast{Title: msgOptionTitle, Description: msgOptionAdded, Variant: notify.Default})
	return *option, nil
}

// Vote голосует за вариант. Повторный голос в том же опросе меняет существующую строку.
// После голоса опросы перечитываются целиком: меняются сразу два варианта.
// Уведомление одно и приходит после перечитывания.
func (p *Polls) Vote(ctx context.Context, pollID, optionID string) error {
	userID, err := p.user(ctx, msgVoteLogin)
	if err != nil {
		return err
	}
	if err := p.castVote(ctx, pollID, optionID, userID); err != nil {
		return err
	}
	if op, err := p.refetch(ctx); err != nil {
		// Голос уже сохранён; проценты догонят при следующей загрузке
		p.deps.Logger.WarnContext(ctx, "refetch polls after vote", "op", op, "error", err)
	}
	p.notify(ctx, notify.Toast{Title: msgVoteTitle, Description: msgVoteCounted, Variant: notify.Default})
	return nil
}

func (p *Polls) castVote(ctx context.Context, pollID, optionID, userID string) error {
	defer p.items.track()()

	_, err := storage.First[domain.PollOption](ctx, p.deps.Store, storage.Query{
		Filter: storage.Filter{"id": optionID, "poll_id": pollID},
	})
	if errors.Is(err, storage.ErrNotFound) {
		return p.fail(ctx, "vote", invalid("option %s does not belong to poll %s", optionID, pollID), msgVoteFailed)
	}
	if err != nil {
		return p.fail(ctx, "vote", err, msgVoteFailed)
	}

	existing, err := storage.First[domain.PollVote](ctx, p.deps.Store, storage.Query{
		Filter: storage.Filter{"poll_id": pollID, "user_id": userID},
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		err = p.deps.Store.Insert(ctx, &domain.PollVote{PollID: pollID, OptionID: optionID, UserID: userID})
	case err == nil:
		var rows []domain.PollVote
		rows, err = storage.Update[domain.PollVote](ctx, p.deps.Store, map[string]any{"option_id": optionID},
			storage.Filter{"id": existing.ID, "user_id": userID})
		if err == nil && len(rows) == 0 {
			// Голос удалили после перечитывания: голосуем заново
			err = p.deps.Store.Insert(ctx, &domain.PollVote{PollID: pollID, OptionID: optionID, UserID: userID})
		}
	}
	if err != nil {
		return p.fail(ctx, "vote", err, msgVoteFailed)
	}
	return nil
}

// Delete удаляет свой опрос; варианты и голоса удаляет каскад.
func (p *Polls) Delete(ctx context.Context, pollID string) error {
	userID, err := p.user(ctx, msgPollLogin)
	if err != nil {
		return err
	}
	defer p.items.track()()
	_, t := p.scoped(false)

	rows, err := storage.Delete[domain.Poll](ctx, p.deps.Store, storage.Filter{"id": pollID, "user_id": userID})
	if err != nil {
		return p.fail(ctx, "delete poll", err, msgPollDeleteFailed)
	}
	if len(rows) == 0 {
		return p.fail(ctx, "delete poll", ErrNoOwnerMatch, msgPollDeleteFailed)
	}
	p.items.remove(t, pollID)
	p.notify(ctx, notify.Success(msgPollDeleted))
	return nil
}

// Results возвращает проценты по вариантам загруженного опроса.
func (p *Polls) Results(pollID string) (map[string]float64, bool) {
	poll, ok := p.items.find(pollID)
	if !ok {
		return nil, false
	}
	return aggregate.Percentages(poll.Options), true
}
