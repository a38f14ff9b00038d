package hooks

import (
	"context"
	"errors"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/storage"
)

// Направления голоса за пост.
const (
	VoteUp   = 1
	VoteDown = -1
)

// PostVotes отслеживает голос текущего пользователя за пост.
// Итоговый счёт поста ведёт хранилище.
type PostVotes struct {
	base
	postID string
	items  *collection[domain.PostVote]
}

func NewPostVotes(d Deps, postID string) *PostVotes {
	return &PostVotes{
		base:   newBase(d),
		postID: postID,
		items:  newCollection(func(v domain.PostVote) string { return v.ID }),
	}
}

// Current возвращает направление своего голоса или 0.
func (v *PostVotes) Current() int {
	items := v.items.snapshot()
	if len(items) == 0 {
		return 0
	}
	return items[0].VoteType
}

func (v *PostVotes) Loading() bool { return v.items.loading() }

func (v *PostVotes) Close() { v.items.close() }

func (v *PostVotes) Load(ctx context.Context) error {
	defer v.items.track()()
	t := v.items.startLoad()

	userID, ok := v.deps.Identity.UserID()
	if !ok {
		v.items.replaceAll(t, nil)
		return nil
	}
	vote, err := v.own(ctx, userID)
	if err != nil {
		return v.fail(ctx, "load post vote", err, msgPostVoteFailed)
	}
	v.items.replaceAll(t, vote)
	return nil
}

func (v *PostVotes) own(ctx context.Context, userID string) ([]domain.PostVote, error) {
	vote, err := storage.First[domain.PostVote](ctx, v.deps.Store, storage.Query{
		Filter: storage.Filter{"post_id": v.postID, "user_id": userID},
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []domain.PostVote{vote}, nil
}

// Vote ставит голос direction. Тот же голос повторно снимает его,
// противоположный меняет существующую строку.
func (v *PostVotes) Vote(ctx context.Context, direction int) error {
	userID, err := v.user(ctx, msgVoteLogin)
	if err != nil {
		return err
	}
	defer v.items.track()()
	t := v.items.current()

	if direction != VoteUp && direction != VoteDown {
		return v.fail(ctx, "post vote", invalid("vote direction must be 1 or -1, got %d", direction), msgPostVoteFailed)
	}

	// Перечитываем строку: локальная копия могла устареть (другая вкладка)
	existing, err := v.own(ctx, userID)
	if err != nil {
		return v.fail(ctx, "post vote", err, msgPostVoteFailed)
	}

	var next []domain.PostVote
	switch {
	case len(existing) == 0:
		vote := &domain.PostVote{PostID: v.postID, UserID: userID, VoteType: direction}
		err = v.deps.Store.Insert(ctx, vote)
		next = []domain.PostVote{*vote}
	case existing[0].VoteType == direction:
		_, err = storage.Delete[domain.PostVote](ctx, v.deps.Store, storage.Filter{"id": existing[0].ID, "user_id": userID})
	default:
		next, err = storage.Update[domain.PostVote](ctx, v.deps.Store, map[string]any{"vote_type": direction},
			storage.Filter{"id": existing[0].ID, "user_id": userID})
		if err == nil && len(next) == 0 {
			// Строку успели удалить после перечитывания: голосуем заново
			vote := &domain.PostVote{PostID: v.postID, UserID: userID, VoteType: direction}
			err = v.deps.Store.Insert(ctx, vote)
			next = []domain.PostVote{*vote}
		}
	}
	if err != nil {
		return v.fail(ctx, "post vote", err, msgPostVoteFailed)
	}
	v.items.replaceAll(t, next)
	return nil
}
