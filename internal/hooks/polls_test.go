package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/notify"
	"github.com/UkralStul/carreras-sync/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func optionID(t *testing.T, poll domain.Poll, text string) string {
	t.Helper()
	for _, o := range poll.Options {
		if o.OptionText == text {
			return o.ID
		}
	}
	t.Fatalf("option %q not found", text)
	return ""
}

func newPoll(t *testing.T, h *harness) (*Polls, domain.Poll) {
	t.Helper()
	post := h.insertPost(t, "user-1", "Encuesta")
	polls := NewPolls(h.deps, post.ID)
	poll, err := polls.Create(context.Background(), PollInput{Question: "¿Mejor distancia?", Options: []string{"5K", " ", "10K"}})
	require.NoError(t, err)
	return polls, poll
}

func TestPolls_CreateStoresOptionsTogether(t *testing.T) {
	h := newHarness(t)
	polls, poll := newPoll(t, h)

	assert.Len(t, poll.Options, 2)
	assert.Equal(t, notify.Toast{Title: msgPollTitle, Description: msgPollCreated, Variant: notify.Default}, h.lastToast(t))
	require.Len(t, polls.Items(), 1)
	assert.Equal(t, poll.ID, polls.Items()[0].ID)

	n, err := storage.Count[domain.PollOption](context.Background(), h.store, storage.Filter{"poll_id": poll.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestPolls_CreateNeedsTwoOptions(t *testing.T) {
	h := newHarness(t)
	post := h.insertPost(t, "user-1", "Encuesta")
	polls := NewPolls(h.deps, post.ID)

	_, err := polls.Create(context.Background(), PollInput{Question: "¿Sí?", Options: []string{"Sí", ""}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, notify.Failure(msgPollInvalid), h.lastToast(t))

	n, err := storage.Count[domain.Poll](context.Background(), h.store, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPolls_ZeroVotesGiveZeroPercent(t *testing.T) {
	h := newHarness(t)
	polls, poll := newPoll(t, h)

	results, ok := polls.Results(poll.ID)
	require.True(t, ok)
	require.Len(t, results, 2)
	for _, pct := range results {
		assert.Zero(t, pct)
	}
}

func TestPolls_VoteSwitchMovesTally(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	polls, poll := newPoll(t, h)
	five, ten := optionID(t, poll, "5K"), optionID(t, poll, "10K")

	require.NoError(t, polls.Vote(ctx, poll.ID, five))
	assert.Equal(t, notify.Toast{Title: msgVoteTitle, Description: msgVoteCounted, Variant: notify.Default}, h.lastToast(t))
	results, _ := polls.Results(poll.ID)
	assert.InDelta(t, 100.0, results[five], 0.001)
	assert.Zero(t, results[ten])

	require.NoError(t, polls.Vote(ctx, poll.ID, ten))
	results, _ = polls.Results(poll.ID)
	assert.Zero(t, results[five])
	assert.InDelta(t, 100.0, results[ten], 0.001)

	n, err := storage.Count[domain.PollVote](ctx, h.store, storage.Filter{"poll_id": poll.ID, "user_id": "user-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// Второй пользователь делит голоса пополам
	other := NewPolls(h.as("user-2"), poll.PostID)
	require.NoError(t, other.Vote(ctx, poll.ID, five))
	require.NoError(t, polls.Load(ctx))
	results, _ = polls.Results(poll.ID)
	assert.InDelta(t, 50.0, results[five], 0.001)
	assert.InDelta(t, 50.0, results[ten], 0.001)
}

func TestPolls_VoteRejectsOptionOfAnotherPoll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	polls, poll := newPoll(t, h)
	second, err := polls.Create(ctx, PollInput{Question: "¿Otra?", Options: []string{"A", "B"}})
	require.NoError(t, err)

	err = polls.Vote(ctx, poll.ID, optionID(t, second, "A"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, notify.Failure(msgVoteFailed), h.lastToast(t))
}

func TestPolls_AddOptionAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	polls, poll := newPoll(t, h)

	option, err := polls.AddOption(ctx, poll.ID, "21K")
	require.NoError(t, err)
	assert.Equal(t, poll.ID, option.PollID)
	require.Len(t, polls.Items()[0].Options, 3)
	assert.Equal(t, "21K", polls.Items()[0].Options[2].OptionText)

	require.NoError(t, polls.Vote(ctx, poll.ID, option.ID))

	// Чужой опрос удалить нельзя
	assert.ErrorIs(t, NewPolls(h.as("user-2"), poll.PostID).Delete(ctx, poll.ID), ErrNoOwnerMatch)

	require.NoError(t, polls.Delete(ctx, poll.ID))
	assert.Empty(t, polls.Items())
	for _, count := range []func() (int64, error){
		func() (int64, error) {
			return storage.Count[domain.PollOption](ctx, h.store, storage.Filter{"poll_id": poll.ID})
		},
		func() (int64, error) {
			return storage.Count[domain.PollVote](ctx, h.store, storage.Filter{"poll_id": poll.ID})
		},
	} {
		n, err := count()
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}

type notifyFunc func(notify.Toast)

func (f notifyFunc) Notify(_ context.Context, t notify.Toast) { f(t) }

func TestPolls_VoteToastFollowsRefetch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	polls, poll := newPoll(t, h)
	five := optionID(t, poll, "5K")

	var toasts []notify.Toast
	var atToast map[string]float64
	polls.deps.Notifier = notifyFunc(func(toast notify.Toast) {
		toasts = append(toasts, toast)
		atToast, _ = polls.Results(poll.ID)
	})

	require.NoError(t, polls.Vote(ctx, poll.ID, five))
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.Toast{Title: msgVoteTitle, Description: msgVoteCounted, Variant: notify.Default}, toasts[0])
	// К моменту уведомления проценты уже перечитаны
	assert.InDelta(t, 100.0, atToast[five], 0.001)
}

func TestPolls_VoteKeptWhenRefetchFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, poll := newPoll(t, h)
	five := optionID(t, poll, "5K")

	// Проверка варианта и чтение голоса проходят, перечитывание опросов падает
	deps := h.deps
	deps.Store = &stubStore{Store: h.store, findErr: errors.New("timeout"), findErrFrom: 3}
	polls := NewPolls(deps, poll.PostID)
	before := len(h.toasts.Toasts())

	require.NoError(t, polls.Vote(ctx, poll.ID, five))
	toasts := h.toasts.Toasts()[before:]
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.Default, toasts[0].Variant)

	n, err := storage.Count[domain.PollVote](ctx, h.store, storage.Filter{"poll_id": poll.ID, "option_id": five})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPolls_SwitchAfterConcurrentRemovalVotesAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, poll := newPoll(t, h)
	five, ten := optionID(t, poll, "5K"), optionID(t, poll, "10K")

	deps := h.deps
	deps.Store = &stubStore{Store: h.store, beforeUpdate: func() {
		// Другая вкладка снимает голос между чтением и обновлением
		_, err := storage.Delete[domain.PollVote](ctx, h.store, storage.Filter{"poll_id": poll.ID, "user_id": "user-1"})
		require.NoError(t, err)
	}}
	polls := NewPolls(deps, poll.PostID)

	require.NoError(t, polls.Vote(ctx, poll.ID, five))
	require.NoError(t, polls.Vote(ctx, poll.ID, ten))

	rows, err := storage.Find[domain.PollVote](ctx, h.store, storage.Query{Filter: storage.Filter{"poll_id": poll.ID, "user_id": "user-1"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ten, rows[0].OptionID)
	results, _ := polls.Results(poll.ID)
	assert.InDelta(t, 100.0, results[ten], 0.001)
}
