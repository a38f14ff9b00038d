package hooks

import (
	"context"
	"testing"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/notify"
	"github.com/UkralStul/carreras-sync/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ownVotes(t *testing.T, h *harness, postID, userID string) []domain.PostVote {
	t.Helper()
	rows, err := storage.Find[domain.PostVote](context.Background(), h.store, storage.Query{
		Filter: storage.Filter{"post_id": postID, "user_id": userID},
	})
	require.NoError(t, err)
	return rows
}

func postScore(t *testing.T, h *harness, postID string) int {
	t.Helper()
	p, err := storage.First[domain.Post](context.Background(), h.store, storage.Query{Filter: storage.Filter{"id": postID}})
	require.NoError(t, err)
	return p.Votes
}

func TestPostVotes_SameDirectionTwiceRemovesVote(t *testing.T) {
	for _, dir := range []int{VoteUp, VoteDown} {
		h := newHarness(t)
		ctx := context.Background()
		post := h.insertPost(t, "user-2", "Post")
		votes := NewPostVotes(h.deps, post.ID)

		require.NoError(t, votes.Vote(ctx, dir))
		assert.Equal(t, dir, votes.Current())
		assert.Equal(t, dir, postScore(t, h, post.ID))

		require.NoError(t, votes.Vote(ctx, dir))
		assert.Empty(t, ownVotes(t, h, post.ID, "user-1"))
		assert.Zero(t, votes.Current())
		assert.Zero(t, postScore(t, h, post.ID))
	}
}

func TestPostVotes_SwitchKeepsSingleRow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	post := h.insertPost(t, "user-2", "Post")
	votes := NewPostVotes(h.deps, post.ID)

	require.NoError(t, votes.Vote(ctx, VoteUp))
	require.NoError(t, votes.Vote(ctx, VoteDown))

	rows := ownVotes(t, h, post.ID, "user-1")
	require.Len(t, rows, 1)
	assert.Equal(t, VoteDown, rows[0].VoteType)
	assert.Equal(t, VoteDown, votes.Current())
	assert.Equal(t, -1, postScore(t, h, post.ID))
}

func TestPostVotes_RereadsRowFromOtherTab(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	post := h.insertPost(t, "user-2", "Post")

	tabA := NewPostVotes(h.deps, post.ID)
	tabB := NewPostVotes(h.deps, post.ID)
	require.NoError(t, tabB.Load(ctx))

	require.NoError(t, tabA.Vote(ctx, VoteUp))
	// Вкладка B не знает о голосе, но перечитывает строку перед решением
	assert.Zero(t, tabB.Current())
	require.NoError(t, tabB.Vote(ctx, VoteUp))
	assert.Empty(t, ownVotes(t, h, post.ID, "user-1"))
}

func TestPostVotes_Guards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	post := h.insertPost(t, "user-2", "Post")
	votes := NewPostVotes(h.deps, post.ID)

	assert.ErrorIs(t, votes.Vote(ctx, 2), ErrInvalidInput)
	assert.Equal(t, notify.Failure(msgPostVoteFailed), h.lastToast(t))

	h.session.SignOut()
	assert.ErrorIs(t, votes.Vote(ctx, VoteUp), ErrUnauthenticated)
	assert.Equal(t, notify.Failure(msgVoteLogin), h.lastToast(t))
	assert.Empty(t, ownVotes(t, h, post.ID, "user-1"))

	// Аноним может читать
	require.NoError(t, votes.Load(ctx))
	assert.Zero(t, votes.Current())
}

func TestPostVotes_SwitchAfterConcurrentRemovalVotesAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	post := h.insertPost(t, "user-2", "Post")

	deps := h.deps
	deps.Store = &stubStore{Store: h.store, beforeUpdate: func() {
		// Другая вкладка снимает голос между чтением и обновлением
		_, err := storage.Delete[domain.PostVote](ctx, h.store, storage.Filter{"post_id": post.ID, "user_id": "user-1"})
		require.NoError(t, err)
	}}
	votes := NewPostVotes(deps, post.ID)

	require.NoError(t, votes.Vote(ctx, VoteUp))
	require.NoError(t, votes.Vote(ctx, VoteDown))

	rows := ownVotes(t, h, post.ID, "user-1")
	require.Len(t, rows, 1)
	assert.Equal(t, VoteDown, rows[0].VoteType)
	assert.Equal(t, VoteDown, votes.Current())
	assert.Equal(t, -1, postScore(t, h, post.ID))
}
