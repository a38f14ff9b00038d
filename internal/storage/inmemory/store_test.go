package inmemory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/realtime"
	"github.com/UkralStul/carreras-sync/internal/storage"
	"github.com/UkralStul/carreras-sync/internal/storage/gormstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// newTestStore создает хранилище и один пост для тестов
func newTestStore(t *testing.T) (*gormstore.Store, *domain.Post) {
	t.Helper()
	store, err := New(gormstore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	post := &domain.Post{
		UserID:   "user-1",
		Title:    "Test Post",
		Content:  "Content",
		Category: domain.CategoryGeneral,
	}
	require.NoError(t, store.Insert(context.Background(), post))
	return store, post
}

type changes struct {
	mu   sync.Mutex
	list []realtime.Change
}

func (c *changes) add(ch realtime.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, ch)
}

func (c *changes) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.list)
}

func TestStore_InsertAndFind(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	assert.NotEmpty(t, post.ID)
	assert.False(t, post.CreatedAt.IsZero())

	got, err := storage.First[domain.Post](ctx, store, storage.Query{Filter: storage.Filter{"id": post.ID}})
	require.NoError(t, err)
	assert.Equal(t, "Test Post", got.Title)
	assert.Equal(t, domain.CategoryGeneral, got.Category)

	_, err = storage.First[domain.Post](ctx, store, storage.Query{Filter: storage.Filter{"id": "non-existent-id"}})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_FindOrderAndFilters(t *testing.T) {
	store, first := newTestStore(t)
	ctx := context.Background()

	raceID := "race-x"
	race := &domain.Race{Base: domain.Base{ID: raceID}, UserID: "user-1", Title: "R", Location: "Santiago",
		EventDate: datatypes.Date(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))}
	require.NoError(t, store.Insert(ctx, race))

	second := &domain.Post{
		Base:     domain.Base{CreatedAt: first.CreatedAt.Add(time.Minute)},
		UserID:   "user-2",
		Title:    "Second",
		Content:  "c",
		Category: domain.CategoryUpcomingRace,
		RaceID:   &raceID,
	}
	require.NoError(t, store.Insert(ctx, second))

	posts, err := storage.Find[domain.Post](ctx, store, storage.Query{Order: []storage.Order{{Column: "created_at", Desc: true}}})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID)

	// nil превращается в IS NULL
	posts, err = storage.Find[domain.Post](ctx, store, storage.Query{Filter: storage.Filter{"race_id": nil}})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, first.ID, posts[0].ID)

	// срез превращается в IN
	posts, err = storage.Find[domain.Post](ctx, store, storage.Query{Filter: storage.Filter{"id": []string{first.ID, second.ID}}})
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	// Any объединяется через OR
	posts, err = storage.Find[domain.Post](ctx, store, storage.Query{Any: []storage.Filter{
		{"user_id": "user-2"},
		{"user_id": "nobody"},
	}})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, second.ID, posts[0].ID)

	n, err := storage.Count[domain.Post](ctx, store, storage.Filter{"category": domain.CategoryUpcomingRace})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStore_UpdateOwnerFilter(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	rows, err := storage.Update[domain.Post](ctx, store, map[string]any{"title": "Hacked"},
		storage.Filter{"id": post.ID, "user_id": "intruder"})
	require.NoError(t, err)
	assert.Empty(t, rows)

	got, err := storage.First[domain.Post](ctx, store, storage.Query{Filter: storage.Filter{"id": post.ID}})
	require.NoError(t, err)
	assert.Equal(t, "Test Post", got.Title)

	rows, err = storage.Update[domain.Post](ctx, store, map[string]any{"title": "Edited"},
		storage.Filter{"id": post.ID, "user_id": "user-1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Edited", rows[0].Title)
	assert.False(t, rows[0].UpdatedAt.Before(post.UpdatedAt))
}

func TestStore_MutationsRequireFilter(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := storage.Update[domain.Post](ctx, store, map[string]any{"title": "x"}, nil)
	assert.Error(t, err)
	_, err = storage.Delete[domain.Post](ctx, store, nil)
	assert.Error(t, err)
}

func TestStore_CommentCountTrigger(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	c1 := &domain.Comment{PostID: post.ID, UserID: "user-2", Content: "First comment!"}
	c2 := &domain.Comment{PostID: post.ID, UserID: "user-3", Content: "Second"}
	require.NoError(t, store.Insert(ctx, c1, c2))

	got, err := storage.First[domain.Post](ctx, store, storage.Query{Filter: storage.Filter{"id": post.ID}})
	require.NoError(t, err)
	assert.Equal(t, 2, got.CommentsCount)

	deleted, err := storage.Delete[domain.Comment](ctx, store, storage.Filter{"id": c1.ID, "user_id": "user-2"})
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	got, err = storage.First[domain.Post](ctx, store, storage.Query{Filter: storage.Filter{"id": post.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, got.CommentsCount)
}

func TestStore_CommentRequiresPost(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Insert(context.Background(), &domain.Comment{PostID: "missing", UserID: "u", Content: "x"})
	assert.Error(t, err)
}

func TestStore_PostVoteTrigger(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	vote := &domain.PostVote{PostID: post.ID, UserID: "user-2", VoteType: 1}
	require.NoError(t, store.Insert(ctx, vote))
	require.NoError(t, store.Insert(ctx, &domain.PostVote{PostID: post.ID, UserID: "user-3", VoteType: 1}))

	got, err := storage.First[domain.Post](ctx, store, storage.Query{Filter: storage.Filter{"id": post.ID}})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Votes)

	_, err = storage.Update[domain.PostVote](ctx, store, map[string]any{"vote_type": -1}, storage.Filter{"id": vote.ID})
	require.NoError(t, err)
	got, err = storage.First[domain.Post](ctx, store, storage.Query{Filter: storage.Filter{"id": post.ID}})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Votes)

	// Второй голос того же пользователя нарушает уникальный индекс
	err = store.Insert(ctx, &domain.PostVote{PostID: post.ID, UserID: "user-2", VoteType: 1})
	assert.Error(t, err)
}

func TestStore_PollVoteSwitchMovesTally(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	poll := &domain.Poll{PostID: post.ID, UserID: "user-1", Question: "¿Quién gana?"}
	require.NoError(t, store.Insert(ctx, poll))
	a := &domain.PollOption{PollID: poll.ID, OptionText: "A"}
	b := &domain.PollOption{PollID: poll.ID, OptionText: "B"}
	require.NoError(t, store.Insert(ctx, a, b))

	vote := &domain.PollVote{PollID: poll.ID, OptionID: a.ID, UserID: "user-2"}
	require.NoError(t, store.Insert(ctx, vote))

	tally := func() map[string]int {
		opts, err := storage.Find[domain.PollOption](ctx, store, storage.Query{Filter: storage.Filter{"poll_id": poll.ID}})
		require.NoError(t, err)
		out := map[string]int{}
		for _, o := range opts {
			out[o.OptionText] = o.VotesCount
		}
		return out
	}
	assert.Equal(t, map[string]int{"A": 1, "B": 0}, tally())

	_, err := storage.Update[domain.PollVote](ctx, store, map[string]any{"option_id": b.ID}, storage.Filter{"id": vote.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 0, "B": 1}, tally())
}

func TestStore_RaceDeleteCascades(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	cancha := &domain.Cancha{Nombre: "Cancha Los Andes", Comuna: "Santiago"}
	require.NoError(t, store.Insert(ctx, cancha))
	race := &domain.Race{UserID: "user-1", Title: "Carrera de Prueba", Location: "Santiago", Comuna: "Santiago",
		CanchaID: &cancha.ID, EventDate: datatypes.Date(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))}
	require.NoError(t, store.Insert(ctx, race))
	companion := &domain.Post{UserID: "user-1", Title: "Carrera de Prueba", Content: "c",
		Category: domain.CategoryUpcomingRace, RaceID: &race.ID}
	require.NoError(t, store.Insert(ctx, companion))
	require.NoError(t, store.Insert(ctx, &domain.Comment{PostID: companion.ID, UserID: "user-2", Content: "¡Vamos!"}))

	var seen changes
	unsub, err := store.Subscribe(ctx, "posts", storage.Filter{"id": companion.ID}, seen.add)
	require.NoError(t, err)
	defer unsub()

	// Удаление площадки обнуляет ссылку у события
	_, err = storage.Delete[domain.Cancha](ctx, store, storage.Filter{"id": cancha.ID})
	require.NoError(t, err)
	r, err := storage.First[domain.Race](ctx, store, storage.Query{Filter: storage.Filter{"id": race.ID}})
	require.NoError(t, err)
	assert.Nil(t, r.CanchaID)
	assert.Equal(t, "2025-03-01", r.Date().Format("2006-01-02"))

	_, err = storage.Delete[domain.Race](ctx, store, storage.Filter{"id": race.ID, "user_id": "user-1"})
	require.NoError(t, err)

	_, err = storage.First[domain.Post](ctx, store, storage.Query{Filter: storage.Filter{"id": companion.ID}})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	n, err := storage.Count[domain.Comment](ctx, store, storage.Filter{"post_id": companion.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	// Каскадные удаления не попадают в канал уведомлений
	assert.Never(t, func() bool { return seen.len() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestStore_SubscribeReceivesScopedChanges(t *testing.T) {
	store, post := newTestStore(t)
	other := &domain.Post{UserID: "user-9", Title: "Other", Content: "c", Category: domain.CategoryGeneral}
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, other))

	var seen changes
	unsub, err := store.Subscribe(ctx, "comments", storage.Filter{"post_id": post.ID}, seen.add)
	require.NoError(t, err)
	defer unsub()

	c := &domain.Comment{PostID: post.ID, UserID: "user-2", Content: "hola"}
	require.NoError(t, store.Insert(ctx, c))
	require.NoError(t, store.Insert(ctx, &domain.Comment{PostID: other.ID, UserID: "user-2", Content: "otro"}))
	_, err = storage.Delete[domain.Comment](ctx, store, storage.Filter{"id": c.ID})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return seen.len() == 2 }, time.Second, 10*time.Millisecond)
	seen.mu.Lock()
	defer seen.mu.Unlock()
	assert.Equal(t, realtime.Insert, seen.list[0].Type)
	assert.Equal(t, realtime.Delete, seen.list[1].Type)

	var decoded domain.Comment
	require.NoError(t, seen.list[0].Decode(&decoded))
	assert.Equal(t, "hola", decoded.Content)
}

func TestStore_SubscribeRejectsNonStringFilter(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Subscribe(context.Background(), "comments", storage.Filter{"post_id": []string{"a"}}, func(realtime.Change) {})
	assert.Error(t, err)
}

func TestStore_InsertIsAtomic(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	poll := &domain.Poll{Base: domain.Base{ID: "poll-1"}, PostID: post.ID, UserID: "user-1", Question: "q"}
	bad := &domain.PollOption{PollID: "missing-poll", OptionText: "B"}
	err := store.Insert(ctx, poll, &domain.PollOption{PollID: poll.ID, OptionText: "A"}, bad)
	require.Error(t, err)

	n, err := storage.Count[domain.Poll](ctx, store, storage.Filter{"post_id": post.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
}
