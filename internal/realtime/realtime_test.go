package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout  = time.Second
	testInterval = 10 * time.Millisecond
)

type collector struct {
	mu      sync.Mutex
	changes []Change
}

func (c *collector) handle(ch Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, ch)
}

func (c *collector) snapshot() []Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Change(nil), c.changes...)
}

func change(table, id, postID string, typ EventType) Change {
	rec, _ := json.Marshal(map[string]string{"id": id, "post_id": postID})
	return Change{
		Table:  table,
		Type:   typ,
		ID:     id,
		Scope:  map[string]string{"id": id, "post_id": postID},
		Record: rec,
	}
}

func TestChange_Matches(t *testing.T) {
	c := change("comments", "c1", "p1", Insert)
	assert.True(t, c.Matches("comments", nil))
	assert.True(t, c.Matches("comments", map[string]string{"post_id": "p1"}))
	assert.False(t, c.Matches("comments", map[string]string{"post_id": "p2"}))
	assert.False(t, c.Matches("posts", nil))
}

func TestChange_Decode(t *testing.T) {
	var row struct {
		PostID string `json:"post_id"`
	}
	require.NoError(t, change("comments", "c1", "p1", Insert).Decode(&row))
	assert.Equal(t, "p1", row.PostID)

	assert.Error(t, Change{Table: "comments"}.Decode(&row))
}

func TestMemory_DeliversInOrderAndFilters(t *testing.T) {
	b := NewMemory(nil)
	defer b.Close()
	ctx := context.Background()

	var got collector
	unsub, err := b.Subscribe(ctx, "comments", map[string]string{"post_id": "p1"}, got.handle)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, b.Publish(ctx, change("comments", "c1", "p1", Insert)))
	require.NoError(t, b.Publish(ctx, change("comments", "c2", "p2", Insert)))
	require.NoError(t, b.Publish(ctx, change("comments", "c3", "p1", Delete)))
	require.NoError(t, b.Publish(ctx, change("posts", "p1", "", Update)))

	require.Eventually(t, func() bool { return len(got.snapshot()) == 2 }, testTimeout, testInterval)
	changes := got.snapshot()
	assert.Equal(t, "c1", changes[0].ID)
	assert.Equal(t, Delete, changes[1].Type)
}

func TestMemory_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewMemory(nil)
	defer b.Close()
	ctx := context.Background()

	var got collector
	unsub, err := b.Subscribe(ctx, "comments", nil, got.handle)
	require.NoError(t, err)
	unsub()
	unsub()

	require.NoError(t, b.Publish(ctx, change("comments", "c1", "p1", Insert)))
	assert.Never(t, func() bool { return len(got.snapshot()) > 0 }, 10*testInterval, testInterval)
}

func TestMemory_ContextCancelUnsubscribes(t *testing.T) {
	b := NewMemory(nil)
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())

	var got collector
	_, err := b.Subscribe(ctx, "comments", nil, got.handle)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return len(b.subs) == 0
	}, testTimeout, testInterval)
}

func TestMemory_ClosedRejects(t *testing.T) {
	b := NewMemory(nil)
	require.NoError(t, b.Close())

	_, err := b.Subscribe(context.Background(), "comments", nil, func(Change) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Publish(context.Background(), change("comments", "c1", "p1", Insert)), ErrClosed)
}

func TestMemory_FullQueueDrops(t *testing.T) {
	b := NewMemory(nil)
	defer b.Close()
	ctx := context.Background()

	release := make(chan struct{})
	var got collector
	_, err := b.Subscribe(ctx, "comments", nil, func(c Change) {
		<-release
		got.handle(c)
	})
	require.NoError(t, err)

	for i := 0; i < queueSize*2; i++ {
		require.NoError(t, b.Publish(ctx, change("comments", "c", "p1", Insert)))
	}
	close(release)

	require.Eventually(t, func() bool { return len(got.snapshot()) > 0 }, testTimeout, testInterval)
	assert.Never(t, func() bool { return len(got.snapshot()) == queueSize*2 }, 10*testInterval, testInterval)
}

func newRedisBroker(t *testing.T) *RedisBroker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	b := NewRedis(client, nil)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRedisBroker_PublishSubscribe(t *testing.T) {
	b := newRedisBroker(t)
	ctx := context.Background()

	var got collector
	unsub, err := b.Subscribe(ctx, "post_attendees", map[string]string{"post_id": "p1"}, got.handle)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, b.Publish(ctx, change("post_attendees", "a1", "p2", Insert)))
	require.NoError(t, b.Publish(ctx, change("post_attendees", "a2", "p1", Insert)))

	require.Eventually(t, func() bool { return len(got.snapshot()) == 1 }, testTimeout, testInterval)
	assert.Equal(t, "a2", got.snapshot()[0].ID)
}

func TestRedisBroker_Unsubscribe(t *testing.T) {
	b := newRedisBroker(t)
	ctx := context.Background()

	var got collector
	unsub, err := b.Subscribe(ctx, "comments", nil, got.handle)
	require.NoError(t, err)
	unsub()
	unsub()

	require.NoError(t, b.Publish(ctx, change("comments", "c1", "p1", Insert)))
	assert.Never(t, func() bool { return len(got.snapshot()) > 0 }, 10*testInterval, testInterval)
}
