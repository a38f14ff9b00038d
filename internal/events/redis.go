package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisChannel - канал Redis, общий для всех процессов.
const RedisChannel = "app-events"

// RedisTransport рассылает события через Redis pub/sub.
type RedisTransport struct {
	client  *redis.Client
	channel string

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

func NewRedisTransport(client *redis.Client) *RedisTransport {
	return &RedisTransport{client: client, channel: RedisChannel, subs: make(map[*redis.PubSub]struct{})}
}

func (t *RedisTransport) Name() string { return "redis" }

func (t *RedisTransport) Send(ctx context.Context, msg []byte) error {
	return t.client.Publish(ctx, t.channel, msg).Err()
}

// Listen подписывается и ждёт подтверждения от сервера.
func (t *RedisTransport) Listen(fn func([]byte)) (func(), error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	t.mu.Unlock()

	ctx := context.Background()
	ps := t.client.Subscribe(ctx, t.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", t.channel, err)
	}
	t.mu.Lock()
	t.subs[ps] = struct{}{}
	t.mu.Unlock()

	go func() {
		for msg := range ps.Channel() {
			fn([]byte(msg.Payload))
		}
	}()

	return func() {
		t.mu.Lock()
		_, active := t.subs[ps]
		delete(t.subs, ps)
		t.mu.Unlock()
		if active {
			_ = ps.Close()
		}
	}, nil
}

// Close закрывает подписки; клиент Redis закрывает владелец.
func (t *RedisTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	subs := t.subs
	t.subs = make(map[*redis.PubSub]struct{})
	t.mu.Unlock()
	for ps := range subs {
		_ = ps.Close()
	}
	return nil
}
