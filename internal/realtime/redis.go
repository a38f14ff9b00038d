package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/UkralStul/carreras-sync/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "realtime:"

// RedisBroker разносит изменения через Redis pub/sub, так что их видят все процессы.
type RedisBroker struct {
	client *redis.Client
	log    *slog.Logger

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

// NewRedis создает брокер поверх готового клиента.
func NewRedis(client *redis.Client, log *slog.Logger) *RedisBroker {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBroker{client: client, log: log, subs: make(map[*redis.PubSub]struct{})}
}

// Publish публикует изменение в канал таблицы.
func (b *RedisBroker) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+c.Table, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscribe возвращает управление только после подтверждения подписки сервером.
func (b *RedisBroker) Subscribe(ctx context.Context, table string, filter map[string]string, h Handler) (func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.mu.Unlock()

	ps := b.client.Subscribe(ctx, channelPrefix+table)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}

	b.mu.Lock()
	b.subs[ps] = struct{}{}
	b.mu.Unlock()
	metrics.RealtimeSubscriptions.WithLabelValues("redis").Inc()

	unsubscribe := func() {
		b.mu.Lock()
		_, active := b.subs[ps]
		delete(b.subs, ps)
		b.mu.Unlock()
		if active {
			_ = ps.Close()
			metrics.RealtimeSubscriptions.WithLabelValues("redis").Dec()
		}
	}

	go func() {
		for msg := range ps.Channel() {
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				b.log.Warn("realtime: bad payload", "channel", msg.Channel, "error", err)
				continue
			}
			if c.Matches(table, filter) {
				h(c)
			}
		}
	}()

	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}, nil
}

// Close закрывает все подписки. Клиент Redis закрывает владелец.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := b.subs
	b.subs = make(map[*redis.PubSub]struct{})
	b.mu.Unlock()

	for ps := range subs {
		_ = ps.Close()
		metrics.RealtimeSubscriptions.WithLabelValues("redis").Dec()
	}
	return nil
}
