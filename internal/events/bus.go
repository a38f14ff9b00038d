package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/UkralStul/carreras-sync/internal/metrics"
	"github.com/google/uuid"
)

// Transport доставляет сырые сообщения другим контекстам.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg []byte) error
	// Listen регистрирует получателя; stop снимает его.
	Listen(fn func(msg []byte)) (stop func(), err error)
	Close() error
}

// Handler вызывается один раз на событие из другого контекста.
type Handler func(Event)

// Bus публикует и принимает события поверх транспорта.
// Собственные события шина не доставляет.
type Bus struct {
	transport Transport
	source    string
	log       *slog.Logger

	mu       sync.RWMutex
	handlers map[uint64]Handler
	next     uint64
	stop     func()
	closed   bool
}

// NewBus начинает слушать транспорт.
func NewBus(t Transport, log *slog.Logger) (*Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	b := &Bus{
		transport: t,
		source:    uuid.NewString(),
		log:       log,
		handlers:  make(map[uint64]Handler),
	}
	stop, err := t.Listen(b.dispatch)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", t.Name(), err)
	}
	b.stop = stop
	return b, nil
}

// Source - идентификатор этого контекста.
func (b *Bus) Source() string { return b.source }

// Transport отдаёт используемый транспорт.
func (b *Bus) Transport() Transport { return b.transport }

// Publish отправляет событие всем остальным контекстам.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	msg, err := json.Marshal(envelope{Event: e, Source: b.source, TS: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	if err := b.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s via %s: %w", e.Type, b.transport.Name(), err)
	}
	metrics.AppEventsPublished.WithLabelValues(string(e.Type), b.transport.Name()).Inc()
	return nil
}

// Subscribe регистрирует обработчик и возвращает функцию отписки.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

func (b *Bus) dispatch(msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		b.log.Warn("app event: bad payload", "transport", b.transport.Name(), "error", err)
		return
	}
	if env.Source == b.source {
		return
	}
	if err := env.Event.Validate(); err != nil {
		b.log.Warn("app event: rejected", "transport", b.transport.Name(), "error", err)
		return
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	metrics.AppEventsReceived.WithLabelValues(string(env.Type), b.transport.Name()).Inc()
	for _, h := range handlers {
		h(env.Event)
	}
}

// Close снимает всех обработчиков и закрывает транспорт.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.handlers = make(map[uint64]Handler)
	b.mu.Unlock()

	if b.stop != nil {
		b.stop()
	}
	return b.transport.Close()
}
