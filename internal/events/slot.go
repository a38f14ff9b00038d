package events

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// SlotKey - ключ общего слота, через который идут события.
const SlotKey = "app-event"

// Slot - общее хранилище ключ-значение с уведомлением об изменениях,
// видимое всем контекстам (аналог localStorage).
type Slot interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Remove(ctx context.Context, key string) error
	// Watch вызывает fn при каждом изменении ключа; при удалении value равен nil.
	Watch(key string, fn func(value []byte)) (stop func(), err error)
}

// MemorySlot - Slot в памяти процесса.
type MemorySlot struct {
	mu       sync.Mutex
	values   map[string][]byte
	watchers map[string]map[uint64]func([]byte)
	next     uint64
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{
		values:   make(map[string][]byte),
		watchers: make(map[string]map[uint64]func([]byte)),
	}
}

func (s *MemorySlot) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.values[key] = append([]byte(nil), value...)
	fns := s.snapshot(key)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(value)
	}
	return nil
}

func (s *MemorySlot) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return append([]byte(nil), v...), ok, nil
}

func (s *MemorySlot) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	_, existed := s.values[key]
	delete(s.values, key)
	fns := s.snapshot(key)
	s.mu.Unlock()
	if existed {
		for _, fn := range fns {
			fn(nil)
		}
	}
	return nil
}

func (s *MemorySlot) Watch(key string, fn func([]byte)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watchers[key]; !ok {
		s.watchers[key] = make(map[uint64]func([]byte))
	}
	id := s.next
	s.next++
	s.watchers[key][id] = fn
	return func() {
		s.mu.Lock()
		delete(s.watchers[key], id)
		s.mu.Unlock()
	}, nil
}

func (s *MemorySlot) snapshot(key string) []func([]byte) {
	fns := make([]func([]byte), 0, len(s.watchers[key]))
	for _, fn := range s.watchers[key] {
		fns = append(fns, fn)
	}
	return fns
}

// SlotTransport - запасной транспорт: записывает сообщение с меткой времени в слот
// и вскоре очищает его. Получатели реагируют на само изменение, а не на хранимое значение.
type SlotTransport struct {
	slot       Slot
	key        string
	clearAfter time.Duration

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

// NewSlotTransport создает транспорт; clearAfter - задержка перед очисткой слота.
func NewSlotTransport(slot Slot, clearAfter time.Duration) *SlotTransport {
	if clearAfter <= 0 {
		clearAfter = 100 * time.Millisecond
	}
	return &SlotTransport{slot: slot, key: SlotKey, clearAfter: clearAfter, timers: make(map[*time.Timer]struct{})}
}

func (t *SlotTransport) Name() string { return "slot" }

func (t *SlotTransport) Send(ctx context.Context, msg []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.mu.Unlock()

	if err := t.slot.Set(ctx, t.key, msg); err != nil {
		return err
	}

	// Очистка best-effort: удаляем только если в слоте всё ещё наше сообщение
	var timer *time.Timer
	timer = time.AfterFunc(t.clearAfter, func() {
		t.mu.Lock()
		delete(t.timers, timer)
		t.mu.Unlock()

		cur, ok, err := t.slot.Get(context.Background(), t.key)
		if err == nil && ok && bytes.Equal(cur, msg) {
			_ = t.slot.Remove(context.Background(), t.key)
		}
	})
	t.mu.Lock()
	t.timers[timer] = struct{}{}
	t.mu.Unlock()
	return nil
}

// Listen игнорирует очистку слота и повторные уведомления об одном и том же значении.
func (t *SlotTransport) Listen(fn func([]byte)) (func(), error) {
	var (
		mu   sync.Mutex
		last []byte
	)
	return t.slot.Watch(t.key, func(v []byte) {
		if len(v) == 0 {
			return
		}
		mu.Lock()
		if bytes.Equal(v, last) {
			mu.Unlock()
			return
		}
		last = append([]byte(nil), v...)
		mu.Unlock()
		fn(v)
	})
}

func (t *SlotTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for timer := range t.timers {
		timer.Stop()
	}
	t.timers = make(map[*time.Timer]struct{})
	return nil
}
