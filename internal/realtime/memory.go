package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/UkralStul/carreras-sync/internal/metrics"
	"github.com/google/uuid"
)

// ErrClosed возвращается при работе с закрытым брокером.
var ErrClosed = errors.New("realtime: broker closed")

const queueSize = 64

// subscription - один подписчик со своей очередью и горутиной доставки.
type subscription struct {
	table  string
	filter map[string]string
	queue  chan Change
	quit   chan struct{}
	once   sync.Once
	stop   func() bool
}

// Memory - брокер в памяти процесса.
type Memory struct {
	mu sync.RWMutex
	//      map[table] map[subscriptionID] *subscription
	subs   map[string]map[string]*subscription
	closed bool
	log    *slog.Logger
}

// NewMemory создает брокер в памяти.
func NewMemory(log *slog.Logger) *Memory {
	if log == nil {
		log = slog.Default()
	}
	return &Memory{
		subs: make(map[string]map[string]*subscription),
		log:  log,
	}
}

// Publish кладёт изменение в очереди подходящих подписчиков, не блокируясь.
// Если очередь подписчика полна, изменение для него теряется.
func (m *Memory) Publish(_ context.Context, c Change) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for _, s := range m.subs[c.Table] {
		if !c.Matches(s.table, s.filter) {
			continue
		}
		select {
		case s.queue <- c:
		default:
			metrics.RealtimeDrops.WithLabelValues("memory", c.Table).Inc()
			m.log.Warn("realtime queue full, change dropped", "table", c.Table, "id", c.ID)
		}
	}
	return nil
}

// Subscribe регистрирует обработчик. Изменения доставляются в порядке публикации.
func (m *Memory) Subscribe(ctx context.Context, table string, filter map[string]string, h Handler) (func(), error) {
	s := &subscription{
		table:  table,
		filter: filter,
		queue:  make(chan Change, queueSize),
		quit:   make(chan struct{}),
	}
	id := uuid.NewString()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := m.subs[table]; !ok {
		m.subs[table] = make(map[string]*subscription)
	}
	m.subs[table][id] = s
	m.mu.Unlock()
	metrics.RealtimeSubscriptions.WithLabelValues("memory").Inc()

	go s.run(h)

	unsubscribe := func() {
		s.once.Do(func() {
			m.mu.Lock()
			delete(m.subs[table], id)
			if len(m.subs[table]) == 0 {
				delete(m.subs, table)
			}
			m.mu.Unlock()
			close(s.quit)
			metrics.RealtimeSubscriptions.WithLabelValues("memory").Dec()
		})
	}
	s.stop = context.AfterFunc(ctx, unsubscribe)
	return func() {
		s.stop()
		unsubscribe()
	}, nil
}

func (s *subscription) run(h Handler) {
	for {
		select {
		case <-s.quit:
			return
		case c := <-s.queue:
			select {
			case <-s.quit:
				return
			default:
			}
			h(c)
		}
	}
}

// Close отписывает всех подписчиков.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var all []*subscription
	for _, byID := range m.subs {
		for _, s := range byID {
			all = append(all, s)
		}
	}
	m.subs = make(map[string]map[string]*subscription)
	m.mu.Unlock()

	for _, s := range all {
		s.once.Do(func() {
			close(s.quit)
			metrics.RealtimeSubscriptions.WithLabelValues("memory").Dec()
		})
	}
	return nil
}
