package events

import (
	"context"
	"errors"
	"sync"

	"github.com/UkralStul/carreras-sync/internal/metrics"
)

// ErrClosed - транспорт уже закрыт.
var ErrClosed = errors.New("events: transport closed")

const portQueueSize = 64

// Hub - широковещательный канал внутри процесса: каждый Port получает сообщения
// всех остальных портов с тем же именем, но не свои.
type Hub struct {
	mu sync.Mutex
	//          map[channel] set of ports
	channels map[string]map[*Port]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[*Port]struct{})}
}

// Open подключает новый порт к каналу name.
func (h *Hub) Open(name string) *Port {
	p := &Port{
		hub:       h,
		name:      name,
		queue:     make(chan []byte, portQueueSize),
		quit:      make(chan struct{}),
		listeners: make(map[uint64]func([]byte)),
	}
	h.mu.Lock()
	if _, ok := h.channels[name]; !ok {
		h.channels[name] = make(map[*Port]struct{})
	}
	h.channels[name][p] = struct{}{}
	h.mu.Unlock()

	go p.run()
	return p
}

func (h *Hub) broadcast(from *Port, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.channels[from.name] {
		if p == from {
			continue
		}
		select {
		case p.queue <- msg:
		default:
			metrics.RealtimeDrops.WithLabelValues("hub", p.name).Inc()
		}
	}
}

func (h *Hub) detach(p *Port) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.channels[p.name], p)
	if len(h.channels[p.name]) == 0 {
		delete(h.channels, p.name)
	}
}

// Port - один контекст, подключённый к каналу Hub.
type Port struct {
	hub   *Hub
	name  string
	queue chan []byte
	quit  chan struct{}

	mu        sync.RWMutex
	listeners map[uint64]func([]byte)
	next      uint64
	closed    bool
}

func (p *Port) Name() string { return "memory" }

func (p *Port) Send(_ context.Context, msg []byte) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	p.hub.broadcast(p, append([]byte(nil), msg...))
	return nil
}

func (p *Port) Listen(fn func([]byte)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	id := p.next
	p.next++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}, nil
}

func (p *Port) run() {
	for {
		select {
		case <-p.quit:
			return
		case msg := <-p.queue:
			p.mu.RLock()
			fns := make([]func([]byte), 0, len(p.listeners))
			for _, fn := range p.listeners {
				fns = append(fns, fn)
			}
			p.mu.RUnlock()
			for _, fn := range fns {
				fn(msg)
			}
		}
	}
}

func (p *Port) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.hub.detach(p)
	close(p.quit)
	return nil
}
