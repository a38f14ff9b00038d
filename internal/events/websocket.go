package events

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/UkralStul/carreras-sync/internal/metrics"
	"github.com/gorilla/websocket"
)

const (
	// Время на запись одного сообщения.
	writeWait = 10 * time.Second

	// Время ожидания pong от собеседника.
	pongWait = 60 * time.Second

	// Период ping. Должен быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Relay - серверная сторона транспорта: пересылает сообщение каждого
// подключения всем остальным подключениям.
type Relay struct {
	mu      sync.RWMutex
	clients map[*relayClient]struct{}
	local   map[uint64]func([]byte)
	next    uint64
	log     *slog.Logger
}

func NewRelay(log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		clients: make(map[*relayClient]struct{}),
		local:   make(map[uint64]func([]byte)),
		log:     log,
	}
}

type relayClient struct {
	conn *websocket.Conn
	send chan []byte
}

// ServeHTTP поднимает WebSocket и обслуживает подключение до его закрытия.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("relay: upgrade failed", "error", err)
		return
	}
	c := &relayClient{conn: conn, send: make(chan []byte, 256)}

	r.mu.Lock()
	r.clients[c] = struct{}{}
	r.mu.Unlock()

	go c.writePump()
	r.readPump(c)
}

// Clients - число активных подключений.
func (r *Relay) Clients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Relay) readPump(c *relayClient) {
	defer func() {
		r.mu.Lock()
		delete(r.clients, c)
		r.mu.Unlock()
		close(c.send)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				r.log.Warn("relay: read failed", "error", err)
			}
			return
		}
		r.broadcast(c, msg)
		r.deliverLocal(msg)
	}
}

func (r *Relay) deliverLocal(msg []byte) {
	r.mu.RLock()
	fns := make([]func([]byte), 0, len(r.local))
	for _, fn := range r.local {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()
	for _, fn := range fns {
		fn(msg)
	}
}

// Local - транспорт самого сервера внутри Relay: Send уходит всем
// подключениям, Listen получает сообщения от подключений.
func (r *Relay) Local() *RelayPort {
	return &RelayPort{relay: r, ids: make(map[uint64]struct{})}
}

// RelayPort - серверный порт Relay.
type RelayPort struct {
	relay *Relay

	mu     sync.Mutex
	ids    map[uint64]struct{}
	closed bool
}

func (p *RelayPort) Name() string { return "relay" }

func (p *RelayPort) Send(_ context.Context, msg []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	p.relay.broadcast(nil, msg)
	return nil
}

func (p *RelayPort) Listen(fn func([]byte)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	r := p.relay
	r.mu.Lock()
	id := r.next
	r.next++
	r.local[id] = fn
	r.mu.Unlock()
	p.ids[id] = struct{}{}

	return func() {
		p.mu.Lock()
		delete(p.ids, id)
		p.mu.Unlock()
		r.mu.Lock()
		delete(r.local, id)
		r.mu.Unlock()
	}, nil
}

// Close снимает получателей порта; подключения остаются.
func (p *RelayPort) Close() error {
	p.mu.Lock()
	p.closed = true
	ids := p.ids
	p.ids = make(map[uint64]struct{})
	p.mu.Unlock()

	p.relay.mu.Lock()
	for id := range ids {
		delete(p.relay.local, id)
	}
	p.relay.mu.Unlock()
	return nil
}

func (r *Relay) broadcast(from *relayClient, msg []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.clients {
		if c == from {
			continue
		}
		select {
		case c.send <- msg:
		default:
			// Буфер полон - получатель пропустит событие и перечитает данные сам
			metrics.RealtimeDrops.WithLabelValues("relay", "app-events").Inc()
		}
	}
}

func (c *relayClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WebSocketTransport - клиентская сторона: одно подключение к Relay.
type WebSocketTransport struct {
	conn *websocket.Conn
	wmu  sync.Mutex

	mu        sync.RWMutex
	listeners map[uint64]func([]byte)
	next      uint64
	done      chan struct{}
	closeOnce sync.Once
}

// DialWebSocket подключается к Relay по адресу ws://.../ws/events.
func DialWebSocket(ctx context.Context, url string) (*WebSocketTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	t := &WebSocketTransport{
		conn:      conn,
		listeners: make(map[uint64]func([]byte)),
		done:      make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *WebSocketTransport) Name() string { return "relay" }

func (t *WebSocketTransport) Send(ctx context.Context, msg []byte) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	_ = t.conn.SetWriteDeadline(deadline)
	return t.conn.WriteMessage(websocket.TextMessage, msg)
}

func (t *WebSocketTransport) Listen(fn func([]byte)) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}, nil
}

func (t *WebSocketTransport) readLoop() {
	defer t.shutdown()
	for {
		_, msg, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		t.mu.RLock()
		fns := make([]func([]byte), 0, len(t.listeners))
		for _, fn := range t.listeners {
			fns = append(fns, fn)
		}
		t.mu.RUnlock()
		for _, fn := range fns {
			fn(msg)
		}
	}
}

func (t *WebSocketTransport) shutdown() {
	t.closeOnce.Do(func() {
		close(t.done)
		_ = t.conn.Close()
	})
}

func (t *WebSocketTransport) Close() error {
	t.wmu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	t.wmu.Unlock()
	t.shutdown()
	return nil
}
