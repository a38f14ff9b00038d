package api

import (
	"context"
	"net/http"
	"time"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/metrics"
	"github.com/UkralStul/carreras-sync/internal/realtime"
	"github.com/UkralStul/carreras-sync/internal/storage"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// tables - таблицы, на изменения которых можно подписаться.
var tables = func() map[string]bool {
	out := map[string]bool{}
	for _, m := range domain.Models() {
		if rec, ok := m.(domain.Record); ok {
			out[rec.TableName()] = true
		}
	}
	return out
}()

// streamChanges отдаёт уведомления об изменениях таблицы в WebSocket.
// GET /ws/changes?table=comments&post_id=<id>: все параметры кроме table - фильтр по колонкам.
func (s *Server) streamChanges(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	table := query.Get("table")
	if !tables[table] {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "unknown table"})
		return
	}
	filter := storage.Filter{}
	for k, v := range query {
		if k != "table" && len(v) > 0 {
			filter[k] = v[0]
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("changes: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	send := make(chan realtime.Change, 64)
	unsub, err := s.opts.Store.Subscribe(ctx, table, filter, func(c realtime.Change) {
		select {
		case send <- c:
		default:
			metrics.RealtimeDrops.WithLabelValues("websocket", c.Table).Inc()
		}
	})
	if err != nil {
		s.log.ErrorContext(ctx, "changes: subscribe failed", "table", table, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"), time.Now().Add(writeWait))
		return
	}
	defer unsub()

	// Чтение нужно только чтобы заметить закрытие и получать pong
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(c); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
