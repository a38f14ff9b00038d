// Package notify доставляет пользователю короткие уведомления (toast).
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/UkralStul/carreras-sync/internal/metrics"
)

// Variant - оформление уведомления.
type Variant string

const (
	Default     Variant = "default"
	Destructive Variant = "destructive"
)

// Toast - одно уведомление.
type Toast struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Variant     Variant `json:"variant"`
}

// Success строит уведомление об успехе.
func Success(description string) Toast {
	return Toast{Title: "¡Éxito!", Description: description, Variant: Default}
}

// Failure строит уведомление об ошибке.
func Failure(description string) Toast {
	return Toast{Title: "Error", Description: description, Variant: Destructive}
}

// Notifier показывает уведомления пользователю.
type Notifier interface {
	Notify(ctx context.Context, t Toast)
}

// Slog пишет уведомления в лог.
type Slog struct {
	Logger *slog.Logger
}

func (s Slog) Notify(ctx context.Context, t Toast) {
	metrics.Toasts.WithLabelValues(string(t.Variant)).Inc()
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	level := slog.LevelInfo
	if t.Variant == Destructive {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, "toast", "title", t.Title, "description", t.Description)
}

// Recorder запоминает уведомления: для тестов и ответов шлюза.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Notify(_ context.Context, t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

// Toasts возвращает копию записанных уведомлений.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Last возвращает последнее уведомление.
func (r *Recorder) Last() (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return Toast{}, false
	}
	return r.toasts[len(r.toasts)-1], true
}

// Multi рассылает уведомление в несколько получателей.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, t Toast) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, t)
		}
	}
}
