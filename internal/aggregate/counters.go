// Package aggregate считает производные величины: счётчики комментариев и участников,
// проценты опросов, количество постов по категориям и диалоги.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/realtime"
	"github.com/UkralStul/carreras-sync/internal/storage"
)

// CommentCounter ведёт число комментариев поста по уведомлениям: +1 на вставку, -1 на удаление.
// Полный пересчёт не делается, пропущенное уведомление приводит к расхождению.
type CommentCounter struct {
	mu    sync.Mutex
	count int
	// ids - известные комментарии; nil означает простой счёт по уведомлениям.
	ids map[string]struct{}
	// pending копит уведомления, пришедшие до первого чтения.
	pending []realtime.Change
	seeded  bool
	unsub   func()
}

// NewCommentCounter подписывается на комментарии поста, начиная с initial.
func NewCommentCounter(ctx context.Context, store storage.Store, postID string, initial int) (*CommentCounter, error) {
	c := &CommentCounter{count: max(initial, 0), seeded: true}
	unsub, err := store.Subscribe(ctx, domain.Comment{}.TableName(), storage.Filter{"post_id": postID}, c.Apply)
	if err != nil {
		return nil, fmt.Errorf("subscribe comments of %s: %w", postID, err)
	}
	c.unsub = unsub
	return c, nil
}

// WatchCommentCount сначала подписывается и только потом читает комментарии поста.
// Уведомления сверяются с набором id, поэтому изменение, попавшее и в чтение,
// и в уведомление, учитывается один раз.
func WatchCommentCount(ctx context.Context, store storage.Store, postID string) (*CommentCounter, error) {
	c := &CommentCounter{}
	unsub, err := store.Subscribe(ctx, domain.Comment{}.TableName(), storage.Filter{"post_id": postID}, c.Apply)
	if err != nil {
		return nil, fmt.Errorf("subscribe comments of %s: %w", postID, err)
	}
	c.unsub = unsub

	rows, err := storage.Find[domain.Comment](ctx, store, storage.Query{Filter: storage.Filter{"post_id": postID}})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("load comments of %s: %w", postID, err)
	}
	ids := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		ids[r.ID] = struct{}{}
	}
	c.seed(ids)
	return c, nil
}

func (c *CommentCounter) seed(ids map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = ids
	c.count = len(ids)
	c.seeded = true
	for _, ch := range c.pending {
		c.apply(ch)
	}
	c.pending = nil
}

// Apply учитывает одно уведомление. Счётчик не опускается ниже нуля.
func (c *CommentCounter) Apply(ch realtime.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seeded {
		c.pending = append(c.pending, ch)
		return
	}
	c.apply(ch)
}

func (c *CommentCounter) apply(ch realtime.Change) {
	if c.ids != nil {
		_, known := c.ids[ch.ID]
		switch {
		case ch.Type == realtime.Insert && !known:
			c.ids[ch.ID] = struct{}{}
		case ch.Type == realtime.Delete && known:
			delete(c.ids, ch.ID)
		default:
			return
		}
		c.count = len(c.ids)
		return
	}
	switch ch.Type {
	case realtime.Insert:
		c.count++
	case realtime.Delete:
		c.count = max(c.count-1, 0)
	}
}

// Count - текущее число; до первого чтения 0.
func (c *CommentCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *CommentCounter) Close() {
	if c.unsub != nil {
		c.unsub()
	}
}

// AttendeeCounter пересчитывает участников поста запросом на каждое уведомление.
// Ответ на более старый запрос не перезаписывает более свежий.
type AttendeeCounter struct {
	store  storage.Store
	postID string
	log    *slog.Logger

	mu      sync.Mutex
	count   int64
	issued  uint64
	applied uint64
	unsub   func()
}

// NewAttendeeCounter считает участников и подписывается на изменения.
func NewAttendeeCounter(ctx context.Context, store storage.Store, postID string, log *slog.Logger) (*AttendeeCounter, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &AttendeeCounter{store: store, postID: postID, log: log}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	unsub, err := store.Subscribe(ctx, domain.PostAttendee{}.TableName(), storage.Filter{"post_id": postID}, func(realtime.Change) {
		if err := c.Refresh(context.WithoutCancel(ctx)); err != nil {
			c.log.Warn("recount attendees", "post_id", postID, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe attendees of %s: %w", postID, err)
	}
	c.unsub = unsub
	return c, nil
}

// Refresh выполняет запрос количества и применяет его, если он не устарел.
func (c *AttendeeCounter) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.issued++
	gen := c.issued
	c.mu.Unlock()

	n, err := storage.Count[domain.PostAttendee](ctx, c.store, storage.Filter{"post_id": c.postID})
	if err != nil {
		return fmt.Errorf("count attendees of %s: %w", c.postID, err)
	}

	c.settle(gen, n)
	return nil
}

// settle применяет результат запроса gen, если не применён более свежий.
func (c *AttendeeCounter) settle(gen uint64, n int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen <= c.applied {
		return false
	}
	c.count = n
	c.applied = gen
	return true
}

func (c *AttendeeCounter) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *AttendeeCounter) Close() {
	if c.unsub != nil {
		c.unsub()
	}
}
