// Package realtime реализует канал push-уведомлений об изменениях строк хранилища.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventType - тип изменения строки.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Change - одно уведомление об изменении строки.
type Change struct {
	Table           string            `json:"table"`
	Type            EventType         `json:"type"`
	ID              string            `json:"id"`
	Scope           map[string]string `json:"scope"`
	Record          json.RawMessage   `json:"record"`
	CommitTimestamp time.Time         `json:"commit_timestamp"`
}

// Decode разбирает JSON строки в v.
func (c Change) Decode(v any) error {
	if len(c.Record) == 0 {
		return fmt.Errorf("change %s/%s has no record", c.Table, c.ID)
	}
	return json.Unmarshal(c.Record, v)
}

// Matches проверяет, что все пары фильтра совпадают со Scope изменения.
func (c Change) Matches(table string, filter map[string]string) bool {
	if c.Table != table {
		return false
	}
	for k, v := range filter {
		if c.Scope[k] != v {
			return false
		}
	}
	return true
}

// Handler получает уведомления. Вызовы для одной подписки идут последовательно.
type Handler func(Change)

// Broker разносит уведомления подписчикам.
type Broker interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe возвращает функцию отписки. Отмена ctx тоже отписывает.
	Subscribe(ctx context.Context, table string, filter map[string]string, h Handler) (func(), error)
	Close() error
}
