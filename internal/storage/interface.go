package storage

import (
	"context"
	"errors"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/realtime"
)

// ErrNotFound возвращается, когда выборка одной строки ничего не нашла.
var ErrNotFound = errors.New("record not found")

// Filter - условия равенства по колонкам, объединённые через AND.
// Значение-срез превращается в IN, nil - в IS NULL.
type Filter map[string]any

// Order - сортировка по одной колонке.
type Order struct {
	Column string
	Desc   bool
}

// Query описывает выборку. Any - набор альтернатив (OR), каждая со своими условиями AND.
type Query struct {
	Filter Filter
	Any    []Filter
	Order  []Order
	Limit  int
}

// Store определяет контракт удалённого хранилища.
// dest во всех методах - указатель на срез моделей (*[]domain.Post и т.п.).
type Store interface {
	Find(ctx context.Context, dest any, q Query) error
	Count(ctx context.Context, model any, f Filter) (int64, error)

	// Insert атомарно вставляет строки и заполняет их ID и временные метки.
	Insert(ctx context.Context, rows ...domain.Record) error
	// Update применяет patch ко всем строкам под фильтром; dest получает изменённые строки.
	Update(ctx context.Context, dest any, patch map[string]any, f Filter) error
	// Delete удаляет строки под фильтром; dest получает удалённые строки.
	Delete(ctx context.Context, dest any, f Filter) error

	// Subscribe подписывает h на изменения таблицы, подходящие под фильтр.
	// Возвращаемая функция отписывает; повторный вызов безопасен.
	Subscribe(ctx context.Context, table string, f Filter, h realtime.Handler) (func(), error)

	Close() error
}

// Find возвращает все строки типа T под запросом.
func Find[T any](ctx context.Context, s Store, q Query) ([]T, error) {
	var rows []T
	if err := s.Find(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// First возвращает первую строку или ErrNotFound.
func First[T any](ctx context.Context, s Store, q Query) (T, error) {
	var zero T
	q.Limit = 1
	rows, err := Find[T](ctx, s, q)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, ErrNotFound
	}
	return rows[0], nil
}

// Count считает строки типа T под фильтром.
func Count[T any](ctx context.Context, s Store, f Filter) (int64, error) {
	var model T
	return s.Count(ctx, &model, f)
}

// Update применяет patch и возвращает изменённые строки.
func Update[T any](ctx context.Context, s Store, patch map[string]any, f Filter) ([]T, error) {
	var rows []T
	if err := s.Update(ctx, &rows, patch, f); err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete удаляет строки и возвращает их.
func Delete[T any](ctx context.Context, s Store, f Filter) ([]T, error) {
	var rows []T
	if err := s.Delete(ctx, &rows, f); err != nil {
		return nil, err
	}
	return rows, nil
}

// Scope переводит фильтр подписки в строковые значения для сравнения со Scope записи.
func (f Filter) Scope() map[string]string {
	if len(f) == 0 {
		return nil
	}
	out := make(map[string]string, len(f))
	for k, v := range f {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
