package hooks

import (
	"context"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/realtime"
	"github.com/UkralStul/carreras-sync/internal/storage"
)

// Loader - хук, который умеет перечитать свою коллекцию.
type Loader interface {
	Load(ctx context.Context) error
}

// watchRows применяет уведомления таблицы к коллекции: вставка в начало, замена на месте, удаление.
// enrich дополняет строку данными, которых нет в уведомлении.
func watchRows[T domain.Record](ctx context.Context, b base, items *collection[T], f storage.Filter, enrich func(context.Context, *T)) (func(), error) {
	var zero T
	table := zero.TableName()
	t := items.current()
	return b.deps.Store.Subscribe(ctx, table, f, func(ch realtime.Change) {
		if ch.Type == realtime.Delete {
			items.remove(t, ch.ID)
			return
		}
		var row T
		if err := ch.Decode(&row); err != nil {
			b.deps.Logger.Warn("decode change", "table", table, "id", ch.ID, "error", err)
			return
		}
		if enrich != nil {
			enrich(context.WithoutCancel(ctx), &row)
		}
		if ch.Type == realtime.Insert {
			items.prepend(t, row)
			return
		}
		items.replace(t, row)
	})
}

// watchReload перечитывает хук на любое изменение под одним из фильтров.
func watchReload(ctx context.Context, b base, table string, l Loader, filters ...storage.Filter) (func(), error) {
	var unsubs []func()
	stop := func() {
		for _, u := range unsubs {
			u()
		}
	}
	for _, f := range filters {
		unsub, err := b.deps.Store.Subscribe(ctx, table, f, func(realtime.Change) {
			// Ошибки загрузки уже показаны пользователю
			_ = l.Load(context.WithoutCancel(ctx))
		})
		if err != nil {
			stop()
			return nil, err
		}
		unsubs = append(unsubs, unsub)
	}
	return stop, nil
}
