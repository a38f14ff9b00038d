package hooks

import (
	"context"
	"log/slog"

	"github.com/UkralStul/carreras-sync/internal/events"
)

// RefreshOnAppEvents перечитывает loaders, когда другой контекст создал или удалил событие.
// Возвращает функцию отписки.
func RefreshOnAppEvents(ctx context.Context, bus *events.Bus, log *slog.Logger, loaders ...Loader) func() {
	if log == nil {
		log = slog.Default()
	}
	return bus.Subscribe(func(e events.Event) {
		log.DebugContext(ctx, "app event: refreshing views", "type", e.Type, "race_id", e.Payload.RaceID)
		for _, l := range loaders {
			if err := l.Load(ctx); err != nil {
				log.WarnContext(ctx, "refresh after app event", "type", e.Type, "error", err)
			}
		}
	})
}
