// Package hooks содержит клиентские хуки сущностей: каждый владеет локальной копией
// коллекции и держит её согласованной с удалённым хранилищем.
package hooks

import (
	"context"
	"errors"
	"log/slog"

	"github.com/UkralStul/carreras-sync/internal/blob"
	"github.com/UkralStul/carreras-sync/internal/dataloader"
	"github.com/UkralStul/carreras-sync/internal/events"
	"github.com/UkralStul/carreras-sync/internal/identity"
	"github.com/UkralStul/carreras-sync/internal/notify"
	"github.com/UkralStul/carreras-sync/internal/storage"
)

// Deps - внешние зависимости хуков.
type Deps struct {
	Store    storage.Store
	Identity identity.Provider
	Notifier notify.Notifier
	Blobs    blob.Store
	Profiles *dataloader.Loaders
	// Bus может быть nil: тогда события в другие контексты не отправляются.
	Bus    *events.Bus
	Logger *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Slog{Logger: d.Logger}
	}
	if d.Identity == nil {
		d.Identity = identity.Anonymous()
	}
	if d.Profiles == nil && d.Store != nil {
		d.Profiles = dataloader.New(d.Store)
	}
	return d
}

// base - общее поведение хуков: проверка входа и превращение ошибок в уведомления.
type base struct {
	deps Deps
}

func newBase(d Deps) base {
	return base{deps: d.withDefaults()}
}

// user возвращает текущего пользователя или ErrUnauthenticated с уведомлением msg.
func (b base) user(ctx context.Context, msg string) (string, error) {
	id, ok := b.deps.Identity.UserID()
	if !ok {
		b.deps.Notifier.Notify(ctx, notify.Failure(msg))
		return "", ErrUnauthenticated
	}
	return id, nil
}

// fail уведомляет пользователя и возвращает типизированную ошибку.
// Ошибки хранилища оборачиваются в RemoteStoreError.
func (b base) fail(ctx context.Context, op string, err error, msg string) error {
	var upload *UploadError
	var remote *RemoteStoreError
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrNoOwnerMatch),
		errors.Is(err, ErrInvalidInput), errors.As(err, &upload), errors.As(err, &remote):
	default:
		err = &RemoteStoreError{Op: op, Err: err}
	}
	b.deps.Logger.WarnContext(ctx, "hook operation failed", "op", op, "error", err)
	b.deps.Notifier.Notify(ctx, notify.Failure(msg))
	return err
}

func (b base) notify(ctx context.Context, t notify.Toast) {
	b.deps.Notifier.Notify(ctx, t)
}

// authorNames подтягивает отображаемые имена авторов через дата-лоадер.
func (b base) authorNames(ctx context.Context, userIDs []string) map[string]string {
	if b.deps.Profiles == nil {
		return nil
	}
	names, err := b.deps.Profiles.Names(ctx, userIDs)
	if err != nil {
		// Имена не критичны: пост покажется без автора
		b.deps.Logger.WarnContext(ctx, "load author names", "error", err)
		return nil
	}
	return names
}

func (b base) publish(ctx context.Context, e events.Event) {
	if b.deps.Bus == nil {
		return
	}
	if err := b.deps.Bus.Publish(ctx, e); err != nil {
		b.deps.Logger.WarnContext(ctx, "publish app event", "type", e.Type, "error", err)
	}
}
