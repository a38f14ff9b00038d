package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/storage"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	ProfileByID *dataloader.Loader
}

// New создает лоадеры поверх хранилища.
func New(store storage.Store) *Loaders {
	// Батч-функция: один запрос к хранилищу на все ключи
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()
		profiles, err := storage.Find[domain.Profile](ctx, store, storage.Query{Filter: storage.Filter{"id": ids}})
		if err != nil {
			// В случае ошибки, возвращаем ее для всех ключей
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		byID := make(map[string]*domain.Profile, len(profiles))
		for i := range profiles {
			byID[profiles[i].ID] = &profiles[i]
		}
		// Результат в том же порядке, что и ключи; отсутствующий профиль - nil
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			results[i] = &dataloader.Result{Data: byID[id]}
		}
		return results
	}

	return &Loaders{
		ProfileByID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond*1)),
	}
}

// Names загружает отображаемые имена для набора пользователей одним батчем.
// Пользователи без профиля в результат не попадают.
func (l *Loaders) Names(ctx context.Context, userIDs []string) (map[string]string, error) {
	ids := unique(userIDs)
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	thunk := l.ProfileByID.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))
	values, errs := thunk()
	names := make(map[string]string, len(values))
	for i, v := range values {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		if p, ok := v.(*domain.Profile); ok && p != nil {
			names[p.ID] = p.Name()
		}
	}
	return names, nil
}

// Forget сбрасывает кэш профиля, например после его изменения.
func (l *Loaders) Forget(ctx context.Context, userID string) {
	l.ProfileByID.Clear(ctx, dataloader.StringKey(userID))
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Помещаем их в контекст
		ctx := context.WithValue(r.Context(), key, New(store))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// For извлекает лоадеры из контекста.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(key).(*Loaders)
	return l
}
