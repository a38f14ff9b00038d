package hooks

import (
	"context"
	"errors"
	"sync"

	"github.com/UkralStul/carreras-sync/internal/aggregate"
	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/storage"
)

// Attendance - отметка "иду" текущего пользователя и число участников события.
type Attendance struct {
	base
	postID string
	items  *collection[domain.PostAttendee]

	mu      sync.Mutex
	counter *aggregate.AttendeeCounter
}

func NewAttendance(d Deps, postID string) *Attendance {
	return &Attendance{
		base:   newBase(d),
		postID: postID,
		items:  newCollection(func(a domain.PostAttendee) string { return a.ID }),
	}
}

// Attending - отмечен ли текущий пользователь.
func (a *Attendance) Attending() bool { return len(a.items.snapshot()) > 0 }

func (a *Attendance) Loading() bool { return a.items.loading() }

// Count - число участников по последнему пересчёту; 0, пока не вызван Watch.
func (a *Attendance) Count() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.counter == nil {
		return 0
	}
	return a.counter.Count()
}

func (a *Attendance) Close() {
	a.items.close()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.counter != nil {
		a.counter.Close()
		a.counter = nil
	}
}

// Load читает свою отметку один раз; дальше она меняется только через Toggle.
func (a *Attendance) Load(ctx context.Context) error {
	defer a.items.track()()
	t := a.items.startLoad()

	userID, ok := a.deps.Identity.UserID()
	if !ok {
		a.items.replaceAll(t, nil)
		return nil
	}
	row, err := storage.First[domain.PostAttendee](ctx, a.deps.Store, storage.Query{
		Filter: storage.Filter{"post_id": a.postID, "user_id": userID},
	})
	if errors.Is(err, storage.ErrNotFound) {
		a.items.replaceAll(t, nil)
		return nil
	}
	if err != nil {
		return a.fail(ctx, "load attendance", err, msgAttendFailed)
	}
	a.items.replaceAll(t, []domain.PostAttendee{row})
	return nil
}

// Watch запускает счётчик участников, который пересчитывается на каждое уведомление.
func (a *Attendance) Watch(ctx context.Context) error {
	counter, err := aggregate.NewAttendeeCounter(ctx, a.deps.Store, a.postID, a.deps.Logger)
	if err != nil {
		return a.fail(ctx, "watch attendance", err, msgAttendFailed)
	}
	a.mu.Lock()
	old := a.counter
	a.counter = counter
	a.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Toggle сразу меняет отметку локально, затем перечитывает строку
// пользователя: удаляет её, если она есть, и вставляет, если нет.
// При ошибке отметка возвращается к перечитанному состоянию.
func (a *Attendance) Toggle(ctx context.Context) error {
	userID, err := a.user(ctx, msgAttendLogin)
	if err != nil {
		return err
	}
	defer a.items.track()()
	t := a.items.current()

	before := a.items.snapshot()
	if len(before) > 0 {
		a.items.replaceAll(t, nil)
	} else {
		a.items.replaceAll(t, []domain.PostAttendee{{PostID: a.postID, UserID: userID}})
	}

	// Локальная копия могла устареть: другая вкладка уже поменяла отметку
	filter := storage.Filter{"post_id": a.postID, "user_id": userID}
	row, err := storage.First[domain.PostAttendee](ctx, a.deps.Store, storage.Query{Filter: filter})
	switch {
	case err == nil:
		before = []domain.PostAttendee{row}
		a.items.replaceAll(t, nil)
		_, err = storage.Delete[domain.PostAttendee](ctx, a.deps.Store, filter)
	case errors.Is(err, storage.ErrNotFound):
		before = nil
		row := &domain.PostAttendee{PostID: a.postID, UserID: userID}
		a.items.replaceAll(t, []domain.PostAttendee{*row})
		if err = a.deps.Store.Insert(ctx, row); err == nil {
			a.items.replaceAll(t, []domain.PostAttendee{*row})
		}
	}
	if err != nil {
		a.items.replaceAll(t, before)
		return a.fail(ctx, "toggle attendance", err, msgAttendFailed)
	}
	return nil
}
