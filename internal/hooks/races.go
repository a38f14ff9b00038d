package hooks

import (
	"context"
	"strings"
	"time"

	"github.com/UkralStul/carreras-sync/internal/blob"
	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/events"
	"github.com/UkralStul/carreras-sync/internal/notify"
	"github.com/UkralStul/carreras-sync/internal/storage"
	"gorm.io/datatypes"
)

// RaceCreatedFunc вызывается после вставки события, чтобы создать пост-компаньон.
// Ошибка откатывает создание события.
type RaceCreatedFunc func(ctx context.Context, race domain.Race, imageURLs []string, videoURL string) error

// RaceInput - поля формы события.
type RaceInput struct {
	Title       string
	Description string
	Comuna      string
	CanchaID    *string
	Date        time.Time
	Images      []blob.File
	Video       *blob.File
}

// Races - календарь событий, новые первыми.
type Races struct {
	base
	items     *collection[domain.Race]
	onCreated RaceCreatedFunc
}

func NewRaces(d Deps, onCreated RaceCreatedFunc) *Races {
	return &Races{
		base:      newBase(d),
		items:     newCollection(func(r domain.Race) string { return r.ID }),
		onCreated: onCreated,
	}
}

// WithCompanionPosts связывает создание события с постом-компаньоном в posts.
func WithCompanionPosts(posts *Posts) RaceCreatedFunc {
	return func(ctx context.Context, race domain.Race, imageURLs []string, videoURL string) error {
		_, err := posts.CreateRacePost(ctx, race, imageURLs, videoURL)
		return err
	}
}

func (r *Races) Items() []domain.Race { return r.items.snapshot() }

// Search отбирает гонки с q в названии, описании, месте или коммуне без учёта регистра.
func (r *Races) Search(q string) []domain.Race {
	var out []domain.Race
	for _, race := range r.items.snapshot() {
		if matches(q, race.Title, race.Description, race.Location, race.Comuna) {
			out = append(out, race)
		}
	}
	return out
}

func (r *Races) Loading() bool { return r.items.loading() }

func (r *Races) Close() { r.items.close() }

func (r *Races) Load(ctx context.Context) error {
	defer r.items.track()()
	t := r.items.startLoad()

	races, err := storage.Find[domain.Race](ctx, r.deps.Store, storage.Query{
		Order: []storage.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return r.fail(ctx, "load races", err, msgRacesLoad)
	}
	r.items.replaceAll(t, races)
	return nil
}

// Create загружает медиа, сохраняет событие и создает пост-компаньон.
// Если пост создать не удалось, событие удаляется.
func (r *Races) Create(ctx context.Context, in RaceInput) (domain.Race, error) {
	userID, err := r.user(ctx, msgRaceLogin)
	if err != nil {
		return domain.Race{}, err
	}
	defer r.items.track()()
	t := r.items.current()

	if in.Date.IsZero() {
		return domain.Race{}, r.fail(ctx, "create race", invalid("race date is required"), msgRaceDate)
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Comuna = strings.TrimSpace(in.Comuna)
	if in.Title == "" || in.Comuna == "" {
		return domain.Race{}, r.fail(ctx, "create race", invalid("race title and comuna are required"), msgRaceCreateFailed)
	}

	images, err := r.upload(ctx, blob.BucketRaceImages, userID, in.Images)
	if err != nil {
		return domain.Race{}, r.fail(ctx, "upload race images", err, msgUploadFailed)
	}
	var videoURL string
	if in.Video != nil {
		// Видео события лежит рядом с вложениями комментариев
		urls, err := r.upload(ctx, blob.BucketCommentAttachments, userID, []blob.File{*in.Video})
		if err != nil {
			return domain.Race{}, r.fail(ctx, "upload race video", err, msgUploadFailed)
		}
		videoURL = urls[0]
	}

	day := time.Date(in.Date.Year(), in.Date.Month(), in.Date.Day(), 0, 0, 0, 0, time.UTC)
	race := &domain.Race{
		UserID:      userID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Location:    in.Comuna,
		Comuna:      in.Comuna,
		CanchaID:    in.CanchaID,
		EventDate:   datatypes.Date(day),
		ImageURLs:   concat(images),
	}
	if err := r.deps.Store.Insert(ctx, race); err != nil {
		return domain.Race{}, r.fail(ctx, "create race", err, msgRaceCreateFailed)
	}

	if r.onCreated != nil {
		if err := r.onCreated(ctx, *race, images, videoURL); err != nil {
			if _, derr := storage.Delete[domain.Race](context.WithoutCancel(ctx), r.deps.Store,
				storage.Filter{"id": race.ID, "user_id": userID}); derr != nil {
				r.deps.Logger.ErrorContext(ctx, "rollback race without companion post", "race_id", race.ID, "error", derr)
			}
			return domain.Race{}, r.fail(ctx, "create companion post", err, msgRaceCreateFailed)
		}
	}

	r.items.prepend(t, *race)
	r.publish(ctx, events.RaceCreated(race.ID))
	r.notify(ctx, notify.Success(msgRaceCreated))
	return *race, nil
}

// Delete удаляет своё событие. Пост-компаньон удаляет каскад хранилища,
// поэтому другие контексты получают race-deleted.
func (r *Races) Delete(ctx context.Context, id string) error {
	userID, err := r.user(ctx, msgRaceDeleteLogin)
	if err != nil {
		return err
	}
	defer r.items.track()()
	t := r.items.current()

	rows, err := storage.Delete[domain.Race](ctx, r.deps.Store, storage.Filter{"id": id, "user_id": userID})
	if err != nil {
		return r.fail(ctx, "delete race", err, msgRaceDeleteFailed)
	}
	if len(rows) == 0 {
		return r.fail(ctx, "delete race", ErrNoOwnerMatch, msgRaceDeleteFailed)
	}
	r.items.remove(t, id)
	r.publish(ctx, events.RaceDeleted(id))
	r.notify(ctx, notify.Toast{Title: msgRaceDeletedTitle, Description: msgRaceDeleted, Variant: notify.Default})
	return nil
}
