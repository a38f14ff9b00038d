package hooks

import (
	"context"
	"strings"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/storage"
)

// Profiles - чужие профили: страница пользователя и выбор собеседника.
type Profiles struct {
	base
	items *collection[domain.Profile]
}

func NewProfiles(d Deps) *Profiles {
	return &Profiles{
		base:  newBase(d),
		items: newCollection(func(p domain.Profile) string { return p.ID }),
	}
}

func (p *Profiles) Items() []domain.Profile { return p.items.snapshot() }

func (p *Profiles) Loading() bool { return p.items.loading() }

func (p *Profiles) Close() { p.items.close() }

// Get читает один профиль по id. Отсутствующий профиль - storage.ErrNotFound.
func (p *Profiles) Get(ctx context.Context, id string) (domain.Profile, error) {
	profile, err := storage.First[domain.Profile](ctx, p.deps.Store, storage.Query{Filter: storage.Filter{"id": id}})
	if err != nil {
		return domain.Profile{}, p.fail(ctx, "load profile", err, msgProfilesLoad)
	}
	return profile, nil
}

// Load читает все профили, кроме своего, по имени.
func (p *Profiles) Load(ctx context.Context) error {
	defer p.items.track()()
	t := p.items.startLoad()

	rows, err := storage.Find[domain.Profile](ctx, p.deps.Store, storage.Query{
		Order: []storage.Order{{Column: "display_name"}, {Column: "id"}},
	})
	if err != nil {
		return p.fail(ctx, "load profiles", err, msgProfilesLoad)
	}
	self, _ := p.deps.Identity.UserID()
	out := rows[:0]
	for _, r := range rows {
		if r.ID != self {
			out = append(out, r)
		}
	}
	p.items.replaceAll(t, out)
	return nil
}

// Search отбирает загруженные профили по подстроке имени без учёта регистра.
func (p *Profiles) Search(q string) []domain.Profile {
	var out []domain.Profile
	for _, profile := range p.items.snapshot() {
		var name string
		if profile.DisplayName != nil {
			name = *profile.DisplayName
		}
		if matches(q, name) {
			out = append(out, profile)
		}
	}
	return out
}

// matches - есть ли q в одном из полей без учёта регистра. Пустой q подходит всему.
func matches(q string, fields ...string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
