package hooks

import (
	"context"
	"errors"

	"github.com/UkralStul/carreras-sync/internal/blob"
	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/notify"
	"github.com/UkralStul/carreras-sync/internal/storage"
)

// ProfileUpdate - изменяемые поля профиля. nil - поле не меняется.
type ProfileUpdate struct {
	DisplayName    *string
	Bio            *string
	AvatarURL      *string
	Phone          *string
	ContactEmail   *string
	Comuna         *string
	RoleOwner      *bool
	RoleCorral     *bool
	RoleAficionado *bool
	RoleJinete     *bool
	RolePreparador *bool
	PrimaryRole    *domain.PrimaryRole
}

func (u ProfileUpdate) patch() (map[string]any, error) {
	patch := map[string]any{}
	setField(patch, "display_name", u.DisplayName)
	setField(patch, "bio", u.Bio)
	setField(patch, "avatar_url", u.AvatarURL)
	setField(patch, "phone", u.Phone)
	setField(patch, "contact_email", u.ContactEmail)
	setField(patch, "comuna", u.Comuna)
	setField(patch, "role_owner", u.RoleOwner)
	setField(patch, "role_corral", u.RoleCorral)
	setField(patch, "role_aficionado", u.RoleAficionado)
	setField(patch, "role_jinete", u.RoleJinete)
	setField(patch, "role_preparador", u.RolePreparador)
	if u.PrimaryRole != nil {
		if !u.PrimaryRole.Valid() {
			return nil, invalid("unknown primary role %q", *u.PrimaryRole)
		}
		patch["primary_role"] = string(*u.PrimaryRole)
	}
	if len(patch) == 0 {
		return nil, invalid("nothing to update")
	}
	return patch, nil
}

func setField[T any](patch map[string]any, column string, v *T) {
	if v != nil {
		patch[column] = *v
	}
}

// Profile - профиль текущего пользователя.
type Profile struct {
	base
	items *collection[domain.Profile]
}

func NewProfile(d Deps) *Profile {
	return &Profile{
		base:  newBase(d),
		items: newCollection(func(p domain.Profile) string { return p.ID }),
	}
}

// Profile возвращает загруженный профиль.
func (p *Profile) Profile() (domain.Profile, bool) {
	items := p.items.snapshot()
	if len(items) == 0 {
		return domain.Profile{}, false
	}
	return items[0], true
}

func (p *Profile) Loading() bool { return p.items.loading() }

func (p *Profile) Close() { p.items.close() }

// Load читает профиль текущего пользователя. Аноним получает пустой профиль.
func (p *Profile) Load(ctx context.Context) error {
	defer p.items.track()()
	t := p.items.startLoad()

	userID, ok := p.deps.Identity.UserID()
	if !ok {
		p.items.replaceAll(t, nil)
		return nil
	}
	profile, err := storage.First[domain.Profile](ctx, p.deps.Store, storage.Query{Filter: storage.Filter{"id": userID}})
	if errors.Is(err, storage.ErrNotFound) {
		p.items.replaceAll(t, nil)
		return nil
	}
	if err != nil {
		return p.fail(ctx, "load profile", err, msgProfileFailed)
	}
	p.items.replaceAll(t, []domain.Profile{profile})
	return nil
}

// Update сохраняет изменения своего профиля.
func (p *Profile) Update(ctx context.Context, u ProfileUpdate) (domain.Profile, error) {
	userID, err := p.user(ctx, msgProfileLogin)
	if err != nil {
		return domain.Profile{}, err
	}
	defer p.items.track()()
	t := p.items.current()

	patch, err := u.patch()
	if err != nil {
		return domain.Profile{}, p.fail(ctx, "update profile", err, msgProfileFailed)
	}
	rows, err := storage.Update[domain.Profile](ctx, p.deps.Store, patch, storage.Filter{"id": userID})
	if err != nil {
		return domain.Profile{}, p.fail(ctx, "update profile", err, msgProfileFailed)
	}
	if len(rows) == 0 {
		return domain.Profile{}, p.fail(ctx, "update profile", ErrNoOwnerMatch, msgProfileFailed)
	}
	if p.deps.Profiles != nil {
		// Имя могло поменяться
		p.deps.Profiles.Forget(ctx, userID)
	}
	p.items.replaceAll(t, rows[:1])
	p.notify(ctx, notify.Toast{Title: msgProfileTitle, Description: msgProfileSaved, Variant: notify.Default})
	return rows[0], nil
}

// UploadAvatar загружает аватар и возвращает его ссылку. Профиль не меняется.
func (p *Profile) UploadAvatar(ctx context.Context, f blob.File) (string, error) {
	userID, err := p.user(ctx, msgProfileLogin)
	if err != nil {
		return "", err
	}
	defer p.items.track()()

	urls, err := p.upload(ctx, blob.BucketAvatars, userID, []blob.File{f})
	if err != nil {
		return "", p.fail(ctx, "upload avatar", err, msgAvatarFailed)
	}
	return urls[0], nil
}
