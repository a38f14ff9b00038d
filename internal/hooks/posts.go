package hooks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/UkralStul/carreras-sync/internal/aggregate"
	"github.com/UkralStul/carreras-sync/internal/blob"
	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/notify"
	"github.com/UkralStul/carreras-sync/internal/storage"
)

// PostInput - поля поста из формы.
type PostInput struct {
	Title    string
	Content  string
	Category domain.Category
	// ImageURLs и VideoURLs - уже загруженные медиа, Files - новые вложения.
	ImageURLs []string
	VideoURLs []string
	Files     []blob.File
}

func (in PostInput) normalize() (PostInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return in, invalid("post title and content are required")
	}
	if in.Category == "" {
		in.Category = domain.CategoryGeneral
	}
	c, err := domain.ParseCategory(string(in.Category))
	if err != nil {
		return in, invalid("%v", err)
	}
	in.Category = c
	return in, nil
}

// Posts - лента постов форума, новые первыми.
type Posts struct {
	base
	items *collection[domain.Post]
}

func NewPosts(d Deps) *Posts {
	return &Posts{
		base:  newBase(d),
		items: newCollection(func(p domain.Post) string { return p.ID }),
	}
}

func (p *Posts) Items() []domain.Post { return p.items.snapshot() }

func (p *Posts) Loading() bool { return p.items.loading() }

func (p *Posts) Close() { p.items.close() }

// Load перечитывает ленту целиком.
func (p *Posts) Load(ctx context.Context) error {
	defer p.items.track()()
	t := p.items.startLoad()

	posts, err := storage.Find[domain.Post](ctx, p.deps.Store, storage.Query{
		Order: []storage.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return p.fail(ctx, "load posts", err, msgPostsLoad)
	}
	p.withAuthors(ctx, posts)
	p.items.replaceAll(t, posts)
	return nil
}

// Watch применяет к ленте уведомления об изменениях постов (голоса, счётчики, правки).
func (p *Posts) Watch(ctx context.Context) (func(), error) {
	return watchRows(ctx, p.base, p.items, nil, p.withAuthor)
}

func (p *Posts) withAuthor(ctx context.Context, post *domain.Post) {
	post.AuthorName = p.authorNames(ctx, []string{post.UserID})[post.UserID]
}

func (p *Posts) withAuthors(ctx context.Context, posts []domain.Post) {
	ids := make([]string, len(posts))
	for i := range posts {
		ids[i] = posts[i].UserID
	}
	names := p.authorNames(ctx, ids)
	for i := range posts {
		posts[i].AuthorName = names[posts[i].UserID]
	}
}

// Create загружает вложения в post-media и публикует пост.
func (p *Posts) Create(ctx context.Context, in PostInput) (domain.Post, error) {
	userID, err := p.user(ctx, msgPostLogin)
	if err != nil {
		return domain.Post{}, err
	}
	defer p.items.track()()
	t := p.items.current()

	in, err = in.normalize()
	if err != nil {
		return domain.Post{}, p.fail(ctx, "create post", err, msgPostInvalid)
	}
	images, videos, err := p.uploadMedia(ctx, blob.BucketPostMedia, userID, in.Files)
	if err != nil {
		return domain.Post{}, p.fail(ctx, "upload post media", err, msgUploadFailed)
	}

	post := &domain.Post{
		UserID:    userID,
		Title:     in.Title,
		Content:   in.Content,
		Category:  in.Category,
		ImageURLs: concat(in.ImageURLs, images),
		VideoURLs: concat(in.VideoURLs, videos),
	}
	return p.insert(ctx, t, post, msgPostCreated, msgPostCreateFailed)
}

// CreateRacePost создает пост-компаньон для события в категории "Próximas carreras".
func (p *Posts) CreateRacePost(ctx context.Context, race domain.Race, imageURLs []string, videoURL string) (domain.Post, error) {
	userID, err := p.user(ctx, msgPostLogin)
	if err != nil {
		return domain.Post{}, err
	}
	defer p.items.track()()
	t := p.items.current()

	if race.ID == "" {
		return domain.Post{}, p.fail(ctx, "create race post", invalid("race id is required"), msgPostCreateFailed)
	}
	raceID := race.ID
	videos := []string{}
	if videoURL != "" {
		videos = append(videos, videoURL)
	}
	post := &domain.Post{
		UserID:    userID,
		Title:     "🏃‍♂️ " + race.Title,
		Content:   racePostContent(race),
		Category:  domain.CategoryUpcomingRace,
		RaceID:    &raceID,
		ImageURLs: concat(imageURLs),
		VideoURLs: videos,
	}
	return p.insert(ctx, t, post, msgRacePostCreated, msgPostCreateFailed)
}

func racePostContent(race domain.Race) string {
	return fmt.Sprintf("📍 **Ubicación:** %s\n📅 **Fecha:** %s\n\n%s\n\n¡Comparte tu opinión y únete a la conversación sobre esta carrera!",
		race.Location, FormatDate(race.Date()), race.Description)
}

func (p *Posts) insert(ctx context.Context, t ticket, post *domain.Post, okMsg, failMsg string) (domain.Post, error) {
	if err := p.deps.Store.Insert(ctx, post); err != nil {
		return domain.Post{}, p.fail(ctx, "create post", err, failMsg)
	}
	// Вставка не возвращает имя автора, дочитываем профиль
	p.withAuthor(ctx, post)
	p.items.prepend(t, *post)
	p.notify(ctx, notify.Success(okMsg))
	return *post, nil
}

// Update меняет пост владельца. Чужой пост не меняется: ErrNoOwnerMatch.
func (p *Posts) Update(ctx context.Context, id string, in PostInput) (domain.Post, error) {
	userID, err := p.user(ctx, msgPostEditLogin)
	if err != nil {
		return domain.Post{}, err
	}
	defer p.items.track()()
	t := p.items.current()

	in, err = in.normalize()
	if err != nil {
		return domain.Post{}, p.fail(ctx, "update post", err, msgPostInvalid)
	}
	// Файлы чужого поста не загружаем
	owned := storage.Filter{"id": id, "user_id": userID}
	if _, err := storage.First[domain.Post](ctx, p.deps.Store, storage.Query{Filter: owned}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = ErrNoOwnerMatch
		}
		return domain.Post{}, p.fail(ctx, "update post", err, msgPostUpdateFailed)
	}
	images, videos, err := p.uploadMedia(ctx, blob.BucketPostMedia, userID, in.Files)
	if err != nil {
		return domain.Post{}, p.fail(ctx, "upload post media", err, msgUploadFailed)
	}

	patch := map[string]any{
		"title":      in.Title,
		"content":    in.Content,
		"category":   in.Category,
		"image_urls": domain.URLs(concat(in.ImageURLs, images)),
		"video_urls": domain.URLs(concat(in.VideoURLs, videos)),
	}
	rows, err := storage.Update[domain.Post](ctx, p.deps.Store, patch, owned)
	if err != nil {
		return domain.Post{}, p.fail(ctx, "update post", err, msgPostUpdateFailed)
	}
	if len(rows) == 0 {
		return domain.Post{}, p.fail(ctx, "update post", ErrNoOwnerMatch, msgPostUpdateFailed)
	}

	updated := rows[0]
	if old, ok := p.items.find(id); ok {
		updated.AuthorName = old.AuthorName
	}
	p.items.replace(t, updated)
	p.notify(ctx, notify.Success(msgPostUpdated))
	return updated, nil
}

// Delete удаляет пост владельца вместе с зависимыми строками (каскад хранилища).
func (p *Posts) Delete(ctx context.Context, id string) error {
	userID, err := p.user(ctx, msgPostDeleteLogin)
	if err != nil {
		return err
	}
	defer p.items.track()()
	t := p.items.current()

	rows, err := storage.Delete[domain.Post](ctx, p.deps.Store, storage.Filter{"id": id, "user_id": userID})
	if err != nil {
		return p.fail(ctx, "delete post", err, msgPostDeleteFailed)
	}
	if len(rows) == 0 {
		return p.fail(ctx, "delete post", ErrNoOwnerMatch, msgPostDeleteFailed)
	}
	p.items.remove(t, id)
	p.notify(ctx, notify.Success(msgPostDeleted))
	return nil
}

// ByCategory отбирает посты категории из локальной копии.
func (p *Posts) ByCategory(c domain.Category) []domain.Post {
	var out []domain.Post
	for _, post := range p.items.snapshot() {
		if post.Category == c {
			out = append(out, post)
		}
	}
	return out
}

// Search отбирает посты с q в заголовке или тексте без учёта регистра.
func (p *Posts) Search(q string) []domain.Post {
	var out []domain.Post
	for _, post := range p.items.snapshot() {
		if matches(q, post.Title, post.Content) {
			out = append(out, post)
		}
	}
	return out
}

// CategoryCounts считает посты по категориям.
func (p *Posts) CategoryCounts() map[domain.Category]int {
	return aggregate.CountByCategory(p.items.snapshot())
}
