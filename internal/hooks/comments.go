package hooks

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/UkralStul/carreras-sync/internal/aggregate"
	"github.com/UkralStul/carreras-sync/internal/blob"
	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/notify"
	"github.com/UkralStul/carreras-sync/internal/storage"
)

const maxCommentLength = 2000

// CommentInput - новый комментарий с вложениями.
type CommentInput struct {
	Content string
	Files   []blob.File
}

func validateComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid("comment content cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxCommentLength {
		return "", invalid("comment content is too long")
	}
	return content, nil
}

// Comments - комментарии одного поста, новые первыми.
type Comments struct {
	base
	items *collection[domain.Comment]

	mu      sync.RWMutex
	postID  string
	counter *aggregate.CommentCounter
}

func NewComments(d Deps, postID string) *Comments {
	return &Comments{
		base:   newBase(d),
		items:  newCollection(func(c domain.Comment) string { return c.ID }),
		postID: postID,
	}
}

func (c *Comments) PostID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.postID
}

func (c *Comments) Items() []domain.Comment { return c.items.snapshot() }

func (c *Comments) Loading() bool { return c.items.loading() }

func (c *Comments) Close() {
	c.items.close()
	c.swapCounter(nil)
}

// Count - число комментариев по счётчику; 0, пока не вызван WatchCount.
func (c *Comments) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.counter == nil {
		return 0
	}
	return c.counter.Count()
}

// WatchCount запускает счётчик комментариев текущего поста. Подписка
// открывается до чтения, так что комментарий, добавленный во время чтения, не теряется.
func (c *Comments) WatchCount(ctx context.Context) error {
	postID, _ := c.scoped(false)
	counter, err := aggregate.WatchCommentCount(ctx, c.deps.Store, postID)
	if err != nil {
		return c.fail(ctx, "watch comment count", err, msgCommentsLoad)
	}
	c.swapCounter(counter)
	return nil
}

func (c *Comments) swapCounter(counter *aggregate.CommentCounter) {
	c.mu.Lock()
	old := c.counter
	c.counter = counter
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// SetScope переключает хук на другой пост. Ответы по старому посту отбрасываются,
// счётчик старого поста останавливается.
func (c *Comments) SetScope(ctx context.Context, postID string) error {
	c.mu.Lock()
	c.postID = postID
	c.items.rescope()
	c.mu.Unlock()
	c.swapCounter(nil)
	return c.Load(ctx)
}

// scoped возвращает текущий пост и билет, выданный для него.
func (c *Comments) scoped(load bool) (string, ticket) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if load {
		return c.postID, c.items.startLoad()
	}
	return c.postID, c.items.current()
}

func (c *Comments) Load(ctx context.Context) error {
	defer c.items.track()()
	postID, t := c.scoped(true)

	comments, err := storage.Find[domain.Comment](ctx, c.deps.Store, storage.Query{
		Filter: storage.Filter{"post_id": postID},
		Order:  []storage.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return c.fail(ctx, "load comments", err, msgCommentsLoad)
	}
	c.items.replaceAll(t, comments)
	return nil
}

// Watch держит копию в актуальном состоянии по уведомлениям для текущего поста.
func (c *Comments) Watch(ctx context.Context) (func(), error) {
	postID, _ := c.scoped(false)
	return watchRows[domain.Comment](ctx, c.base, c.items, storage.Filter{"post_id": postID}, nil)
}

// Create загружает вложения в comment-attachments и добавляет комментарий.
func (c *Comments) Create(ctx context.Context, in CommentInput) (domain.Comment, error) {
	userID, err := c.user(ctx, msgCommentLogin)
	if err != nil {
		return domain.Comment{}, err
	}
	defer c.items.track()()
	postID, t := c.scoped(false)

	content, err := validateComment(in.Content)
	if err != nil {
		return domain.Comment{}, c.fail(ctx, "create comment", err, msgCommentEmpty)
	}
	images, videos, err := c.uploadMedia(ctx, blob.BucketCommentAttachments, userID, in.Files)
	if err != nil {
		return domain.Comment{}, c.fail(ctx, "upload comment attachments", err, msgUploadFailed)
	}

	comment := &domain.Comment{
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		ImageURLs: concat(images),
		VideoURLs: concat(videos),
	}
	if err := c.deps.Store.Insert(ctx, comment); err != nil {
		return domain.Comment{}, c.fail(ctx, "create comment", err, msgCommentFailed)
	}
	c.items.prepend(t, *comment)
	c.notify(ctx, notify.Toast{Title: msgCommentTitle, Description: msgCommentCreated, Variant: notify.Default})
	return *comment, nil
}

// Update меняет текст своего комментария.
func (c *Comments) Update(ctx context.Context, id, content string) (domain.Comment, error) {
	userID, err := c.user(ctx, msgCommentLogin)
	if err != nil {
		return domain.Comment{}, err
	}
	defer c.items.track()()
	_, t := c.scoped(false)

	content, err = validateComment(content)
	if err != nil {
		return domain.Comment{}, c.fail(ctx, "update comment", err, msgCommentEmpty)
	}
	rows, err := storage.Update[domain.Comment](ctx, c.deps.Store, map[string]any{"content": content},
		storage.Filter{"id": id, "user_id": userID})
	if err != nil {
		return domain.Comment{}, c.fail(ctx, "update comment", err, msgCommentUpdateFail)
	}
	if len(rows) == 0 {
		return domain.Comment{}, c.fail(ctx, "update comment", ErrNoOwnerMatch, msgCommentUpdateFail)
	}
	c.items.replace(t, rows[0])
	c.notify(ctx, notify.Success(msgCommentUpdated))
	return rows[0], nil
}

// Delete удаляет свой комментарий.
func (c *Comments) Delete(ctx context.Context, id string) error {
	userID, err := c.user(ctx, msgCommentLogin)
	if err != nil {
		return err
	}
	defer c.items.track()()
	_, t := c.scoped(false)

	rows, err := storage.Delete[domain.Comment](ctx, c.deps.Store, storage.Filter{"id": id, "user_id": userID})
	if err != nil {
		return c.fail(ctx, "delete comment", err, msgCommentDeleteFail)
	}
	if len(rows) == 0 {
		return c.fail(ctx, "delete comment", ErrNoOwnerMatch, msgCommentDeleteFail)
	}
	c.items.remove(t, id)
	c.notify(ctx, notify.Success(msgCommentDeleted))
	return nil
}
