// Package blob загружает медиафайлы и выдаёт на них публичные ссылки.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Бакеты, в которые приложение кладёт файлы.
const (
	BucketRaceImages         = "race-images"
	BucketCommentAttachments = "comment-attachments"
	BucketPostMedia          = "post-media"
	BucketAvatars            = "avatars"
)

// Store - внешнее хранилище объектов.
type Store interface {
	Upload(ctx context.Context, bucket, key string, r io.Reader, contentType string) error
	PublicURL(bucket, key string) string
}

// File - локальный файл, прикреплённый пользователем.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadError - загрузка одного файла не удалась.
type UploadError struct {
	Name string
	Err  error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload %s: %v", e.Name, e.Err) }

func (e *UploadError) Unwrap() error { return e.Err }

// ObjectKey строит ключ вида <user>/<unix-ms>-<index>.<ext>.
func ObjectKey(userID, name string, at time.Time, index int) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%d-%d.%s", userID, at.UnixMilli(), index, ext)
}

// UploadAll загружает файлы параллельно и возвращает ссылки в порядке files.
// Первая ошибка отменяет остальные загрузки.
func UploadAll(ctx context.Context, s Store, bucket, userID string, files []File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	now := time.Now()
	urls := make([]string, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			key := ObjectKey(userID, f.Name, now, i)
			if err := s.Upload(ctx, bucket, key, bytes.NewReader(f.Data), f.ContentType); err != nil {
				return &UploadError{Name: f.Name, Err: err}
			}
			urls[i] = s.PublicURL(bucket, key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}
