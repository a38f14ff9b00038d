package hooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/UkralStul/carreras-sync/internal/blob"
)

var errNoBlobStore = errors.New("blob store is not configured")

func isVideo(f blob.File) bool {
	return strings.HasPrefix(f.ContentType, "video/")
}

// upload загружает файлы в bucket и возвращает ссылки в том же порядке.
func (b base) upload(ctx context.Context, bucket, userID string, files []blob.File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if b.deps.Blobs == nil {
		return nil, &UploadError{Name: files[0].Name, Err: errNoBlobStore}
	}
	return blob.UploadAll(ctx, b.deps.Blobs, bucket, userID, files)
}

// uploadMedia загружает вложения и раскладывает ссылки на изображения и видео.
// Порядок внутри каждой группы совпадает с порядком files.
func (b base) uploadMedia(ctx context.Context, bucket, userID string, files []blob.File) (images, videos []string, err error) {
	urls, err := b.upload(ctx, bucket, userID, files)
	if err != nil {
		return nil, nil, err
	}
	for i, f := range files {
		if isVideo(f) {
			videos = append(videos, urls[i])
		} else {
			images = append(images, urls[i])
		}
	}
	return images, videos, nil
}

var weekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

var months = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatDate пишет дату полностью по-испански: "sábado, 1 de marzo de 2025".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%s, %d de %s de %d", weekdays[t.Weekday()], t.Day(), months[t.Month()-1], t.Year())
}

// concat склеивает списки ссылок, не оставляя nil.
func concat(lists ...[]string) []string {
	out := []string{}
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
