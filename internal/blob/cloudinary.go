package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Cloudinary загружает объекты в Cloudinary; бакет становится папкой.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string

	mu   sync.RWMutex
	urls map[string]string // map[bucket/key]secureURL
}

// NewCloudinary создает хранилище из CLOUDINARY_URL.
func NewCloudinary(url, folder string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("cloudinary configuration error: %w", err)
	}
	return &Cloudinary{cld: cld, folder: folder, urls: make(map[string]string)}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, bucket, key string, r io.Reader, _ string) error {
	folder, publicID := c.location(bucket, key)
	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "auto",
	})
	if err != nil {
		return err
	}
	if res.Error.Message != "" {
		return errors.New(res.Error.Message)
	}

	c.mu.Lock()
	c.urls[bucket+"/"+key] = res.SecureURL
	c.mu.Unlock()
	return nil
}

// PublicURL возвращает ссылку из ответа загрузки, а для чужих объектов строит её по имени облака.
func (c *Cloudinary) PublicURL(bucket, key string) string {
	c.mu.RLock()
	u, ok := c.urls[bucket+"/"+key]
	c.mu.RUnlock()
	if ok {
		return u
	}
	folder, publicID := c.location(bucket, key)
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/%s%s",
		c.cld.Config.Cloud.CloudName, path.Join(folder, publicID), path.Ext(key))
}

// location переводит bucket/key в папку и public id без расширения.
func (c *Cloudinary) location(bucket, key string) (string, string) {
	full := path.Join(c.folder, bucket, key)
	dir, file := path.Split(full)
	return strings.TrimSuffix(dir, "/"), strings.TrimSuffix(file, path.Ext(file))
}
