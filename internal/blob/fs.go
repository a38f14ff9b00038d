package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FS хранит объекты в файловой системе afero: <root>/<bucket>/<key>.
type FS struct {
	fs      afero.Fs
	root    string
	baseURL string
}

// NewFS создает хранилище; baseURL - адрес, под которым root раздаётся по HTTP.
func NewFS(fs afero.Fs, root, baseURL string) *FS {
	return &FS{fs: fs, root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *FS) Upload(ctx context.Context, bucket, key string, r io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("invalid key %q", key)
	}
	p := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return afero.WriteReader(s.fs, p, r)
}

func (s *FS) PublicURL(bucket, key string) string {
	return s.baseURL + "/" + path.Join(bucket, key)
}

// Root отдаёт корневой каталог (для раздачи файлов).
func (s *FS) Root() string { return s.root }
