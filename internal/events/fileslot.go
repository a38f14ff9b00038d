package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// FileSlot - Slot в каталоге на диске, общий для процессов одной машины.
// Каждый ключ - файл <dir>/<key>.json, изменения ловит fsnotify.
type FileSlot struct {
	fs  afero.Fs
	dir string
	log *slog.Logger

	mu       sync.Mutex
	watchers []*fsnotify.Watcher
}

func NewFileSlot(dir string, log *slog.Logger) (*FileSlot, error) {
	if log == nil {
		log = slog.Default()
	}
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create slot dir: %w", err)
	}
	return &FileSlot{fs: fs, dir: dir, log: log}, nil
}

func (s *FileSlot) path(key string) string { return filepath.Join(s.dir, key+".json") }

// Set пишет во временный файл и переименовывает его, чтобы читатель не увидел половину значения.
func (s *FileSlot) Set(_ context.Context, key string, value []byte) error {
	tmp, err := afero.TempFile(s.fs, s.dir, "."+key+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return err
	}
	return s.fs.Rename(tmp.Name(), s.path(key))
}

func (s *FileSlot) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := afero.ReadFile(s.fs, s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *FileSlot) Remove(_ context.Context, key string) error {
	err := s.fs.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileSlot) Watch(key string, fn func([]byte)) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	target := s.path(key)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				switch {
				case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
					data, err := afero.ReadFile(s.fs, target)
					if err != nil {
						// Файл уже очищен - значение пропущено
						continue
					}
					fn(data)
				case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
					fn(nil)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("file slot: watcher error", "dir", s.dir, "error", err)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { _ = w.Close() }) }, nil
}

// Close останавливает все наблюдатели.
func (s *FileSlot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers {
		_ = w.Close()
	}
	s.watchers = nil
	return nil
}
