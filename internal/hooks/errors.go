package hooks

import (
	"errors"
	"fmt"

	"github.com/UkralStul/carreras-sync/internal/blob"
)

var (
	// ErrUnauthenticated - мутация без текущего пользователя. Запрос в хранилище не отправляется.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNoOwnerMatch - обновление или удаление с фильтром владельца не затронуло ни одной строки.
	ErrNoOwnerMatch = errors.New("no row matched the owner filter")
	// ErrInvalidInput - локальная проверка ввода не прошла.
	ErrInvalidInput = errors.New("invalid input")
)

// RemoteStoreError - любая ошибка удалённого хранилища.
type RemoteStoreError struct {
	Op  string
	Err error
}

func (e *RemoteStoreError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *RemoteStoreError) Unwrap() error { return e.Err }

// UploadError - загрузка вложения не удалась, создание прервано.
type UploadError = blob.UploadError

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
