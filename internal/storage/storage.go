// storage задаёт контракт хранилища учётных данных сессии.
//
// Хранилище — долговременный локальный key/value-носитель, переживающий
// перезапуск приложения, но не разделяемый между устройствами. Единственный
// пишущий путь — session.Manager; остальные компоненты читают токены только
// через него.
package storage

import (
	"context"
	"errors"

	"github.com/pribylovaa/mentorhub-client/internal/models"
)

var (
	// ErrNotFound — сохранённой сессии нет (или запись неполная).
	// Вызывающий обязан трактовать это как «нет сессии», а не как сбой.
	ErrNotFound = errors.New("not found")
)

// Storage выполняет операции над учётными данными сессии.
type Storage interface {
	// SaveCredential атомарно сохраняет полный набор учётных данных,
	// затирая предыдущий.
	SaveCredential(ctx context.Context, cred *models.Credential) error
	// Credential возвращает сохранённые учётные данные или ErrNotFound.
	Credential(ctx context.Context) (*models.Credential, error)
	// Clear атомарно удаляет все ключи сессии. Идемпотентен:
	// частичная очистка — это баг корректности, пустое хранилище — нет.
	Clear(ctx context.Context) error
	Close()
}
