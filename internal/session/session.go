// session содержит машину состояний клиентской сессии:
// login/logout, периодические проверки истечения, автообновление токенов,
// защиту маршрутов и выпуск CSRF-токена.
//
// Основные аспекты:
//   - Manager безопасен для конкурентного использования из разных горутин
//     при условии, что переданное хранилище (storage.Storage) потокобезопасно.
//   - Единственный пишущий путь к хранилищу учётных данных — Manager;
//     другие компоненты получают токены только через Token/CSRFToken.
//   - Обновления токенов сериализуются in-flight-флагом: при незавершённом
//     обновлении повторные вызовы Refresh коалесцируются в no-op.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pribylovaa/mentorhub-client/internal/authapi"
	"github.com/pribylovaa/mentorhub-client/internal/config"
	"github.com/pribylovaa/mentorhub-client/internal/storage"
)

var (
	// ErrNoSession — операция требует сохранённой сессии, а её нет.
	ErrNoSession = errors.New("no active session")

	// ErrTokenExpired — учётные данные есть, но access-токен просрочен.
	// Восстановимо через Refresh, пока жив refresh-токен.
	ErrTokenExpired = errors.New("token expired")

	// ErrRefreshRejected — обновление отвергнуто или не удалось;
	// фатально для сессии, Manager уже выполнил logout.
	ErrRefreshRejected = errors.New("refresh rejected")
)

// AuthAPI — контракт auth-коллаборатора (см. пакет authapi).
type AuthAPI interface {
	// Login выполняет вход по email+пароль.
	Login(ctx context.Context, email, password string) (*authapi.TokenResponse, error)
	// Refresh обменивает refresh-токен на новую пару токенов.
	Refresh(ctx context.Context, refreshToken string) (*authapi.TokenResponse, error)
}

// Manager владеет жизненным циклом клиентской сессии.
type Manager struct {
	store storage.Storage
	api   AuthAPI
	cfg   config.SessionConfig

	// подмена времени в тестах.
	now func() time.Time

	// refreshing — in-flight-флаг обновления. Выставляется синхронно,
	// до любого сетевого вызова, и только через CompareAndSwap.
	refreshing atomic.Bool

	// epoch растёт на каждом logout. Результат refresh, стартовавшего
	// в прошлой эпохе, отбрасывается и не воскрешает учётные данные.
	epoch atomic.Uint64

	// navigate — колбэк навигации UI-оболочки (может быть nil).
	navigate func(path string)

	// mu сериализует пары «проверка эпохи + SaveCredential» (refresh)
	// и «бамп эпохи + Clear» (logout) друг относительно друга,
	// а также защищает stopCh.
	mu     sync.Mutex
	stopCh chan struct{}
}

// New создаёт новый Manager.
func New(store storage.Storage, api AuthAPI, cfg config.SessionConfig) *Manager {
	return &Manager{
		store: store,
		api:   api,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetNavigate устанавливает колбэк навигации (опционально).
func (m *Manager) SetNavigate(fn func(path string)) {
	m.navigate = fn
}
