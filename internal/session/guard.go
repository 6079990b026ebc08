package session

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/pribylovaa/mentorhub-client/internal/pkg/log"
)

// Decision — результат проверки навигации маршрутным guard-ом.
type Decision struct {
	Allow      bool
	RedirectTo string
}

// Guard вызывается на каждой навигации UI-оболочки.
//
// Поведение:
//   - целевой путь защищён, валидной сессии нет — редирект на страницу
//     входа с исходным путём в параметре redirect;
//   - сессия валидна, целевой путь — страница входа — редирект на
//     аутентифицированную стартовую страницу;
//   - просроченная сессия для guard-а эквивалентна её отсутствию.
//
// Навигация независимо перепроверяет свежесть токена и при необходимости
// инициирует обновление; с фоновым тикером её разводит общий in-flight-флаг.
func (m *Manager) Guard(ctx context.Context, path string) Decision {
	const op = "session.guard.Guard"

	if cred := m.credential(ctx); cred != nil && (m.IsTokenExpired(ctx) || m.ShouldRefresh(ctx)) {
		if err := m.Refresh(ctx); err != nil {
			log.From(ctx).Warn("guard_refresh_failed",
				slog.String("op", op),
				slog.String("path", path),
				slog.String("err", err.Error()),
			)
		}
	}

	authed := m.IsAuthenticated(ctx)

	if m.isProtected(path) && !authed {
		return Decision{
			RedirectTo: m.cfg.LoginPath + "?redirect=" + url.QueryEscape(path),
		}
	}

	if authed && strings.HasPrefix(path, m.cfg.LoginPath) {
		return Decision{RedirectTo: m.cfg.HomePath}
	}

	return Decision{Allow: true}
}

// isProtected: путь попадает под один из защищённых префиксов.
func (m *Manager) isProtected(path string) bool {
	for _, prefix := range m.cfg.ProtectedRoutes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}
