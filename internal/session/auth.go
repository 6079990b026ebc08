package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/mentorhub-client/internal/models"
	"github.com/pribylovaa/mentorhub-client/internal/pkg/log"
)

// Login сохраняет новую сессию по уже выпущенной серверной паре токенов.
//
// expires_at = now + expiresIn; при expiresIn <= 0 срок берётся из
// exp-claim самого access-токена. Вместе с сессией выпускается свежий
// CSRF-токен. Последующий IsAuthenticated становится true.
func (m *Manager) Login(ctx context.Context, accessToken string, user models.User, expiresIn time.Duration, refreshToken string) error {
	const op = "session.auth.Login"

	lg := log.From(ctx)

	expiresAt, err := m.expiry(accessToken, expiresIn)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	csrf, err := newCSRFToken()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	cred := &models.Credential{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CSRFToken:    csrf,
		ExpiresAt:    expiresAt,
		User:         user,
	}

	if err := m.store.SaveCredential(ctx, cred); err != nil {
		lg.Error("session_save_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("session_started",
		slog.Int64("user_id", user.ID),
		slog.Time("expires_at", expiresAt),
	)

	return nil
}

// LoginWithPassword выполняет вход через auth-коллаборатора и сохраняет сессию.
func (m *Manager) LoginWithPassword(ctx context.Context, email, password string) error {
	const op = "session.auth.LoginWithPassword"

	tr, err := m.api.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.Login(ctx, tr.AccessToken, tr.User, time.Duration(tr.ExpiresIn)*time.Second, tr.RefreshToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Logout очищает хранилище целиком и сигналит навигацию на
// неаутентифицированную стартовую страницу. Идемпотентен.
func (m *Manager) Logout(ctx context.Context) error {
	return m.logoutTo(ctx, m.cfg.LandingPath)
}

// logoutTo — общий путь явного logout и принудительного после сбоя refresh;
// отличаются только целевой страницей редиректа.
func (m *Manager) logoutTo(ctx context.Context, path string) error {
	const op = "session.auth.logoutTo"

	// Бамп эпохи и очистка выполняются под общим mu с записью результата
	// refresh: с этого момента результат обновления, находящегося в полёте,
	// отбрасывается и не может затереть очищенное хранилище.
	m.mu.Lock()
	m.epoch.Add(1)
	err := m.store.Clear(ctx)
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("session_cleared", slog.String("redirect", path))

	if m.navigate != nil {
		m.navigate(path)
	}

	return nil
}

// IsAuthenticated: учётные данные есть и now < expires_at.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	cred := m.credential(ctx)
	return cred != nil && m.now().Before(cred.ExpiresAt)
}

// IsTokenExpired: учётных данных нет либо now >= expires_at.
func (m *Manager) IsTokenExpired(ctx context.Context) bool {
	cred := m.credential(ctx)
	return cred == nil || !m.now().Before(cred.ExpiresAt)
}

// ShouldRefresh: учётные данные есть и expires_at - now <= RefreshThreshold.
func (m *Manager) ShouldRefresh(ctx context.Context) bool {
	cred := m.credential(ctx)
	return cred != nil && cred.ExpiresAt.Sub(m.now()) <= m.cfg.RefreshThreshold
}

// State возвращает производное состояние сессии на момент вызова.
func (m *Manager) State(ctx context.Context) models.SessionState {
	if m.refreshing.Load() {
		return models.StateRefreshing
	}

	cred := m.credential(ctx)
	switch {
	case cred == nil:
		return models.StateUnauthenticated
	case !m.now().Before(cred.ExpiresAt):
		return models.StateExpired
	case cred.ExpiresAt.Sub(m.now()) <= m.cfg.RefreshThreshold:
		return models.StateNearExpiry
	default:
		return models.StateValid
	}
}

// Token возвращает действующий access-токен для аутентификации канала.
// Если токен в окне обновления или просрочен, сначала выполняется Refresh.
func (m *Manager) Token(ctx context.Context) (string, error) {
	const op = "session.auth.Token"

	if m.IsTokenExpired(ctx) || m.ShouldRefresh(ctx) {
		if err := m.Refresh(ctx); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	cred := m.credential(ctx)
	if cred == nil {
		return "", fmt.Errorf("%s: %w", op, ErrNoSession)
	}

	return cred.AccessToken, nil
}

// CSRFToken возвращает CSRF-токен текущей сессии.
func (m *Manager) CSRFToken(ctx context.Context) (string, error) {
	const op = "session.auth.CSRFToken"

	cred := m.credential(ctx)
	if cred == nil {
		return "", fmt.Errorf("%s: %w", op, ErrNoSession)
	}

	return cred.CSRFToken, nil
}

// credential читает учётные данные; любой сбой хранилища трактуется
// как отсутствие сессии.
func (m *Manager) credential(ctx context.Context) *models.Credential {
	cred, err := m.store.Credential(ctx)
	if err != nil {
		return nil
	}

	return cred
}

// expiry вычисляет expires_at: из expiresIn либо из exp-claim токена.
func (m *Manager) expiry(accessToken string, expiresIn time.Duration) (time.Time, error) {
	if expiresIn > 0 {
		return m.now().Add(expiresIn), nil
	}

	return tokenExpiry(accessToken)
}
