package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/mentorhub-client/internal/authapi"
	"github.com/pribylovaa/mentorhub-client/internal/models"
	"github.com/pribylovaa/mentorhub-client/internal/pkg/log"
)

// Refresh обновляет пару токенов через auth-коллаборатора.
//
// Повторный вызов при незавершённом обновлении немедленно возвращает nil:
// второй вызывающий наблюдает in-flight-флаг и коалесцируется, не дожидаясь
// результата. Любой сбой явного Refresh фатален для сессии — Manager
// выполняет logout с редиректом на страницу входа.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.refreshOnce(ctx, true)
}

// refreshOnce — общий путь явного и фонового обновления.
//
// fatal=false используется периодической проверкой: сетевой сбой при ещё
// не истёкшем токене не роняет сессию, попытка повторится на следующем тике.
func (m *Manager) refreshOnce(ctx context.Context, fatal bool) error {
	const op = "session.refresh.refreshOnce"

	// Флаг берётся синхронно, до любого асинхронного вызова: это единственный
	// примитив синхронизации между фоновым тикером и навигационным путём.
	if !m.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer m.refreshing.Store(false)

	lg := log.From(ctx)
	epoch := m.epoch.Load()

	cred, err := m.store.Credential(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrNoSession)
	}

	tr, err := m.api.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if !fatal && errors.Is(err, authapi.ErrUnavailable) && m.now().Before(cred.ExpiresAt) {
			lg.Warn("refresh_unavailable",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("%s: %w", op, err)
		}

		lg.Warn("refresh_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)

		if lerr := m.logoutTo(ctx, m.cfg.LoginPath); lerr != nil {
			lg.Error("logout_after_refresh_failed",
				slog.String("op", op),
				slog.String("err", lerr.Error()),
			)
		}

		return fmt.Errorf("%s: %w", op, ErrRefreshRejected)
	}

	expiresAt, err := m.expiry(tr.AccessToken, time.Duration(tr.ExpiresIn)*time.Second)
	if err != nil {
		if lerr := m.logoutTo(ctx, m.cfg.LoginPath); lerr != nil {
			lg.Error("logout_after_refresh_failed",
				slog.String("op", op),
				slog.String("err", lerr.Error()),
			)
		}
		return fmt.Errorf("%s: %w", op, ErrRefreshRejected)
	}

	csrf, err := newCSRFToken()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	updated := &models.Credential{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		CSRFToken:    csrf,
		ExpiresAt:    expiresAt,
		User:         cred.User,
	}

	// Проверка эпохи и сохранение атомарны относительно logout (общий mu):
	// иначе logout, попавший между проверкой и записью, был бы затёрт
	// результатом обновления.
	m.mu.Lock()
	if m.epoch.Load() != epoch {
		m.mu.Unlock()
		// Пока обновление было в полёте, случился logout —
		// результат отбрасывается, сессия не воскрешается.
		lg.Warn("refresh_discarded_after_logout", slog.String("op", op))
		return nil
	}
	saveErr := m.store.SaveCredential(ctx, updated)
	m.mu.Unlock()

	if saveErr != nil {
		// Полуобновлённых учётных данных быть не должно: если сохранить
		// целиком не вышло, сессия завершается.
		if lerr := m.logoutTo(ctx, m.cfg.LoginPath); lerr != nil {
			lg.Error("logout_after_refresh_failed",
				slog.String("op", op),
				slog.String("err", lerr.Error()),
			)
		}
		return fmt.Errorf("%s: %w", op, saveErr)
	}

	lg.Info("session_refreshed", slog.Time("expires_at", expiresAt))

	return nil
}

// StartAutoRefresh запускает фоновую периодическую проверку shouldRefresh
// с интервалом cfg.CheckInterval. Повторный запуск при работающей проверке —
// no-op. Проверка останавливается по Stop или отмене ctx.
func (m *Manager) StartAutoRefresh(ctx context.Context) {
	if m.cfg.CheckInterval <= 0 {
		return
	}

	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.stopCh = stop
	m.mu.Unlock()

	lg := log.From(ctx)

	go func() {
		t := time.NewTicker(m.cfg.CheckInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				if !m.ShouldRefresh(ctx) {
					continue
				}
				if err := m.refreshOnce(ctx, false); err != nil {
					lg.Warn("auto_refresh_failed", slog.String("err", err.Error()))
				}
			}
		}
	}()
}

// Stop останавливает фоновую проверку. Безопасен при повторном вызове.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	m.mu.Unlock()
}
