// authapi — HTTP-клиент auth-коллаборатора.
//
// Клиент покрывает ровно два эндпоинта, нужных жизненному циклу сессии:
// POST /api/v1/auth/login и POST /api/v1/auth/refresh. Остальные REST-ресурсы
// (курсы, менторы, платежи) — вне этого модуля.
//
// Ошибки маппятся в две категории:
//   - ErrUnauthorized — сервер отверг учётные данные или refresh-токен
//     (4xx); для refresh это фатально для сессии;
//   - ErrUnavailable — сетевой сбой или 5xx; периодический путь обновления
//     вправе повторить попытку на следующем тике.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/mentorhub-client/internal/models"
	"github.com/pribylovaa/mentorhub-client/internal/pkg/log"
)

var (
	// ErrUnauthorized — запрос отвергнут сервером (неверные креды/токен).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable — auth-коллаборатор недоступен или ответил 5xx.
	ErrUnavailable = errors.New("auth api unavailable")
)

// TokenResponse — ответ login/refresh.
type TokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         models.User `json:"user"`
}

// Client — HTTP-клиент auth-коллаборатора.
type Client struct {
	baseURL string
	http    *http.Client
}

// New создаёт клиент с базовым URL и таймаутом на запрос.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Login выполняет вход по email+пароль.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	const op = "authapi.client.Login"

	body := map[string]string{"email": email, "password": password}

	tr, err := c.post(ctx, "/api/v1/auth/login", body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tr, nil
}

// Refresh обменивает refresh-токен на новую пару токенов.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	const op = "authapi.client.Refresh"

	body := map[string]string{"refresh_token": refreshToken}

	tr, err := c.post(ctx, "/api/v1/auth/refresh", body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tr, nil
}

// post отправляет JSON-запрос и разбирает ответ в TokenResponse.
func (c *Client) post(ctx context.Context, path string, body any) (*TokenResponse, error) {
	const op = "authapi.client.post"

	lg := log.From(ctx)

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Сквозной идентификатор для корреляции с логами сервера.
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		lg.Warn("auth_api_request_failed",
			slog.String("op", op),
			slog.String("path", path),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// разбор ниже
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		lg.Warn("auth_api_rejected",
			slog.String("op", op),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	default:
		lg.Warn("auth_api_server_error",
			slog.String("op", op),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	return &tr, nil
}
