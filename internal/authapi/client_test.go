package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/mentorhub-client/internal/models"
)

func okResponse() TokenResponse {
	return TokenResponse{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresIn:    3600,
		User:         models.User{ID: 7, DisplayName: "Пётр", Email: "petr@example.com"},
	}
}

func TestLogin_OK(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("X-Request-Id"))

		_ = json.NewEncoder(w).Encode(okResponse())
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)

	tr, err := c.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	require.Equal(t, "/api/v1/auth/login", gotPath)
	require.Equal(t, "user@example.com", gotBody["email"])
	require.Equal(t, "secret", gotBody["password"])

	require.Equal(t, "new-access", tr.AccessToken)
	require.Equal(t, "new-refresh", tr.RefreshToken)
	require.Equal(t, int64(3600), tr.ExpiresIn)
	require.Equal(t, int64(7), tr.User.ID)
}

func TestRefresh_OK(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(okResponse())
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)

	tr, err := c.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)

	require.Equal(t, "/api/v1/auth/refresh", gotPath)
	require.Equal(t, "old-refresh", gotBody["refresh_token"])
	require.Equal(t, "new-access", tr.AccessToken)
}

func TestRefresh_Rejected_Unauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)

	_, err := c.Refresh(context.Background(), "stale")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogin_ServerError_Unavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)

	_, err := c.Login(context.Background(), "u@e.com", "pw")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestLogin_NetworkError_Unavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // порт уже закрыт

	c := New(srv.URL, time.Second)

	_, err := c.Login(context.Background(), "u@e.com", "pw")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestRefresh_BrokenJSON_Unavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)

	_, err := c.Refresh(context.Background(), "r")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestPost_RequestIDsAreUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.Header.Get("X-Request-Id")] = true
		_ = json.NewEncoder(w).Encode(okResponse())
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)

	_, err := c.Refresh(context.Background(), "r")
	require.NoError(t, err)
	_, err = c.Refresh(context.Background(), "r")
	require.NoError(t, err)

	require.Len(t, seen, 2)
}
