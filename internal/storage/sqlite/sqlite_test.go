package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/mentorhub-client/internal/models"
	"github.com/pribylovaa/mentorhub-client/internal/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "session.db")
	st, err := New(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return st
}

func sampleCredential() *models.Credential {
	return &models.Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		CSRFToken:    "csrf-1",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second).UTC(),
		User: models.User{
			ID:          42,
			DisplayName: "Анна",
			Email:       "anna@example.com",
		},
	}
}

func TestCredential_Empty_NotFound(t *testing.T) {
	t.Parallel()

	st := newStore(t)

	_, err := st.Credential(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveCredential_Roundtrip(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	ctx := context.Background()
	want := sampleCredential()

	require.NoError(t, st.SaveCredential(ctx, want))

	got, err := st.Credential(ctx)
	require.NoError(t, err)

	require.Equal(t, want.AccessToken, got.AccessToken)
	require.Equal(t, want.RefreshToken, got.RefreshToken)
	require.Equal(t, want.CSRFToken, got.CSRFToken)
	require.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
	require.Equal(t, want.User, got.User)
}

func TestSaveCredential_OverwritesPrevious(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveCredential(ctx, sampleCredential()))

	updated := sampleCredential()
	updated.AccessToken = "access-2"
	updated.RefreshToken = "refresh-2"
	updated.CSRFToken = "csrf-2"
	require.NoError(t, st.SaveCredential(ctx, updated))

	got, err := st.Credential(ctx)
	require.NoError(t, err)
	require.Equal(t, "access-2", got.AccessToken)
	require.Equal(t, "refresh-2", got.RefreshToken)
	require.Equal(t, "csrf-2", got.CSRFToken)
}

func TestClear_RemovesEverything(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveCredential(ctx, sampleCredential()))
	require.NoError(t, st.Clear(ctx))

	_, err := st.Credential(ctx)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClear_EmptyStore_Idempotent(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	ctx := context.Background()

	require.NoError(t, st.Clear(ctx))
	require.NoError(t, st.Clear(ctx))
}

func TestCredential_SurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	st, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, st.SaveCredential(ctx, sampleCredential()))
	st.Close()

	st2, err := New(ctx, path)
	require.NoError(t, err)
	t.Cleanup(st2.Close)

	got, err := st2.Credential(ctx)
	require.NoError(t, err)
	require.Equal(t, "access-1", got.AccessToken)
}
