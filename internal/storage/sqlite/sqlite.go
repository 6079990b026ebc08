// sqlite реализует storage.Storage поверх локального файла SQLite.
//
// Схема — одна key/value-таблица session с фиксированным набором ключей:
// access_token, refresh_token, csrf_token, token_expires_at (unix-секунды,
// строкой), user_data (JSON-профиль), user_name. Save и Clear выполняются
// в одной транзакции: ключи живут и умирают только все вместе.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pribylovaa/mentorhub-client/internal/models"
	"github.com/pribylovaa/mentorhub-client/internal/storage"
)

// Ключи персистентного слоя. Набор фиксирован контрактом хранилища.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyCSRFToken    = "csrf_token"
	keyExpiresAt    = "token_expires_at"
	keyUserData     = "user_data"
	keyUserName     = "user_name"
)

// Store — хранилище учётных данных в локальном SQLite-файле.
type Store struct {
	db *sql.DB
}

// New открывает (при необходимости создаёт) файл хранилища по path.
func New(ctx context.Context, path string) (*Store, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS session (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{db: db}, nil
}

// Close закрывает соединение с файлом.
func (s *Store) Close() {
	_ = s.db.Close()
}

// SaveCredential атомарно перезаписывает все ключи сессии.
func (s *Store) SaveCredential(ctx context.Context, cred *models.Credential) error {
	const op = "storage.sqlite.SaveCredential"

	userData, err := json.Marshal(cred.User)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	userName := cred.User.DisplayName
	if userName == "" {
		userName = cred.User.Email
	}

	kv := map[string]string{
		keyAccessToken:  cred.AccessToken,
		keyRefreshToken: cred.RefreshToken,
		keyCSRFToken:    cred.CSRFToken,
		keyExpiresAt:    strconv.FormatInt(cred.ExpiresAt.Unix(), 10),
		keyUserData:     string(userData),
		keyUserName:     userName,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range kv {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session(key, value) VALUES(?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			k, v,
		); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Credential восстанавливает учётные данные. Отсутствие любого из
// токен-несущих ключей трактуется как отсутствие сессии.
func (s *Store) Credential(ctx context.Context) (*models.Credential, error) {
	const op = "storage.sqlite.Credential"

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM session`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	kv := make(map[string]string, 6)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	access, okAccess := kv[keyAccessToken]
	refresh, okRefresh := kv[keyRefreshToken]
	expiresRaw, okExpires := kv[keyExpiresAt]
	if !okAccess || !okRefresh || !okExpires {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	expiresUnix, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var user models.User
	if raw, ok := kv[keyUserData]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
	}

	return &models.Credential{
		AccessToken:  access,
		RefreshToken: refresh,
		CSRFToken:    kv[keyCSRFToken],
		ExpiresAt:    time.Unix(expiresUnix, 0).UTC(),
		User:         user,
	}, nil
}

// Clear удаляет все ключи сессии одним стейтментом.
func (s *Store) Clear(ctx context.Context) error {
	const op = "storage.sqlite.Clear"

	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
