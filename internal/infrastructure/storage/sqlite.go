// Package storage holds the profile store implementations.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bytelense/backend/internal/domain"
)

// SQLiteProfileStore keeps profiles as JSON documents in SQLite
type SQLiteProfileStore struct {
	db *sql.DB
}

// NewSQLiteProfileStore opens the database at dsn and creates the schema
func NewSQLiteProfileStore(dsn string) (*SQLiteProfileStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	store := &SQLiteProfileStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteProfileStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteProfileStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS profiles (
        profile_key TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        data TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteProfileStore) Exists(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM profiles WHERE profile_key = ?`, domain.ProfileKey(name)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check profile: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteProfileStore) Load(ctx context.Context, name string) (*domain.UserProfile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE profile_key = ?`, domain.ProfileKey(name)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	var profile domain.UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &profile, nil
}

// Create inserts a new profile; ErrProfileExists if the name is taken
func (s *SQLiteProfileStore) Create(ctx context.Context, profile *domain.UserProfile) error {
	key := domain.ProfileKey(profile.Name)
	if key == "" {
		return domain.ErrInvalidRequest
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO profiles (profile_key, name, data, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
    `, key, profile.Name, string(data), profile.CreatedAt.UTC(), profile.UpdatedAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrProfileExists
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// Save overwrites an existing profile; ErrProfileNotFound if absent
func (s *SQLiteProfileStore) Save(ctx context.Context, profile *domain.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	updatedAt := profile.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
        UPDATE profiles SET data = ?, updated_at = ? WHERE profile_key = ?
    `, string(data), updatedAt.UTC(), domain.ProfileKey(profile.Name))
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if rows == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
