package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the tokens as rows of a key/value table.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open token database: %w", err)
	}
	db.SetMaxOpenConns(1)

	stmts := []string{
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS session_tokens (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("prepare token database: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (Tokens, error) {
	var tokens Tokens
	for key, target := range map[string]*string{AccessTokenKey: &tokens.Access, RefreshTokenKey: &tokens.Refresh} {
		err := s.db.QueryRowContext(ctx, `SELECT v FROM session_tokens WHERE k = ?`, key).Scan(target)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return Tokens{}, fmt.Errorf("load %s: %w", key, err)
		}
	}
	return tokens, nil
}

func (s *SQLiteStore) Save(ctx context.Context, tokens Tokens) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin token save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM session_tokens WHERE k IN (?, ?)`, AccessTokenKey, RefreshTokenKey); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}

	for key, value := range map[string]string{AccessTokenKey: tokens.Access, RefreshTokenKey: tokens.Refresh} {
		if value == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO session_tokens (k, v) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tokens: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE k IN (?, ?)`, AccessTokenKey, RefreshTokenKey); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}
