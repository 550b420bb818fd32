package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/diabepredict/diabepredict/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	email         TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS analyses (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       INTEGER NOT NULL,
	analysis_type TEXT NOT NULL,
	parameters    TEXT NOT NULL,
	result        TEXT NOT NULL,
	probability   REAL NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_analyses_user ON analyses(user_id, created_at);
`

type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the
// schema exists. Pass ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash, email string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, email, created_at) VALUES (?, ?, ?, ?)`,
		username, passwordHash, email, time.Now().UTC(),
	)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, ErrDuplicateUsername
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, username, password_hash, email, created_at FROM users WHERE username = ?`,
		username,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, a *model.Analysis) (int64, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (user_id, analysis_type, parameters, result, probability, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.UserID, a.AnalysisType, a.Parameters, a.Result, a.Probability, a.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert analysis: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) AnalysesByUser(ctx context.Context, userID int64, analysisType string) ([]model.Analysis, error) {
	query := `SELECT id, user_id, analysis_type, parameters, result, probability, created_at
		 FROM analyses WHERE user_id = ?`
	args := []any{userID}
	if analysisType != "" {
		query += ` AND analysis_type = ?`
		args = append(args, analysisType)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	analyses := []model.Analysis{}
	if err := s.db.SelectContext(ctx, &analyses, query, args...); err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	return analyses, nil
}

func (s *SQLiteStore) AnalysisByID(ctx context.Context, id, userID int64) (*model.Analysis, error) {
	var a model.Analysis
	err := s.db.GetContext(ctx, &a,
		`SELECT id, user_id, analysis_type, parameters, result, probability, created_at
		 FROM analyses WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}
	return &a, nil
}
