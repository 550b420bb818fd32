// Package store persists users and their analysis history. Two backends
// implement the same interface: SQLite for single-node deployments and
// Postgres when DATABASE_URL is configured.
package store

import (
	"context"
	"errors"

	"github.com/diabepredict/diabepredict/internal/model"
)

var (
	// ErrDuplicateUsername signals a registration against a taken name.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrNotFound signals a missing row or one the caller does not own.
	ErrNotFound = errors.New("not found")
)

type Store interface {
	Ping(ctx context.Context) error
	Close()

	CreateUser(ctx context.Context, username, passwordHash, email string) (int64, error)
	UserByUsername(ctx context.Context, username string) (*model.User, error)

	CreateAnalysis(ctx context.Context, a *model.Analysis) (int64, error)
	AnalysesByUser(ctx context.Context, userID int64, analysisType string) ([]model.Analysis, error)
	AnalysisByID(ctx context.Context, id, userID int64) (*model.Analysis, error)
}
