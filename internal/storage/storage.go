// Package storage defines the persistence ports for users, notes and AI usage
// logs. Implementations live in sub-packages.
package storage

import (
	"context"
	"errors"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

var (
	// ErrNotFound is returned when a row does not exist or is not visible to
	// the requesting user.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique column would be violated.
	ErrDuplicate = errors.New("already exists")
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

// NoteStore persists notes. Every method is scoped to the owning user; a note
// owned by someone else is reported as ErrNotFound.
type NoteStore interface {
	CreateNote(ctx context.Context, userID int64, title, content string) (*domain.Note, error)
	GetNote(ctx context.Context, userID, id int64) (*domain.Note, error)
	ListNotes(ctx context.Context, userID int64) ([]domain.Note, error)
	UpdateNote(ctx context.Context, userID, id int64, update domain.NoteUpdate) (*domain.Note, error)
	DeleteNote(ctx context.Context, userID, id int64) error
}

// UsageStore persists one row per provider attempt and aggregates them.
type UsageStore interface {
	InsertUsageLog(ctx context.Context, rec domain.UsageRecord) error
	UsageStats(ctx context.Context, userID int64) (*domain.UsageStats, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	UserStore
	NoteStore
	UsageStore
	Close() error
}
