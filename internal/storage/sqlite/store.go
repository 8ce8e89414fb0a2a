package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/storage"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New opens (and if needed creates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			user_id INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS ai_usage_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			operation_type TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			execution_time REAL,
			success INTEGER NOT NULL DEFAULT 1,
			error_message TEXT,
			timestamp TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ai_usage_logs_user ON ai_usage_logs(user_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Users

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	user := &domain.User{Email: email, PasswordHash: passwordHash, CreatedAt: s.now()}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?)`,
		user.Email, user.PasswordHash, user.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("user %s: %w", email, storage.ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	err := s.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %v: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Notes

const noteColumns = `id, title, content, user_id, created_at, updated_at`

func (s *Store) CreateNote(ctx context.Context, userID int64, title, content string) (*domain.Note, error) {
	now := s.now()
	note := &domain.Note{Title: title, Content: content, UserID: userID, CreatedAt: now, UpdatedAt: now}

	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO notes (title, content, user_id, created_at, updated_at)
		 VALUES (:title, :content, :user_id, :created_at, :updated_at)`, note)
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	note.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read note id: %w", err)
	}
	return note, nil
}

func (s *Store) GetNote(ctx context.Context, userID, id int64) (*domain.Note, error) {
	return getNote(ctx, s.db, userID, id)
}

func getNote(ctx context.Context, q sqlx.QueryerContext, userID, id int64) (*domain.Note, error) {
	var note domain.Note
	err := sqlx.GetContext(ctx, q, &note,
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return &note, nil
}

func (s *Store) ListNotes(ctx context.Context, userID int64) ([]domain.Note, error) {
	notes := []domain.Note{}
	err := s.db.SelectContext(ctx, &notes,
		`SELECT `+noteColumns+` FROM notes WHERE user_id = ? ORDER BY updated_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

func (s *Store) UpdateNote(ctx context.Context, userID, id int64, update domain.NoteUpdate) (*domain.Note, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	note, err := getNote(ctx, tx, userID, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		note.Title = *update.Title
	}
	if update.Content != nil {
		note.Content = *update.Content
	}
	note.UpdatedAt = s.now()

	_, err = tx.NamedExecContext(ctx,
		`UPDATE notes SET title = :title, content = :content, updated_at = :updated_at
		 WHERE id = :id AND user_id = :user_id`, note)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit note update: %w", err)
	}
	return note, nil
}

func (s *Store) DeleteNote(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("note %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// Usage logs

type usageRow struct {
	UserID           int64     `db:"user_id"`
	Operation        string    `db:"operation_type"`
	Provider         string    `db:"provider"`
	Model            string    `db:"model"`
	PromptTokens     int64     `db:"prompt_tokens"`
	CompletionTokens int64     `db:"completion_tokens"`
	TotalTokens      int64     `db:"tokens_used"`
	ExecutionTime    float64   `db:"execution_time"`
	Success          bool      `db:"success"`
	ErrorMessage     string    `db:"error_message"`
	Timestamp        time.Time `db:"timestamp"`
}

// InsertUsageLog stores one provider attempt.
func (s *Store) InsertUsageLog(ctx context.Context, rec domain.UsageRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	row := usageRow{
		UserID:           rec.UserID,
		Operation:        string(rec.Operation),
		Provider:         string(rec.Provider),
		Model:            rec.Model,
		PromptTokens:     rec.PromptTokens,
		CompletionTokens: rec.CompletionTokens,
		TotalTokens:      rec.TotalTokens,
		ExecutionTime:    rec.Elapsed.Seconds(),
		Success:          rec.Success,
		ErrorMessage:     rec.ErrorMessage,
		Timestamp:        ts.UTC(),
	}

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO ai_usage_logs (user_id, operation_type, provider, model, prompt_tokens,
			completion_tokens, tokens_used, execution_time, success, error_message, timestamp)
		 VALUES (:user_id, :operation_type, :provider, :model, :prompt_tokens,
			:completion_tokens, :tokens_used, :execution_time, :success, :error_message, :timestamp)`, row)
	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

// UsageStats aggregates the usage logs of userID.
func (s *Store) UsageStats(ctx context.Context, userID int64) (*domain.UsageStats, error) {
	var totals struct {
		Total      int64 `db:"total"`
		Successful int64 `db:"successful"`
		Tokens     int64 `db:"tokens"`
	}
	err := s.db.GetContext(ctx, &totals,
		`SELECT COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successful,
			COALESCE(SUM(tokens_used), 0) AS tokens
		 FROM ai_usage_logs WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}

	stats := &domain.UsageStats{
		TotalRequests:      totals.Total,
		SuccessfulRequests: totals.Successful,
		TotalTokens:        totals.Tokens,
	}
	if totals.Total == 0 {
		return stats, nil
	}

	if stats.MostUsedOperation, err = s.mostUsed(ctx, "operation_type", userID); err != nil {
		return nil, err
	}
	if stats.PreferredProvider, err = s.mostUsed(ctx, "provider", userID); err != nil {
		return nil, err
	}
	return stats, nil
}

// mostUsed returns the most frequent value of column; ties go to the
// alphabetically first value.
func (s *Store) mostUsed(ctx context.Context, column string, userID int64) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		`SELECT `+column+` FROM ai_usage_logs WHERE user_id = ?
		 GROUP BY `+column+` ORDER BY COUNT(*) DESC, `+column+` ASC LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find most used %s: %w", column, err)
	}
	return value, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
