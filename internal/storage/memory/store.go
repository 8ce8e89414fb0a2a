package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu         sync.RWMutex
	users      map[int64]*domain.User
	notes      map[int64]*domain.Note
	usage      []domain.UsageRecord
	nextUserID int64
	nextNoteID int64
}

var _ storage.Store = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		users: make(map[int64]*domain.User),
		notes: make(map[int64]*domain.Note),
	}
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return nil, fmt.Errorf("user %s: %w", email, storage.ErrDuplicate)
		}
	}

	s.nextUserID++
	user := &domain.User{ID: s.nextUserID, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now()}
	s.users[user.ID] = user
	cp := *user
	return &cp, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) CreateNote(ctx context.Context, userID int64, title, content string) (*domain.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextNoteID++
	now := time.Now()
	note := &domain.Note{ID: s.nextNoteID, Title: title, Content: content, UserID: userID, CreatedAt: now, UpdatedAt: now}
	s.notes[note.ID] = note
	cp := *note
	return &cp, nil
}

// owned must be called with the lock held.
func (s *Store) owned(userID, id int64) (*domain.Note, error) {
	n, ok := s.notes[id]
	if !ok || n.UserID != userID {
		return nil, fmt.Errorf("note %d: %w", id, storage.ErrNotFound)
	}
	return n, nil
}

func (s *Store) GetNote(ctx context.Context, userID, id int64) (*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, err := s.owned(userID, id)
	if err != nil {
		return nil, err
	}
	cp := *n
	return &cp, nil
}

func (s *Store) ListNotes(ctx context.Context, userID int64) ([]domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := []domain.Note{}
	for _, n := range s.notes {
		if n.UserID == userID {
			notes = append(notes, *n)
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
	return notes, nil
}

func (s *Store) UpdateNote(ctx context.Context, userID, id int64, update domain.NoteUpdate) (*domain.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.owned(userID, id)
	if err != nil {
		return nil, err
	}
	if update.Title != nil {
		n.Title = *update.Title
	}
	if update.Content != nil {
		n.Content = *update.Content
	}
	n.UpdatedAt = time.Now()
	cp := *n
	return &cp, nil
}

func (s *Store) DeleteNote(ctx context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.owned(userID, id); err != nil {
		return err
	}
	delete(s.notes, id)
	return nil
}

func (s *Store) InsertUsageLog(ctx context.Context, rec domain.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.usage = append(s.usage, rec)
	return nil
}

// UsageLogs returns a copy of every stored usage record.
func (s *Store) UsageLogs() []domain.UsageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.UsageRecord(nil), s.usage...)
}

func (s *Store) UsageStats(ctx context.Context, userID int64) (*domain.UsageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.UsageStats{}
	ops := map[string]int{}
	providers := map[string]int{}
	for _, rec := range s.usage {
		if rec.UserID != userID {
			continue
		}
		stats.TotalRequests++
		if rec.Success {
			stats.SuccessfulRequests++
		}
		stats.TotalTokens += rec.TotalTokens
		ops[string(rec.Operation)]++
		providers[string(rec.Provider)]++
	}
	stats.MostUsedOperation = mostUsed(ops)
	stats.PreferredProvider = mostUsed(providers)
	return stats, nil
}

func mostUsed(counts map[string]int) string {
	var best string
	for k, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && k < best) {
			best = k
		}
	}
	return best
}

func (s *Store) Close() error {
	return nil
}
