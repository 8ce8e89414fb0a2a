// Package notes implements owner-scoped note CRUD and markdown rendering.
package notes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/storage"
)

// Service wraps a NoteStore, translating storage errors into API errors.
type Service struct {
	store storage.NoteStore
	md    goldmark.Markdown
}

// NewService creates a Service.
func NewService(store storage.NoteStore) *Service {
	return &Service{
		store: store,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

func (s *Service) List(ctx context.Context, userID int64) ([]domain.Note, error) {
	return s.store.ListNotes(ctx, userID)
}

func (s *Service) Create(ctx context.Context, userID int64, title, content string) (*domain.Note, error) {
	if strings.TrimSpace(title) == "" {
		return nil, domain.ErrInvalidRequest("title is required").WithParam("title")
	}
	return s.store.CreateNote(ctx, userID, title, content)
}

func (s *Service) Get(ctx context.Context, userID, id int64) (*domain.Note, error) {
	note, err := s.store.GetNote(ctx, userID, id)
	return note, translate(err)
}

func (s *Service) Update(ctx context.Context, userID, id int64, update domain.NoteUpdate) (*domain.Note, error) {
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, domain.ErrInvalidRequest("title cannot be empty").WithParam("title")
	}
	note, err := s.store.UpdateNote(ctx, userID, id, update)
	return note, translate(err)
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	return translate(s.store.DeleteNote(ctx, userID, id))
}

// HTML renders the note's markdown. Raw HTML in the source is not passed
// through.
func (s *Service) HTML(ctx context.Context, userID, id int64) (string, error) {
	note, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	return s.Render(note.Content)
}

// Render converts markdown to HTML with GFM tables, fenced code, footnotes
// and hard line breaks.
func (s *Service) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

func translate(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return domain.ErrNotFound("Note not found")
	}
	return err
}
