package notes

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/storage/memory"
)

func TestServiceCRUD(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()

	note, err := svc.Create(ctx, 1, "Groceries", "- eggs")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	title := "Shopping"
	updated, err := svc.Update(ctx, 1, note.ID, domain.NoteUpdate{Title: &title})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "Shopping" || updated.Content != "- eggs" {
		t.Errorf("Update() = %+v", updated)
	}

	list, err := svc.List(ctx, 1)
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %v, %v", list, err)
	}

	if err := svc.Delete(ctx, 1, note.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, 1, note.ID); domain.HTTPStatus(err) != http.StatusNotFound {
		t.Errorf("Get() after delete status = %d, want 404", domain.HTTPStatus(err))
	}
}

func TestServiceForeignNoteIsNotFound(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()

	note, err := svc.Create(ctx, 1, "mine", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.Get(ctx, 2, note.ID); domain.HTTPStatus(err) != http.StatusNotFound {
		t.Errorf("Get() status = %d, want 404", domain.HTTPStatus(err))
	}
	if _, err := svc.HTML(ctx, 2, note.ID); domain.HTTPStatus(err) != http.StatusNotFound {
		t.Errorf("HTML() status = %d, want 404", domain.HTTPStatus(err))
	}
	if err := svc.Delete(ctx, 2, note.ID); domain.HTTPStatus(err) != http.StatusNotFound {
		t.Errorf("Delete() status = %d, want 404", domain.HTTPStatus(err))
	}
}

func TestServiceValidation(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()

	if _, err := svc.Create(ctx, 1, "  ", "body"); domain.HTTPStatus(err) != http.StatusBadRequest {
		t.Errorf("Create() blank title status = %d, want 400", domain.HTTPStatus(err))
	}

	note, _ := svc.Create(ctx, 1, "ok", "")
	empty := ""
	if _, err := svc.Update(ctx, 1, note.ID, domain.NoteUpdate{Title: &empty}); domain.HTTPStatus(err) != http.StatusBadRequest {
		t.Errorf("Update() empty title status = %d, want 400", domain.HTTPStatus(err))
	}
}

func TestRender(t *testing.T) {
	svc := NewService(memory.New())

	tests := []struct {
		name     string
		source   string
		contains []string
		excludes []string
	}{
		{
			name:     "heading",
			source:   "# Title",
			contains: []string{`<h1 id="title">Title</h1>`},
		},
		{
			name:     "hard wraps",
			source:   "line one\nline two",
			contains: []string{"line one<br>"},
		},
		{
			name:     "table",
			source:   "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:     "fenced code",
			source:   "```go\nfmt.Println(1)\n```",
			contains: []string{`<code class="language-go">`},
		},
		{
			name:     "raw html is not passed through",
			source:   "<script>alert(1)</script>",
			excludes: []string{"<script>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Render(tt.source)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Render() = %q, want it to contain %q", got, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("Render() = %q, must not contain %q", got, bad)
				}
			}
		})
	}
}
