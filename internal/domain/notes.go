package domain

import "time"

// User is an account that owns notes.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Note is a markdown document owned by a user.
type Note struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	UserID    int64     `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NoteUpdate carries a partial update; nil fields are left unchanged.
type NoteUpdate struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// UsageStats aggregates ai_usage_logs for one user.
type UsageStats struct {
	TotalRequests      int64  `json:"total_requests"`
	SuccessfulRequests int64  `json:"successful_requests"`
	TotalTokens        int64  `json:"total_tokens"`
	MostUsedOperation  string `json:"most_used_operation,omitempty"`
	PreferredProvider  string `json:"preferred_provider,omitempty"`
}
