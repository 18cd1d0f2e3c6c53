package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record does not exist in the store.
	ErrNotFound = errors.New("record not found")
	// ErrEmptyText rejects records whose text is empty after trimming.
	ErrEmptyText = errors.New("empty text")
)

// Task is a single tracked item. OwnerEmail and CreatedAt are set once at
// creation and never change; there is no update path for tasks.
type Task struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	OwnerEmail string    `json:"ownerEmail"`
	IsPublic   bool      `json:"public"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewTask validates and stamps a task record. Nothing reaches the store when
// the trimmed text is empty.
func NewTask(ownerEmail, text string, public bool, now time.Time) (Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Task{}, ErrEmptyText
	}
	return Task{
		ID:         uuid.NewString(),
		Text:       text,
		OwnerEmail: ownerEmail,
		IsPublic:   public,
		CreatedAt:  now.UTC(),
	}, nil
}
