package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrIncompleteIdentity rejects comment authors missing email or name.
var ErrIncompleteIdentity = errors.New("incomplete identity")

// Comment belongs to a task by reference only: the store keeps no referential
// integrity, so a comment may outlive its task and readers must tolerate that.
type Comment struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId"`
	Text        string    `json:"text"`
	AuthorEmail string    `json:"authorEmail"`
	AuthorName  string    `json:"authorName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewComment validates and stamps a comment record. Anonymous or incomplete
// identities cannot comment.
func NewComment(taskID string, author Identity, text string, now time.Time) (Comment, error) {
	if !CanComment(author) {
		return Comment{}, ErrIncompleteIdentity
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, ErrEmptyText
	}
	return Comment{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		Text:        text,
		AuthorEmail: author.Email,
		AuthorName:  author.Name,
		CreatedAt:   now.UTC(),
	}, nil
}
