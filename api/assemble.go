package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tarefas-api/domain"
)

// ErrNotVisible hides a task's detail page. An absent record and a private
// record produce the same error so the route cannot leak existence.
var ErrNotVisible = errors.New("task not visible")

// displayTimeLayout is applied once, server-side, at assembly. Day first,
// matching the locale the app was written for.
const displayTimeLayout = "02/01/2006 15:04"

// CommentView is one comment annotated for the current viewer, so the
// presentation layer needs no policy knowledge of its own.
type CommentView struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	AuthorEmail string `json:"authorEmail"`
	AuthorName  string `json:"authorName"`
	Created     string `json:"created"`
	CanDelete   bool   `json:"canDelete"`
}

// TaskDetailView is the render-ready composition of a public task and its
// comment thread.
type TaskDetailView struct {
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	OwnerEmail string        `json:"ownerEmail"`
	Public     bool          `json:"public"`
	Created    string        `json:"created"`
	Comments   []CommentView `json:"comments"`
}

// assembleTaskDetail joins one task with its comment thread. The two reads
// are independent: no transaction spans them, and a task deleted between
// them is not an error. The comment read returning records for a vanished
// task is equally fine; orphans are expected.
func assembleTaskDetail(ctx context.Context, store Storage, taskID string, viewer domain.Identity) (TaskDetailView, error) {
	task, err := store.GetTask(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) {
		return TaskDetailView{}, ErrNotVisible
	}
	if err != nil {
		return TaskDetailView{}, fmt.Errorf("fetch task: %w", err)
	}
	if !domain.CanViewDetail(viewer, task) {
		return TaskDetailView{}, ErrNotVisible
	}

	comments, err := store.ListComments(ctx, taskID)
	if err != nil {
		return TaskDetailView{}, fmt.Errorf("fetch comments: %w", err)
	}

	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, CommentView{
			ID:          c.ID,
			Text:        c.Text,
			AuthorEmail: c.AuthorEmail,
			AuthorName:  c.AuthorName,
			Created:     formatDisplayTime(c.CreatedAt),
			CanDelete:   domain.CanDeleteComment(viewer, c),
		})
	}

	return TaskDetailView{
		ID:         task.ID,
		Text:       task.Text,
		OwnerEmail: task.OwnerEmail,
		Public:     task.IsPublic,
		Created:    formatDisplayTime(task.CreatedAt),
		Comments:   views,
	}, nil
}

func formatDisplayTime(t time.Time) string {
	return t.UTC().Format(displayTimeLayout)
}
