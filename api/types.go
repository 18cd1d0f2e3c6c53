package api

import (
	"context"

	"tarefas-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	InsertTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, id string) (domain.Task, error)
	ListTasksByOwner(ctx context.Context, ownerEmail string) ([]domain.Task, error)
	DeleteTask(ctx context.Context, id, ownerEmail string) error
	InsertComment(ctx context.Context, c domain.Comment) error
	GetComment(ctx context.Context, taskID, commentID string) (domain.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)
	DeleteComment(ctx context.Context, taskID, commentID string) error
}

// Authenticator is implemented by types able to extract viewer identities
// from Authorization headers.
type Authenticator interface {
	IdentityFromAuthHeader(string) (domain.Identity, error)
}

// Deduper prevents processing of duplicate create requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the store write fails.
	Remove(ctx context.Context, userID, key string) error
}

// Notifier announces that an owner's task list changed so that live
// subscribers can refetch their snapshot.
type Notifier interface {
	TasksChanged(ctx context.Context, ownerEmail string)
}
