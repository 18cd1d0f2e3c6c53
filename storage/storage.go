package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"tarefas-api/domain"
)

// Tasks live in a single partition keyed by id so the public detail route can
// point-read a task knowing nothing but its link. Comments are partitioned by
// task id: listing a thread is a single-partition scan and the composite
// (taskId, commentId) key keeps deletes point operations.
const taskPartition = "task"

// Storage provides access to the two record collections.
type Storage struct {
	taskTable    *aztables.Client
	commentTable *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, commentsTable string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable:    svc.NewClient(tasksTable),
		commentTable: svc.NewClient(commentsTable),
	}, nil
}

type taskEntity struct {
	aztables.Entity
	Text       string               `json:"Text"`
	OwnerEmail string               `json:"OwnerEmail"`
	IsPublic   bool                 `json:"IsPublic"`
	CreatedAt  aztables.EDMDateTime `json:"CreatedAt"`
}

type commentEntity struct {
	aztables.Entity
	Text        string               `json:"Text"`
	AuthorEmail string               `json:"AuthorEmail"`
	AuthorName  string               `json:"AuthorName"`
	CreatedAt   aztables.EDMDateTime `json:"CreatedAt"`
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	if ent.RowKey == "" || ent.Text == "" || ent.OwnerEmail == "" {
		return domain.Task{}, fmt.Errorf("malformed task entity %q", ent.RowKey)
	}
	return domain.Task{
		ID:         ent.RowKey,
		Text:       ent.Text,
		OwnerEmail: ent.OwnerEmail,
		IsPublic:   ent.IsPublic,
		CreatedAt:  time.Time(ent.CreatedAt),
	}, nil
}

func decodeCommentEntity(data []byte) (domain.Comment, error) {
	var ent commentEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Comment{}, err
	}
	if ent.RowKey == "" || ent.Text == "" || ent.AuthorEmail == "" {
		return domain.Comment{}, fmt.Errorf("malformed comment entity %q", ent.RowKey)
	}
	return domain.Comment{
		ID:          ent.RowKey,
		TaskID:      ent.PartitionKey,
		Text:        ent.Text,
		AuthorEmail: ent.AuthorEmail,
		AuthorName:  ent.AuthorName,
		CreatedAt:   time.Time(ent.CreatedAt),
	}, nil
}

// InsertTask stores a new task record. A single insert, no other side effects.
func (s *Storage) InsertTask(ctx context.Context, t domain.Task) error {
	ent := taskEntity{
		Entity:     aztables.Entity{PartitionKey: taskPartition, RowKey: t.ID},
		Text:       t.Text,
		OwnerEmail: t.OwnerEmail,
		IsPublic:   t.IsPublic,
		CreatedAt:  aztables.EDMDateTime(t.CreatedAt),
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	if _, err := s.taskTable.AddEntity(ctx, data, nil); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask point-reads a task by id. Absent records yield domain.ErrNotFound.
func (s *Storage) GetTask(ctx context.Context, id string) (domain.Task, error) {
	resp, err := s.taskTable.GetEntity(ctx, taskPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Task{}, domain.ErrNotFound
		}
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return decodeTaskEntity(resp.Value)
}

// ListTasksByOwner returns every task owned by ownerEmail, newest first.
func (s *Storage) ListTasksByOwner(ctx context.Context, ownerEmail string) ([]domain.Task, error) {
	filter := ownerFilter(ownerEmail)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		for _, e := range resp.Entities {
			task, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}
	sortTasksNewestFirst(tasks)
	return tasks, nil
}

// DeleteTask removes a task by id. It is unconditional: ownership checks
// happen at the route layer, and comments are deliberately not cascaded (the
// store has no multi-record transactions, orphans are tolerated on read).
// The owner email parameter exists for cache eviction in the decorator.
func (s *Storage) DeleteTask(ctx context.Context, id, _ string) error {
	if _, err := s.taskTable.DeleteEntity(ctx, taskPartition, id, nil); err != nil {
		if isNotFound(err) {
			// Already gone, e.g. a double-submitted delete.
			return nil
		}
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// InsertComment stores a new comment record. No referential check against the
// task is performed.
func (s *Storage) InsertComment(ctx context.Context, c domain.Comment) error {
	ent := commentEntity{
		Entity:      aztables.Entity{PartitionKey: c.TaskID, RowKey: c.ID},
		Text:        c.Text,
		AuthorEmail: c.AuthorEmail,
		AuthorName:  c.AuthorName,
		CreatedAt:   aztables.EDMDateTime(c.CreatedAt),
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	if _, err := s.commentTable.AddEntity(ctx, data, nil); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// GetComment point-reads one comment of a task.
func (s *Storage) GetComment(ctx context.Context, taskID, commentID string) (domain.Comment, error) {
	resp, err := s.commentTable.GetEntity(ctx, taskID, commentID, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Comment{}, domain.ErrNotFound
		}
		return domain.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return decodeCommentEntity(resp.Value)
}

// ListComments returns the comments of a task, oldest first. The read is
// point-in-time and succeeds even when the task itself no longer exists.
func (s *Storage) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	filter := "PartitionKey eq '" + escapeODataString(taskID) + "'"
	pager := s.commentTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	comments := []domain.Comment{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}
		for _, e := range resp.Entities {
			comment, err := decodeCommentEntity(e)
			if err != nil {
				return nil, err
			}
			comments = append(comments, comment)
		}
	}
	sortCommentsOldestFirst(comments)
	return comments, nil
}

// DeleteComment removes one comment. Author checks happen at the route layer.
func (s *Storage) DeleteComment(ctx context.Context, taskID, commentID string) error {
	if _, err := s.commentTable.DeleteEntity(ctx, taskID, commentID, nil); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

func ownerFilter(ownerEmail string) string {
	return "PartitionKey eq '" + taskPartition + "' and OwnerEmail eq '" + escapeODataString(ownerEmail) + "'"
}

// escapeODataString doubles single quotes per the OData filter grammar.
func escapeODataString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func sortTasksNewestFirst(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}

func sortCommentsOldestFirst(comments []domain.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
