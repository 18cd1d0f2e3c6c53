package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tarefas-api/domain"
)

type stubBackend struct {
	insertTaskFn    func(ctx context.Context, t domain.Task) error
	getTaskFn       func(ctx context.Context, id string) (domain.Task, error)
	listTasksFn     func(ctx context.Context, ownerEmail string) ([]domain.Task, error)
	deleteTaskFn    func(ctx context.Context, id, ownerEmail string) error
	insertCommentFn func(ctx context.Context, c domain.Comment) error
	getCommentFn    func(ctx context.Context, taskID, commentID string) (domain.Comment, error)
	listCommentsFn  func(ctx context.Context, taskID string) ([]domain.Comment, error)
	deleteCommentFn func(ctx context.Context, taskID, commentID string) error
}

func (s *stubBackend) InsertTask(ctx context.Context, t domain.Task) error {
	if s.insertTaskFn == nil {
		return errors.New("unexpected InsertTask call")
	}
	return s.insertTaskFn(ctx, t)
}

func (s *stubBackend) GetTask(ctx context.Context, id string) (domain.Task, error) {
	if s.getTaskFn == nil {
		return domain.Task{}, errors.New("unexpected GetTask call")
	}
	return s.getTaskFn(ctx, id)
}

func (s *stubBackend) ListTasksByOwner(ctx context.Context, ownerEmail string) ([]domain.Task, error) {
	if s.listTasksFn == nil {
		return nil, errors.New("unexpected ListTasksByOwner call")
	}
	return s.listTasksFn(ctx, ownerEmail)
}

func (s *stubBackend) DeleteTask(ctx context.Context, id, ownerEmail string) error {
	if s.deleteTaskFn == nil {
		return errors.New("unexpected DeleteTask call")
	}
	return s.deleteTaskFn(ctx, id, ownerEmail)
}

func (s *stubBackend) InsertComment(ctx context.Context, c domain.Comment) error {
	if s.insertCommentFn == nil {
		return errors.New("unexpected InsertComment call")
	}
	return s.insertCommentFn(ctx, c)
}

func (s *stubBackend) GetComment(ctx context.Context, taskID, commentID string) (domain.Comment, error) {
	if s.getCommentFn == nil {
		return domain.Comment{}, errors.New("unexpected GetComment call")
	}
	return s.getCommentFn(ctx, taskID, commentID)
}

func (s *stubBackend) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	if s.listCommentsFn == nil {
		return nil, errors.New("unexpected ListComments call")
	}
	return s.listCommentsFn(ctx, taskID)
}

func (s *stubBackend) DeleteComment(ctx context.Context, taskID, commentID string) error {
	if s.deleteCommentFn == nil {
		return errors.New("unexpected DeleteComment call")
	}
	return s.deleteCommentFn(ctx, taskID, commentID)
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCacheListTasksMissThenHit(t *testing.T) {
	client := newTestRedis(t)

	ctx := context.Background()
	owner := "a@x.com"
	expected := []domain.Task{{ID: "t1", Text: "buy milk", OwnerEmail: owner, CreatedAt: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}}

	var calls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(ctx context.Context, got string) ([]domain.Task, error) {
			calls++
			if got != owner {
				t.Fatalf("unexpected owner: %s", got)
			}
			return append([]domain.Task(nil), expected...), nil
		},
	}, client, time.Minute)

	tasks, err := cache.ListTasksByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", calls)
	}

	cached, err := cache.ListTasksByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("list cached tasks: %v", err)
	}
	if !reflect.DeepEqual(cached, expected) {
		t.Fatalf("unexpected cached tasks: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached fetch to avoid backend, calls=%d", calls)
	}
}

func TestCacheInsertTaskEvictsOwnerList(t *testing.T) {
	client := newTestRedis(t)

	ctx := context.Background()
	owner := "a@x.com"

	var listCalls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(ctx context.Context, _ string) ([]domain.Task, error) {
			listCalls++
			return []domain.Task{{ID: "t1", Text: "x", OwnerEmail: owner}}, nil
		},
		insertTaskFn: func(ctx context.Context, _ domain.Task) error { return nil },
	}, client, time.Minute)

	if _, err := cache.ListTasksByOwner(ctx, owner); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := cache.InsertTask(ctx, domain.Task{ID: "t2", Text: "y", OwnerEmail: owner}); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if _, err := cache.ListTasksByOwner(ctx, owner); err != nil {
		t.Fatalf("list after insert: %v", err)
	}
	if listCalls != 2 {
		t.Fatalf("expected eviction to force a backend reload, calls=%d", listCalls)
	}
}

func TestCacheDeleteTaskEvictsOwnerList(t *testing.T) {
	client := newTestRedis(t)

	ctx := context.Background()
	owner := "a@x.com"

	var listCalls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(ctx context.Context, _ string) ([]domain.Task, error) {
			listCalls++
			return []domain.Task{}, nil
		},
		deleteTaskFn: func(ctx context.Context, id, ownerEmail string) error {
			if ownerEmail != owner {
				t.Fatalf("unexpected owner on delete: %s", ownerEmail)
			}
			return nil
		},
	}, client, time.Minute)

	if _, err := cache.ListTasksByOwner(ctx, owner); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := cache.DeleteTask(ctx, "t1", owner); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := cache.ListTasksByOwner(ctx, owner); err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if listCalls != 2 {
		t.Fatalf("expected eviction to force a backend reload, calls=%d", listCalls)
	}
}

func TestCacheInsertFailureDoesNotEvict(t *testing.T) {
	client := newTestRedis(t)

	ctx := context.Background()
	owner := "a@x.com"
	boom := errors.New("store down")

	var listCalls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(ctx context.Context, _ string) ([]domain.Task, error) {
			listCalls++
			return []domain.Task{}, nil
		},
		insertTaskFn: func(ctx context.Context, _ domain.Task) error { return boom },
	}, client, time.Minute)

	if _, err := cache.ListTasksByOwner(ctx, owner); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := cache.InsertTask(ctx, domain.Task{ID: "t2", OwnerEmail: owner, Text: "y"}); !errors.Is(err, boom) {
		t.Fatalf("expected insert failure, got %v", err)
	}
	if _, err := cache.ListTasksByOwner(ctx, owner); err != nil {
		t.Fatalf("list after failed insert: %v", err)
	}
	if listCalls != 1 {
		t.Fatalf("failed insert must not evict, calls=%d", listCalls)
	}
}

func TestCacheCommentOpsPassThrough(t *testing.T) {
	client := newTestRedis(t)

	ctx := context.Background()
	comment := domain.Comment{ID: "c1", TaskID: "t1", Text: "nice", AuthorEmail: "b@x.com", AuthorName: "Bob"}

	cache := NewCache(&stubBackend{
		listCommentsFn: func(ctx context.Context, taskID string) ([]domain.Comment, error) {
			if taskID != "t1" {
				t.Fatalf("unexpected task id: %s", taskID)
			}
			return []domain.Comment{comment}, nil
		},
	}, client, time.Minute)

	first, err := cache.ListComments(ctx, "t1")
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	second, err := cache.ListComments(ctx, "t1")
	if err != nil {
		t.Fatalf("second list comments: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical point-in-time reads")
	}
}
