package storage

import (
	"testing"
	"time"

	"tarefas-api/domain"
)

func TestDecodeTaskEntity(t *testing.T) {
	data := []byte(`{"PartitionKey":"task","RowKey":"t1","Text":"buy milk","OwnerEmail":"a@x.com","IsPublic":true,"CreatedAt":"2024-05-10T12:30:00Z"}`)
	task, err := decodeTaskEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if task.ID != "t1" || task.Text != "buy milk" || task.OwnerEmail != "a@x.com" || !task.IsPublic {
		t.Fatalf("unexpected task: %+v", task)
	}
	want := time.Date(2024, 5, 10, 12, 30, 0, 0, time.UTC)
	if !task.CreatedAt.Equal(want) {
		t.Fatalf("unexpected creation time: %v", task.CreatedAt)
	}
}

func TestDecodeTaskEntityRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"missing text", `{"PartitionKey":"task","RowKey":"t1","OwnerEmail":"a@x.com"}`},
		{"missing owner", `{"PartitionKey":"task","RowKey":"t1","Text":"x"}`},
		{"missing row key", `{"PartitionKey":"task","Text":"x","OwnerEmail":"a@x.com"}`},
		{"not json", `nope`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeTaskEntity([]byte(tc.data)); err == nil {
				t.Fatal("expected decode failure")
			}
		})
	}
}

func TestDecodeCommentEntity(t *testing.T) {
	data := []byte(`{"PartitionKey":"t1","RowKey":"c1","Text":"nice","AuthorEmail":"b@x.com","AuthorName":"Bob","CreatedAt":"2024-05-10T13:00:00Z"}`)
	c, err := decodeCommentEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.ID != "c1" || c.TaskID != "t1" || c.Text != "nice" {
		t.Fatalf("unexpected comment: %+v", c)
	}
	if c.AuthorEmail != "b@x.com" || c.AuthorName != "Bob" {
		t.Fatalf("unexpected author: %+v", c)
	}
}

func TestDecodeCommentEntityRejectsMissingAuthor(t *testing.T) {
	data := []byte(`{"PartitionKey":"t1","RowKey":"c1","Text":"nice"}`)
	if _, err := decodeCommentEntity(data); err == nil {
		t.Fatal("expected decode failure")
	}
}

func TestSortTasksNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	tasks := []domain.Task{
		{ID: "old", CreatedAt: base.Add(-time.Hour)},
		{ID: "new", CreatedAt: base.Add(time.Hour)},
		{ID: "mid", CreatedAt: base},
	}
	sortTasksNewestFirst(tasks)
	if tasks[0].ID != "new" || tasks[1].ID != "mid" || tasks[2].ID != "old" {
		t.Fatalf("unexpected order: %v %v %v", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}
}

func TestSortCommentsOldestFirst(t *testing.T) {
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	comments := []domain.Comment{
		{ID: "b", CreatedAt: base.Add(time.Minute)},
		{ID: "a", CreatedAt: base},
		{ID: "tie2", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "tie1", CreatedAt: base.Add(2 * time.Minute)},
	}
	sortCommentsOldestFirst(comments)
	got := []string{comments[0].ID, comments[1].ID, comments[2].ID, comments[3].ID}
	want := []string{"a", "b", "tie1", "tie2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: %v", got)
		}
	}
}

func TestOwnerFilterEscapesQuotes(t *testing.T) {
	got := ownerFilter("o'brien@x.com")
	want := "PartitionKey eq 'task' and OwnerEmail eq 'o''brien@x.com'"
	if got != want {
		t.Fatalf("unexpected filter: %s", got)
	}
}
