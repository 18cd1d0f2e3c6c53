package domain

import "testing"

var (
	alice = Identity{Email: "a@x.com", Name: "Alice"}
	bob   = Identity{Email: "b@x.com", Name: "Bob"}
)

func TestCanListOwnExactMatch(t *testing.T) {
	task := Task{ID: "t1", OwnerEmail: "a@x.com"}
	cases := []struct {
		name   string
		viewer Identity
		want   bool
	}{
		{"owner", alice, true},
		{"other user", bob, false},
		{"anonymous", Identity{}, false},
		{"prefix is not a match", Identity{Email: "a@x.com.evil", Name: "Eve"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanListOwn(tc.viewer, task); got != tc.want {
				t.Fatalf("CanListOwn(%q) = %v, want %v", tc.viewer.Email, got, tc.want)
			}
		})
	}
}

func TestCanViewDetailIgnoresIdentity(t *testing.T) {
	public := Task{ID: "t1", OwnerEmail: "a@x.com", IsPublic: true}
	private := Task{ID: "t2", OwnerEmail: "a@x.com"}

	for _, viewer := range []Identity{{}, alice, bob} {
		if !CanViewDetail(viewer, public) {
			t.Fatalf("public task must be viewable by %q", viewer.Email)
		}
		if CanViewDetail(viewer, private) {
			t.Fatalf("private task must not be viewable by %q", viewer.Email)
		}
	}
}

func TestCanDeleteTaskOwnerOnly(t *testing.T) {
	task := Task{ID: "t1", OwnerEmail: "a@x.com", IsPublic: true}
	if !CanDeleteTask(alice, task) {
		t.Fatal("owner must be able to delete own task")
	}
	if CanDeleteTask(bob, task) {
		t.Fatal("non-owner must not delete task")
	}
	if CanDeleteTask(Identity{}, task) {
		t.Fatal("anonymous must not delete task")
	}
}

func TestCanComment(t *testing.T) {
	cases := []struct {
		name   string
		viewer Identity
		want   bool
	}{
		{"complete identity", bob, true},
		{"anonymous", Identity{}, false},
		{"missing name", Identity{Email: "c@x.com"}, false},
		{"missing email", Identity{Name: "Carol"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanComment(tc.viewer); got != tc.want {
				t.Fatalf("CanComment = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanDeleteCommentAuthorOnly(t *testing.T) {
	comment := Comment{ID: "c1", TaskID: "t1", AuthorEmail: "b@x.com"}
	if !CanDeleteComment(bob, comment) {
		t.Fatal("author must be able to delete own comment")
	}
	// The task owner holds no power over other people's comments.
	if CanDeleteComment(alice, comment) {
		t.Fatal("task owner must not delete another author's comment")
	}
	if CanDeleteComment(Identity{}, comment) {
		t.Fatal("anonymous must not delete comments")
	}
}
