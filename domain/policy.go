package domain

// Visibility and ownership rules. All functions are pure, never fail, and
// assume validated records; callers gate on authentication before invoking
// owner-scoped checks.

// CanListOwn reports whether viewer may see task in their own dashboard list.
// Owner scoping is an exact email match, never hierarchical.
func CanListOwn(viewer Identity, task Task) bool {
	return !viewer.Anonymous() && viewer.Email == task.OwnerEmail
}

// CanViewDetail reports whether the task's detail page may be served.
// Sharing is link-based: a public task is readable by anyone holding the
// link, so the viewer's identity is deliberately ignored.
func CanViewDetail(_ Identity, task Task) bool {
	return task.IsPublic
}

// CanDeleteTask reports whether viewer may delete task. Only the owner may.
func CanDeleteTask(viewer Identity, task Task) bool {
	return !viewer.Anonymous() && viewer.Email == task.OwnerEmail
}

// CanComment reports whether viewer may create comments. Anonymous visitors
// and identities without a display name are rejected.
func CanComment(viewer Identity) bool {
	return viewer.Complete()
}

// CanDeleteComment reports whether viewer may delete comment. Only the
// comment's author may; the parent task's owner gets no special power.
func CanDeleteComment(viewer Identity, comment Comment) bool {
	return !viewer.Anonymous() && viewer.Email == comment.AuthorEmail
}
