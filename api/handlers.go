package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tarefas-api/domain"
)

const createBodyMaxSize = 16 << 10

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, notifier Notifier, broker *Broker, logger *log.Logger) {
	e.GET("/api/tasks", getTasks(store, auth))
	e.POST("/api/tasks", postTask(store, auth, deduper, notifier))
	e.GET("/api/tasks/stream", streamTasks(store, auth, broker))
	e.GET("/api/tasks/:id", getTaskDetail(store, auth, logger))
	e.DELETE("/api/tasks/:id", deleteTask(store, auth, notifier))
	e.POST("/api/tasks/:id/comments", postComment(store, auth, deduper))
	e.DELETE("/api/tasks/:id/comments/:commentId", deleteComment(store, auth))
	e.GET("/healthz", healthz())
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type createTaskRequest struct {
	Text   string `json:"text"`
	Public bool   `json:"public"`
}

type createCommentRequest struct {
	Text string `json:"text"`
}

type createdResponse struct {
	ID string `json:"id"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// viewerIdentity resolves the optional identity on public routes. A missing
// or invalid credential means anonymous, never an error.
func viewerIdentity(c echo.Context, auth Authenticator) domain.Identity {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if h == "" {
		return domain.Identity{}
	}
	viewer, err := auth.IdentityFromAuthHeader(h)
	if err != nil {
		return domain.Identity{}
	}
	return viewer
}

func getTasks(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		viewer, err := auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		// The query itself is the CanListOwn policy: it is scoped to the
		// viewer's exact email and can return nobody else's records.
		tasks, err := store.ListTasksByOwner(ctx, viewer.Email)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to list tasks")
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
	}
}

func postTask(store Storage, auth Authenticator, deduper Deduper, notifier Notifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		viewer, err := auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req createTaskRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		task, err := domain.NewTask(viewer.Email, req.Text, req.Public, time.Now())
		if errors.Is(err, domain.ErrEmptyText) {
			return c.String(http.StatusBadRequest, "empty task text")
		}
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		key, duplicate, err := checkIdempotencyKey(c, deduper, viewer.Email)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create task")
		}
		if duplicate {
			return c.String(http.StatusConflict, "duplicate request")
		}

		if err := store.InsertTask(ctx, task); err != nil {
			releaseIdempotencyKey(c, deduper, viewer.Email, key)
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create task")
		}
		notifier.TasksChanged(ctx, viewer.Email)
		return c.JSON(http.StatusCreated, createdResponse{ID: task.ID})
	}
}

func getTaskDetail(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newDetailRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		viewer := viewerIdentity(c, auth)
		metrics.ObserveAuth(time.Since(authStart))
		metrics.SetViewerAnonymous(viewer.Anonymous())

		assembleStart := time.Now()
		view, assembleErr := assembleTaskDetail(ctx, store, c.Param("id"), viewer)
		metrics.ObserveAssemble(time.Since(assembleStart))
		if errors.Is(assembleErr, ErrNotVisible) {
			metrics.SetErrorStage("not_visible")
			err = c.String(http.StatusNotFound, "task not found")
			return err
		}
		if assembleErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(assembleErr)
			err = c.String(http.StatusInternalServerError, "failed to load task")
			return err
		}
		metrics.SetCommentsReturned(len(view.Comments))
		err = c.JSON(http.StatusOK, view)
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func deleteTask(store Storage, auth Authenticator, notifier Notifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		viewer, err := auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		task, err := store.GetTask(ctx, c.Param("id"))
		if errors.Is(err, domain.ErrNotFound) {
			return c.String(http.StatusNotFound, "task not found")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to delete task")
		}
		// A non-owner gets the same 404 as a missing record so the route
		// reveals nothing about private tasks.
		if !domain.CanDeleteTask(viewer, task) {
			return c.String(http.StatusNotFound, "task not found")
		}
		// Comments are not cascaded; orphans are tolerated on read.
		if err := store.DeleteTask(ctx, task.ID, task.OwnerEmail); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to delete task")
		}
		notifier.TasksChanged(ctx, task.OwnerEmail)
		return c.NoContent(http.StatusNoContent)
	}
}

func postComment(store Storage, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		viewer, err := auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		taskID := c.Param("id")
		task, err := store.GetTask(ctx, taskID)
		if errors.Is(err, domain.ErrNotFound) {
			return c.String(http.StatusNotFound, "task not found")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create comment")
		}
		if !domain.CanViewDetail(viewer, task) {
			return c.String(http.StatusNotFound, "task not found")
		}

		var req createCommentRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		comment, err := domain.NewComment(taskID, viewer, req.Text, time.Now())
		if errors.Is(err, domain.ErrEmptyText) {
			return c.String(http.StatusBadRequest, "empty comment text")
		}
		if errors.Is(err, domain.ErrIncompleteIdentity) {
			return c.String(http.StatusBadRequest, "incomplete identity")
		}
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		key, duplicate, err := checkIdempotencyKey(c, deduper, viewer.Email)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create comment")
		}
		if duplicate {
			return c.String(http.StatusConflict, "duplicate request")
		}

		if err := store.InsertComment(ctx, comment); err != nil {
			releaseIdempotencyKey(c, deduper, viewer.Email, key)
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create comment")
		}
		return c.JSON(http.StatusCreated, createdResponse{ID: comment.ID})
	}
}

func deleteComment(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		viewer, err := auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		comment, err := store.GetComment(ctx, c.Param("id"), c.Param("commentId"))
		if errors.Is(err, domain.ErrNotFound) {
			return c.String(http.StatusNotFound, "comment not found")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to delete comment")
		}
		if !domain.CanDeleteComment(viewer, comment) {
			return c.String(http.StatusForbidden, "not the comment author")
		}
		if err := store.DeleteComment(ctx, comment.TaskID, comment.ID); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to delete comment")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func decodeBody(body io.Reader, dst any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(body, createBodyMaxSize))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// checkIdempotencyKey honors an optional Idempotency-Key header on creates.
// Without the header a double submit still produces two records, matching
// the original form behavior.
func checkIdempotencyKey(c echo.Context, deduper Deduper, userEmail string) (string, bool, error) {
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" || deduper == nil {
		return "", false, nil
	}
	added, err := deduper.Add(c.Request().Context(), userEmail, key)
	if err != nil {
		return key, false, err
	}
	return key, !added, nil
}

func releaseIdempotencyKey(c echo.Context, deduper Deduper, userEmail, key string) {
	if key == "" || deduper == nil {
		return
	}
	if err := deduper.Remove(c.Request().Context(), userEmail, key); err != nil {
		c.Logger().Errorf("release idempotency key: %v", err)
	}
}
