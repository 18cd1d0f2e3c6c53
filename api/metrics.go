package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	detailRoute     = "/api/tasks/:id"
	detailEventName = "task_detail.request"
)

func tracer() trace.Tracer {
	return otel.Tracer("tarefas-api/api")
}

// detailRequestMetrics times the stages of one task-detail request and emits
// a span plus one structured log line when the request finishes.
type detailRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	authDuration     time.Duration
	assembleDuration time.Duration
	viewerAnonymous  bool
	commentsReturned int
	errorStage       string
}

func newDetailRequestMetrics(ctx context.Context, logger *log.Logger) (*detailRequestMetrics, context.Context) {
	spanCtx, span := tracer().Start(ctx, detailEventName)
	return &detailRequestMetrics{logger: logger, span: span, start: time.Now()}, spanCtx
}

func (m *detailRequestMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *detailRequestMetrics) ObserveAssemble(d time.Duration) {
	if d > 0 {
		m.assembleDuration = d
	}
}

func (m *detailRequestMetrics) SetViewerAnonymous(anonymous bool) {
	m.viewerAnonymous = anonymous
}

func (m *detailRequestMetrics) SetCommentsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.commentsReturned = count
}

func (m *detailRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *detailRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	total := time.Since(m.start)

	if m.span != nil {
		attrs := []attribute.KeyValue{
			attribute.String("http.route", detailRoute),
			attribute.Int("http.status_code", status),
			attribute.Bool("tarefas.detail.viewer_anonymous", m.viewerAnonymous),
			attribute.Int("tarefas.detail.comments_returned", m.commentsReturned),
			attribute.Float64("tarefas.detail.total_ms", durationToMillis(total)),
		}
		if m.errorStage != "" {
			attrs = append(attrs, attribute.String("tarefas.detail.error_stage", m.errorStage))
		}
		m.span.SetAttributes(attrs...)
		if err != nil {
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":             detailRoute,
		"status":            status,
		"total_ms":          durationToMillis(total),
		"viewer_anonymous":  m.viewerAnonymous,
		"comments_returned": m.commentsReturned,
	}
	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.assembleDuration > 0 {
		fields["assemble_ms"] = durationToMillis(m.assembleDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info(detailEventName)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
