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

const tracerName = "prism-task-editor/api"

// editorRequestMetrics logs one structured line per editor request and mirrors it on a span.
type editorRequestMetrics struct {
	logger           *log.Logger
	span             trace.Span
	route            string
	start            time.Time
	sessionID        string
	field            string
	validationErrors int
	submitted        bool
	errorStage       string
}

func newEditorRequestMetrics(ctx context.Context, logger *log.Logger, route string) (*editorRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, "editor "+route)
	return &editorRequestMetrics{
		logger: logger,
		span:   span,
		route:  route,
		start:  time.Now(),
	}, spanCtx
}

func (m *editorRequestMetrics) SetSession(id string) {
	m.sessionID = id
}

func (m *editorRequestMetrics) SetField(name string) {
	m.field = name
}

func (m *editorRequestMetrics) SetValidationErrors(count int) {
	if count < 0 {
		count = 0
	}
	m.validationErrors = count
}

func (m *editorRequestMetrics) SetSubmitted(ok bool) {
	m.submitted = ok
}

func (m *editorRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *editorRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	if m.span != nil {
		m.span.SetAttributes(
			attribute.String("editor.route", m.route),
			attribute.String("editor.session", m.sessionID),
			attribute.Int("http.status_code", status),
			attribute.Int("editor.validation_errors", m.validationErrors),
			attribute.Bool("editor.submitted", m.submitted),
		)
		if m.field != "" {
			m.span.SetAttributes(attribute.String("editor.field", m.field))
		}
		if err != nil {
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		} else if m.errorStage != "" {
			m.span.SetStatus(codes.Error, m.errorStage)
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":             m.route,
		"status":            status,
		"total_ms":          durationToMillis(time.Since(m.start)),
		"validation_errors": m.validationErrors,
		"submitted":         m.submitted,
	}
	if m.sessionID != "" {
		fields["session"] = m.sessionID
	}
	if m.field != "" {
		fields["field"] = m.field
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("editor.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
