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
	stateSpanName    = "planner.state.request"
	stateEventName   = "state.request.completed"
	stateEventDomain = "planner"
)

// stateRequestMetrics records per-stage timings for a state request and emits
// one structured log line plus one span when the request finishes.
type stateRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	route  string
	method string
	start  time.Time

	loadDuration   time.Duration
	parseDuration  time.Duration
	saveDuration   time.Duration
	encodeDuration time.Duration
	bytesIn        int
	bytesOut       int
	errorStage     string
}

func newStateRequestMetrics(ctx context.Context, route, method string, logger *log.Logger) (*stateRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer("school-planner/api").Start(ctx, stateSpanName)
	m := &stateRequestMetrics{
		logger: logger,
		span:   span,
		route:  route,
		method: method,
		start:  time.Now(),
	}
	return m, spanCtx
}

func (m *stateRequestMetrics) ObserveLoad(d time.Duration)   { m.loadDuration = d }
func (m *stateRequestMetrics) ObserveParse(d time.Duration)  { m.parseDuration = d }
func (m *stateRequestMetrics) ObserveSave(d time.Duration)   { m.saveDuration = d }
func (m *stateRequestMetrics) ObserveEncode(d time.Duration) { m.encodeDuration = d }
func (m *stateRequestMetrics) SetBytesIn(n int)              { m.bytesIn = n }
func (m *stateRequestMetrics) SetBytesOut(n int)             { m.bytesOut = n }

func (m *stateRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Log closes the span and writes the observability event. Call exactly once,
// usually deferred.
func (m *stateRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	total := time.Since(m.start)
	severityText, severityNumber := severityForStatus(status, err)

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.String("http.method", m.method),
		attribute.Int("http.status_code", status),
		attribute.Float64("planner.state.total_ms", durationToMillis(total)),
	}
	if m.loadDuration > 0 {
		attrs = append(attrs, attribute.Float64("planner.state.load_ms", durationToMillis(m.loadDuration)))
	}
	if m.parseDuration > 0 {
		attrs = append(attrs, attribute.Float64("planner.state.parse_ms", durationToMillis(m.parseDuration)))
	}
	if m.saveDuration > 0 {
		attrs = append(attrs, attribute.Float64("planner.state.save_ms", durationToMillis(m.saveDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("planner.state.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.bytesIn > 0 {
		attrs = append(attrs, attribute.Int("planner.state.bytes_in", m.bytesIn))
	}
	if m.bytesOut > 0 {
		attrs = append(attrs, attribute.Int("planner.state.bytes_out", m.bytesOut))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("planner.state.error_stage", m.errorStage))
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		eventAttrs := append([]attribute.KeyValue{
			attribute.String("event.name", stateEventName),
			attribute.String("event.domain", stateEventDomain),
			attribute.String("severity_text", severityText),
		}, attrs...)
		if err != nil {
			eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
		}
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
		if err != nil || status >= 500 {
			desc := "request failed"
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      stateEventName,
		"event.domain":    stateEventDomain,
		"route":           m.route,
		"method":          m.method,
		"status":          status,
		"total_ms":        durationToMillis(total),
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info("observability.event")
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
