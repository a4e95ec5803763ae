// Package slogobs implements observability.Provider on top of the standard
// library's log/slog.
package slogobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leofalp/promptfan/providers/observability"
)

// LevelTrace sits below slog.LevelDebug; slog has no native trace level.
const LevelTrace = slog.LevelDebug - 4

// Observer implements observability.Provider using slog.
type Observer struct {
	logger *slog.Logger
}

var _ observability.Provider = (*Observer)(nil)

// New creates a slog-based observer. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{logger: logger}
}

// StartSpan logs the span start at debug level and returns a span that logs
// its end, duration, and accumulated attributes.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	span := &slogSpan{
		name:      name,
		startTime: time.Now(),
		logger:    o.logger,
		attrs:     attrs,
	}

	o.logger.LogAttrs(ctx, slog.LevelDebug, "span started", toSlogAttrs(name, "span.start", attrs)...)

	return observability.ContextWithSpan(ctx, span), span
}

func (o *Observer) log(ctx context.Context, level slog.Level, msg string, attrs []observability.Attribute) {
	logAttrs := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	o.logger.LogAttrs(ctx, level, msg, logAttrs...)
}

func (o *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, LevelTrace, msg, attrs)
}

func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelDebug, msg, attrs)
}

func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelInfo, msg, attrs)
}

func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelWarn, msg, attrs)
}

func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelError, msg, attrs)
}

type slogSpan struct {
	name      string
	startTime time.Time
	logger    *slog.Logger

	mu    sync.Mutex
	attrs []observability.Attribute
}

func (s *slogSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	logAttrs := toSlogAttrs(s.name, "span.end", s.attrs)
	logAttrs = append(logAttrs, slog.Duration("duration", time.Since(s.startTime)))
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "span ended", logAttrs...)
}

func (s *slogSpan) SetAttributes(attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, attrs...)
}

func (s *slogSpan) SetStatus(code observability.StatusCode, description string) {
	var status string
	switch code {
	case observability.StatusOK:
		status = "ok"
	case observability.StatusError:
		status = "error"
	default:
		status = "unset"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, observability.String(observability.AttrStatus, status))
	if description != "" {
		s.attrs = append(s.attrs, observability.String(observability.AttrStatusMessage, description))
	}
}

func (s *slogSpan) RecordError(err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	attrs := toSlogAttrs(s.name, "span.error", s.attrs)
	s.mu.Unlock()

	attrs = append(attrs, slog.String("error", err.Error()))
	s.logger.LogAttrs(context.Background(), slog.LevelError, "span error", attrs...)
}

func (s *slogSpan) AddEvent(name string, attrs ...observability.Attribute) {
	logAttrs := toSlogAttrs(s.name, name, attrs)
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "span event", logAttrs...)
}

func toSlogAttrs(span, event string, attrs []observability.Attribute) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs)+2)
	out = append(out, slog.String("span", span), slog.String("event", event))
	for _, attr := range attrs {
		out = append(out, slog.Any(attr.Key, attr.Value))
	}
	return out
}
