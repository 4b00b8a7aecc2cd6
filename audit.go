package authsession

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Audit event types.
const (
	AuditSessionInitialized     = "session_initialized"
	AuditSessionStale           = "session_stale"
	AuditSessionLogin           = "session_login"
	AuditSessionLogout          = "session_logout"
	AuditVerificationStarted    = "verification_started"
	AuditVerificationCompleted  = "verification_completed"
	AuditVerificationRedirected = "verification_redirected"
	AuditVerificationClosed     = "verification_closed"
	AuditPasswordLogin          = "password_login"
	AuditPasswordReset          = "password_reset"
)

// AuditEvent is one lifecycle record. Token values are never included.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	AttemptID string            `json:"attempt_id,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink drops every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink hands events to a reader through a buffered channel. Emit
// blocks while the buffer is full unless ctx ends first.
type ChannelSink struct {
	ch chan AuditEvent
}

// NewChannelSink returns a sink buffering up to size events (at least one).
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan AuditEvent, max(size, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case <-ctx.Done():
	case s.ch <- event:
	}
}

// Events is the receive side of the sink.
func (s *ChannelSink) Events() <-chan AuditEvent { return s.ch }

// JSONWriterSink encodes each event as one line of JSON on w. Encoding
// failures are ignored; the sink never reports back to the dispatcher.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriterSink returns a sink writing to w. A nil w discards events.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	_ = s.enc.Encode(event)
	s.mu.Unlock()
}

// SlogSink logs events at info level through a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(ctx context.Context, event AuditEvent) {
	if s.Logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("event", event.EventType),
		slog.Bool("success", event.Success),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.AttemptID != "" {
		attrs = append(attrs, slog.String("attempt_id", event.AttemptID))
	}
	if event.Kind != "" {
		attrs = append(attrs, slog.String("kind", event.Kind))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}
	s.Logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

type auditFields struct {
	userID    string
	attemptID string
	kind      string
	err       error
	metadata  func() map[string]string
}
