package analytics

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Envelope is what we record with every event.
type Envelope struct {
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
}

// FromRequest extracts event envelope fields from request headers.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "web", "tui", "ios", "android":
	default:
		platform = "unknown"
	}

	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	}

	return Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:     platform,
		AppVersion:   strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale: locale,
	}
}

// SourceEventKeyFromRequest returns the client-provided idempotency key, if any.
func SourceEventKeyFromRequest(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Recorder writes todo lifecycle events to a structured log.
// Callers pass sanitized props; raw todo text is never recorded.
type Recorder struct {
	logger *slog.Logger
	now    func() time.Time
}

func New(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger.With("component", "analytics"), now: time.Now}
}

// Log records one event. A nil Recorder drops it.
func (rec *Recorder) Log(ctx context.Context, env Envelope, eventName string, props map[string]any, sourceEventKey string) {
	if rec == nil || eventName == "" {
		return
	}

	attrs := []slog.Attr{
		slog.String("event", eventName),
		slog.Time("event_time", rec.now().UTC()),
		slog.String("platform", env.Platform),
	}
	if env.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", env.SessionID))
	}
	if env.AppVersion != "" {
		attrs = append(attrs, slog.String("app_version", env.AppVersion))
	}
	if env.DeviceLocale != "" {
		attrs = append(attrs, slog.String("device_locale", env.DeviceLocale))
	}
	if sourceEventKey != "" {
		attrs = append(attrs, slog.String("source_event_key", sourceEventKey))
	}
	if len(props) > 0 {
		group := make([]any, 0, len(props)*2)
		for k, v := range props {
			group = append(group, k, v)
		}
		attrs = append(attrs, slog.Group("props", group...))
	}

	rec.logger.LogAttrs(ctx, slog.LevelInfo, "event", attrs...)
}

// Request is a shorthand for Log with the envelope and key taken from r.
func (rec *Recorder) Request(r *http.Request, eventName string, props map[string]any) {
	rec.Log(r.Context(), FromRequest(r), eventName, props, SourceEventKeyFromRequest(r))
}
