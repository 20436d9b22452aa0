package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// MaskValue replaces redacted values.
const MaskValue = "***REDACTED***"

// sensitiveKeywords mark an attribute key as secret wherever they appear in
// it, so "site_cookie" and "proxy-authorization" are both caught. The bare
// word "key" is left out: "cache_key" and "primary_key" are not secrets.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth",
	"credential", "private", "cookie",
}

// sensitiveKeys are exact keys the keywords miss.
var sensitiveKeys = map[string]bool{
	"x-api-key":  true,
	"api_key":    true,
	"apikey":     true,
	"api-key":    true,
	"session":    true,
	"session_id": true,
	"sessionid":  true,
	"jsessionid": true,
	"sid":        true,
}

// secretValuePatterns match header values and tokens that may show up in
// a log record under an innocent key, for example a site header echoed in
// an error. Content hashes and run IDs do not match any of them.
var secretValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`^(gh[pousr]_|xox[abpr]-|sk_live_)[A-Za-z0-9_-]+$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// SecureHandler is an slog.Handler that masks secrets before passing
// records on. Keys naming a secret and secret-looking values are masked
// whole; URLs, including those inside error messages, keep their host and
// path and lose only userinfo and secret query parameters.
type SecureHandler struct {
	next slog.Handler
}

// NewSecureHandler wraps next. A nil next wraps slog.Default's handler.
func NewSecureHandler(next slog.Handler) *SecureHandler {
	if next == nil {
		next = slog.Default().Handler()
	}
	return &SecureHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SecureHandler{next: h.next.WithAttrs(redactAttrs(attrs))}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{next: h.next.WithGroup(name)}
}

func redactAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = redactAttr(a)
	}
	return out
}

func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redactAttrs(a.Value.Group())...)}
	}
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	var text string
	switch a.Value.Kind() {
	case slog.KindString:
		text = a.Value.String()
		if isSecretValue(text) {
			return slog.String(a.Key, MaskValue)
		}
	case slog.KindAny:
		// Fetch errors embed the requested URL.
		switch v := a.Value.Any().(type) {
		case error:
			text = v.Error()
		case fmt.Stringer:
			text = v.String()
		default:
			return a
		}
	default:
		return a
	}

	if redacted, changed := RedactURLs(text); changed {
		return slog.String(a.Key, redacted)
	}
	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	return sensitiveKeys[lower] || containsSensitiveKeyword(lower)
}

// containsSensitiveKeyword reports whether the lower-cased key contains one
// of sensitiveKeywords.
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

func isSecretValue(value string) bool {
	for _, p := range secretValuePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// NewSecureLogger returns a redacting text logger on w. verbose selects
// Debug level, otherwise only warnings and errors are written.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger is NewSecureLogger with one JSON object per line.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
