package logging

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

func NewJSONLogger(service, level string) *slog.Logger {
	return NewJSONLoggerTo(os.Stdout, service, level)
}

// NewJSONLoggerTo writes to w. Stdio transports log to stderr so stdout stays
// reserved for the protocol.
func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redact,
	})
	return slog.New(handler).With("service", service)
}

// redact masks provider keys outright and the password part of
// connection strings such as POSTGRES_DSN.
func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	switch {
	case strings.Contains(key, "api_key"), strings.Contains(key, "token"), strings.Contains(key, "password"):
		if a.Value.String() != "" {
			return slog.String(a.Key, "***")
		}
	case strings.HasSuffix(key, "dsn"), strings.HasSuffix(key, "_url"):
		return slog.String(a.Key, maskURLPassword(a.Value.String()))
	}
	return a
}

func maskURLPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "***")
	return u.String()
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
