// Package logging wraps zerolog into named channels (access /
// security / render), so call sites read the same way regardless of
// the underlying sink.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger groups the base structured logger plus its named channels.
type Logger struct {
	Base     zerolog.Logger
	Access   zerolog.Logger
	Security zerolog.Logger
	Render   zerolog.Logger
}

// New builds a Logger writing JSON to stdout (console-pretty when
// pretty is true, for local development).
func New(pretty bool) *Logger {
	var base zerolog.Logger
	if pretty {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	} else {
		base = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	return &Logger{
		Base:     base,
		Access:   base.With().Str("channel", "access").Logger(),
		Security: base.With().Str("channel", "security").Logger(),
		Render:   base.With().Str("channel", "render").Logger(),
	}
}

// AccessEvent logs one proxied/rendered HTTP request.
func (l *Logger) AccessEvent(method, path, remoteAddr string, status int, duration time.Duration, cacheStatus string) {
	l.Access.Info().
		Str("method", method).
		Str("path", path).
		Str("remote_addr", remoteAddr).
		Int("status", status).
		Dur("duration", duration).
		Str("cache_status", cacheStatus).
		Msg("request")
}

// SecurityEvent logs a blocked or rate-limited request.
func (l *Logger) SecurityEvent(event, remoteAddr, reason string) {
	l.Security.Warn().
		Str("event", event).
		Str("remote_addr", remoteAddr).
		Str("reason", reason).
		Msg("security")
}

// RenderEvent logs one render job outcome.
func (l *Logger) RenderEvent(url string, durationMS int64, status int, blocked, allowed int, err error) {
	ev := l.Render.Info()
	if err != nil {
		ev = l.Render.Warn().Err(err)
	}
	ev.Str("url", url).
		Int64("duration_ms", durationMS).
		Int("status", status).
		Int("blocked", blocked).
		Int("allowed", allowed).
		Msg("render")
}
