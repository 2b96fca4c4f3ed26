// Package logging holds the slog conventions shared across the module.
package logging

import (
	"io"
	"log/slog"
	"path/filepath"
)

// LevelTrace sits below debug and is reserved for per-message traces,
// which get noisy fast on a busy dump.
const LevelTrace = slog.Level(slog.LevelDebug - 1)

// ReplaceAttr drops the timestamp and trims the source file down to its
// base name.
func ReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	// Remove time.
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.Attr{}
	}

	// Remove the directory from the source's filename.
	if a.Key == slog.SourceKey {
		source, ok := a.Value.Any().(*slog.Source)
		if ok {
			source.File = filepath.Base(source.File)
		}
	}

	// Name our custom level instead of printing DEBUG-1.
	if a.Key == slog.LevelKey && len(groups) == 0 {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
			return slog.String(slog.LevelKey, "TRACE")
		}
	}

	return a
}

// NewHandler returns the text handler we use in tests and examples.
func NewHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource:   true,
		Level:       level,
		ReplaceAttr: ReplaceAttr,
	})
}
