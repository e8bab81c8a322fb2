package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log is the process-wide logger. It discards output until Init runs so
// packages and tests can log unconditionally.
var Log = slog.New(slog.NewTextHandler(io.Discard, nil))

type Options struct {
	File   string // empty logs to stderr
	Level  string
	Format string // "text" or "json"
}

// Init opens the log file and installs Log. The returned closer releases
// the file.
func Init(opts Options) (io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return nil, err
		}
		w, closer = file, file
	}
	Log = New(w, opts.Level, opts.Format)
	Log.Info("logger initialized", "level", ParseLevel(opts.Level).String())
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func New(w io.Writer, level, format string) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
