package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.uber.org/zap/zapcore"
)

const (
	BackendSlog = "slog"
	BackendZap  = "zap"

	FormatJSON = "json"
	FormatText = "text"
)

// New builds the logger selected by backend ("slog" or "zap") at the given
// level ("debug", "info", "warn", "error") and format ("json" or "text").
func New(w io.Writer, backend, level, format string) (Logger, error) {
	lvl := strings.ToLower(level)
	switch strings.ToLower(backend) {
	case "", BackendSlog:
		var l slog.Level
		if err := l.UnmarshalText([]byte(orDefault(lvl))); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		return newSlog(w, l, format), nil
	case BackendZap:
		l, err := zapcore.ParseLevel(orDefault(lvl))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		return newZap(w, l, format), nil
	}
	return nil, fmt.Errorf("unknown log backend %q", backend)
}

func orDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}
