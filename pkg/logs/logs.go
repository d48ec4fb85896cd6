// Package logs builds the process slog.Logger. Output can go to stdout, a
// rotated file and Loki at once; key material is masked before any of them
// sees it.
package logs

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Alijeyrad/medvault_backend/config"
)

// New builds the logger described by the logging section. Every record carries
// service, version and env.
func New(cfg *config.Config) *slog.Logger {
	out := cfg.Logging.Output
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Logging.Level),
		ReplaceAttr: redactKeys,
	}

	var handlers []slog.Handler
	if w := localWriter(out); w != nil {
		dev := strings.EqualFold(cfg.Server.Environment, "development")
		local := *opts
		local.AddSource = dev
		if dev && !strings.EqualFold(cfg.Logging.Format, "json") {
			handlers = append(handlers, slog.NewTextHandler(w, &local))
		} else {
			handlers = append(handlers, slog.NewJSONHandler(w, &local))
		}
	}
	if out.Loki.Enabled {
		handlers = append(handlers, slog.NewJSONHandler(newLokiWriter(cfg), opts))
	}

	return slog.New(fanOut(handlers)).With(
		"service", cfg.Observability.ServiceName,
		"version", cfg.Observability.ServiceVersion,
		"env", cfg.Server.Environment,
	)
}

// localWriter combines stdout and the rotated file. Stdout is used whenever
// nothing else is configured so logs are never silently dropped.
func localWriter(out config.OutputConfig) io.Writer {
	var ws []io.Writer
	if out.Stdout || (!out.File.Enabled && !out.Loki.Enabled) {
		ws = append(ws, os.Stdout)
	}
	if f := out.File; f.Enabled {
		ws = append(ws, &lumberjack.Logger{
			Filename:   f.Path,
			MaxSize:    f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAge:     f.MaxAgeDays,
			Compress:   f.Compress,
		})
	}
	switch len(ws) {
	case 0:
		return nil
	case 1:
		return ws[0]
	default:
		return io.MultiWriter(ws...)
	}
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// redactKeys masks attributes that hold key material or credentials.
func redactKeys(_ []string, a slog.Attr) slog.Attr {
	switch strings.ToLower(a.Key) {
	case "key", "encryption_key", "wrapped_key", "master_key", "token", "password":
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}
