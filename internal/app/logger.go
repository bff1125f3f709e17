package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production and LOG_FORMAT=json get
// structured JSON output; everything else gets text with source locations
// for local debugging.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	}
	return slog.New(handler).With(slog.String("service", "gatehouse"))
}
