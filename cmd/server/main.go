package main

import (
	"log/slog"
	"os"

	"photoflow-web/internal/app"
	"photoflow-web/internal/logger"
)

func main() {
	// Replaced once the configured format and level are known.
	logHandler := logger.NewPrettyHandler(os.Stdout, &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: logger.Redact,
	})
	slog.SetDefault(slog.New(logHandler))

	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
