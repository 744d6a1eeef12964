package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// app carries the handlers that need wiring beyond the fixed health payload.
type app struct {
	logger *slog.Logger
	check  func(ctx context.Context)
}

// handlePoll triggers one feed pass across all configured sources, for manual
// or external scheduling on top of the built-in timers.
func (a *app) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a.logger.Info("poll endpoint triggered")
	a.check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"completed"}`); err != nil {
		a.logger.Warn("failed to write response", "error", err)
	}
}
