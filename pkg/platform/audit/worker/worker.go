package worker

import (
	"context"
	"log/slog"

	audit "docverify/pkg/platform/audit"
)

// Worker drains an inbox of audit events into a sink. Sink failures are logged and
// the event dropped; audit delivery never blocks registry operations.
type Worker struct {
	sink   audit.Sink
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(sink audit.Sink, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run processes events until the inbox is closed. Cancelling ctx only aborts the
// in-flight Append; closing the inbox is how callers stop the worker and drain it.
func (w *Worker) Run(ctx context.Context) {
	for event := range w.inbox {
		if err := w.sink.Append(ctx, event); err != nil && w.logger != nil {
			w.logger.ErrorContext(ctx, "audit sink append failed",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
	}
}
