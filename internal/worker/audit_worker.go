package worker

import (
	"context"
	"log/slog"
)

type FineAdjustment struct {
	UserID  string
	AdminID string
	Delta   float64
}

// AuditWorker drains fine-adjustment events and writes them to the audit
// log. Purely event-driven; there is no ticker or poller.
type AuditWorker struct {
	Ch     <-chan FineAdjustment
	logger *slog.Logger
}

func NewAuditWorker(ch <-chan FineAdjustment, logger *slog.Logger) *AuditWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditWorker{Ch: ch, logger: logger}
}

func (w *AuditWorker) Run(ctx context.Context) {
	w.logger.Info("audit worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("audit worker stopped")
			return
		case ev := <-w.Ch:
			w.logger.Info("fine adjusted",
				"user_id", ev.UserID,
				"admin_id", ev.AdminID,
				"delta", ev.Delta,
			)
		}
	}
}
