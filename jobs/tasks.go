package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBalanceAudit reconciles stored account balances against the ledger.
	TaskBalanceAudit = "ledger:balance_audit"
)

// BalanceAuditPayload selects the tenant whose accounts are audited.
type BalanceAuditPayload struct {
	TenantID uuid.UUID `json:"tenant_id"`
}

// NewBalanceAuditTask constructs an Asynq task.
func NewBalanceAuditTask(payload BalanceAuditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalanceAudit, data), nil
}

// NewBalanceAuditHandler returns the handler processing TaskBalanceAudit.
// Each account's ledger entries are folded into a recomputed balance and
// compared against the maintained counter; drift is logged, never repaired
// automatically.
func NewBalanceAuditHandler(service *accounts.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload BalanceAuditPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		results, err := service.ReconcileAll(ctx, payload.TenantID)
		if err != nil {
			return err
		}
		drifted := 0
		for _, rec := range results {
			if !rec.InSync() {
				drifted++
				logger.Warn("account balance drift detected",
					slog.String("tenant_id", payload.TenantID.String()),
					slog.Int64("account_id", rec.AccountID),
					slog.String("stored", rec.Stored.String()),
					slog.String("computed", rec.Computed.String()))
			}
		}
		logger.Info("balance audit completed",
			slog.String("tenant_id", payload.TenantID.String()),
			slog.Int("accounts", len(results)),
			slog.Int("drifted", drifted))
		return nil
	}
}
