package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian/internal/ledger"
)

// ProjectionRebuilder recomputes the denormalized per-account totals from
// the entry log. The cached columns exist for list views only; a rebuild is
// safe to run at any time because the log stays the source of truth.
type ProjectionRebuilder struct {
	repo   *ledger.Repository
	logger *slog.Logger
}

// NewProjectionRebuilder constructs a ProjectionRebuilder.
func NewProjectionRebuilder(repo *ledger.Repository, logger *slog.Logger) *ProjectionRebuilder {
	return &ProjectionRebuilder{repo: repo, logger: logger}
}

// HandleTask processes TaskProjectionRebuild tasks.
func (p *ProjectionRebuilder) HandleTask(ctx context.Context, t *asynq.Task) error {
	var payload ProjectionRebuildPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	ids := payload.AccountIDs
	if len(ids) == 0 {
		accounts, err := p.repo.ListAccounts(ctx)
		if err != nil {
			return err
		}
		ids = make([]int64, 0, len(accounts))
		for _, a := range accounts {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	err := p.repo.WithTx(ctx, func(ctx context.Context, tx ledger.TxRepository) error {
		return tx.RefreshAccountAggregates(ctx, ids)
	})
	if err != nil {
		p.logger.Error("projection rebuild failed", slog.Any("error", err))
		return err
	}
	p.logger.Info("projection rebuilt", slog.Int("accounts", len(ids)))
	return nil
}
