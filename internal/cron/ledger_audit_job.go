package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/promoredeem/internal/ledger"
	"github.com/angelmondragon/promoredeem/pkg/logger"
)

const defaultAuditLimit = 500

// LedgerAuditJobParams configures the points ledger consistency check.
type LedgerAuditJobParams struct {
	Logger     *logger.Logger
	Repository ledgerAuditRepo
	Limit      int
}

type ledgerAuditRepo interface {
	FindDrift(ctx context.Context, limit int) ([]ledger.BalanceDrift, error)
}

func NewLedgerAuditJob(params LedgerAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	return &ledgerAuditJob{
		logg:  params.Logger,
		repo:  params.Repository,
		limit: limit,
	}, nil
}

type ledgerAuditJob struct {
	logg  *logger.Logger
	repo  ledgerAuditRepo
	limit int
}

func (j *ledgerAuditJob) Name() string { return "ledger-audit" }

// Run only reports drift. Balances are never modified here.
func (j *ledgerAuditJob) Run(ctx context.Context) error {
	drifts, err := j.repo.FindDrift(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("ledger audit: %w", err)
	}

	var errs error
	for _, d := range drifts {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"user_id":     d.UserID,
			"campaign_id": d.CampaignID,
			"balance":     d.Balance,
			"earned":      d.Earned,
			"used":        d.Used,
			"history_sum": d.HistorySum,
		})
		j.logg.Warn(logCtx, "points balance drift detected")
		errs = multierr.Append(errs, fmt.Errorf("user %d campaign %d: balance %d, history %d, earned-used %d",
			d.UserID, d.CampaignID, d.Balance, d.HistorySum, d.Earned-d.Used))
	}

	j.logg.Info(j.logg.WithField(ctx, "drift_count", len(drifts)), "ledger audit complete")
	return errs
}
