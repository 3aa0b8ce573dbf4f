package cron

import (
	"context"
	"fmt"

	"github.com/crmbridge/crmbridge-backend/internal/reconciler"
)

// StockSyncJob runs the ERP-to-CRM stock reconciliation.
type StockSyncJob struct {
	reconciler reconciler.Service
}

// NewStockSyncJob builds the scheduled reconciliation job.
func NewStockSyncJob(svc reconciler.Service) (*StockSyncJob, error) {
	if svc == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &StockSyncJob{reconciler: svc}, nil
}

func (j *StockSyncJob) Name() string { return "stock_sync" }

func (j *StockSyncJob) Run(ctx context.Context) error {
	_, err := j.reconciler.Reconcile(ctx)
	return err
}
