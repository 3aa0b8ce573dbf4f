package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/crmbridge/crmbridge-backend/internal/audit"
	"github.com/crmbridge/crmbridge-backend/pkg/config"
	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
	"github.com/crmbridge/crmbridge-backend/pkg/metrics"
	"github.com/crmbridge/crmbridge-backend/pkg/notify"
)

// Service reconciles ERP warehouse stock into the CRM catalog.
type Service interface {
	Reconcile(ctx context.Context) (*Summary, error)
}

// Summary is the outcome of one reconciliation run.
type Summary struct {
	Updated   int    `json:"updated"`
	Errors    int    `json:"errors"`
	Unmapped  int    `json:"unmapped"`
	Snapshots int    `json:"snapshots"`
	Status    string `json:"status"`
}

type service struct {
	inventory InventorySource
	catalog   CatalogWriter
	mappings  MappingLister
	repo      Repository
	audit     audit.Service
	notifier  notify.Notifier
	logger    *logger.Logger
	metrics   *metrics.SyncMetrics
	erpCfg    config.ERPConfig
	now       func() time.Time
}

// NewService builds the reconciler.
func NewService(
	inventory InventorySource,
	catalog CatalogWriter,
	mappingLister MappingLister,
	repo Repository,
	auditSvc audit.Service,
	notifier notify.Notifier,
	logg *logger.Logger,
	syncMetrics *metrics.SyncMetrics,
	erpCfg config.ERPConfig,
) Service {
	return &service{
		inventory: inventory,
		catalog:   catalog,
		mappings:  mappingLister,
		repo:      repo,
		audit:     auditSvc,
		notifier:  notifier,
		logger:    logg,
		metrics:   syncMetrics,
		erpCfg:    erpCfg,
		now:       time.Now,
	}
}

// Reconcile pulls every warehouse balance, snapshots all of them, and pushes
// quantities for mapped products into the CRM catalog. A failed push for one
// product never stops the run; the run degrades to partial_success and keeps
// going.
func (s *service) Reconcile(ctx context.Context) (*Summary, error) {
	ctx = s.withSyncLogger(ctx)

	balances, err := s.inventory.GetInventoryBalances(ctx, s.erpCfg.WarehouseRef)
	if err != nil {
		s.audit.Record(ctx, audit.RecordInput{
			SyncType:     models.SyncTypeStockToCRM,
			Direction:    models.DirectionERPToCRM,
			Status:       models.SyncStatusError,
			ErrorMessage: "pulling inventory balances failed: " + err.Error(),
		})
		s.notify(ctx, "Stock sync failed: could not pull inventory balances from accounting")
		if s.logger != nil {
			s.logger.Error(ctx, "pulling inventory balances failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pulling inventory balances")
	}

	snapshotAt := s.now().UTC()
	snapshots := make([]models.StockSnapshot, 0, len(balances))
	for _, balance := range balances {
		snapshots = append(snapshots, models.StockSnapshot{
			ProductCode: balance.Code,
			ProductName: balance.Name,
			Quantity:    balance.Quantity,
			Warehouse:   s.erpCfg.WarehouseRef,
			SnapshotAt:  snapshotAt,
		})
	}
	var snapshotErr error
	if err := s.repo.CreateSnapshots(ctx, snapshots); err != nil {
		// The push is still worth running; snapshots are history, not state.
		// The run still has to own up to the lost history in its summary.
		snapshotErr = err
		s.logWarn(ctx, "writing stock snapshots failed")
	}

	byERPCode, err := s.mappingIndex(ctx)
	if err != nil {
		s.audit.Record(ctx, audit.RecordInput{
			SyncType:     models.SyncTypeStockToCRM,
			Direction:    models.DirectionERPToCRM,
			Status:       models.SyncStatusError,
			ErrorMessage: "loading product mappings failed: " + err.Error(),
		})
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product mappings")
	}

	summary := &Summary{Snapshots: len(snapshots)}
	if snapshotErr != nil {
		summary.Snapshots = 0
	}
	for _, balance := range balances {
		mapped, ok := byERPCode[balance.Code]
		if !ok {
			summary.Unmapped++
			continue
		}
		for _, mapping := range mapped {
			if s.catalog.UpdateCatalogQuantity(ctx, mapping.CRMProductID, balance.Quantity) {
				summary.Updated++
			} else {
				summary.Errors++
			}
		}
	}

	summary.Status = models.SyncStatusSuccess
	if summary.Errors > 0 || snapshotErr != nil {
		summary.Status = models.SyncStatusPartialSuccess
	}

	var auditErrorMessage string
	if snapshotErr != nil {
		auditErrorMessage = "writing stock snapshots failed: " + snapshotErr.Error()
	}
	s.audit.Record(ctx, audit.RecordInput{
		SyncType:     models.SyncTypeStockToCRM,
		Direction:    models.DirectionERPToCRM,
		Status:       summary.Status,
		Response:     summary,
		ErrorMessage: auditErrorMessage,
	})
	if s.metrics != nil {
		s.metrics.AddUpdated(models.SyncTypeStockToCRM, summary.Updated)
		s.metrics.AddFailed(models.SyncTypeStockToCRM, summary.Errors)
	}

	s.notify(ctx, fmt.Sprintf("Stock sync finished: %d updated, %d failed, %d without mapping",
		summary.Updated, summary.Errors, summary.Unmapped))
	s.logInfo(ctx, fmt.Sprintf("stock reconciliation finished: %d updated, %d failed", summary.Updated, summary.Errors))

	return summary, nil
}

func (s *service) mappingIndex(ctx context.Context) (map[string][]models.ProductMapping, error) {
	all, err := s.mappings.List(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string][]models.ProductMapping, len(all))
	for _, mapping := range all {
		index[mapping.ERPProductCode] = append(index[mapping.ERPProductCode], mapping)
	}
	return index, nil
}

func (s *service) notify(ctx context.Context, text string) {
	if s.notifier != nil {
		s.notifier.Send(ctx, text)
	}
}

func (s *service) withSyncLogger(ctx context.Context) context.Context {
	if s.logger == nil {
		return ctx
	}
	return s.logger.WithSyncType(ctx, models.SyncTypeStockToCRM)
}

func (s *service) logInfo(ctx context.Context, msg string) {
	if s.logger != nil {
		s.logger.Info(ctx, msg)
	}
}

func (s *service) logWarn(ctx context.Context, msg string) {
	if s.logger != nil {
		s.logger.Warn(ctx, msg)
	}
}
