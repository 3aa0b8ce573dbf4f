package reconciler

import (
	"context"

	"gorm.io/gorm"

	"github.com/crmbridge/crmbridge-backend/internal/repo"
	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
)

const snapshotBatchSize = 200

type repository struct {
	base repo.Base
}

// NewRepository builds a snapshot repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) CreateSnapshots(ctx context.Context, snapshots []models.StockSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return r.base.DB(ctx).CreateInBatches(&snapshots, snapshotBatchSize).Error
}

func (r *repository) LatestForProduct(ctx context.Context, productCode string) (*models.StockSnapshot, error) {
	var snapshot models.StockSnapshot
	err := r.base.DB(ctx).
		Where("product_code = ?", productCode).
		Order("snapshot_at DESC, id DESC").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
