package reconciler

import (
	"context"

	"gorm.io/gorm"

	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
	"github.com/crmbridge/crmbridge-backend/pkg/erp"
)

// Repository defines persistence operations for stock snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSnapshots(ctx context.Context, snapshots []models.StockSnapshot) error
	LatestForProduct(ctx context.Context, productCode string) (*models.StockSnapshot, error)
}

// InventorySource pulls warehouse balances from the accounting system.
type InventorySource interface {
	GetInventoryBalances(ctx context.Context, warehouseRef string) ([]erp.InventoryBalance, error)
}

// CatalogWriter pushes quantities into the CRM catalog. A push failure is
// reported as false, never as an error.
type CatalogWriter interface {
	UpdateCatalogQuantity(ctx context.Context, productID string, quantity float64) bool
}

// MappingLister loads the full mapping table for reverse lookups.
type MappingLister interface {
	List(ctx context.Context) ([]models.ProductMapping, error)
}
