package mappings

import (
	"context"

	"gorm.io/gorm"

	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
)

// Repository defines persistence operations for the product mapping table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, mapping *models.ProductMapping) (*models.ProductMapping, error)
	FindByCRMProductID(ctx context.Context, crmProductID string) (*models.ProductMapping, error)
	FindByCRMProductIDs(ctx context.Context, crmProductIDs []string) ([]models.ProductMapping, error)
	FindByERPProductCode(ctx context.Context, erpProductCode string) ([]models.ProductMapping, error)
	List(ctx context.Context) ([]models.ProductMapping, error)
}
