package mappings

import (
	"context"

	"gorm.io/gorm"

	"github.com/crmbridge/crmbridge-backend/internal/repo"
	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
)

type repository struct {
	base repo.Base
}

// NewRepository builds a mappings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, mapping *models.ProductMapping) (*models.ProductMapping, error) {
	if err := r.base.DB(ctx).Create(mapping).Error; err != nil {
		return nil, err
	}
	return mapping, nil
}

func (r *repository) FindByCRMProductID(ctx context.Context, crmProductID string) (*models.ProductMapping, error) {
	var mapping models.ProductMapping
	err := r.base.DB(ctx).
		Where("crm_product_id = ?", crmProductID).
		First(&mapping).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *repository) FindByCRMProductIDs(ctx context.Context, crmProductIDs []string) ([]models.ProductMapping, error) {
	if len(crmProductIDs) == 0 {
		return nil, nil
	}
	var found []models.ProductMapping
	err := r.base.DB(ctx).
		Where("crm_product_id IN ?", crmProductIDs).
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *repository) FindByERPProductCode(ctx context.Context, erpProductCode string) ([]models.ProductMapping, error) {
	var found []models.ProductMapping
	err := r.base.DB(ctx).
		Where("erp_product_code = ?", erpProductCode).
		Order("crm_product_id ASC").
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *repository) List(ctx context.Context) ([]models.ProductMapping, error) {
	var all []models.ProductMapping
	err := r.base.DB(ctx).
		Order("crm_product_id ASC").
		Find(&all).Error
	if err != nil {
		return nil, err
	}
	return all, nil
}
