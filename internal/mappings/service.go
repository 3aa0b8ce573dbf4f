package mappings

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/crmbridge/crmbridge-backend/pkg/db"
	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
)

// Service defines mapping-table operations used by the API and the
// translator.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.ProductMapping, error)
	GetByCRMProductID(ctx context.Context, crmProductID string) (*models.ProductMapping, error)
	ResolveCRMProducts(ctx context.Context, crmProductIDs []string) (map[string]models.ProductMapping, error)
	ListByERPProductCode(ctx context.Context, erpProductCode string) ([]models.ProductMapping, error)
	List(ctx context.Context) ([]models.ProductMapping, error)
}

// RegisterInput carries one new CRM-to-ERP product link.
type RegisterInput struct {
	CRMProductID   string
	CRMProductName string
	ERPProductCode string
	ERPProductName string
}

type service struct {
	repo Repository
}

// NewService builds the mappings service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.ProductMapping, error) {
	crmProductID := strings.TrimSpace(input.CRMProductID)
	erpProductCode := strings.TrimSpace(input.ERPProductCode)
	if crmProductID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "crm_product_id is required")
	}
	if erpProductCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "erp_product_code is required")
	}

	mapping := &models.ProductMapping{
		CRMProductID:   crmProductID,
		CRMProductName: strings.TrimSpace(input.CRMProductName),
		ERPProductCode: erpProductCode,
		ERPProductName: strings.TrimSpace(input.ERPProductName),
	}
	created, err := s.repo.Create(ctx, mapping)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "mapping for this crm product already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating product mapping")
	}
	return created, nil
}

func (s *service) GetByCRMProductID(ctx context.Context, crmProductID string) (*models.ProductMapping, error) {
	mapping, err := s.repo.FindByCRMProductID(ctx, crmProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product mapping not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product mapping")
	}
	return mapping, nil
}

// ResolveCRMProducts loads mappings for the given CRM product ids. Products
// without a mapping are simply absent from the result.
func (s *service) ResolveCRMProducts(ctx context.Context, crmProductIDs []string) (map[string]models.ProductMapping, error) {
	found, err := s.repo.FindByCRMProductIDs(ctx, crmProductIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving product mappings")
	}
	resolved := make(map[string]models.ProductMapping, len(found))
	for _, mapping := range found {
		resolved[mapping.CRMProductID] = mapping
	}
	return resolved, nil
}

func (s *service) ListByERPProductCode(ctx context.Context, erpProductCode string) ([]models.ProductMapping, error) {
	found, err := s.repo.FindByERPProductCode(ctx, erpProductCode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing product mappings by code")
	}
	return found, nil
}

func (s *service) List(ctx context.Context) ([]models.ProductMapping, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing product mappings")
	}
	return all, nil
}
