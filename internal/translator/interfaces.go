package translator

import (
	"context"

	"github.com/crmbridge/crmbridge-backend/pkg/crm"
	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
	"github.com/crmbridge/crmbridge-backend/pkg/erp"
)

// CRMGateway is the slice of the CRM client the translator needs.
type CRMGateway interface {
	GetDeal(ctx context.Context, dealID string) (*crm.Deal, error)
	GetDealLineItems(ctx context.Context, dealID string) ([]crm.DealLineItem, error)
	GetContact(ctx context.Context, contactID string) (*crm.Contact, error)
	UpdateDealField(ctx context.Context, dealID, field string, value any) bool
	CreateActivity(ctx context.Context, dealID, subject, description string) bool
}

// ERPGateway is the slice of the ERP client the translator needs.
type ERPGateway interface {
	CreateSalesDocument(ctx context.Context, order erp.SalesOrder) (*erp.SalesDocument, error)
	FindCounterparty(ctx context.Context, phoneFragment string) (*erp.Counterparty, bool, error)
	CreateCounterparty(ctx context.Context, name, comment string) (*erp.Counterparty, error)
	FindNomenclature(ctx context.Context, code string) (*erp.Nomenclature, bool, error)
}

// MappingResolver loads CRM-to-ERP product links in bulk.
type MappingResolver interface {
	ResolveCRMProducts(ctx context.Context, crmProductIDs []string) (map[string]models.ProductMapping, error)
}
