package controllers

import (
	"net/http"

	"github.com/crmbridge/crmbridge-backend/api/responses"
	"github.com/crmbridge/crmbridge-backend/api/validators"
	"github.com/crmbridge/crmbridge-backend/internal/mappings"
	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
)

type registerMappingRequest struct {
	CRMProductID   string `json:"crm_product_id" validate:"required"`
	CRMProductName string `json:"crm_product_name"`
	ERPProductCode string `json:"erp_product_code" validate:"required"`
	ERPProductName string `json:"erp_product_name"`
}

type mappingResponse struct {
	ID             int64  `json:"id"`
	CRMProductID   string `json:"crm_product_id"`
	CRMProductName string `json:"crm_product_name"`
	ERPProductCode string `json:"erp_product_code"`
	ERPProductName string `json:"erp_product_name"`
}

func toMappingResponse(m models.ProductMapping) mappingResponse {
	return mappingResponse{
		ID:             m.ID,
		CRMProductID:   m.CRMProductID,
		CRMProductName: m.CRMProductName,
		ERPProductCode: m.ERPProductCode,
		ERPProductName: m.ERPProductName,
	}
}

// RegisterMapping links a CRM product id to an ERP nomenclature code.
// Duplicate CRM ids are rejected with a conflict.
func RegisterMapping(svc mappings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body registerMappingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		created, err := svc.Register(ctx, mappings.RegisterInput{
			CRMProductID:   body.CRMProductID,
			CRMProductName: body.CRMProductName,
			ERPProductCode: body.ERPProductCode,
			ERPProductName: body.ERPProductName,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toMappingResponse(*created))
	}
}

// ListMappings returns the full mapping table.
func ListMappings(svc mappings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		found, err := svc.List(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]mappingResponse, 0, len(found))
		for _, mapping := range found {
			out = append(out, toMappingResponse(mapping))
		}
		responses.WriteSuccess(w, out)
	}
}
