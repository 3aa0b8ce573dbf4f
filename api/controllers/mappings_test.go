package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmbridge/crmbridge-backend/internal/mappings"
	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
)

type stubMappingsService struct {
	registered  []mappings.RegisterInput
	registerErr error
	listed      []models.ProductMapping
	listErr     error
}

func (s *stubMappingsService) Register(_ context.Context, input mappings.RegisterInput) (*models.ProductMapping, error) {
	s.registered = append(s.registered, input)
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &models.ProductMapping{
		ID:             1,
		CRMProductID:   input.CRMProductID,
		CRMProductName: input.CRMProductName,
		ERPProductCode: input.ERPProductCode,
		ERPProductName: input.ERPProductName,
	}, nil
}

func (s *stubMappingsService) GetByCRMProductID(context.Context, string) (*models.ProductMapping, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product mapping not found")
}

func (s *stubMappingsService) ResolveCRMProducts(context.Context, []string) (map[string]models.ProductMapping, error) {
	return nil, nil
}

func (s *stubMappingsService) ListByERPProductCode(context.Context, string) ([]models.ProductMapping, error) {
	return nil, nil
}

func (s *stubMappingsService) List(context.Context) ([]models.ProductMapping, error) {
	return s.listed, s.listErr
}

func TestRegisterMappingCreated(t *testing.T) {
	svc := &stubMappingsService{}
	body := `{"crm_product_id":"101","crm_product_name":"Widget","erp_product_code":"NOM-101","erp_product_name":"Widget ERP"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mappings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	RegisterMapping(svc, nil)(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.registered, 1)
	assert.Equal(t, "101", svc.registered[0].CRMProductID)
	assert.Equal(t, "NOM-101", svc.registered[0].ERPProductCode)

	var envelope struct {
		Data mappingResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, int64(1), envelope.Data.ID)
	assert.Equal(t, "101", envelope.Data.CRMProductID)
}

func TestRegisterMappingMissingFields(t *testing.T) {
	svc := &stubMappingsService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mappings", strings.NewReader(`{"crm_product_name":"Widget"}`))
	rec := httptest.NewRecorder()
	RegisterMapping(svc, nil)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.registered)
}

func TestRegisterMappingDuplicateConflict(t *testing.T) {
	svc := &stubMappingsService{
		registerErr: pkgerrors.New(pkgerrors.CodeConflict, "mapping for this crm product already exists"),
	}
	body := `{"crm_product_id":"101","erp_product_code":"NOM-101"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mappings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	RegisterMapping(svc, nil)(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestListMappings(t *testing.T) {
	svc := &stubMappingsService{listed: []models.ProductMapping{
		{ID: 1, CRMProductID: "101", ERPProductCode: "NOM-101"},
		{ID: 2, CRMProductID: "102", ERPProductCode: "NOM-102"},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mappings", nil)
	rec := httptest.NewRecorder()
	ListMappings(svc, nil)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []mappingResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, "102", envelope.Data[1].CRMProductID)
}

func TestListMappingsEmptyIsArray(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/mappings", nil)
	rec := httptest.NewRecorder()
	ListMappings(&stubMappingsService{}, nil)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}
