package translator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmbridge/crmbridge-backend/internal/audit"
	"github.com/crmbridge/crmbridge-backend/pkg/config"
	"github.com/crmbridge/crmbridge-backend/pkg/crm"
	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
	"github.com/crmbridge/crmbridge-backend/pkg/erp"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
)

type stubCRM struct {
	deal          *crm.Deal
	dealErr       error
	items         []crm.DealLineItem
	itemsErr      error
	contact       *crm.Contact
	contactErr    error
	contactCalls  int
	updatedFields map[string]any
	activities    []string
}

func (s *stubCRM) GetDeal(_ context.Context, _ string) (*crm.Deal, error) {
	return s.deal, s.dealErr
}

func (s *stubCRM) GetDealLineItems(_ context.Context, _ string) ([]crm.DealLineItem, error) {
	return s.items, s.itemsErr
}

func (s *stubCRM) GetContact(_ context.Context, _ string) (*crm.Contact, error) {
	s.contactCalls++
	return s.contact, s.contactErr
}

func (s *stubCRM) UpdateDealField(_ context.Context, _, field string, value any) bool {
	if s.updatedFields == nil {
		s.updatedFields = map[string]any{}
	}
	s.updatedFields[field] = value
	return true
}

func (s *stubCRM) CreateActivity(_ context.Context, _, subject, _ string) bool {
	s.activities = append(s.activities, subject)
	return true
}

type stubERP struct {
	findCounterpartyCalls int
	counterparty          *erp.Counterparty
	counterpartyFound     bool
	counterpartyErr       error

	createCounterpartyCalls int
	createdCounterparty     *erp.Counterparty
	createCounterpartyErr   error
	createdComment          string

	nomenclature map[string]*erp.Nomenclature

	createDocCalls int
	createDocErr   error
	lastOrder      erp.SalesOrder
}

func (s *stubERP) CreateSalesDocument(_ context.Context, order erp.SalesOrder) (*erp.SalesDocument, error) {
	s.createDocCalls++
	s.lastOrder = order
	if s.createDocErr != nil {
		return nil, s.createDocErr
	}
	return &erp.SalesDocument{Ref: "doc-ref", Number: "CRM-000042"}, nil
}

func (s *stubERP) FindCounterparty(_ context.Context, _ string) (*erp.Counterparty, bool, error) {
	s.findCounterpartyCalls++
	return s.counterparty, s.counterpartyFound, s.counterpartyErr
}

func (s *stubERP) CreateCounterparty(_ context.Context, _, comment string) (*erp.Counterparty, error) {
	s.createCounterpartyCalls++
	s.createdComment = comment
	return s.createdCounterparty, s.createCounterpartyErr
}

func (s *stubERP) FindNomenclature(_ context.Context, code string) (*erp.Nomenclature, bool, error) {
	nom, ok := s.nomenclature[code]
	return nom, ok, nil
}

type stubMappings struct {
	calls    int
	resolved map[string]models.ProductMapping
	err      error
}

func (s *stubMappings) ResolveCRMProducts(_ context.Context, _ []string) (map[string]models.ProductMapping, error) {
	s.calls++
	return s.resolved, s.err
}

type recordingAudit struct {
	records []audit.RecordInput
}

func (r *recordingAudit) Record(_ context.Context, input audit.RecordInput) *models.SyncLogEntry {
	r.records = append(r.records, input)
	return &models.SyncLogEntry{SyncType: input.SyncType, Status: input.Status}
}

func (r *recordingAudit) LastForEntity(_ context.Context, _, _ string) (*models.SyncLogEntry, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no sync log entry for entity")
}

func (r *recordingAudit) List(_ context.Context, _ audit.ListFilter) ([]models.SyncLogEntry, error) {
	return nil, nil
}

func (r *recordingAudit) ActivityDigest(_ context.Context, _ int) (string, error) {
	return "", nil
}

func dealWithFields(t *testing.T, fields map[string]any) *crm.Deal {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	var deal crm.Deal
	require.NoError(t, json.Unmarshal(raw, &deal))
	return &deal
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
}

func newTranslator(crmStub *stubCRM, erpStub *stubERP, mappingsStub *stubMappings, auditStub *recordingAudit) Service {
	svc := NewService(crmStub, erpStub, mappingsStub, auditStub, nil, nil, nil,
		config.CRMConfig{
			OrderField:    "UF_ERP_ORDER_ID",
			PaymentField:  "UF_CHANNEL_PAYMENT",
			PaymentMarker: "kaspi",
		},
		config.ERPConfig{
			OrganizationRef:        "org-ref",
			WarehouseRef:           "wh-ref",
			CurrencyRef:            "kzt-ref",
			DefaultCounterpartyRef: "default-cp-ref",
			DefaultTaxRateRef:      "vat12-ref",
		},
	)
	svc.(*service).now = fixedClock
	return svc
}

func qualifiedDeal(t *testing.T) *crm.Deal {
	return dealWithFields(t, map[string]any{
		"ID":                 "101",
		"TITLE":              "Wholesale order",
		"CONTACT_ID":         "55",
		"UF_CHANNEL_PAYMENT": "kaspi",
	})
}

func TestTranslateSubmitsMappedLinesOnly(t *testing.T) {
	crmStub := &stubCRM{
		deal: qualifiedDeal(t),
		items: []crm.DealLineItem{
			{ProductID: "42", ProductName: "Widget", Quantity: 2, Price: 560},
			{ProductID: "43", ProductName: "Unmapped", Quantity: 1, Price: 100},
		},
		contact: &crm.Contact{Name: "Aigerim", Phones: []string{"+7 701 111 22 33"}},
	}
	erpStub := &stubERP{
		counterparty:      &erp.Counterparty{Ref: "cp-ref"},
		counterpartyFound: true,
		nomenclature: map[string]*erp.Nomenclature{
			"SKU-001": {Ref: "nom-ref", Code: "SKU-001"},
		},
	}
	mappingsStub := &stubMappings{resolved: map[string]models.ProductMapping{
		"42": {CRMProductID: "42", ERPProductCode: "SKU-001"},
	}}
	auditStub := &recordingAudit{}

	result, err := newTranslator(crmStub, erpStub, mappingsStub, auditStub).
		TranslateAndSubmit(context.Background(), "101")
	require.NoError(t, err)

	assert.Equal(t, "CRM-000042", result.DocumentNumber)
	assert.Equal(t, models.SyncStatusPartialSuccess, result.Status)
	require.Len(t, result.LineIssues, 1)
	assert.Equal(t, "43", result.LineIssues[0].CRMProductID)

	require.Equal(t, 1, erpStub.createDocCalls)
	order := erpStub.lastOrder
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "nom-ref", order.Lines[0].NomenclatureRef)
	assert.InDelta(t, 1120.0, order.Lines[0].Amount, 0.0001)
	assert.InDelta(t, 120.0, order.Lines[0].TaxAmount, 0.0001)
	assert.Equal(t, "cp-ref", order.CounterpartyRef)
	assert.Equal(t, "CRM deal 101: Wholesale order | customer: Aigerim, +7 701 111 22 33", order.Comment)

	require.Len(t, auditStub.records, 1)
	assert.Equal(t, models.SyncStatusPartialSuccess, auditStub.records[0].Status)
	assert.Equal(t, "101", auditStub.records[0].EntityID)

	assert.Equal(t, "CRM-000042", crmStub.updatedFields["UF_ERP_ORDER_ID"])
	assert.Len(t, crmStub.activities, 1)
}

func TestTranslateOrderCarriesDealTotal(t *testing.T) {
	crmStub := &stubCRM{
		deal: dealWithFields(t, map[string]any{
			"ID":                 "101",
			"TITLE":              "Wholesale order",
			"CONTACT_ID":         "55",
			"OPPORTUNITY":        "2000",
			"UF_CHANNEL_PAYMENT": "kaspi",
		}),
		items: []crm.DealLineItem{
			{ProductID: "42", Quantity: 2, Price: 560},
		},
		contact: &crm.Contact{Name: "Aigerim", Phones: []string{"+7 701 111 22 33"}},
	}
	erpStub := &stubERP{
		counterparty:      &erp.Counterparty{Ref: "cp-ref"},
		counterpartyFound: true,
		nomenclature: map[string]*erp.Nomenclature{
			"SKU-001": {Ref: "nom-ref", Code: "SKU-001"},
		},
	}
	mappingsStub := &stubMappings{resolved: map[string]models.ProductMapping{
		"42": {CRMProductID: "42", ERPProductCode: "SKU-001"},
	}}

	_, err := newTranslator(crmStub, erpStub, mappingsStub, &recordingAudit{}).
		TranslateAndSubmit(context.Background(), "101")
	require.NoError(t, err)

	// The document total is the deal's declared amount, not the line sum:
	// they diverge when the deal carries rows the mapping table drops.
	assert.InDelta(t, 2000.0, erpStub.lastOrder.Total, 0.0001)
	require.Len(t, erpStub.lastOrder.Lines, 1)
	assert.InDelta(t, 1120.0, erpStub.lastOrder.Lines[0].Amount, 0.0001)
}

func TestTranslateUsesNomenclatureTaxRateWithDefaultFallback(t *testing.T) {
	crmStub := &stubCRM{
		deal: qualifiedDeal(t),
		items: []crm.DealLineItem{
			{ProductID: "42", Quantity: 1, Price: 500},
			{ProductID: "43", Quantity: 1, Price: 300},
		},
		contact: &crm.Contact{Name: "Aigerim", Phones: []string{"+7 701 111 22 33"}},
	}
	erpStub := &stubERP{
		counterparty:      &erp.Counterparty{Ref: "cp-ref"},
		counterpartyFound: true,
		nomenclature: map[string]*erp.Nomenclature{
			"SKU-001": {Ref: "nom-1", Code: "SKU-001", TaxRateRef: "vat0-ref"},
			"SKU-002": {Ref: "nom-2", Code: "SKU-002"},
		},
	}
	mappingsStub := &stubMappings{resolved: map[string]models.ProductMapping{
		"42": {CRMProductID: "42", ERPProductCode: "SKU-001"},
		"43": {CRMProductID: "43", ERPProductCode: "SKU-002"},
	}}

	_, err := newTranslator(crmStub, erpStub, mappingsStub, &recordingAudit{}).
		TranslateAndSubmit(context.Background(), "101")
	require.NoError(t, err)

	require.Len(t, erpStub.lastOrder.Lines, 2)
	assert.Equal(t, "vat0-ref", erpStub.lastOrder.Lines[0].TaxRateRef)
	assert.Equal(t, "vat12-ref", erpStub.lastOrder.Lines[1].TaxRateRef)
}

func TestTranslateCommentNamesCustomerEvenOnDefaultCounterparty(t *testing.T) {
	crmStub := &stubCRM{
		deal: qualifiedDeal(t),
		items: []crm.DealLineItem{
			{ProductID: "42", Quantity: 1, Price: 1120},
		},
		contact: &crm.Contact{Name: "Aigerim", LastName: "Bekova", Phones: []string{"911"}},
	}
	erpStub := &stubERP{
		nomenclature: map[string]*erp.Nomenclature{
			"SKU-001": {Ref: "nom-ref", Code: "SKU-001"},
		},
	}
	mappingsStub := &stubMappings{resolved: map[string]models.ProductMapping{
		"42": {CRMProductID: "42", ERPProductCode: "SKU-001"},
	}}

	_, err := newTranslator(crmStub, erpStub, mappingsStub, &recordingAudit{}).
		TranslateAndSubmit(context.Background(), "101")
	require.NoError(t, err)

	// A phone too short to search still identifies the customer on the
	// document even though the card falls back to the default.
	assert.Equal(t, "default-cp-ref", erpStub.lastOrder.CounterpartyRef)
	assert.Contains(t, erpStub.lastOrder.Comment, "CRM deal 101")
	assert.Contains(t, erpStub.lastOrder.Comment, "Aigerim Bekova, 911")
}

func TestTranslateZeroMappedProductsNeverTouchesERP(t *testing.T) {
	crmStub := &stubCRM{
		deal: qualifiedDeal(t),
		items: []crm.DealLineItem{
			{ProductID: "43", ProductName: "Unmapped", Quantity: 1, Price: 100},
		},
		contact: &crm.Contact{Phones: []string{"+7 701 111 22 33"}},
	}
	erpStub := &stubERP{}
	auditStub := &recordingAudit{}

	_, err := newTranslator(crmStub, erpStub, &stubMappings{resolved: nil}, auditStub).
		TranslateAndSubmit(context.Background(), "101")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	assert.Zero(t, erpStub.findCounterpartyCalls)
	assert.Zero(t, erpStub.createCounterpartyCalls)
	assert.Zero(t, erpStub.createDocCalls)
	assert.Zero(t, crmStub.contactCalls)

	require.Len(t, auditStub.records, 1)
	assert.Equal(t, models.SyncStatusError, auditStub.records[0].Status)
}

func TestTranslateShortPhoneUsesDefaultCounterpartyWithoutSearch(t *testing.T) {
	crmStub := &stubCRM{
		deal: qualifiedDeal(t),
		items: []crm.DealLineItem{
			{ProductID: "42", Quantity: 1, Price: 1120},
		},
		contact: &crm.Contact{Name: "Aigerim", Phones: []string{"911"}},
	}
	erpStub := &stubERP{
		nomenclature: map[string]*erp.Nomenclature{
			"SKU-001": {Ref: "nom-ref", Code: "SKU-001"},
		},
	}
	mappingsStub := &stubMappings{resolved: map[string]models.ProductMapping{
		"42": {CRMProductID: "42", ERPProductCode: "SKU-001"},
	}}

	result, err := newTranslator(crmStub, erpStub, mappingsStub, &recordingAudit{}).
		TranslateAndSubmit(context.Background(), "101")
	require.NoError(t, err)

	assert.Zero(t, erpStub.findCounterpartyCalls)
	assert.Zero(t, erpStub.createCounterpartyCalls)
	assert.Equal(t, "default-cp-ref", erpStub.lastOrder.CounterpartyRef)
	assert.Equal(t, models.SyncStatusSuccess, result.Status)
}

func TestTranslateCreatesCounterpartyOnMiss(t *testing.T) {
	crmStub := &stubCRM{
		deal: qualifiedDeal(t),
		items: []crm.DealLineItem{
			{ProductID: "42", Quantity: 1, Price: 1120},
		},
		contact: &crm.Contact{Name: "Aigerim", LastName: "Bekova", Phones: []string{"+7 701 111 22 33"}},
	}
	erpStub := &stubERP{
		counterpartyFound:   false,
		createdCounterparty: &erp.Counterparty{Ref: "new-cp-ref"},
		nomenclature: map[string]*erp.Nomenclature{
			"SKU-001": {Ref: "nom-ref", Code: "SKU-001"},
		},
	}
	mappingsStub := &stubMappings{resolved: map[string]models.ProductMapping{
		"42": {CRMProductID: "42", ERPProductCode: "SKU-001"},
	}}

	_, err := newTranslator(crmStub, erpStub, mappingsStub, &recordingAudit{}).
		TranslateAndSubmit(context.Background(), "101")
	require.NoError(t, err)

	assert.Equal(t, 1, erpStub.createCounterpartyCalls)
	assert.Equal(t, "phone: +7 701 111 22 33 | created from CRM", erpStub.createdComment)
	assert.Equal(t, "new-cp-ref", erpStub.lastOrder.CounterpartyRef)
}

func TestTranslateDegradesToDefaultWhenCounterpartyCreateFails(t *testing.T) {
	crmStub := &stubCRM{
		deal: qualifiedDeal(t),
		items: []crm.DealLineItem{
			{ProductID: "42", Quantity: 1, Price: 1120},
		},
		contact: &crm.Contact{Name: "Aigerim", Phones: []string{"+7 701 111 22 33"}},
	}
	erpStub := &stubERP{
		counterpartyFound:     false,
		createCounterpartyErr: errors.New("erp rejected card"),
		nomenclature: map[string]*erp.Nomenclature{
			"SKU-001": {Ref: "nom-ref", Code: "SKU-001"},
		},
	}
	mappingsStub := &stubMappings{resolved: map[string]models.ProductMapping{
		"42": {CRMProductID: "42", ERPProductCode: "SKU-001"},
	}}

	result, err := newTranslator(crmStub, erpStub, mappingsStub, &recordingAudit{}).
		TranslateAndSubmit(context.Background(), "101")
	require.NoError(t, err)

	assert.Equal(t, "default-cp-ref", erpStub.lastOrder.CounterpartyRef)
	assert.Equal(t, models.SyncStatusSuccess, result.Status)
}

func TestTranslateSkipsUnqualifiedPaymentChannel(t *testing.T) {
	crmStub := &stubCRM{
		deal: dealWithFields(t, map[string]any{
			"ID":                 "101",
			"UF_CHANNEL_PAYMENT": "cash",
		}),
	}
	erpStub := &stubERP{}

	result, err := newTranslator(crmStub, erpStub, &stubMappings{}, &recordingAudit{}).
		TranslateAndSubmit(context.Background(), "101")
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.NotEmpty(t, result.SkipReason)
	assert.Zero(t, erpStub.createDocCalls)
}

func TestTranslateReplayCreatesDuplicateDocument(t *testing.T) {
	crmStub := &stubCRM{
		deal: qualifiedDeal(t),
		items: []crm.DealLineItem{
			{ProductID: "42", Quantity: 1, Price: 1120},
		},
		contact: &crm.Contact{Phones: []string{"+7 701 111 22 33"}},
	}
	erpStub := &stubERP{
		counterparty:      &erp.Counterparty{Ref: "cp-ref"},
		counterpartyFound: true,
		nomenclature: map[string]*erp.Nomenclature{
			"SKU-001": {Ref: "nom-ref", Code: "SKU-001"},
		},
	}
	mappingsStub := &stubMappings{resolved: map[string]models.ProductMapping{
		"42": {CRMProductID: "42", ERPProductCode: "SKU-001"},
	}}
	auditStub := &recordingAudit{}
	svc := newTranslator(crmStub, erpStub, mappingsStub, auditStub)

	_, err := svc.TranslateAndSubmit(context.Background(), "101")
	require.NoError(t, err)
	_, err = svc.TranslateAndSubmit(context.Background(), "101")
	require.NoError(t, err)

	// No dedup on replay: the same deal yields two documents and two audit
	// rows.
	assert.Equal(t, 2, erpStub.createDocCalls)
	assert.Len(t, auditStub.records, 2)
}

func TestTranslateERPFailureRecordsErrorEntry(t *testing.T) {
	crmStub := &stubCRM{
		deal: qualifiedDeal(t),
		items: []crm.DealLineItem{
			{ProductID: "42", Quantity: 1, Price: 1120},
		},
		contact: &crm.Contact{Phones: []string{"+7 701 111 22 33"}},
	}
	erpStub := &stubERP{
		counterparty:      &erp.Counterparty{Ref: "cp-ref"},
		counterpartyFound: true,
		nomenclature: map[string]*erp.Nomenclature{
			"SKU-001": {Ref: "nom-ref", Code: "SKU-001"},
		},
		createDocErr: errors.New("erp unreachable"),
	}
	mappingsStub := &stubMappings{resolved: map[string]models.ProductMapping{
		"42": {CRMProductID: "42", ERPProductCode: "SKU-001"},
	}}
	auditStub := &recordingAudit{}

	_, err := newTranslator(crmStub, erpStub, mappingsStub, auditStub).
		TranslateAndSubmit(context.Background(), "101")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	require.Len(t, auditStub.records, 1)
	assert.Equal(t, models.SyncStatusError, auditStub.records[0].Status)
	assert.Contains(t, auditStub.records[0].ErrorMessage, "erp unreachable")
}
