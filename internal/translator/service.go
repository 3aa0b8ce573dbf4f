package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crmbridge/crmbridge-backend/internal/audit"
	"github.com/crmbridge/crmbridge-backend/pkg/config"
	"github.com/crmbridge/crmbridge-backend/pkg/crm"
	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
	"github.com/crmbridge/crmbridge-backend/pkg/erp"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
	"github.com/crmbridge/crmbridge-backend/pkg/metrics"
	"github.com/crmbridge/crmbridge-backend/pkg/notify"
)

// Service turns CRM deals into ERP sales documents.
type Service interface {
	TranslateAndSubmit(ctx context.Context, dealID string) (*Result, error)
}

// Result describes the outcome of one deal translation.
type Result struct {
	DealID         string      `json:"deal_id"`
	Skipped        bool        `json:"skipped"`
	SkipReason     string      `json:"skip_reason,omitempty"`
	DocumentRef    string      `json:"document_ref,omitempty"`
	DocumentNumber string      `json:"document_number,omitempty"`
	Status         string      `json:"status,omitempty"`
	LineIssues     []LineIssue `json:"line_issues,omitempty"`
}

// LineIssue is one product row that could not be carried onto the document.
type LineIssue struct {
	CRMProductID string `json:"crm_product_id"`
	ProductName  string `json:"product_name,omitempty"`
	Reason       string `json:"reason"`
}

type service struct {
	crm      CRMGateway
	erp      ERPGateway
	mappings MappingResolver
	audit    audit.Service
	notifier notify.Notifier
	logger   *logger.Logger
	metrics  *metrics.SyncMetrics
	crmCfg   config.CRMConfig
	erpCfg   config.ERPConfig
	now      func() time.Time
}

// NewService builds the translator.
func NewService(
	crmGateway CRMGateway,
	erpGateway ERPGateway,
	mappingResolver MappingResolver,
	auditSvc audit.Service,
	notifier notify.Notifier,
	logg *logger.Logger,
	syncMetrics *metrics.SyncMetrics,
	crmCfg config.CRMConfig,
	erpCfg config.ERPConfig,
) Service {
	return &service{
		crm:      crmGateway,
		erp:      erpGateway,
		mappings: mappingResolver,
		audit:    auditSvc,
		notifier: notifier,
		logger:   logg,
		metrics:  syncMetrics,
		crmCfg:   crmCfg,
		erpCfg:   erpCfg,
		now:      time.Now,
	}
}

// TranslateAndSubmit loads the deal, maps its product rows through the
// mapping table, resolves the counterparty and product cards, and posts a
// sales document. Every call that reaches the ERP creates a fresh document;
// replaying the same deal produces a duplicate on purpose, the audit log is
// the instrument for spotting that.
func (s *service) TranslateAndSubmit(ctx context.Context, dealID string) (*Result, error) {
	ctx = s.withDealLogger(ctx, dealID)

	deal, err := s.crm.GetDeal(ctx, dealID)
	if err != nil {
		return nil, s.fail(ctx, dealID, nil, "loading deal from CRM failed", err)
	}

	if reason, qualified := s.qualifies(deal); !qualified {
		s.logInfo(ctx, "deal skipped: "+reason)
		return &Result{DealID: dealID, Skipped: true, SkipReason: reason}, nil
	}

	items, err := s.crm.GetDealLineItems(ctx, dealID)
	if err != nil {
		return nil, s.fail(ctx, dealID, nil, "loading deal product rows failed", err)
	}
	if len(items) == 0 {
		err := pkgerrors.New(pkgerrors.CodeValidation, "deal has no product rows")
		return nil, s.fail(ctx, dealID, nil, err.Message(), err)
	}

	// Mapping lookups run before any ERP traffic so a deal with nothing to
	// carry over never touches the accounting system.
	crmProductIDs := make([]string, 0, len(items))
	for _, item := range items {
		crmProductIDs = append(crmProductIDs, item.ProductID.String())
	}
	resolved, err := s.mappings.ResolveCRMProducts(ctx, crmProductIDs)
	if err != nil {
		return nil, s.fail(ctx, dealID, requestSummary(dealID, items), "resolving product mappings failed", err)
	}

	var issues []LineIssue
	type mappedItem struct {
		crmProductID string
		productName  string
		erpCode      string
		quantity     float64
		price        float64
	}
	mapped := make([]mappedItem, 0, len(items))
	for _, item := range items {
		crmProductID := item.ProductID.String()
		mapping, ok := resolved[crmProductID]
		if !ok {
			issues = append(issues, LineIssue{
				CRMProductID: crmProductID,
				ProductName:  item.ProductName,
				Reason:       "no mapping for crm product",
			})
			continue
		}
		mapped = append(mapped, mappedItem{
			crmProductID: crmProductID,
			productName:  item.ProductName,
			erpCode:      mapping.ERPProductCode,
			quantity:     item.Quantity,
			price:        item.Price,
		})
	}
	if len(mapped) == 0 {
		err := pkgerrors.New(pkgerrors.CodeValidation, "no mappable products on deal")
		return nil, s.failWithIssues(ctx, dealID, requestSummary(dealID, items), err.Message(), err, issues)
	}

	counterpartyRef, customer := s.resolveCounterparty(ctx, deal)

	lines := make([]erp.SalesOrderLine, 0, len(mapped))
	for _, item := range mapped {
		nomenclature, found, err := s.erp.FindNomenclature(ctx, item.erpCode)
		if err != nil {
			return nil, s.failWithIssues(ctx, dealID, requestSummary(dealID, items), "nomenclature lookup failed", err, issues)
		}
		if !found {
			issues = append(issues, LineIssue{
				CRMProductID: item.crmProductID,
				ProductName:  item.productName,
				Reason:       fmt.Sprintf("no nomenclature with code %s", item.erpCode),
			})
			continue
		}

		taxRate := nomenclature.TaxRateRef
		if taxRate == "" {
			taxRate = s.erpCfg.DefaultTaxRateRef
		}
		amount := round2(item.price * item.quantity)
		lines = append(lines, erp.SalesOrderLine{
			NomenclatureRef: nomenclature.Ref,
			Quantity:        item.quantity,
			Price:           item.price,
			Amount:          amount,
			TaxAmount:       ExtractTax(amount),
			TaxRateRef:      taxRate,
		})
	}
	if len(lines) == 0 {
		err := pkgerrors.New(pkgerrors.CodeValidation, "no resolvable products on deal")
		return nil, s.failWithIssues(ctx, dealID, requestSummary(dealID, items), err.Message(), err, issues)
	}

	order := erp.SalesOrder{
		Date:            s.now().UTC().Format("2006-01-02T15:04:05"),
		OrganizationRef: s.erpCfg.OrganizationRef,
		CounterpartyRef: counterpartyRef,
		WarehouseRef:    s.erpCfg.WarehouseRef,
		CurrencyRef:     s.erpCfg.CurrencyRef,
		Total:           deal.TotalAmount(),
		Comment:         orderComment(deal.ID, deal.Title, customer),
		Lines:           lines,
	}

	doc, err := s.erp.CreateSalesDocument(ctx, order)
	if err != nil {
		return nil, s.failWithIssues(ctx, dealID, order, "creating sales document failed", err, issues)
	}

	status := models.SyncStatusSuccess
	if len(issues) > 0 {
		status = models.SyncStatusPartialSuccess
	}
	s.audit.Record(ctx, audit.RecordInput{
		SyncType:  models.SyncTypeOrderToERP,
		Direction: models.DirectionCRMToERP,
		EntityID:  dealID,
		Status:    status,
		Request:   order,
		Response:  doc,
	})
	if s.metrics != nil {
		s.metrics.IncDocument(status)
		s.metrics.AddUpdated(models.SyncTypeOrderToERP, len(lines))
		s.metrics.AddFailed(models.SyncTypeOrderToERP, len(issues))
	}

	// Write-back and the activity note are best effort: the document exists
	// either way and the audit row already points at it.
	if s.crmCfg.OrderField != "" {
		s.crm.UpdateDealField(ctx, dealID, s.crmCfg.OrderField, doc.Number)
	}
	s.crm.CreateActivity(ctx, dealID, "Order created in accounting system",
		fmt.Sprintf("Document %s, %d line(s)", doc.Number, len(lines)))

	s.notify(ctx, fmt.Sprintf("Deal %s synced to accounting: document %s (%d line(s), %d skipped)",
		dealID, doc.Number, len(lines), len(issues)))
	s.logInfo(ctx, "deal translated into sales document "+doc.Number)

	return &Result{
		DealID:         dealID,
		DocumentRef:    doc.Ref,
		DocumentNumber: doc.Number,
		Status:         status,
		LineIssues:     issues,
	}, nil
}

// qualifies checks the payment-channel marker when one is configured.
func (s *service) qualifies(deal *crm.Deal) (string, bool) {
	if s.crmCfg.PaymentField == "" || s.crmCfg.PaymentMarker == "" {
		return "", true
	}
	value := deal.Field(s.crmCfg.PaymentField)
	if strings.EqualFold(strings.TrimSpace(value), s.crmCfg.PaymentMarker) {
		return "", true
	}
	return fmt.Sprintf("payment channel %q does not match %q", value, s.crmCfg.PaymentMarker), false
}

// resolveCounterparty finds or creates the customer card for a deal's
// contact. It degrades to the default counterparty instead of failing: a
// missing or bad customer card must never block the order itself. The
// second return is the resolved customer identity (name and phone) for the
// document comment, empty when no contact could be read.
func (s *service) resolveCounterparty(ctx context.Context, deal *crm.Deal) (string, string) {
	defaultRef := s.erpCfg.DefaultCounterpartyRef
	if deal.ContactID == "" || deal.ContactID == "0" {
		return defaultRef, ""
	}

	contact, err := s.crm.GetContact(ctx, deal.ContactID)
	if err != nil {
		s.logWarn(ctx, "loading contact failed, using default counterparty")
		return defaultRef, ""
	}

	name := contact.FullName()
	if name == "" {
		name = "CRM contact " + deal.ContactID
	}
	phone := contact.PrimaryPhone()
	customer := name
	if phone != "" {
		customer = fmt.Sprintf("%s, %s", name, phone)
	}

	tail, usable := phoneSearchTail(phone)
	if !usable {
		return defaultRef, customer
	}

	existing, found, err := s.erp.FindCounterparty(ctx, tail)
	if err != nil {
		s.logWarn(ctx, "counterparty search failed, using default counterparty")
		return defaultRef, customer
	}
	if found {
		return existing.Ref, customer
	}

	created, err := s.erp.CreateCounterparty(ctx, name, fmt.Sprintf("phone: %s | created from CRM", phone))
	if err != nil {
		s.logWarn(ctx, "creating counterparty failed, using default counterparty")
		return defaultRef, customer
	}
	return created.Ref, customer
}

func (s *service) fail(ctx context.Context, dealID string, request any, message string, err error) error {
	return s.failWithIssues(ctx, dealID, request, message, err, nil)
}

func (s *service) failWithIssues(ctx context.Context, dealID string, request any, message string, err error, issues []LineIssue) error {
	errorMessage := message
	if err != nil && err.Error() != message {
		errorMessage = fmt.Sprintf("%s: %s", message, err.Error())
	}
	s.audit.Record(ctx, audit.RecordInput{
		SyncType:     models.SyncTypeOrderToERP,
		Direction:    models.DirectionCRMToERP,
		EntityID:     dealID,
		Status:       models.SyncStatusError,
		Request:      request,
		Response:     issues,
		ErrorMessage: errorMessage,
	})
	if s.metrics != nil {
		s.metrics.IncDocument(models.SyncStatusError)
	}
	s.notify(ctx, fmt.Sprintf("Deal %s failed to sync: %s", dealID, errorMessage))
	if s.logger != nil {
		s.logger.Error(ctx, message, err)
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func (s *service) notify(ctx context.Context, text string) {
	if s.notifier != nil {
		s.notifier.Send(ctx, text)
	}
}

func (s *service) withDealLogger(ctx context.Context, dealID string) context.Context {
	if s.logger == nil {
		return ctx
	}
	ctx = s.logger.WithDealID(ctx, dealID)
	return s.logger.WithSyncType(ctx, models.SyncTypeOrderToERP)
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

func orderComment(dealID, title, customer string) string {
	comment := "CRM deal " + dealID
	if strings.TrimSpace(title) != "" {
		comment += ": " + title
	}
	if customer != "" {
		comment += " | customer: " + customer
	}
	return comment
}

func requestSummary(dealID string, items []crm.DealLineItem) any {
	return map[string]any{"deal_id": dealID, "line_count": len(items)}
}
