package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/crmbridge/crmbridge-backend/pkg/config"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
)

var errWebhookURLRequired = errors.New("crm webhook url is required")

// Client speaks the CRM's inbound-webhook REST protocol: every method is a
// POST to <webhook-url>/<method> with a JSON params body and a
// {result, error, error_description} response envelope.
type Client struct {
	webhookURL string
	http       *http.Client
	logger     *logger.Logger
}

// NewClient validates configuration and builds the CRM wrapper.
func NewClient(cfg config.CRMConfig, logg *logger.Logger) (*Client, error) {
	webhookURL := strings.TrimRight(strings.TrimSpace(cfg.WebhookURL), "/")
	if webhookURL == "" {
		return nil, errWebhookURLRequired
	}
	return &Client{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: cfg.Timeout},
		logger:     logg,
	}, nil
}

type apiEnvelope struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode crm params")
	}

	endpoint := c.webhookURL + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build crm request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logError(ctx, method, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("crm %s failed", method))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("crm api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		c.logError(ctx, method, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("crm %s failed", method))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode crm %s response", method))
	}
	if envelope.Error != "" {
		err := fmt.Errorf("crm api error %s: %s", envelope.Error, envelope.ErrorDescription)
		c.logError(ctx, method, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("crm %s failed", method))
	}

	return envelope.Result, nil
}

// GetDeal fetches one deal by its identifier.
func (c *Client) GetDeal(ctx context.Context, dealID string) (*Deal, error) {
	result, err := c.call(ctx, "crm.deal.get", map[string]any{"id": dealID})
	if err != nil {
		return nil, err
	}
	var deal Deal
	if err := json.Unmarshal(result, &deal); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode deal")
	}
	return &deal, nil
}

// GetDealLineItems returns the product rows attached to a deal.
func (c *Client) GetDealLineItems(ctx context.Context, dealID string) ([]DealLineItem, error) {
	result, err := c.call(ctx, "crm.deal.productrows.get", map[string]any{"id": dealID})
	if err != nil {
		return nil, err
	}
	var items []DealLineItem
	if err := json.Unmarshal(result, &items); err != nil {
		// The CRM answers with an object instead of a list when a deal
		// has no product rows. Anything else is a broken envelope.
		var obj map[string]json.RawMessage
		if json.Unmarshal(result, &obj) == nil {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode deal product rows")
	}
	return items, nil
}

// GetContact fetches one contact by its identifier.
func (c *Client) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	result, err := c.call(ctx, "crm.contact.get", map[string]any{"id": contactID})
	if err != nil {
		return nil, err
	}
	var contact Contact
	if err := json.Unmarshal(result, &contact); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode contact")
	}
	return &contact, nil
}

// UpdateDealField sets a single custom field on a deal. Failures are logged
// and reported as a boolean, never raised.
func (c *Client) UpdateDealField(ctx context.Context, dealID, field string, value any) bool {
	_, err := c.call(ctx, "crm.deal.update", map[string]any{
		"id":     dealID,
		"fields": map[string]any{field: value},
	})
	if err != nil {
		c.logWarn(ctx, "crm.deal.update", map[string]any{"deal_id": dealID, "error": err.Error()})
		return false
	}
	return true
}

// CreateActivity attaches a completed activity note to a deal. Failures are
// logged and reported as a boolean, never raised.
func (c *Client) CreateActivity(ctx context.Context, dealID, subject, description string) bool {
	_, err := c.call(ctx, "crm.activity.add", map[string]any{
		"fields": map[string]any{
			"OWNER_TYPE_ID": 2,
			"OWNER_ID":      dealID,
			"TYPE_ID":       4,
			"SUBJECT":       subject,
			"DESCRIPTION":   description,
			"COMPLETED":     "Y",
			"DIRECTION":     2,
		},
	})
	if err != nil {
		c.logWarn(ctx, "crm.activity.add", map[string]any{"deal_id": dealID, "error": err.Error()})
		return false
	}
	return true
}

// UpdateCatalogQuantity pushes a stock quantity to the catalog product.
// Failures are logged and reported as a boolean, never raised.
func (c *Client) UpdateCatalogQuantity(ctx context.Context, productID string, quantity float64) bool {
	_, err := c.call(ctx, "catalog.product.update", map[string]any{
		"id": productID,
		"fields": map[string]any{
			"quantity": quantity,
		},
	})
	if err != nil {
		c.logWarn(ctx, "catalog.product.update", map[string]any{"product_id": productID, "error": err.Error()})
		return false
	}
	return true
}

func (c *Client) logError(ctx context.Context, method string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	ctx = c.logger.WithField(ctx, "method", method)
	c.logger.Error(ctx, "crm call failed", err)
}

func (c *Client) logWarn(ctx context.Context, method string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	fields["method"] = method
	ctx = c.logger.WithFields(ctx, fields)
	c.logger.Warn(ctx, "crm call failed")
}

// Ping verifies the webhook endpoint answers. Used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, "profile", nil)
	return err
}
