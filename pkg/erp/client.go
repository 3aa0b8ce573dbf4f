package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/crmbridge/crmbridge-backend/pkg/config"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
)

var errBaseURLRequired = errors.New("erp base url is required")

// Client wraps the accounting system's HTTP integration service. All calls
// use basic auth and JSON bodies.
type Client struct {
	baseURL  string
	username string
	password string
	pageSize int
	http     *http.Client
	logger   *logger.Logger
}

// NewClient validates configuration and builds the ERP wrapper.
func NewClient(cfg config.ERPConfig, logg *logger.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errBaseURLRequired
	}
	servicePath := "/" + strings.Trim(cfg.ServicePath, "/")
	pageSize := cfg.BalancePageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Client{
		baseURL:  base + servicePath,
		username: cfg.Username,
		password: cfg.Password,
		pageSize: pageSize,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logg,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode erp payload")
		}
		body = bytes.NewReader(encoded)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build erp request")
	}
	req.SetBasicAuth(c.username, c.password)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logError(ctx, method, path, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("erp %s %s failed", method, path))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("erp %s not found", path))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		err := fmt.Errorf("erp status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		c.logError(ctx, method, path, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("erp %s %s failed", method, path))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode erp %s response", path))
	}
	return nil
}

// CreateSalesDocument posts a new sales document and returns its identity.
// Each call creates a fresh document; the service performs no dedup.
func (c *Client) CreateSalesDocument(ctx context.Context, order SalesOrder) (*SalesDocument, error) {
	var doc SalesDocument
	if err := c.do(ctx, http.MethodPost, "/orders", nil, order, &doc); err != nil {
		return nil, err
	}
	if doc.Number == "" && doc.Ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "erp returned an empty sales document")
	}
	return &doc, nil
}

// FindCounterparty searches customer cards whose comment field contains the
// given phone fragment. A miss is reported as found=false, not an error.
func (c *Client) FindCounterparty(ctx context.Context, phoneFragment string) (*Counterparty, bool, error) {
	query := url.Values{"phone": {phoneFragment}}
	var matches []Counterparty
	err := c.do(ctx, http.MethodGet, "/counterparties", query, nil, &matches)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(matches) == 0 {
		return nil, false, nil
	}
	return &matches[0], true, nil
}

// CreateCounterparty registers a new customer card and returns it.
func (c *Client) CreateCounterparty(ctx context.Context, name, comment string) (*Counterparty, error) {
	payload := Counterparty{Name: name, Comment: comment}
	var created Counterparty
	if err := c.do(ctx, http.MethodPost, "/counterparties", nil, payload, &created); err != nil {
		return nil, err
	}
	if created.Ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "erp returned an empty counterparty ref")
	}
	return &created, nil
}

// FindNomenclature looks a product card up by its exact code. A miss is
// reported as found=false, not an error.
func (c *Client) FindNomenclature(ctx context.Context, code string) (*Nomenclature, bool, error) {
	query := url.Values{"code": {code}}
	var matches []Nomenclature
	err := c.do(ctx, http.MethodGet, "/nomenclature", query, nil, &matches)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	for _, match := range matches {
		if match.Code == code {
			found := match
			return &found, true, nil
		}
	}
	return nil, false, nil
}

// GetInventoryBalances pulls one fixed-size page of the warehouse stock
// report. Rows beyond the page size are not fetched; the configured page
// size is the ceiling of a reconciliation run.
func (c *Client) GetInventoryBalances(ctx context.Context, warehouseRef string) ([]InventoryBalance, error) {
	query := url.Values{
		"warehouse": {warehouseRef},
		"limit":     {strconv.Itoa(c.pageSize)},
	}
	var page []InventoryBalance
	if err := c.do(ctx, http.MethodGet, "/stock", query, nil, &page); err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Client) logError(ctx context.Context, method, path string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	ctx = c.logger.WithFields(ctx, map[string]any{
		"method": method,
		"path":   path,
	})
	c.logger.Error(ctx, "erp call failed", err)
}

// Ping verifies the integration service is reachable. Any HTTP answer
// counts, the readiness probe only cares about transport-level health.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build erp request")
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "erp unreachable")
	}
	resp.Body.Close()
	return nil
}
