package erp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmbridge/crmbridge-backend/pkg/config"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
)

func newTestClient(t *testing.T, pageSize int, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.ERPConfig{
		BaseURL:         server.URL,
		ServicePath:     "/hs/crm-integration",
		Username:        "svc",
		Password:        "secret",
		Timeout:         2 * time.Second,
		BalancePageSize: pageSize,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(config.ERPConfig{}, nil)
	require.Error(t, err)
}

func TestCreateSalesDocumentSendsBasicAuth(t *testing.T) {
	client := newTestClient(t, 10, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "svc", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/hs/crm-integration/orders", r.URL.Path)

		var order SalesOrder
		require.NoError(t, json.NewDecoder(r.Body).Decode(&order))
		assert.Equal(t, "cp-ref", order.CounterpartyRef)
		require.Len(t, order.Lines, 1)

		_ = json.NewEncoder(w).Encode(SalesDocument{Ref: "doc-ref", Number: "CRM-000042"})
	}))

	doc, err := client.CreateSalesDocument(context.Background(), SalesOrder{
		CounterpartyRef: "cp-ref",
		Lines:           []SalesOrderLine{{NomenclatureRef: "nom-ref", Quantity: 2, Price: 560, Amount: 1120, TaxAmount: 120}},
	})
	require.NoError(t, err)
	assert.Equal(t, "CRM-000042", doc.Number)
}

func TestCreateSalesDocumentRejectsEmptyIdentity(t *testing.T) {
	client := newTestClient(t, 10, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := client.CreateSalesDocument(context.Background(), SalesOrder{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestFindCounterpartyMissIsNotAnError(t *testing.T) {
	client := newTestClient(t, 10, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7011112233", r.URL.Query().Get("phone"))
		_, _ = w.Write([]byte(`[]`))
	}))

	_, found, err := client.FindCounterparty(context.Background(), "7011112233")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFindCounterpartyReturnsFirstMatch(t *testing.T) {
	client := newTestClient(t, 10, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]Counterparty{
			{Ref: "cp-1", Name: "Aigerim Bekova"},
			{Ref: "cp-2", Name: "Other"},
		})
	}))

	cp, found, err := client.FindCounterparty(context.Background(), "7011112233")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "cp-1", cp.Ref)
}

func TestFindNomenclatureRequiresExactCode(t *testing.T) {
	client := newTestClient(t, 10, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]Nomenclature{
			{Ref: "nom-1", Code: "SKU-0010", TaxRateRef: "vat0-ref"},
		})
	}))

	_, found, err := client.FindNomenclature(context.Background(), "SKU-001")
	require.NoError(t, err)
	assert.False(t, found)

	nom, found, err := client.FindNomenclature(context.Background(), "SKU-0010")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "nom-1", nom.Ref)
	assert.Equal(t, "vat0-ref", nom.TaxRateRef)
}

func TestGetInventoryBalancesFetchesSinglePage(t *testing.T) {
	requests := 0
	client := newTestClient(t, 2, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "wh-ref", r.URL.Query().Get("warehouse"))

		// A full page; rows past the limit stay on the server.
		_ = json.NewEncoder(w).Encode([]InventoryBalance{
			{Code: "SKU-001", Quantity: 5},
			{Code: "SKU-002", Quantity: 3},
		})
	}))

	balances, err := client.GetInventoryBalances(context.Background(), "wh-ref")
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, 1, requests)
}

func TestDoMapsServerErrorToDependency(t *testing.T) {
	client := newTestClient(t, 10, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))

	_, _, err := client.FindCounterparty(context.Background(), "7011112233")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
