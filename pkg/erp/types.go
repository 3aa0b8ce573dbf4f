package erp

// SalesOrder is the payload for a new sales document. Total carries the
// deal's declared tax-inclusive amount; it can differ from the sum of the
// lines when rows were skipped.
type SalesOrder struct {
	Date             string           `json:"date"`
	OrganizationRef  string           `json:"organization"`
	CounterpartyRef  string           `json:"counterparty"`
	WarehouseRef     string           `json:"warehouse"`
	CurrencyRef      string           `json:"currency"`
	Total            float64          `json:"total"`
	Comment          string           `json:"comment"`
	Lines            []SalesOrderLine `json:"lines"`
}

// SalesOrderLine is one product row on a sales document.
type SalesOrderLine struct {
	NomenclatureRef string  `json:"nomenclature"`
	Quantity        float64 `json:"quantity"`
	Price           float64 `json:"price"`
	Amount          float64 `json:"amount"`
	TaxAmount       float64 `json:"vat_amount"`
	TaxRateRef      string  `json:"vat_rate"`
}

// SalesDocument identifies a created sales document.
type SalesDocument struct {
	Ref    string `json:"ref"`
	Number string `json:"number"`
}

// Counterparty is a customer card in the accounting system.
type Counterparty struct {
	Ref     string `json:"ref"`
	Name    string `json:"name"`
	Comment string `json:"comment"`
}

// Nomenclature is a product card in the accounting system.
type Nomenclature struct {
	Ref        string `json:"ref"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	TaxRateRef string `json:"vat_rate"`
}

// InventoryBalance is one warehouse stock row.
type InventoryBalance struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}
