package crm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Deal carries the subset of deal fields the integration reads, plus the raw
// field map so custom fields can be looked up by name.
type Deal struct {
	ID          string
	Title       string
	ContactID   string
	Opportunity string

	fields map[string]json.RawMessage
}

func (d *Deal) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	d.fields = fields
	d.ID = flexString(fields["ID"])
	d.Title = flexString(fields["TITLE"])
	d.ContactID = flexString(fields["CONTACT_ID"])
	d.Opportunity = flexString(fields["OPPORTUNITY"])
	return nil
}

// Field returns a custom field's value as a string, or "" when it is absent.
func (d *Deal) Field(name string) string {
	if d == nil || d.fields == nil {
		return ""
	}
	return flexString(d.fields[name])
}

// TotalAmount parses the deal's opportunity amount, zero on absence.
func (d *Deal) TotalAmount() float64 {
	if d == nil {
		return 0
	}
	value, err := strconv.ParseFloat(d.Opportunity, 64)
	if err != nil {
		return 0
	}
	return value
}

// DealLineItem is one product row attached to a deal.
type DealLineItem struct {
	ProductID   json.Number `json:"PRODUCT_ID"`
	ProductName string      `json:"PRODUCT_NAME"`
	Quantity    float64     `json:"QUANTITY"`
	Price       float64     `json:"PRICE"`
}

// Contact is the deal's customer record.
type Contact struct {
	ID       string
	Name     string
	LastName string
	Phones   []string
}

func (c *Contact) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       json.RawMessage `json:"ID"`
		Name     string          `json:"NAME"`
		LastName string          `json:"LAST_NAME"`
		Phone    []struct {
			Value string `json:"VALUE"`
		} `json:"PHONE"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ID = flexString(raw.ID)
	c.Name = raw.Name
	c.LastName = raw.LastName
	c.Phones = c.Phones[:0]
	for _, phone := range raw.Phone {
		if phone.Value != "" {
			c.Phones = append(c.Phones, phone.Value)
		}
	}
	return nil
}

// FullName joins the contact's name parts, skipping blanks.
func (c *Contact) FullName() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{c.Name, c.LastName} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, " ")
}

// PrimaryPhone returns the first phone on file, or "".
func (c *Contact) PrimaryPhone() string {
	if c == nil || len(c.Phones) == 0 {
		return ""
	}
	return c.Phones[0]
}

// flexString reads a JSON scalar that the CRM may serve as either a string
// or a number.
func flexString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strings.Trim(string(raw), `"`)
}
