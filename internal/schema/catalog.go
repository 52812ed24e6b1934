package schema

import (
	"fmt"
	"strings"
)

// MaskKind selects the redaction rule applied to a column's values.
type MaskKind string

const (
	MaskNone    MaskKind = ""
	MaskPhone   MaskKind = "phone"
	MaskName    MaskKind = "name"
	MaskAddress MaskKind = "address"
	MaskDate    MaskKind = "date"
)

type Column struct {
	Name        string
	Type        string
	Description string
	Mask        MaskKind
}

type Table struct {
	Name        string
	Description string
	Columns     []Column
}

// Catalog is the fixed vocabulary of queryable tables. It is the only
// schema the translator may reference and the executor's final check.
type Catalog struct {
	tables  []Table
	byTable map[string]map[string]Column
	masks   map[string]MaskKind
}

// Default returns the catalog for the customer/order reference schema.
// Built once at startup; never user-editable.
func Default() *Catalog {
	return New([]Table{
		{
			Name:        "cust_info",
			Description: "customer master data",
			Columns: []Column{
				{Name: "cust_id", Type: "integer", Description: "customer id (primary key)"},
				{Name: "cust_name", Type: "text", Description: "customer name", Mask: MaskName},
				{Name: "gender", Type: "text", Description: "gender"},
				{Name: "mobile_number", Type: "text", Description: "mobile phone number", Mask: MaskPhone},
				{Name: "home_number", Type: "text", Description: "home phone number", Mask: MaskPhone},
				{Name: "address", Type: "text", Description: "home address", Mask: MaskAddress},
				{Name: "age", Type: "integer", Description: "age"},
				{Name: "birthday", Type: "date", Description: "birth date", Mask: MaskDate},
				{Name: "refuse", Type: "boolean", Description: "true when the customer refused contact"},
				{Name: "create_date", Type: "datetime", Description: "record creation time"},
			},
		},
		{
			Name:        "order_master",
			Description: "order headers",
			Columns: []Column{
				{Name: "order_no", Type: "integer", Description: "order number (primary key)"},
				{Name: "order_date", Type: "datetime", Description: "order time"},
				{Name: "cust_id", Type: "integer", Description: "customer id (foreign key)"},
				{Name: "amount", Type: "numeric", Description: "order total"},
				{Name: "pay_method", Type: "integer", Description: "1 cash, 2 credit card, 3 transfer"},
				{Name: "delivery_address", Type: "text", Description: "delivery address", Mask: MaskAddress},
				{Name: "receiver", Type: "text", Description: "receiver name", Mask: MaskName},
				{Name: "receiver_phone", Type: "text", Description: "receiver phone", Mask: MaskPhone},
				{Name: "order_type", Type: "integer", Description: "1 regular, 2 preorder"},
				{Name: "taker_id", Type: "text", Description: "order taker id"},
				{Name: "create_date", Type: "datetime", Description: "record creation time"},
			},
		},
		{
			Name:        "order_detail",
			Description: "order line items",
			Columns: []Column{
				{Name: "rowkey", Type: "integer", Description: "row id (primary key)"},
				{Name: "order_no", Type: "integer", Description: "order number (foreign key)"},
				{Name: "product_id", Type: "text", Description: "product id"},
				{Name: "product_title", Type: "text", Description: "product name"},
				{Name: "unit_price", Type: "numeric", Description: "unit price"},
				{Name: "qty", Type: "integer", Description: "quantity"},
				{Name: "batch_no", Type: "text", Description: "batch number"},
			},
		},
	})
}

func New(tables []Table) *Catalog {
	c := &Catalog{
		tables:  tables,
		byTable: make(map[string]map[string]Column),
		masks:   make(map[string]MaskKind),
	}
	for _, t := range tables {
		cols := make(map[string]Column, len(t.Columns))
		for _, col := range t.Columns {
			cols[col.Name] = col
			if col.Mask != MaskNone {
				c.masks[col.Name] = col.Mask
			}
		}
		c.byTable[t.Name] = cols
	}
	return c
}

// Tables lists the queryable table names.
func (c *Catalog) Tables() []string {
	names := make([]string, 0, len(c.tables))
	for _, t := range c.tables {
		names = append(names, t.Name)
	}
	return names
}

func (c *Catalog) HasTable(name string) bool {
	_, ok := c.byTable[strings.ToLower(name)]
	return ok
}

func (c *Catalog) hasColumn(name string) bool {
	for _, cols := range c.byTable {
		if _, ok := cols[name]; ok {
			return true
		}
	}
	return false
}

// PIIMask returns the redaction rule for a column, if any. The lookup is
// by column name alone so aliased projections of a PII column stay masked.
func (c *Catalog) PIIMask(column string) (MaskKind, bool) {
	kind, ok := c.masks[strings.ToLower(column)]
	return kind, ok
}

// PIIColumns returns every masked column and its rule.
func (c *Catalog) PIIColumns() map[string]MaskKind {
	out := make(map[string]MaskKind, len(c.masks))
	for col, kind := range c.masks {
		out[col] = kind
	}
	return out
}

// PromptVocabulary renders the catalog for the translation prompt.
func (c *Catalog) PromptVocabulary() string {
	var b strings.Builder
	for _, t := range c.tables {
		fmt.Fprintf(&b, "%s (%s):\n", t.Name, t.Description)
		for _, col := range t.Columns {
			fmt.Fprintf(&b, "  - %s: %s, %s\n", col.Name, col.Type, col.Description)
		}
	}
	return b.String()
}
