package entity

import "github.com/shopspring/decimal"

// InvoiceItem representa una línea de un documento fiscal.
// Inmutable una vez construido el payload DGI de la factura.
type InvoiceItem struct {
	ID          string
	InvoiceID   string
	LineNo      int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal // Tasa ITBMS (0.00, 0.07, 0.10, 0.15)
	LineTotal   decimal.Decimal
}
