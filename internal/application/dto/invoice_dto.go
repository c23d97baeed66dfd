package dto

import "github.com/shopspring/decimal"

// ErrorResponse cuerpo de error uniforme de la API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateInvoiceRequest body para POST /api/v1/invoices.
// La factura se persiste en RECEIVED y el procesamiento DGI corre aparte:
// el productor consulta el avance por el endpoint de estado.
type CreateInvoiceRequest struct {
	EmitterID      string               `json:"emitter_id"`
	CustomerID     string               `json:"customer_id"`
	DocumentNumber string               `json:"document_number"`
	Items          []InvoiceItemRequest `json:"items"`
}

// InvoiceItemRequest línea de factura.
type InvoiceItemRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"` // 0.00, 0.07, 0.10, 0.15
}

// InvoiceAcceptedResponse respuesta 202 de creación.
type InvoiceAcceptedResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// EmailLogResponse una fila de la bitácora de correos de una factura.
type EmailLogResponse struct {
	ID           string `json:"id"`
	Recipient    string `json:"recipient"`
	Subject      string `json:"subject"`
	Status       string `json:"status"`
	MessageID    string `json:"message_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Attempts     int    `json:"attempts"`
	UpdatedAt    string `json:"updated_at"`
}

// InvoiceStatusResponse respuesta del endpoint de polling.
type InvoiceStatusResponse struct {
	ID             string `json:"id"`
	DocumentNumber string `json:"document_number"`
	Status         string `json:"status"`
	EmailStatus    string `json:"email_status"`
	CUFE           string `json:"cufe,omitempty"`
	URLCUFE        string `json:"url_cufe,omitempty"`
	RejectReason   string `json:"reject_reason,omitempty"`
}
