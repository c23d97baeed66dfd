package entity

import "time"

// Estados de una fila de EmailLog.
const (
	EmailLogPending  = "pending"
	EmailLogSent     = "sent"
	EmailLogFailed   = "failed"
	EmailLogRetrying = "retrying"
)

// EmailLog registra un envío lógico de correo. Se crea una sola fila por envío;
// Attempts se incrementa en cada ciclo de reintento sobre la misma fila.
type EmailLog struct {
	ID           string
	InvoiceID    string
	Recipient    string
	Subject      string
	Status       string
	MessageID    string // ID asignado al mensaje entregado al proveedor
	ErrorMessage string
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
