package entity

import "time"

// Resultados de una llamada al PAC. El registro se crea en "pending" antes de la
// llamada y recibe una única actualización posterior (success o error).
const (
	APICallPending = "pending"
	APICallSuccess = "success"
	APICallError   = "error"
)

// APICallLog es una fila de auditoría por cada request saliente al PAC.
// Append-only: cada reintento del workflow genera una fila nueva, nunca se deduplica.
type APICallLog struct {
	ID           string
	InvoiceID    string
	Endpoint     string
	RequestBody  string
	ResponseBody string
	HTTPStatus   int
	Outcome      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
