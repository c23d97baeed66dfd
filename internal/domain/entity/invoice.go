package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del documento fiscal frente a la DGI (Panamá).
// Las transiciones son monótonas: RECEIVED → PREPARING → SENDING_TO_PAC → AUTHORIZED | REJECTED.
// Un re-disparo del workflow solo re-entra por PREPARING; nunca se retrocede desde un estado terminal.
const (
	StatusReceived     = "RECEIVED"       // Creada, a la espera del workflow
	StatusPreparing    = "PREPARING"      // Cargando datos y construyendo payload
	StatusSendingToPAC = "SENDING_TO_PAC" // Enviada al PAC, respuesta pendiente
	StatusAuthorized   = "AUTHORIZED"     // Autorizada por la DGI (CUFE asignado)
	StatusRejected     = "REJECTED"       // Rechazada por la DGI con mensajes de error
)

// Estados del correo de autorización (sub-máquina independiente del documento).
const (
	EmailStatusPending  = "PENDING"
	EmailStatusSent     = "SENT"
	EmailStatusFailed   = "FAILED"
	EmailStatusRetrying = "RETRYING"
)

// IsTerminalStatus indica si el documento ya alcanzó un estado final DGI.
func IsTerminalStatus(status string) bool {
	return status == StatusAuthorized || status == StatusRejected
}

// Invoice representa un documento fiscal (cabecera).
type Invoice struct {
	ID             string
	EmitterID      string
	CustomerID     string
	DocumentNumber string // Consecutivo por serie del emisor (d_nrodf)
	Status         string
	EmailStatus    string
	CUFE           string // Código Único de Factura Electrónica asignado por la DGI
	URLCUFE        string // URL de consulta pública del documento autorizado
	FiscalXML      string // XML fiscal firmado devuelto por el PAC
	RawResponse    string // Última respuesta cruda del PAC (JSON)
	RejectReason   string // Mensaje legible de rechazo (vacío si autorizada)
	NetTotal       decimal.Decimal
	TaxTotal       decimal.Decimal
	GrandTotal     decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
