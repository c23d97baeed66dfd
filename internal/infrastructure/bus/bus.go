// Package bus implementa el despacho de eventos entre workflows: entrega
// asíncrona con reintentos, backoff exponencial y límites de concurrencia por
// partición. Reemplaza al motor de ejecución durable con una maquinaria
// explícita: el checkpoint real vive en los estados persistidos de la factura.
package bus

import (
	"context"
	"encoding/json"
)

// Nombres de eventos del dominio.
const (
	EventInvoiceCreated = "invoice/created"
	EventEmailSend      = "invoice/email.send"
)

// Event es la unidad de publicación. Key particiona la concurrencia del
// consumidor (ej. el emisor de la factura); los eventos con Key distinta no se
// ordenan entre sí.
type Event struct {
	Name string          `json:"name"`
	Key  string          `json:"key,omitempty"`
	Data json.RawMessage `json:"data"`
}

// NewEvent serializa data como JSON y arma el evento.
func NewEvent(name, key string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Key: key, Data: raw}, nil
}

// Handler procesa una entrega. Si retorna error el despachador reintenta hasta
// agotar el presupuesto de la suscripción.
type Handler func(ctx context.Context, evt Event) error

// Publisher es el puerto de publicación que ven los productores.
// La publicación es fire-and-forget: el error solo refleja el encolado.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// InvoiceCreatedEvent payload de EventInvoiceCreated.
type InvoiceCreatedEvent struct {
	InvoiceID string `json:"invoiceId"`
	EmitterID string `json:"emitterId"`
}

// EmailSendEvent payload de EventEmailSend.
type EmailSendEvent struct {
	InvoiceID string `json:"invoiceId"`
	CUFE      string `json:"authCode"`
	URLCUFE   string `json:"authUrl"`
}
