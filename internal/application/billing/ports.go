package billing

import (
	"context"

	"github.com/vialsa/facturacion-dgi/internal/domain/repository"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/bus"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/dgi"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/email"
)

// InvoicingTxRunner ejecuta una función dentro de una transacción que incluye
// los repos de facturación (cabecera + líneas atómicas).
type InvoicingTxRunner interface {
	RunInvoicing(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		customerRepo repository.CustomerRepository,
	) error) error
}

// NotificationSender puerto hacia el proveedor de correo.
// SendErrorAlert es best-effort: nunca retorna error ni interrumpe el workflow.
type NotificationSender interface {
	SendAuthorizationEmail(ctx context.Context, in email.AuthorizationEmail) email.SendResult
	SendErrorAlert(invoiceID, errorMessage string, contexto map[string]string)
}

// EventPublisher puerto de publicación de eventos (alias local del puerto del bus
// para que los tests del paquete inyecten fakes sin tocar el despachador real).
type EventPublisher = bus.Publisher

// PACSubmitter puerto hacia el PAC, re-exportado del adaptador DGI.
type PACSubmitter = dgi.Submitter
