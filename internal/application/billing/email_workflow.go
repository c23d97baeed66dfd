package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vialsa/facturacion-dgi/internal/domain"
	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
	"github.com/vialsa/facturacion-dgi/internal/domain/repository"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/bus"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/email"
	"github.com/vialsa/facturacion-dgi/pkg/logger"
)

// EmailWorkflow envía el correo de autorización al cliente. Workflow de un solo
// paso, disparado por "invoice/email.send" y reintentable de forma independiente
// del workflow de factura: la latencia o los fallos del proveedor de correo no
// tocan la autorización ya persistida.
type EmailWorkflow struct {
	invoices  repository.InvoiceRepository
	customers repository.CustomerRepository
	emailLogs repository.EmailLogRepository
	sender    NotificationSender
	log       *logger.Logger
}

// NewEmailWorkflow construye el workflow.
func NewEmailWorkflow(
	invoices repository.InvoiceRepository,
	customers repository.CustomerRepository,
	emailLogs repository.EmailLogRepository,
	sender NotificationSender,
	log *logger.Logger,
) *EmailWorkflow {
	return &EmailWorkflow{
		invoices:  invoices,
		customers: customers,
		emailLogs: emailLogs,
		sender:    sender,
		log:       log.Component("email-workflow"),
	}
}

// Handle decodifica el evento "invoice/email.send" y ejecuta el envío.
func (w *EmailWorkflow) Handle(ctx context.Context, evt bus.Event) error {
	var in bus.EmailSendEvent
	if err := json.Unmarshal(evt.Data, &in); err != nil {
		return fmt.Errorf("evento invoice/email.send ilegible: %w", err)
	}
	return w.Process(ctx, in.InvoiceID)
}

// Process recarga datos frescos y ejecuta un intento de envío.
// Un error delega el reintento al bus; la misma fila de EmailLog acumula los
// intentos (Attempts) a lo largo del ciclo.
func (w *EmailWorkflow) Process(ctx context.Context, invoiceID string) error {
	inv, err := w.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("cargar factura: %w", err)
	}
	if inv == nil {
		return fmt.Errorf("factura %s: %w", invoiceID, domain.ErrNotFound)
	}
	// Procesar el mismo evento dos veces debe ser inocuo (entrega at-least-once).
	if inv.EmailStatus == entity.EmailStatusSent {
		w.log.Debug().Str("invoice_id", invoiceID).Msg("correo ya enviado, no-op")
		return nil
	}
	if inv.Status != entity.StatusAuthorized {
		return fmt.Errorf("factura %s en estado %s: %w", invoiceID, inv.Status, domain.ErrConflict)
	}

	customer, err := w.customers.GetByID(ctx, inv.CustomerID)
	if err != nil {
		return fmt.Errorf("cargar cliente: %w", err)
	}
	if customer == nil {
		return fmt.Errorf("cliente %s: %w", inv.CustomerID, domain.ErrNotFound)
	}

	subject := fmt.Sprintf("Factura electrónica %s autorizada", inv.DocumentNumber)

	// Una fila por envío lógico: re-entrar en un ciclo de reintento reutiliza
	// la fila abierta y la marca RETRYING antes del nuevo intento.
	logRow, err := w.emailLogs.GetOpenByInvoice(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("buscar bitácora de correo: %w", err)
	}
	if logRow == nil {
		logRow = &entity.EmailLog{
			InvoiceID: inv.ID,
			Recipient: customer.Email,
			Subject:   subject,
		}
		if err := w.emailLogs.Create(ctx, logRow); err != nil {
			return fmt.Errorf("crear bitácora de correo: %w", err)
		}
	} else if logRow.Status == entity.EmailLogFailed {
		if err := w.emailLogs.MarkRetrying(ctx, logRow.ID); err != nil {
			return fmt.Errorf("marcar reintento: %w", err)
		}
		if err := w.invoices.UpdateEmailStatus(ctx, inv.ID, entity.EmailStatusRetrying); err != nil {
			return fmt.Errorf("email_status RETRYING: %w", err)
		}
	}

	res := w.sender.SendAuthorizationEmail(ctx, email.AuthorizationEmail{
		To:             customer.Email,
		Subject:        subject,
		CustomerName:   customer.Name,
		DocumentNumber: inv.DocumentNumber,
		CUFE:           inv.CUFE,
		URLCUFE:        inv.URLCUFE,
		FiscalXML:      inv.FiscalXML,
	})

	if !res.Success {
		if err := w.emailLogs.MarkFailed(ctx, logRow.ID, res.Err); err != nil {
			w.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo cerrar la bitácora de correo")
		}
		if err := w.invoices.UpdateEmailStatus(ctx, inv.ID, entity.EmailStatusFailed); err != nil {
			w.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo persistir email_status FAILED")
		}
		return fmt.Errorf("proveedor de correo: %s", res.Err)
	}

	if err := w.emailLogs.MarkSent(ctx, logRow.ID, res.MessageID); err != nil {
		return fmt.Errorf("cerrar bitácora de correo: %w", err)
	}
	if err := w.invoices.UpdateEmailStatus(ctx, inv.ID, entity.EmailStatusSent); err != nil {
		return fmt.Errorf("email_status SENT: %w", err)
	}
	w.log.Info().
		Str("invoice_id", inv.ID).
		Str("recipient", customer.Email).
		Str("message_id", res.MessageID).
		Msg("correo de autorización enviado")
	return nil
}
