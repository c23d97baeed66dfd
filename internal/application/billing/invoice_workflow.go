package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vialsa/facturacion-dgi/internal/domain"
	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
	"github.com/vialsa/facturacion-dgi/internal/domain/repository"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/bus"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/dgi"
	"github.com/vialsa/facturacion-dgi/pkg/logger"
)

// InvoiceWorkflow conduce un documento fiscal por la máquina de estados DGI:
//
//	RECEIVED → PREPARING → SENDING_TO_PAC → AUTHORIZED | REJECTED
//
// Cada transición se persiste antes de ejecutar el paso siguiente: el estado en
// la base ES el checkpoint. Una re-entrada (reintento del bus o re-disparo del
// sweeper) recarga datos frescos y repite el paso pendiente; los estados
// terminales la convierten en no-op.
//
// El rechazo de la DGI NO es un error del workflow: es un desenlace terminal
// normal (REJECTED) que además dispara una alerta interna best-effort.
type InvoiceWorkflow struct {
	invoices  repository.InvoiceRepository
	emitters  repository.EmitterRepository
	customers repository.CustomerRepository
	apiLogs   repository.APICallLogRepository
	pac       PACSubmitter
	sender    NotificationSender
	publisher EventPublisher
	ambiente  int
	log       *logger.Logger
}

// NewInvoiceWorkflow construye el workflow con todas sus dependencias.
func NewInvoiceWorkflow(
	invoices repository.InvoiceRepository,
	emitters repository.EmitterRepository,
	customers repository.CustomerRepository,
	apiLogs repository.APICallLogRepository,
	pac PACSubmitter,
	sender NotificationSender,
	publisher EventPublisher,
	ambiente int,
	log *logger.Logger,
) *InvoiceWorkflow {
	return &InvoiceWorkflow{
		invoices:  invoices,
		emitters:  emitters,
		customers: customers,
		apiLogs:   apiLogs,
		pac:       pac,
		sender:    sender,
		publisher: publisher,
		ambiente:  ambiente,
		log:       log.Component("invoice-workflow"),
	}
}

// Handle decodifica el evento "invoice/created" y ejecuta el workflow.
// Es el handler que se registra en el bus.
func (w *InvoiceWorkflow) Handle(ctx context.Context, evt bus.Event) error {
	var in bus.InvoiceCreatedEvent
	if err := json.Unmarshal(evt.Data, &in); err != nil {
		return fmt.Errorf("evento invoice/created ilegible: %w", err)
	}
	return w.Process(ctx, in.InvoiceID)
}

// Process es el núcleo síncrono del workflow. Retornar error delega el
// reintento a la política del bus (presupuesto fijo + backoff).
func (w *InvoiceWorkflow) Process(ctx context.Context, invoiceID string) error {
	log := w.log.With().Str("invoice_id", invoiceID).Logger()

	// ── 0. Guard de idempotencia: recargar estado fresco ─────────────────────
	inv, err := w.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("cargar factura: %w", err)
	}
	if inv == nil {
		return fmt.Errorf("factura %s: %w", invoiceID, domain.ErrNotFound)
	}
	if entity.IsTerminalStatus(inv.Status) {
		// Re-disparo sobre una corrida ya resuelta (sweeper o evento duplicado).
		// Si quedó el correo pendiente, reemitir solo ese evento.
		if inv.Status == entity.StatusAuthorized && inv.EmailStatus == entity.EmailStatusPending {
			w.publishEmailEvent(ctx, inv)
		}
		log.Debug().Str("status", inv.Status).Msg("estado terminal, no-op")
		return nil
	}

	// ── 1. Prepare: transición y carga de colaboradores ──────────────────────
	if err := w.invoices.UpdateStatus(ctx, inv.ID, entity.StatusPreparing); err != nil {
		return fmt.Errorf("transición a PREPARING: %w", err)
	}

	emitter, err := w.emitters.GetByID(ctx, inv.EmitterID)
	if err != nil {
		return fmt.Errorf("cargar emisor: %w", err)
	}
	if emitter == nil {
		return w.dataIntegrityErr(inv, fmt.Errorf("emisor %s: %w", inv.EmitterID, domain.ErrNotFound))
	}

	customer, err := w.customers.GetByID(ctx, inv.CustomerID)
	if err != nil {
		return fmt.Errorf("cargar cliente: %w", err)
	}
	if customer == nil {
		return w.dataIntegrityErr(inv, fmt.Errorf("cliente %s: %w", inv.CustomerID, domain.ErrNotFound))
	}

	items, err := w.invoices.GetItemsByInvoiceID(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("cargar líneas: %w", err)
	}
	if len(items) == 0 {
		return w.dataIntegrityErr(inv, fmt.Errorf("factura %s: %w", inv.ID, domain.ErrNoItems))
	}

	// ── 2. Construir payload (transformación pura) ───────────────────────────
	payload, err := dgi.BuildPayload(dgi.PayloadInput{
		Emitter:        emitter,
		Customer:       customer,
		Items:          items,
		DocumentNumber: inv.DocumentNumber,
		IssuedAt:       inv.CreatedAt,
		NetTotal:       inv.NetTotal,
		TaxTotal:       inv.TaxTotal,
		GrandTotal:     inv.GrandTotal,
		Ambiente:       w.ambiente,
	})
	if err != nil {
		return w.dataIntegrityErr(inv, fmt.Errorf("construir payload: %w", err))
	}

	// ── 3. Submit: bitácora pending → llamada → bitácora success|error ───────
	if err := w.invoices.UpdateStatus(ctx, inv.ID, entity.StatusSendingToPAC); err != nil {
		return fmt.Errorf("transición a SENDING_TO_PAC: %w", err)
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serializar payload: %w", err)
	}
	callLog := &entity.APICallLog{
		InvoiceID:   inv.ID,
		Endpoint:    w.pac.Endpoint(),
		RequestBody: string(requestBody),
	}
	if err := w.apiLogs.Create(ctx, callLog); err != nil {
		return fmt.Errorf("crear bitácora de llamada: %w", err)
	}

	resp, httpStatus, raw, err := w.pac.Submit(ctx, payload)
	if err != nil {
		// Fallo de transporte o status no-2xx: registrar y dejar que el bus
		// reintente el paso completo (con una fila de bitácora nueva).
		if mErr := w.apiLogs.MarkResult(ctx, callLog.ID, entity.APICallError, string(raw), httpStatus); mErr != nil {
			log.Error().Err(mErr).Msg("no se pudo cerrar la bitácora de llamada")
		}
		return fmt.Errorf("envío al PAC: %w", err)
	}
	if err := w.apiLogs.MarkResult(ctx, callLog.ID, entity.APICallSuccess, string(raw), httpStatus); err != nil {
		log.Error().Err(err).Msg("no se pudo cerrar la bitácora de llamada")
	}

	// ── 4. Interpretar respuesta ─────────────────────────────────────────────
	if !dgi.IsSuccess(resp) {
		reason := dgi.ExtractError(resp)
		if err := w.invoices.UpdateRejection(ctx, inv.ID, reason, string(raw)); err != nil {
			return fmt.Errorf("persistir rechazo: %w", err)
		}
		// Alerta interna best-effort con el material de diagnóstico.
		w.sender.SendErrorAlert(inv.ID, reason, map[string]string{
			"respuesta": string(raw),
			"payload":   string(requestBody),
		})
		log.Info().Str("reason", reason).Msg("documento rechazado por la DGI")
		return nil
	}

	data := dgi.ExtractSuccessData(resp)
	if data == nil {
		return fmt.Errorf("respuesta autorizada sin CUFE: %s", string(raw))
	}
	if err := dgi.VerifyCUFE(data.CUFE, data.FiscalXML); err != nil {
		return fmt.Errorf("verificar CUFE: %w", err)
	}
	if err := w.invoices.UpdateAuthorization(ctx, inv.ID, data.CUFE, data.URLCUFE, data.FiscalXML, string(raw)); err != nil {
		return fmt.Errorf("persistir autorización: %w", err)
	}
	log.Info().Str("cufe", data.CUFE).Msg("documento autorizado")

	// ── 5. Disparar correo (fire-and-forget hacia el segundo workflow) ───────
	inv.CUFE = data.CUFE
	inv.URLCUFE = data.URLCUFE
	w.publishEmailEvent(ctx, inv)
	return nil
}

// dataIntegrityErr maneja los errores de integridad del paso 1: datos que un
// reintento no va a arreglar. Se retornan igual y consumen el presupuesto fijo
// del bus; agotado el presupuesto, el operador se entera por la alerta.
func (w *InvoiceWorkflow) dataIntegrityErr(inv *entity.Invoice, err error) error {
	w.sender.SendErrorAlert(inv.ID, err.Error(), map[string]string{
		"status": inv.Status,
		"paso":   "prepare",
	})
	return err
}

// publishEmailEvent emite invoice/email.send sin bloquear el workflow.
// Si la publicación falla queda el email_status en PENDING y el guard del paso 0
// lo reemite en el siguiente re-disparo.
func (w *InvoiceWorkflow) publishEmailEvent(ctx context.Context, inv *entity.Invoice) {
	evt, err := bus.NewEvent(bus.EventEmailSend, inv.EmitterID, bus.EmailSendEvent{
		InvoiceID: inv.ID,
		CUFE:      inv.CUFE,
		URLCUFE:   inv.URLCUFE,
	})
	if err == nil {
		err = w.publisher.Publish(ctx, evt)
	}
	if err != nil {
		w.log.Warn().Str("invoice_id", inv.ID).Err(err).Msg("no se pudo emitir invoice/email.send")
	}
}
