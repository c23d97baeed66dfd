package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vialsa/facturacion-dgi/internal/application/billing"
	"github.com/vialsa/facturacion-dgi/internal/application/dto"
	"github.com/vialsa/facturacion-dgi/internal/domain"
	"github.com/vialsa/facturacion-dgi/internal/domain/repository"
)

// InvoiceHandler maneja las peticiones HTTP de facturación electrónica.
type InvoiceHandler struct {
	createUC *billing.CreateInvoiceUseCase
	invoices repository.InvoiceRepository
	emails   repository.EmailLogRepository
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(createUC *billing.CreateInvoiceUseCase, invoices repository.InvoiceRepository, emails repository.EmailLogRepository) *InvoiceHandler {
	return &InvoiceHandler{createUC: createUC, invoices: invoices, emails: emails}
}

// Create recibe una factura y dispara el workflow de autorización DGI.
// El procesamiento es asíncrono: se responde 202 con el ID para consultar estado.
// POST /api/v1/invoices
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	invoice, err := h.createUC.CreateInvoice(c.Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
		}
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "emisor o cliente no encontrado"})
		}
		if errors.Is(err, domain.ErrDuplicate) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "número de documento ya registrado para el emisor"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.InvoiceAcceptedResponse{ID: invoice.ID, Status: invoice.Status})
}

// GetStatus devuelve el estado del workflow de una factura.
// GET /api/v1/invoices/:id/status
func (h *InvoiceHandler) GetStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	invoice, err := h.invoices.GetStatus(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if invoice == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
	}
	return c.JSON(dto.InvoiceStatusResponse{
		ID:             invoice.ID,
		DocumentNumber: invoice.DocumentNumber,
		Status:         invoice.Status,
		EmailStatus:    invoice.EmailStatus,
		CUFE:           invoice.CUFE,
		URLCUFE:        invoice.URLCUFE,
		RejectReason:   invoice.RejectReason,
	})
}

// ListEmails devuelve el historial de envíos de correo de una factura.
// GET /api/v1/invoices/:id/emails
func (h *InvoiceHandler) ListEmails(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	logs, err := h.emails.ListByInvoice(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	out := make([]dto.EmailLogResponse, len(logs))
	for i, l := range logs {
		out[i] = dto.EmailLogResponse{
			ID:           l.ID,
			Recipient:    l.Recipient,
			Subject:      l.Subject,
			Status:       l.Status,
			MessageID:    l.MessageID,
			ErrorMessage: l.ErrorMessage,
			Attempts:     l.Attempts,
			UpdatedAt:    l.UpdatedAt.Format(time.RFC3339),
		}
	}
	return c.JSON(out)
}
