package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vialsa/facturacion-dgi/internal/application/billing"
	"github.com/vialsa/facturacion-dgi/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CreateInvoice *billing.CreateInvoiceUseCase
	Invoices      repository.InvoiceRepository
	Emails        repository.EmailLogRepository
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	invoices := api.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.CreateInvoice, deps.Invoices, deps.Emails)
	invoices.Post("/", invoiceHandler.Create)
	invoices.Get("/:id/status", invoiceHandler.GetStatus)
	invoices.Get("/:id/emails", invoiceHandler.ListEmails)
}
