package repository

import (
	"context"
	"time"

	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
)

// InvoiceRepository define el puerto de persistencia para Invoice y sus líneas.
// Los métodos de actualización solo tocan los campos que nombran: las transiciones
// de estado son la bitácora de avance (checkpoint) del workflow.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	CreateItem(ctx context.Context, item *entity.InvoiceItem) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	GetItemsByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.InvoiceItem, error)

	// GetStatus devuelve solo los campos de estado (consulta ligera para polling).
	GetStatus(ctx context.Context, id string) (*entity.Invoice, error)

	// UpdateStatus transiciona el estado DGI del documento.
	UpdateStatus(ctx context.Context, id, status string) error

	// UpdateAuthorization persiste el resultado de una autorización:
	// estado AUTHORIZED + CUFE, URL de consulta, XML fiscal y respuesta cruda.
	UpdateAuthorization(ctx context.Context, id, cufe, urlCufe, fiscalXML, rawResponse string) error

	// UpdateRejection persiste un rechazo de la DGI: estado REJECTED + motivo y respuesta cruda.
	UpdateRejection(ctx context.Context, id, reason, rawResponse string) error

	UpdateEmailStatus(ctx context.Context, id, emailStatus string) error

	// ListStuck devuelve facturas no terminales (RECEIVED, PREPARING, SENDING_TO_PAC) cuya
	// última actualización es anterior a olderThan. El guard de frescura vive en
	// la consulta: una corrida en curso no aparece como atascada.
	ListStuck(ctx context.Context, olderThan time.Time, limit int) ([]*entity.Invoice, error)

	// ListEmailFailed devuelve facturas AUTHORIZED con email_status FAILED.
	ListEmailFailed(ctx context.Context, limit int) ([]*entity.Invoice, error)
}
