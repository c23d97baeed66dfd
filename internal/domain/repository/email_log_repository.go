package repository

import (
	"context"

	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
)

// EmailLogRepository define el puerto para la bitácora de correos.
// Una fila por envío lógico; los reintentos mutan la misma fila e incrementan Attempts.
type EmailLogRepository interface {
	Create(ctx context.Context, log *entity.EmailLog) error

	// GetOpenByInvoice devuelve la fila no enviada (pending/failed/retrying) más
	// reciente de la factura, o nil si no existe.
	GetOpenByInvoice(ctx context.Context, invoiceID string) (*entity.EmailLog, error)

	MarkSent(ctx context.Context, id, messageID string) error

	// MarkFailed registra un intento fallido: status failed, mensaje de error y Attempts+1.
	MarkFailed(ctx context.Context, id, errorMessage string) error

	// MarkRetrying señala la re-entrada de un nuevo ciclo de reintento sobre la fila.
	MarkRetrying(ctx context.Context, id string) error

	ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.EmailLog, error)
}
