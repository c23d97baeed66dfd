package repository

import (
	"context"

	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
)

// APICallLogRepository define el puerto para la bitácora de llamadas al PAC.
// Append-only: Create antes de la llamada, MarkResult como única actualización posterior.
type APICallLogRepository interface {
	Create(ctx context.Context, log *entity.APICallLog) error
	MarkResult(ctx context.Context, id, outcome, responseBody string, httpStatus int) error
	ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.APICallLog, error)
}
