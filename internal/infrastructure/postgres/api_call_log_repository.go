package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
	"github.com/vialsa/facturacion-dgi/internal/domain/repository"
)

var _ repository.APICallLogRepository = (*APICallLogRepo)(nil)

// APICallLogRepo implementación de APICallLogRepository.
// La tabla es append-only: cada intento de envío al PAC inserta una fila nueva
// que recibe una única actualización con el resultado.
type APICallLogRepo struct {
	q Querier
}

// NewAPICallLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAPICallLogRepository(q Querier) *APICallLogRepo {
	return &APICallLogRepo{q: q}
}

// Create inserta la fila en estado pending, antes de la llamada al PAC.
func (r *APICallLogRepo) Create(ctx context.Context, log *entity.APICallLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	now := time.Now()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now
	if log.Outcome == "" {
		log.Outcome = entity.APICallPending
	}
	query := `
		INSERT INTO api_call_logs (id, invoice_id, endpoint, request_body, outcome, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		log.ID, log.InvoiceID, log.Endpoint, log.RequestBody, log.Outcome,
		log.CreatedAt, log.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api call log: %w", err)
	}
	return nil
}

// MarkResult registra el desenlace de la llamada (única actualización de la fila).
func (r *APICallLogRepo) MarkResult(ctx context.Context, id, outcome, responseBody string, httpStatus int) error {
	query := `
		UPDATE api_call_logs
		SET outcome = $2, response_body = $3, http_status = $4, updated_at = $5
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query, id, outcome, responseBody, httpStatus, time.Now())
	if err != nil {
		return fmt.Errorf("update api call log: %w", err)
	}
	return nil
}

// ListByInvoice devuelve la bitácora de llamadas de una factura en orden cronológico.
func (r *APICallLogRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.APICallLog, error) {
	query := `
		SELECT id, invoice_id, endpoint, request_body, COALESCE(response_body, ''),
		       COALESCE(http_status, 0), outcome, created_at, updated_at
		FROM api_call_logs WHERE invoice_id = $1 ORDER BY created_at`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list api call logs: %w", err)
	}
	defer rows.Close()
	var list []*entity.APICallLog
	for rows.Next() {
		var l entity.APICallLog
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Endpoint, &l.RequestBody,
			&l.ResponseBody, &l.HTTPStatus, &l.Outcome, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api call log: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
