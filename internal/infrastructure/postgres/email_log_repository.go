package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
	"github.com/vialsa/facturacion-dgi/internal/domain/repository"
)

var _ repository.EmailLogRepository = (*EmailLogRepo)(nil)

// EmailLogRepo implementación de EmailLogRepository. Una fila por envío lógico;
// los reintentos mutan la misma fila (Attempts se incrementa en MarkFailed).
type EmailLogRepo struct {
	q Querier
}

// NewEmailLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewEmailLogRepository(q Querier) *EmailLogRepo {
	return &EmailLogRepo{q: q}
}

// Create inserta la fila en estado pending con cero intentos.
func (r *EmailLogRepo) Create(ctx context.Context, log *entity.EmailLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	now := time.Now()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now
	if log.Status == "" {
		log.Status = entity.EmailLogPending
	}
	query := `
		INSERT INTO email_logs (id, invoice_id, recipient, subject, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		log.ID, log.InvoiceID, log.Recipient, log.Subject, log.Status, log.Attempts,
		log.CreatedAt, log.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// GetOpenByInvoice devuelve la fila no enviada más reciente de la factura, o nil.
func (r *EmailLogRepo) GetOpenByInvoice(ctx context.Context, invoiceID string) (*entity.EmailLog, error) {
	query := `
		SELECT id, invoice_id, recipient, subject, status,
		       COALESCE(message_id, ''), COALESCE(error_message, ''), attempts,
		       created_at, updated_at
		FROM email_logs
		WHERE invoice_id = $1 AND status <> $2
		ORDER BY created_at DESC
		LIMIT 1`
	var l entity.EmailLog
	err := r.q.QueryRow(ctx, query, invoiceID, entity.EmailLogSent).Scan(
		&l.ID, &l.InvoiceID, &l.Recipient, &l.Subject, &l.Status,
		&l.MessageID, &l.ErrorMessage, &l.Attempts, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get open email log: %w", err)
	}
	return &l, nil
}

// MarkSent cierra la fila con el message id del proveedor.
func (r *EmailLogRepo) MarkSent(ctx context.Context, id, messageID string) error {
	query := `
		UPDATE email_logs SET status = $2, message_id = $3, updated_at = $4 WHERE id = $1`
	_, err := r.q.Exec(ctx, query, id, entity.EmailLogSent, messageID, time.Now())
	if err != nil {
		return fmt.Errorf("mark email log sent: %w", err)
	}
	return nil
}

// MarkFailed registra un intento fallido e incrementa el contador.
func (r *EmailLogRepo) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE email_logs
		SET status = $2, error_message = $3, attempts = attempts + 1, updated_at = $4
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query, id, entity.EmailLogFailed, errorMessage, time.Now())
	if err != nil {
		return fmt.Errorf("mark email log failed: %w", err)
	}
	return nil
}

// MarkRetrying señala la re-entrada de un nuevo ciclo sobre la fila.
func (r *EmailLogRepo) MarkRetrying(ctx context.Context, id string) error {
	query := `UPDATE email_logs SET status = $2, updated_at = $3 WHERE id = $1`
	_, err := r.q.Exec(ctx, query, id, entity.EmailLogRetrying, time.Now())
	if err != nil {
		return fmt.Errorf("mark email log retrying: %w", err)
	}
	return nil
}

// ListByInvoice devuelve la bitácora de correos de una factura.
func (r *EmailLogRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.EmailLog, error) {
	query := `
		SELECT id, invoice_id, recipient, subject, status,
		       COALESCE(message_id, ''), COALESCE(error_message, ''), attempts,
		       created_at, updated_at
		FROM email_logs WHERE invoice_id = $1 ORDER BY created_at`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()
	var list []*entity.EmailLog
	for rows.Next() {
		var l entity.EmailLog
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Recipient, &l.Subject, &l.Status,
			&l.MessageID, &l.ErrorMessage, &l.Attempts, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan email log: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
