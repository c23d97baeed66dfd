package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vialsa/facturacion-dgi/internal/domain"
	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
	"github.com/vialsa/facturacion-dgi/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// Create persiste la cabecera del documento fiscal.
func (r *InvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoices (id, emitter_id, customer_id, document_number, status, email_status,
		                      net_total, tax_total, grand_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		invoice.ID, invoice.EmitterID, invoice.CustomerID, invoice.DocumentNumber,
		invoice.Status, invoice.EmailStatus,
		invoice.NetTotal, invoice.TaxTotal, invoice.GrandTotal,
		invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice %s/%s: %w", invoice.EmitterID, invoice.DocumentNumber, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// CreateItem persiste una línea del documento.
func (r *InvoiceRepo) CreateItem(ctx context.Context, item *entity.InvoiceItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoice_items (id, invoice_id, line_no, description, quantity, unit_price, tax_rate, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		item.ID, item.InvoiceID, item.LineNo, item.Description,
		item.Quantity, item.UnitPrice, item.TaxRate, item.LineTotal,
	)
	if err != nil {
		return fmt.Errorf("insert invoice item: %w", err)
	}
	return nil
}

const invoiceColumns = `id, emitter_id, customer_id, document_number, status, email_status,
       cufe, url_cufe, fiscal_xml, raw_response, reject_reason,
       net_total, tax_total, grand_total, created_at, updated_at`

// GetByID obtiene un documento completo por ID.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return r.scanInvoice(r.q.QueryRow(ctx, query, id))
}

func (r *InvoiceRepo) scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var cufe, urlCufe, fiscalXML, rawResponse, rejectReason *string
	err := row.Scan(
		&inv.ID, &inv.EmitterID, &inv.CustomerID, &inv.DocumentNumber,
		&inv.Status, &inv.EmailStatus,
		&cufe, &urlCufe, &fiscalXML, &rawResponse, &rejectReason,
		&inv.NetTotal, &inv.TaxTotal, &inv.GrandTotal,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	inv.CUFE = deref(cufe)
	inv.URLCUFE = deref(urlCufe)
	inv.FiscalXML = deref(fiscalXML)
	inv.RawResponse = deref(rawResponse)
	inv.RejectReason = deref(rejectReason)
	return &inv, nil
}

// GetStatus devuelve solo los campos de estado (consulta ligera para polling).
func (r *InvoiceRepo) GetStatus(ctx context.Context, id string) (*entity.Invoice, error) {
	const query = `
		SELECT id, emitter_id, document_number, status, email_status,
		       COALESCE(cufe, ''), COALESCE(url_cufe, ''), COALESCE(reject_reason, '')
		FROM invoices WHERE id = $1`
	var inv entity.Invoice
	err := r.q.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.EmitterID, &inv.DocumentNumber, &inv.Status, &inv.EmailStatus,
		&inv.CUFE, &inv.URLCUFE, &inv.RejectReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice status: %w", err)
	}
	return &inv, nil
}

// GetItemsByInvoiceID obtiene todas las líneas de un documento.
func (r *InvoiceRepo) GetItemsByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, line_no, description, quantity, unit_price, tax_rate, line_total
		FROM invoice_items WHERE invoice_id = $1 ORDER BY line_no`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceItem
	for rows.Next() {
		var it entity.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.LineNo, &it.Description,
			&it.Quantity, &it.UnitPrice, &it.TaxRate, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}

// UpdateStatus transiciona el estado DGI del documento.
func (r *InvoiceRepo) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE invoices SET status = $2, updated_at = $3 WHERE id = $1`
	_, err := r.q.Exec(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	return nil
}

// UpdateAuthorization persiste los artefactos de autorización y el estado AUTHORIZED.
func (r *InvoiceRepo) UpdateAuthorization(ctx context.Context, id, cufe, urlCufe, fiscalXML, rawResponse string) error {
	query := `
		UPDATE invoices
		SET status       = $2,
		    cufe         = $3,
		    url_cufe     = COALESCE($4, url_cufe),
		    fiscal_xml   = COALESCE($5, fiscal_xml),
		    raw_response = $6,
		    updated_at   = $7
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		id, entity.StatusAuthorized, cufe,
		nullIfEmpty(urlCufe), nullIfEmpty(fiscalXML), rawResponse, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update invoice authorization: %w", err)
	}
	return nil
}

// UpdateRejection persiste el rechazo del documento.
func (r *InvoiceRepo) UpdateRejection(ctx context.Context, id, reason, rawResponse string) error {
	query := `
		UPDATE invoices
		SET status = $2, reject_reason = $3, raw_response = $4, updated_at = $5
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query, id, entity.StatusRejected, reason, rawResponse, time.Now())
	if err != nil {
		return fmt.Errorf("update invoice rejection: %w", err)
	}
	return nil
}

// UpdateEmailStatus actualiza la sub-máquina de estados del correo.
func (r *InvoiceRepo) UpdateEmailStatus(ctx context.Context, id, emailStatus string) error {
	query := `UPDATE invoices SET email_status = $2, updated_at = $3 WHERE id = $1`
	_, err := r.q.Exec(ctx, query, id, emailStatus, time.Now())
	if err != nil {
		return fmt.Errorf("update invoice email status: %w", err)
	}
	return nil
}

// ListStuck devuelve documentos no terminales con updated_at anterior al umbral.
// El filtro de estado + antigüedad es el guard contra re-disparar corridas vivas.
func (r *InvoiceRepo) ListStuck(ctx context.Context, olderThan time.Time, limit int) ([]*entity.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status IN ($1, $2, $3) AND updated_at < $4
		ORDER BY updated_at
		LIMIT $5`
	rows, err := r.q.Query(ctx, query, entity.StatusReceived, entity.StatusPreparing, entity.StatusSendingToPAC, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list stuck invoices: %w", err)
	}
	return r.collect(rows)
}

// ListEmailFailed devuelve documentos AUTHORIZED con correo FAILED.
func (r *InvoiceRepo) ListEmailFailed(ctx context.Context, limit int) ([]*entity.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status = $1 AND email_status = $2
		ORDER BY updated_at
		LIMIT $3`
	rows, err := r.q.Query(ctx, query, entity.StatusAuthorized, entity.EmailStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("list email-failed invoices: %w", err)
	}
	return r.collect(rows)
}

func (r *InvoiceRepo) collect(rows pgx.Rows) ([]*entity.Invoice, error) {
	defer rows.Close()
	var list []*entity.Invoice
	for rows.Next() {
		inv, err := r.scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}
