package billing_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
	"github.com/vialsa/facturacion-dgi/internal/domain/repository"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/bus"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/dgi"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/email"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria de los puertos del paquete. Implementan la misma semántica
// que los adaptadores PostgreSQL (updated_at en cada transición, Attempts+1 en
// MarkFailed) para que los tests ejerciten el workflow completo sin base de datos.
// ──────────────────────────────────────────────────────────────────────────────

type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]*entity.Invoice
	items    map[string][]*entity.InvoiceItem
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{
		invoices: make(map[string]*entity.Invoice),
		items:    make(map[string][]*entity.InvoiceItem),
	}
}

func (r *fakeInvoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *fakeInvoiceRepo) CreateItem(_ context.Context, item *entity.InvoiceItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	cp := *item
	r.items[item.InvoiceID] = append(r.items[item.InvoiceID], &cp)
	return nil
}

func (r *fakeInvoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeInvoiceRepo) GetItemsByInvoiceID(_ context.Context, invoiceID string) ([]*entity.InvoiceItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.InvoiceItem(nil), r.items[invoiceID]...), nil
}

func (r *fakeInvoiceRepo) GetStatus(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeInvoiceRepo) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.invoices[id]; ok {
		inv.Status = status
		inv.UpdatedAt = time.Now()
	}
	return nil
}

func (r *fakeInvoiceRepo) UpdateAuthorization(_ context.Context, id, cufe, urlCufe, fiscalXML, rawResponse string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.invoices[id]; ok {
		inv.Status = entity.StatusAuthorized
		inv.CUFE = cufe
		inv.URLCUFE = urlCufe
		inv.FiscalXML = fiscalXML
		inv.RawResponse = rawResponse
		inv.UpdatedAt = time.Now()
	}
	return nil
}

func (r *fakeInvoiceRepo) UpdateRejection(_ context.Context, id, reason, rawResponse string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.invoices[id]; ok {
		inv.Status = entity.StatusRejected
		inv.RejectReason = reason
		inv.RawResponse = rawResponse
		inv.UpdatedAt = time.Now()
	}
	return nil
}

func (r *fakeInvoiceRepo) UpdateEmailStatus(_ context.Context, id, emailStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.invoices[id]; ok {
		inv.EmailStatus = emailStatus
		inv.UpdatedAt = time.Now()
	}
	return nil
}

func (r *fakeInvoiceRepo) ListStuck(_ context.Context, olderThan time.Time, limit int) ([]*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if len(out) >= limit {
			break
		}
		nonTerminal := inv.Status == entity.StatusReceived ||
			inv.Status == entity.StatusPreparing ||
			inv.Status == entity.StatusSendingToPAC
		if nonTerminal && inv.UpdatedAt.Before(olderThan) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) ListEmailFailed(_ context.Context, limit int) ([]*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if len(out) >= limit {
			break
		}
		if inv.Status == entity.StatusAuthorized && inv.EmailStatus == entity.EmailStatusFailed {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ repository.InvoiceRepository = (*fakeInvoiceRepo)(nil)

type fakeEmitterRepo struct {
	emitters map[string]*entity.Emitter
}

func (r *fakeEmitterRepo) GetByID(_ context.Context, id string) (*entity.Emitter, error) {
	return r.emitters[id], nil
}

type fakeCustomerRepo struct {
	customers map[string]*entity.Customer
}

func (r *fakeCustomerRepo) Create(_ context.Context, c *entity.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	r.customers[c.ID] = c
	return nil
}

func (r *fakeCustomerRepo) GetByID(_ context.Context, id string) (*entity.Customer, error) {
	return r.customers[id], nil
}

type fakeAPICallLogRepo struct {
	mu   sync.Mutex
	rows []*entity.APICallLog
}

func (r *fakeAPICallLogRepo) Create(_ context.Context, log *entity.APICallLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.Outcome = entity.APICallPending
	cp := *log
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeAPICallLogRepo) MarkResult(_ context.Context, id, outcome, responseBody string, httpStatus int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			row.Outcome = outcome
			row.ResponseBody = responseBody
			row.HTTPStatus = httpStatus
		}
	}
	return nil
}

func (r *fakeAPICallLogRepo) ListByInvoice(_ context.Context, invoiceID string) ([]*entity.APICallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.APICallLog
	for _, row := range r.rows {
		if row.InvoiceID == invoiceID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeEmailLogRepo struct {
	mu   sync.Mutex
	rows []*entity.EmailLog
}

func (r *fakeEmailLogRepo) Create(_ context.Context, log *entity.EmailLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.Status = entity.EmailLogPending
	cp := *log
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeEmailLogRepo) GetOpenByInvoice(_ context.Context, invoiceID string) (*entity.EmailLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if row.InvoiceID == invoiceID && row.Status != entity.EmailLogSent {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeEmailLogRepo) MarkSent(_ context.Context, id, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			row.Status = entity.EmailLogSent
			row.MessageID = messageID
		}
	}
	return nil
}

func (r *fakeEmailLogRepo) MarkFailed(_ context.Context, id, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			row.Status = entity.EmailLogFailed
			row.ErrorMessage = errorMessage
			row.Attempts++
		}
	}
	return nil
}

func (r *fakeEmailLogRepo) MarkRetrying(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			row.Status = entity.EmailLogRetrying
		}
	}
	return nil
}

func (r *fakeEmailLogRepo) ListByInvoice(_ context.Context, invoiceID string) ([]*entity.EmailLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.EmailLog
	for _, row := range r.rows {
		if row.InvoiceID == invoiceID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeSubmitter simula el PAC con una cola de respuestas programadas, un
// resultado por llamada en orden FIFO.
type fakeSubmitter struct {
	mu    sync.Mutex
	queue []submitResult
	calls int
}

type submitResult struct {
	resp       *dgi.Response
	httpStatus int
	raw        []byte
	err        error
}

func (s *fakeSubmitter) enqueue(r submitResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, r)
}

func (s *fakeSubmitter) Submit(_ context.Context, _ *dgi.Payload) (*dgi.Response, int, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.queue) == 0 {
		return nil, 0, nil, context.DeadlineExceeded
	}
	r := s.queue[0]
	s.queue = s.queue[1:]
	return r.resp, r.httpStatus, r.raw, r.err
}

func (s *fakeSubmitter) Endpoint() string { return "https://pac.test/api/v1/documentos/emitir" }

// fakeSender registra los envíos y las alertas; los resultados se programan
// por llamada igual que en fakeSubmitter.
type fakeSender struct {
	mu      sync.Mutex
	results []email.SendResult
	sent    []email.AuthorizationEmail
	alerts  []string
}

func (s *fakeSender) enqueue(r email.SendResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

func (s *fakeSender) SendAuthorizationEmail(_ context.Context, in email.AuthorizationEmail) email.SendResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, in)
	if len(s.results) == 0 {
		return email.SendResult{Success: false, Err: "sin resultado programado"}
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r
}

func (s *fakeSender) SendErrorAlert(invoiceID, errorMessage string, _ map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, invoiceID+": "+errorMessage)
}

func (s *fakeSender) alertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

// fakePublisher captura los eventos publicados.
type fakePublisher struct {
	mu     sync.Mutex
	events []bus.Event
}

func (p *fakePublisher) Publish(_ context.Context, evt bus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) byName(name string) []bus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []bus.Event
	for _, e := range p.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// failingPublisher simula un bus indisponible.
type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, bus.Event) error {
	return context.DeadlineExceeded
}

// decodeEvent deserializa el payload de un evento capturado.
func decodeEvent(evt bus.Event, out any) error {
	return json.Unmarshal(evt.Data, out)
}

// fakeTxRunner ejecuta el callback directamente sobre los fakes, sin transacción.
type fakeTxRunner struct {
	invoices  repository.InvoiceRepository
	customers repository.CustomerRepository
}

func (r *fakeTxRunner) RunInvoicing(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	customerRepo repository.CustomerRepository,
) error) error {
	return fn(r.invoices, r.customers)
}
