package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vialsa/facturacion-dgi/internal/application/dto"
	"github.com/vialsa/facturacion-dgi/internal/domain"
	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
	"github.com/vialsa/facturacion-dgi/internal/domain/repository"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/bus"
	"github.com/vialsa/facturacion-dgi/pkg/logger"
)

// CreateInvoiceUseCase persiste una factura (cabecera + líneas, en una sola
// transacción) y emite el evento "invoice/created" que arranca el workflow DGI.
// El llamador no espera el resultado del PAC: recibe el ID y consulta estado.
type CreateInvoiceUseCase struct {
	txRunner  InvoicingTxRunner
	emitters  repository.EmitterRepository
	customers repository.CustomerRepository
	publisher EventPublisher
	log       *logger.Logger
}

// NewCreateInvoiceUseCase construye el caso de uso.
func NewCreateInvoiceUseCase(
	txRunner InvoicingTxRunner,
	emitters repository.EmitterRepository,
	customers repository.CustomerRepository,
	publisher EventPublisher,
	log *logger.Logger,
) *CreateInvoiceUseCase {
	return &CreateInvoiceUseCase{
		txRunner:  txRunner,
		emitters:  emitters,
		customers: customers,
		publisher: publisher,
		log:       log.Component("create-invoice"),
	}
}

// CreateInvoice valida la entrada, calcula totales y persiste el documento en
// estado RECEIVED antes de publicar el evento.
func (uc *CreateInvoiceUseCase) CreateInvoice(ctx context.Context, in dto.CreateInvoiceRequest) (*entity.Invoice, error) {
	if in.EmitterID == "" || in.CustomerID == "" || in.DocumentNumber == "" || len(in.Items) == 0 {
		return nil, domain.ErrInvalidInput
	}

	// Validar colaboradores fuera de la transacción (solo lectura).
	emitter, err := uc.emitters.GetByID(ctx, in.EmitterID)
	if err != nil {
		return nil, err
	}
	if emitter == nil {
		return nil, domain.ErrNotFound
	}
	customer, err := uc.customers.GetByID(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil || customer.EmitterID != in.EmitterID {
		return nil, domain.ErrNotFound
	}

	net := decimal.Zero
	tax := decimal.Zero
	items := make([]*entity.InvoiceItem, len(in.Items))
	for i, it := range in.Items {
		if it.Description == "" || !it.Quantity.GreaterThan(decimal.Zero) || it.UnitPrice.LessThan(decimal.Zero) {
			return nil, domain.ErrInvalidInput
		}
		lineTotal := it.Quantity.Mul(it.UnitPrice).Round(2)
		items[i] = &entity.InvoiceItem{
			LineNo:      i + 1,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
			LineTotal:   lineTotal,
		}
		net = net.Add(lineTotal)
		tax = tax.Add(lineTotal.Mul(it.TaxRate).Round(2))
	}

	now := time.Now()
	inv := &entity.Invoice{
		EmitterID:      in.EmitterID,
		CustomerID:     in.CustomerID,
		DocumentNumber: in.DocumentNumber,
		Status:         entity.StatusReceived,
		EmailStatus:    entity.EmailStatusPending,
		NetTotal:       net,
		TaxTotal:       tax,
		GrandTotal:     net.Add(tax),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = uc.txRunner.RunInvoicing(ctx, func(invoiceRepo repository.InvoiceRepository, _ repository.CustomerRepository) error {
		if err := invoiceRepo.Create(ctx, inv); err != nil {
			return err
		}
		for _, item := range items {
			item.InvoiceID = inv.ID
			if err := invoiceRepo.CreateItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt, err := bus.NewEvent(bus.EventInvoiceCreated, inv.EmitterID, bus.InvoiceCreatedEvent{
		InvoiceID: inv.ID,
		EmitterID: inv.EmitterID,
	})
	if err == nil {
		err = uc.publisher.Publish(ctx, evt)
	}
	if err != nil {
		// La factura ya quedó en RECEIVED; el sweeper de atascadas la recogerá.
		uc.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo publicar invoice/created")
		return inv, nil
	}

	uc.log.Info().
		Str("invoice_id", inv.ID).
		Str("emitter_id", inv.EmitterID).
		Str("document_number", inv.DocumentNumber).
		Msg("factura creada, workflow disparado")
	return inv, nil
}
