package billing

import (
	"context"
	"time"

	"github.com/vialsa/facturacion-dgi/internal/domain/repository"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/bus"
	"github.com/vialsa/facturacion-dgi/pkg/logger"
)

// SweeperConfig intervalos y umbrales de los barridos de mantenimiento.
type SweeperConfig struct {
	StuckInterval      time.Duration // barrido de facturas atascadas
	StuckThreshold     time.Duration // antigüedad mínima de updated_at
	EmailRetryInterval time.Duration // barrido de correos fallidos
	Limit              int           // máximo de filas por barrido
}

// Sweeper re-dispara workflows para registros que quedaron a medias: facturas
// no terminales envejecidas (caída a mitad de corrida) y correos fallidos tras
// agotar sus reintentos. Ambos barridos son idempotentes: el guard de estado de
// los workflows convierte un re-disparo de más en no-op.
type Sweeper struct {
	invoices  repository.InvoiceRepository
	publisher EventPublisher
	cfg       SweeperConfig
	log       *logger.Logger
}

// NewSweeper construye el sweeper.
func NewSweeper(invoices repository.InvoiceRepository, publisher EventPublisher, cfg SweeperConfig, log *logger.Logger) *Sweeper {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	return &Sweeper{
		invoices:  invoices,
		publisher: publisher,
		cfg:       cfg,
		log:       log.Component("sweeper"),
	}
}

// Run ejecuta ambos barridos en bucle hasta que se cancele el contexto.
func (s *Sweeper) Run(ctx context.Context) {
	stuck := time.NewTicker(s.cfg.StuckInterval)
	defer stuck.Stop()
	emails := time.NewTicker(s.cfg.EmailRetryInterval)
	defer emails.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stuck.C:
			if err := s.SweepStuck(ctx); err != nil {
				s.log.Error().Err(err).Msg("barrido de facturas atascadas")
			}
		case <-emails.C:
			if err := s.SweepFailedEmails(ctx); err != nil {
				s.log.Error().Err(err).Msg("barrido de correos fallidos")
			}
		}
	}
}

// SweepStuck re-emite "invoice/created" para facturas en RECEIVED, PREPARING o
// SENDING_TO_PAC cuya última actualización supera el umbral. El umbral evita
// pisar una corrida viva: una instancia activa refresca updated_at en cada
// transición.
func (s *Sweeper) SweepStuck(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.StuckThreshold)
	stuck, err := s.invoices.ListStuck(ctx, cutoff, s.cfg.Limit)
	if err != nil {
		return err
	}
	for _, inv := range stuck {
		evt, err := bus.NewEvent(bus.EventInvoiceCreated, inv.EmitterID, bus.InvoiceCreatedEvent{
			InvoiceID: inv.ID,
			EmitterID: inv.EmitterID,
		})
		if err == nil {
			err = s.publisher.Publish(ctx, evt)
		}
		if err != nil {
			s.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo re-disparar la factura")
			continue
		}
		s.log.Info().
			Str("invoice_id", inv.ID).
			Str("status", inv.Status).
			Time("updated_at", inv.UpdatedAt).
			Msg("factura atascada re-disparada")
	}
	return nil
}

// SweepFailedEmails re-emite "invoice/email.send" para facturas AUTHORIZED con
// correo FAILED. Sin límite de ciclos: se insiste hasta que el correo salga o
// alguien intervenga.
func (s *Sweeper) SweepFailedEmails(ctx context.Context) error {
	failed, err := s.invoices.ListEmailFailed(ctx, s.cfg.Limit)
	if err != nil {
		return err
	}
	for _, inv := range failed {
		evt, err := bus.NewEvent(bus.EventEmailSend, inv.EmitterID, bus.EmailSendEvent{
			InvoiceID: inv.ID,
			CUFE:      inv.CUFE,
			URLCUFE:   inv.URLCUFE,
		})
		if err == nil {
			err = s.publisher.Publish(ctx, evt)
		}
		if err != nil {
			s.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo re-disparar el correo")
			continue
		}
		s.log.Info().Str("invoice_id", inv.ID).Msg("correo fallido re-disparado")
	}
	return nil
}
