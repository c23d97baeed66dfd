package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vialsa/facturacion-dgi/pkg/logger"
)

// Subscription configura el consumidor de un evento.
type Subscription struct {
	Event       string
	MaxAttempts int           // Intentos totales (mínimo 1)
	Backoff     time.Duration // Base del backoff exponencial entre intentos
	MaxParallel int64         // Entregas simultáneas (global o por Key)
	PerKey      bool          // true: el límite aplica por Event.Key (ej. por emisor)
	Handler     Handler
}

// subscription estado interno: la suscripción más sus semáforos.
type subscription struct {
	Subscription

	mu        sync.Mutex
	globalSem *semaphore.Weighted
	keySems   map[string]*semaphore.Weighted
}

// semFor devuelve el semáforo que limita esta entrega. Los semáforos por Key se
// crean bajo demanda y no se liberan: la cardinalidad de emisores es acotada.
func (s *subscription) semFor(key string) *semaphore.Weighted {
	if !s.PerKey {
		return s.globalSem
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.keySems[key]
	if !ok {
		sem = semaphore.NewWeighted(s.MaxParallel)
		s.keySems[key] = sem
	}
	return sem
}

// Dispatcher entrega eventos en memoria dentro del proceso.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	log    *logger.Logger
}

var _ Publisher = (*Dispatcher)(nil)

// NewDispatcher construye el despachador. Close detiene las entregas en curso.
func NewDispatcher(log *logger.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		subs:   make(map[string]*subscription),
		ctx:    ctx,
		cancel: cancel,
		log:    log.Component("bus"),
	}
}

// Subscribe registra el consumidor de un evento. Un evento admite un solo consumidor.
func (d *Dispatcher) Subscribe(s Subscription) error {
	if s.Event == "" || s.Handler == nil {
		return fmt.Errorf("bus: suscripción incompleta")
	}
	if s.MaxAttempts < 1 {
		s.MaxAttempts = 1
	}
	if s.MaxParallel < 1 {
		s.MaxParallel = 1
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.subs[s.Event]; exists {
		return fmt.Errorf("bus: evento %q ya tiene consumidor", s.Event)
	}
	d.subs[s.Event] = &subscription{
		Subscription: s,
		globalSem:    semaphore.NewWeighted(s.MaxParallel),
		keySems:      make(map[string]*semaphore.Weighted),
	}
	return nil
}

// Publish entrega el evento de forma asíncrona: el productor no espera al
// consumidor ni a sus reintentos. Error solo si el evento no tiene consumidor.
func (d *Dispatcher) Publish(_ context.Context, evt Event) error {
	d.mu.RLock()
	sub, ok := d.subs[evt.Name]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("bus: evento %q sin consumidor", evt.Name)
	}

	d.wg.Add(1)
	go d.deliver(sub, evt)
	return nil
}

// deliver aplica límite de concurrencia y política de reintentos de la suscripción.
func (d *Dispatcher) deliver(sub *subscription, evt Event) {
	defer d.wg.Done()

	sem := sub.semFor(evt.Key)
	if err := sem.Acquire(d.ctx, 1); err != nil {
		return // despachador cerrado
	}
	defer sem.Release(1)

	var lastErr error
	for attempt := 1; attempt <= sub.MaxAttempts; attempt++ {
		lastErr = sub.Handler(d.ctx, evt)
		if lastErr == nil {
			return
		}
		d.log.Warn().
			Str("event", evt.Name).
			Str("key", evt.Key).
			Int("attempt", attempt).
			Int("max_attempts", sub.MaxAttempts).
			Err(lastErr).
			Msg("entrega fallida")

		if attempt < sub.MaxAttempts && !d.sleep(backoffFor(sub.Backoff, attempt)) {
			return
		}
	}

	d.log.Error().
		Str("event", evt.Name).
		Str("key", evt.Key).
		Int("attempts", sub.MaxAttempts).
		Err(lastErr).
		Msg("presupuesto de reintentos agotado")
}

// backoffFor backoff exponencial simple: base * 2^(attempt-1).
func backoffFor(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	return base << (attempt - 1)
}

// sleep espera d o el cierre del despachador. false si se cerró.
func (d *Dispatcher) sleep(dur time.Duration) bool {
	if dur <= 0 {
		return true
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.ctx.Done():
		return false
	}
}

// Wait bloquea hasta que terminen todas las entregas en vuelo (incluidos los
// eventos encadenados que esas entregas publiquen). Pensado para tests y shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancela las entregas en curso y espera su salida.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}
