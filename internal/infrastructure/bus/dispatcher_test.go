package bus_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialsa/facturacion-dgi/internal/infrastructure/bus"
	"github.com/vialsa/facturacion-dgi/pkg/logger"
)

func newEvent(t *testing.T, name, key string) bus.Event {
	t.Helper()
	evt, err := bus.NewEvent(name, key, map[string]string{"k": "v"})
	require.NoError(t, err)
	return evt
}

func TestDispatcher_EntregaSimple(t *testing.T) {
	d := bus.NewDispatcher(logger.Nop())
	defer d.Close()

	var delivered atomic.Int32
	require.NoError(t, d.Subscribe(bus.Subscription{
		Event:       "test/evento",
		MaxAttempts: 1,
		MaxParallel: 1,
		Handler: func(context.Context, bus.Event) error {
			delivered.Add(1)
			return nil
		},
	}))

	require.NoError(t, d.Publish(context.Background(), newEvent(t, "test/evento", "")))
	d.Wait()
	assert.Equal(t, int32(1), delivered.Load())
}

func TestDispatcher_SinConsumidorEsError(t *testing.T) {
	d := bus.NewDispatcher(logger.Nop())
	defer d.Close()

	err := d.Publish(context.Background(), newEvent(t, "test/huerfano", ""))
	assert.Error(t, err, "publicar sin consumidor debe fallar en el encolado")
}

func TestDispatcher_ConsumidorDuplicadoEsError(t *testing.T) {
	d := bus.NewDispatcher(logger.Nop())
	defer d.Close()

	sub := bus.Subscription{
		Event:       "test/evento",
		Handler:     func(context.Context, bus.Event) error { return nil },
		MaxAttempts: 1,
		MaxParallel: 1,
	}
	require.NoError(t, d.Subscribe(sub))
	assert.Error(t, d.Subscribe(sub), "un evento admite un solo consumidor")
}

// El presupuesto fijo: dos fallos y el tercero entrega.
func TestDispatcher_ReintentaHastaExito(t *testing.T) {
	d := bus.NewDispatcher(logger.Nop())
	defer d.Close()

	var attempts atomic.Int32
	require.NoError(t, d.Subscribe(bus.Subscription{
		Event:       "test/reintentos",
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
		MaxParallel: 1,
		Handler: func(context.Context, bus.Event) error {
			if attempts.Add(1) < 3 {
				return errors.New("fallo transitorio")
			}
			return nil
		},
	}))

	require.NoError(t, d.Publish(context.Background(), newEvent(t, "test/reintentos", "")))
	d.Wait()
	assert.Equal(t, int32(3), attempts.Load(), "debe reintentar exactamente hasta el éxito")
}

func TestDispatcher_AgotaPresupuesto(t *testing.T) {
	d := bus.NewDispatcher(logger.Nop())
	defer d.Close()

	var attempts atomic.Int32
	require.NoError(t, d.Subscribe(bus.Subscription{
		Event:       "test/agotado",
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
		MaxParallel: 1,
		Handler: func(context.Context, bus.Event) error {
			attempts.Add(1)
			return errors.New("fallo permanente")
		},
	}))

	require.NoError(t, d.Publish(context.Background(), newEvent(t, "test/agotado", "")))
	d.Wait()
	assert.Equal(t, int32(3), attempts.Load(),
		"agotado el presupuesto la entrega se abandona sin más intentos")
}

// El límite por Key serializa las entregas del mismo emisor; emisores distintos
// corren en paralelo.
func TestDispatcher_LimitePorClave(t *testing.T) {
	d := bus.NewDispatcher(logger.Nop())
	defer d.Close()

	var mu sync.Mutex
	inFlight := map[string]int{}
	maxInFlight := map[string]int{}

	require.NoError(t, d.Subscribe(bus.Subscription{
		Event:       "test/porclave",
		MaxAttempts: 1,
		MaxParallel: 1,
		PerKey:      true,
		Handler: func(_ context.Context, evt bus.Event) error {
			mu.Lock()
			inFlight[evt.Key]++
			if inFlight[evt.Key] > maxInFlight[evt.Key] {
				maxInFlight[evt.Key] = inFlight[evt.Key]
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			inFlight[evt.Key]--
			mu.Unlock()
			return nil
		},
	}))

	for i := 0; i < 4; i++ {
		require.NoError(t, d.Publish(context.Background(), newEvent(t, "test/porclave", "emisor-a")))
		require.NoError(t, d.Publish(context.Background(), newEvent(t, "test/porclave", "emisor-b")))
	}
	d.Wait()

	assert.Equal(t, 1, maxInFlight["emisor-a"], "las entregas del mismo emisor se serializan")
	assert.Equal(t, 1, maxInFlight["emisor-b"])
}

// Close interrumpe los backoffs pendientes en vez de esperarlos.
func TestDispatcher_CloseInterrumpeReintentos(t *testing.T) {
	d := bus.NewDispatcher(logger.Nop())

	started := make(chan struct{})
	require.NoError(t, d.Subscribe(bus.Subscription{
		Event:       "test/cerrando",
		MaxAttempts: 5,
		Backoff:     time.Hour, // sin Close el test colgaría
		MaxParallel: 1,
		Handler: func(context.Context, bus.Event) error {
			select {
			case <-started:
			default:
				close(started)
			}
			return errors.New("fallo")
		},
	}))

	require.NoError(t, d.Publish(context.Background(), newEvent(t, "test/cerrando", "")))
	<-started

	done := make(chan struct{})
	go func() {
		d.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close no interrumpió el backoff pendiente")
	}
}

// Un handler puede publicar eventos encadenados; Wait cubre también esas entregas.
func TestDispatcher_EventosEncadenados(t *testing.T) {
	d := bus.NewDispatcher(logger.Nop())
	defer d.Close()

	var second atomic.Int32
	require.NoError(t, d.Subscribe(bus.Subscription{
		Event:       "test/segundo",
		MaxAttempts: 1,
		MaxParallel: 1,
		Handler: func(context.Context, bus.Event) error {
			second.Add(1)
			return nil
		},
	}))
	require.NoError(t, d.Subscribe(bus.Subscription{
		Event:       "test/primero",
		MaxAttempts: 1,
		MaxParallel: 1,
		Handler: func(ctx context.Context, _ bus.Event) error {
			return d.Publish(ctx, newEvent(t, "test/segundo", ""))
		},
	}))

	require.NoError(t, d.Publish(context.Background(), newEvent(t, "test/primero", "")))
	d.Wait()
	assert.Equal(t, int32(1), second.Load(), "el evento encadenado también se entrega")
}
