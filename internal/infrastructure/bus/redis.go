package bus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vialsa/facturacion-dgi/pkg/logger"
)

// RedisTransport publica eventos en una lista de Redis y los consume hacia el
// despachador local. Permite separar productor (API) y consumidor (workers) en
// procesos distintos con semántica at-least-once: un evento extraído que falla
// en el despacho local se reencola.
type RedisTransport struct {
	rdb   *redis.Client
	queue string
	local *Dispatcher
	log   *logger.Logger
}

var _ Publisher = (*RedisTransport)(nil)

// NewRedisTransport construye el transporte sobre un cliente go-redis.
func NewRedisTransport(rdb *redis.Client, queue string, local *Dispatcher, log *logger.Logger) *RedisTransport {
	return &RedisTransport{
		rdb:   rdb,
		queue: queue,
		local: local,
		log:   log.Component("bus-redis"),
	}
}

// Publish encola el evento serializado. A diferencia del despachador en
// memoria, aquí sí puede fallar la publicación (Redis caído).
func (t *RedisTransport) Publish(ctx context.Context, evt Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return t.rdb.RPush(ctx, t.queue, raw).Err()
}

// Run consume la cola en bucle y entrega al despachador local. Retorna al
// cancelarse el contexto.
func (t *RedisTransport) Run(ctx context.Context) {
	for {
		res, err := t.rdb.BLPop(ctx, 5*time.Second, t.queue).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, redis.Nil) {
				t.log.Warn().Err(err).Msg("error leyendo cola de eventos")
				if !sleepCtx(ctx, time.Second) {
					return
				}
			}
			continue
		}
		// BLPop devuelve [clave, valor]
		if len(res) != 2 {
			continue
		}
		var evt Event
		if err := json.Unmarshal([]byte(res[1]), &evt); err != nil {
			t.log.Error().Err(err).Msg("evento ilegible descartado")
			continue
		}
		if err := t.local.Publish(ctx, evt); err != nil {
			// Sin consumidor local: reencolar para otro proceso.
			t.log.Warn().Str("event", evt.Name).Err(err).Msg("evento reencolado")
			_ = t.rdb.RPush(ctx, t.queue, res[1]).Err()
			if !sleepCtx(ctx, time.Second) {
				return
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
