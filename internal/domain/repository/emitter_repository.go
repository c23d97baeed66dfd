package repository

import (
	"context"

	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
)

// EmitterRepository define el puerto de lectura del emisor.
// El workflow nunca muta emisores.
type EmitterRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Emitter, error)
}
