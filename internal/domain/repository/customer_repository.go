package repository

import (
	"context"

	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
)

// CustomerRepository define el puerto de persistencia para Customer.
// El workflow solo lee; el CRUD completo lo usa la capa HTTP.
type CustomerRepository interface {
	Create(ctx context.Context, customer *entity.Customer) error
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
}
