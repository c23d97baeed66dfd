package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
	"github.com/vialsa/facturacion-dgi/internal/domain/repository"
)

var _ repository.EmitterRepository = (*EmitterRepo)(nil)

// EmitterRepo implementación de EmitterRepository (solo lectura para el workflow).
type EmitterRepo struct {
	q Querier
}

// NewEmitterRepository construye el adaptador. Pasar pool o tx (Querier).
func NewEmitterRepository(q Querier) *EmitterRepo {
	return &EmitterRepo{q: q}
}

// GetByID obtiene un emisor por ID.
func (r *EmitterRepo) GetByID(ctx context.Context, id string) (*entity.Emitter, error) {
	query := `
		SELECT id, name, ruc, dv, branch_code, COALESCE(address, ''), COALESCE(email, ''),
		       created_at, updated_at
		FROM emitters WHERE id = $1`
	var e entity.Emitter
	err := r.q.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Name, &e.RUC, &e.DV, &e.BranchCode, &e.Address, &e.Email,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get emitter: %w", err)
	}
	return &e, nil
}
