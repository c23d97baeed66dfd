package entity

import "time"

// Customer representa el receptor de un documento fiscal.
// Su email es el destino del correo de autorización.
type Customer struct {
	ID        string
	EmitterID string
	Name      string
	Email     string
	Address   string
	TaxID     string // RUC o cédula (vacío = consumidor final)
	CreatedAt time.Time
	UpdatedAt time.Time
}
