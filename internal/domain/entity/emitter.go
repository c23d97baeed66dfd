package entity

import "time"

// Emitter representa la empresa emisora de documentos fiscales (tenant del CRM).
// De solo lectura para el workflow: sus credenciales PAC se seleccionan por BranchCode.
type Emitter struct {
	ID         string
	Name       string
	RUC        string // Registro Único de Contribuyente
	DV         string // Dígito verificador del RUC
	BranchCode string // Punto de facturación (d_ptofacdf); selecciona credenciales ante el PAC
	Address    string
	Email      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
