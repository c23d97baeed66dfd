package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// ErrNoItems indica una factura sin líneas: error de integridad de datos,
	// el reintento no lo resuelve.
	ErrNoItems = errors.New("la factura no tiene líneas de detalle")
)
