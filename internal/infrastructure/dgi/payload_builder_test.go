package dgi_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialsa/facturacion-dgi/internal/domain"
	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/dgi"
)

func buildInput() dgi.PayloadInput {
	issued := time.Date(2025, 8, 14, 15, 30, 0, 0, time.UTC)
	return dgi.PayloadInput{
		Emitter: &entity.Emitter{
			Name:       "Vidrios y Aluminios S.A.",
			RUC:        "155596-2-2015",
			DV:         "86",
			BranchCode: "001",
			Address:    "Vía España, Ciudad de Panamá",
		},
		Customer: &entity.Customer{
			Name:    "Construcción & Diseño",
			Email:   "facturas@cyd.example",
			Address: "Calle 50",
			TaxID:   "8-123-456",
		},
		Items: []*entity.InvoiceItem{{
			LineNo:      1,
			Description: "Señalización vial",
			Quantity:    decimal.RequireFromString("2"),
			UnitPrice:   decimal.RequireFromString("50.00"),
			TaxRate:     decimal.RequireFromString("0.07"),
			LineTotal:   decimal.RequireFromString("100.00"),
		}},
		DocumentNumber: "0000000421",
		IssuedAt:       issued,
		NetTotal:       decimal.RequireFromString("100.00"),
		TaxTotal:       decimal.RequireFromString("7.00"),
		GrandTotal:     decimal.RequireFromString("107.00"),
		Ambiente:       2,
	}
}

// BuildPayload es una transformación pura: mismas entradas, mismo JSON, sin
// importar cuándo se ejecute.
func TestBuildPayload_Determinista(t *testing.T) {
	p1, err := dgi.BuildPayload(buildInput())
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	p2, err := dgi.BuildPayload(buildInput())
	require.NoError(t, err)

	j1, _ := json.Marshal(p1)
	j2, _ := json.Marshal(p2)
	assert.JSONEq(t, string(j1), string(j2), "el payload no puede depender del reloj")
}

func TestBuildPayload_FechaDeLaFactura(t *testing.T) {
	p, err := dgi.BuildPayload(buildInput())
	require.NoError(t, err)
	assert.Equal(t, "2025-08-14T15:30:00Z", p.DatosTransaccion.FechaEmision,
		"la fecha de emisión viene de la factura, no del reloj")
}

func TestBuildPayload_SanitizaDiacriticos(t *testing.T) {
	p, err := dgi.BuildPayload(buildInput())
	require.NoError(t, err)

	assert.Equal(t, "Senalizacion vial", p.ListaItems[0].Descripcion)
	assert.Equal(t, "Via Espana, Ciudad de Panama", p.Emisor.Direccion)
	assert.Equal(t, "Construccion & Diseno", p.Cliente.RazonSocial)
}

func TestBuildPayload_PagoUnicoEnEfectivo(t *testing.T) {
	p, err := dgi.BuildPayload(buildInput())
	require.NoError(t, err)

	require.Len(t, p.FormasPago, 1, "la forma de pago es única y fija")
	assert.Equal(t, dgi.FormaPagoEfectivo, p.FormasPago[0].Forma)
	assert.Equal(t, "107.00", p.FormasPago[0].Valor, "el pago cubre el total de la factura")
}

func TestBuildPayload_TotalesYMontos(t *testing.T) {
	p, err := dgi.BuildPayload(buildInput())
	require.NoError(t, err)

	assert.Equal(t, "100.00", p.Totales.TotalNeto)
	assert.Equal(t, "7.00", p.Totales.TotalITBMS)
	assert.Equal(t, "107.00", p.Totales.TotalFactura)
	assert.Equal(t, 1, p.Totales.NumeroItems)
	assert.Equal(t, "7.00", p.ListaItems[0].TasaITBMS, "la tasa viaja como porcentaje")
	assert.Equal(t, "7.00", p.ListaItems[0].ValorITBMS)
}

func TestBuildPayload_ClienteSinRUCEsConsumidorFinal(t *testing.T) {
	in := buildInput()
	in.Customer.TaxID = ""
	p, err := dgi.BuildPayload(in)
	require.NoError(t, err)
	assert.Equal(t, "02", p.Cliente.TipoCliente)

	in.Customer.TaxID = "8-123-456"
	p, err = dgi.BuildPayload(in)
	require.NoError(t, err)
	assert.Equal(t, "01", p.Cliente.TipoCliente, "con RUC el cliente es contribuyente")
}

func TestBuildPayload_Errores(t *testing.T) {
	in := buildInput()
	in.Items = nil
	_, err := dgi.BuildPayload(in)
	assert.ErrorIs(t, err, domain.ErrNoItems)

	in = buildInput()
	in.Emitter = nil
	_, err = dgi.BuildPayload(in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	in = buildInput()
	in.DocumentNumber = ""
	_, err = dgi.BuildPayload(in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
