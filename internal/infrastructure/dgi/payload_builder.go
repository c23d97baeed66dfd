package dgi

import (
	"fmt"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/vialsa/facturacion-dgi/internal/domain"
	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
)

// Catálogo DGI de formas de pago (subconjunto).
const (
	FormaPagoEfectivo      = "01"
	FormaPagoCheque        = "02"
	FormaPagoTransferencia = "03"
)

const (
	tipoEmisionNormal          = "01"
	tipoDocumentoFactura       = "01"
	tipoRucJuridico            = "2"
	tipoClienteContribuyente   = "01"
	tipoClienteConsumidorFinal = "02"
)

// PayloadInput agrupa las entradas del constructor de payload.
type PayloadInput struct {
	Emitter        *entity.Emitter
	Customer       *entity.Customer
	Items          []*entity.InvoiceItem
	DocumentNumber string
	IssuedAt       time.Time
	GrandTotal     decimal.Decimal
	NetTotal       decimal.Decimal
	TaxTotal       decimal.Decimal
	Ambiente       int
}

// BuildPayload es una transformación pura: mismas entradas, mismo payload.
// No hace IO ni consulta el reloj; la fecha de emisión viene de la factura.
// El método de pago es único y fijo (efectivo por el total, catálogo "01").
func BuildPayload(in PayloadInput) (*Payload, error) {
	if in.Emitter == nil || in.Customer == nil {
		return nil, domain.ErrInvalidInput
	}
	if len(in.Items) == 0 {
		return nil, domain.ErrNoItems
	}

	items := make([]Item, len(in.Items))
	for i, it := range in.Items {
		valorITBMS := it.LineTotal.Mul(it.TaxRate).Round(2)
		items[i] = Item{
			Descripcion:    sanitize(it.Description),
			Cantidad:       it.Quantity.StringFixed(2),
			PrecioUnitario: it.UnitPrice.StringFixed(2),
			ValorTotal:     it.LineTotal.StringFixed(2),
			TasaITBMS:      it.TaxRate.Mul(decimal.NewFromInt(100)).StringFixed(2),
			ValorITBMS:     valorITBMS.StringFixed(2),
		}
	}

	tipoCliente := tipoClienteConsumidorFinal
	if in.Customer.TaxID != "" {
		tipoCliente = tipoClienteContribuyente
	}

	p := &Payload{
		DatosTransaccion: DatosTransaccion{
			Ambiente:               in.Ambiente,
			TipoEmision:            tipoEmisionNormal,
			TipoDocumento:          tipoDocumentoFactura,
			NumeroDocumentoFiscal:  in.DocumentNumber,
			PuntoFacturacionFiscal: in.Emitter.BranchCode,
			FechaEmision:           in.IssuedAt.UTC().Format(time.RFC3339),
		},
		Emisor: Emisor{
			TipoRuc:   tipoRucJuridico,
			RUC:       in.Emitter.RUC,
			DV:        in.Emitter.DV,
			Nombre:    sanitize(in.Emitter.Name),
			Direccion: sanitize(in.Emitter.Address),
			Sucursal:  in.Emitter.BranchCode,
		},
		Cliente: Cliente{
			TipoCliente: tipoCliente,
			RazonSocial: sanitize(in.Customer.Name),
			Direccion:   sanitize(in.Customer.Address),
			RUC:         in.Customer.TaxID,
			Correo:      in.Customer.Email,
		},
		ListaItems: items,
		Totales: Totales{
			TotalNeto:    in.NetTotal.StringFixed(2),
			TotalITBMS:   in.TaxTotal.StringFixed(2),
			TotalFactura: in.GrandTotal.StringFixed(2),
			NumeroItems:  len(items),
		},
		FormasPago: []FormaPago{{
			Forma: FormaPagoEfectivo,
			Valor: in.GrandTotal.StringFixed(2),
		}},
	}

	if in.Customer.Email != "" {
		p.Notificaciones = []Notificacion{{Correo: in.Customer.Email}}
	}

	if p.DatosTransaccion.NumeroDocumentoFiscal == "" {
		return nil, fmt.Errorf("payload: %w: número de documento vacío", domain.ErrInvalidInput)
	}
	return p, nil
}

// sanitize normaliza texto para el PAC: descompone acentos (NFD), descarta las
// marcas diacríticas y recompone. "Señalización" -> "Senalizacion".
func sanitize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
