package dgi

// Payload es el cuerpo JSON que recibe el PAC para emitir un documento fiscal.
// La estructura sigue el modelo de emisión FE Panamá: datos de la transacción,
// emisor, cliente, líneas, totales, formas de pago y destinatarios de notificación.
type Payload struct {
	DatosTransaccion DatosTransaccion `json:"datosTransaccion"`
	Emisor           Emisor           `json:"emisor"`
	Cliente          Cliente          `json:"cliente"`
	ListaItems       []Item           `json:"listaItems"`
	Totales          Totales          `json:"totalesSubTotales"`
	FormasPago       []FormaPago      `json:"listaFormaPago"`
	Notificaciones   []Notificacion   `json:"notificaciones,omitempty"`
}

// DatosTransaccion identifica el documento dentro de la serie del emisor.
type DatosTransaccion struct {
	Ambiente               int    `json:"iAmb"`     // 1 producción, 2 pruebas
	TipoEmision            string `json:"iTpEmis"`  // "01" uso previo autorización
	TipoDocumento          string `json:"iDoc"`     // "01" factura de operación interna
	NumeroDocumentoFiscal  string `json:"dNroDF"`
	PuntoFacturacionFiscal string `json:"dPtoFacDF"`
	FechaEmision           string `json:"dFechaEm"` // RFC3339; derivada de la factura, no del reloj
}

// Emisor datos fiscales de la empresa emisora.
type Emisor struct {
	TipoRuc   string `json:"dTipoRuc"` // "2" persona jurídica
	RUC       string `json:"dRuc"`
	DV        string `json:"dDV"`
	Nombre    string `json:"dNombEm"`
	Direccion string `json:"dDirecEm"`
	Sucursal  string `json:"dSucEm"`
}

// Cliente datos del receptor del documento.
type Cliente struct {
	TipoCliente string `json:"iTipoRec"` // "01" contribuyente, "02" consumidor final
	RazonSocial string `json:"dNombRec"`
	Direccion   string `json:"dDirecRec,omitempty"`
	RUC         string `json:"dRucRec,omitempty"`
	Correo      string `json:"dCorElectRec,omitempty"`
}

// Item una línea del documento.
type Item struct {
	Descripcion    string `json:"dDescProd"`
	Cantidad       string `json:"dCantCodInt"`
	PrecioUnitario string `json:"dPrUnit"`
	ValorTotal     string `json:"dPrItem"`
	TasaITBMS      string `json:"dTasaITBMS"`
	ValorITBMS     string `json:"dValITBMS"`
}

// Totales montos consolidados del documento.
type Totales struct {
	TotalNeto    string `json:"dTotNeto"`
	TotalITBMS   string `json:"dTotITBMS"`
	TotalFactura string `json:"dVTot"`
	NumeroItems  int    `json:"dNroItems"`
}

// FormaPago una forma de pago aplicada al documento.
type FormaPago struct {
	Forma string `json:"iFormaPago"` // catálogo DGI: "01" efectivo, "02" cheque, ...
	Valor string `json:"dVlrCuota"`
}

// Notificacion destinatario del correo que dispara el PAC al autorizar.
type Notificacion struct {
	Correo string `json:"dCorreo"`
}

// Response es la respuesta JSON del PAC a una emisión.
type Response struct {
	Codigo         string             `json:"codigo"`    // "0260" = autorizado el uso de la FE
	Resultado      string             `json:"resultado"` // "Procesado" | "Rechazado" | ...
	Mensajes       []MensajeRespuesta `json:"mensajes,omitempty"`
	CUFE           string             `json:"cufe,omitempty"`
	QR             string             `json:"qr,omitempty"` // URL pública de consulta del documento
	XMLFE          string             `json:"xmlFE,omitempty"`
	FechaRecepcion string             `json:"fechaRecepcionDGI,omitempty"`
}

// MensajeRespuesta un mensaje de validación devuelto por el PAC.
type MensajeRespuesta struct {
	Codigo      string `json:"codigo"`
	Descripcion string `json:"descripcion"`
}

// SuccessData campos que persisten en la factura tras una autorización.
type SuccessData struct {
	CUFE      string
	URLCUFE   string
	FiscalXML string
}
