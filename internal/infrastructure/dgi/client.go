package dgi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CodigoAutorizado es el código de respuesta del PAC que marca una FE autorizada.
const CodigoAutorizado = "0260"

// Config del cliente PAC. Se inyecta en el constructor: nada de endpoints ni
// credenciales embebidos en el código.
type Config struct {
	BaseURL  string
	APIKey   string
	Ambiente int // 1 producción, 2 pruebas
	Timeout  time.Duration
}

// Submitter define el puerto de salida hacia el PAC. La implementación concreta
// usa HTTP/JSON; para tests se inyecta un mock.
type Submitter interface {
	// Submit envía el payload al PAC. Devuelve la respuesta parseada, el status
	// HTTP y el cuerpo crudo. Error en fallo de transporte o status no-2xx.
	Submit(ctx context.Context, payload *Payload) (*Response, int, []byte, error)
	// Endpoint devuelve la URL de emisión (para la bitácora de llamadas).
	Endpoint() string
}

// Client implementa Submitter contra el endpoint de emisión del PAC.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient construye el cliente. El timeout por defecto es generoso (60 s):
// el PAC valida contra la DGI de forma síncrona y puede tardar varios segundos.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Endpoint URL de emisión de documentos.
func (c *Client) Endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/api/v1/documentos/emitir"
}

// Submit envía el documento al PAC.
func (c *Client) Submit(ctx context.Context, payload *Payload) (*Response, int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("pac: serializar payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, 0, nil, fmt.Errorf("pac: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, nil, fmt.Errorf("pac: timeout o cancelación: %w", ctx.Err())
		}
		return nil, 0, nil, fmt.Errorf("pac: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // max 4 MB (incluye XML fiscal)
	if err != nil {
		return nil, resp.StatusCode, nil, fmt.Errorf("pac: leer respuesta: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, raw, fmt.Errorf("pac: status HTTP %d: %s", resp.StatusCode, truncate(raw, 512))
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, resp.StatusCode, raw, fmt.Errorf("pac: respuesta no es JSON válido: %w", err)
	}
	return &parsed, resp.StatusCode, raw, nil
}

// IsSuccess clasifica la respuesta del PAC: solo el código 0260 autoriza la FE.
func IsSuccess(r *Response) bool {
	return r != nil && r.Codigo == CodigoAutorizado
}

// ExtractSuccessData extrae los artefactos de autorización, o nil si faltan.
func ExtractSuccessData(r *Response) *SuccessData {
	if r == nil || r.CUFE == "" {
		return nil
	}
	return &SuccessData{
		CUFE:      r.CUFE,
		URLCUFE:   r.QR,
		FiscalXML: r.XMLFE,
	}
}

// ExtractError arma un mensaje legible a partir de los mensajes de rechazo.
func ExtractError(r *Response) string {
	if r == nil {
		return "respuesta vacía del PAC"
	}
	if len(r.Mensajes) > 0 {
		parts := make([]string, 0, len(r.Mensajes))
		for _, m := range r.Mensajes {
			if m.Codigo != "" {
				parts = append(parts, fmt.Sprintf("[%s] %s", m.Codigo, m.Descripcion))
			} else {
				parts = append(parts, m.Descripcion)
			}
		}
		return strings.Join(parts, "; ")
	}
	if r.Resultado != "" {
		return fmt.Sprintf("%s (código %s)", r.Resultado, r.Codigo)
	}
	return "rechazo sin mensajes (código " + r.Codigo + ")"
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
