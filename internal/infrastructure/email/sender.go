package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/vialsa/facturacion-dgi/pkg/logger"
)

// Config del proveedor SMTP.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AlertTo  string // Destino de las alertas internas de error
}

// AuthorizationEmail datos para el correo de autorización al cliente.
type AuthorizationEmail struct {
	To             string
	Subject        string
	CustomerName   string
	DocumentNumber string
	CUFE           string
	URLCUFE        string
	FiscalXML      string // Se adjunta si no está vacío
}

// SendResult resultado de un envío: éxito con MessageID, o mensaje de error.
type SendResult struct {
	Success   bool
	MessageID string
	Err       string
}

// Sender implementa el puerto de notificaciones sobre SMTP (gomail).
type Sender struct {
	cfg    Config
	dialer *gomail.Dialer
	log    *logger.Logger
}

// NewSender construye el sender con su dialer SMTP.
func NewSender(cfg Config, log *logger.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		log:    log.Component("email"),
	}
}

const authorizationBody = `<html>
<body style="font-family: Arial, sans-serif;">
  <p>Estimado(a) {{.CustomerName}},</p>
  <p>Su factura electrónica <strong>{{.DocumentNumber}}</strong> fue autorizada por la DGI.</p>
  <p>CUFE: <code>{{.CUFE}}</code></p>
  {{if .URLCUFE}}<p>Puede consultar el documento en: <a href="{{.URLCUFE}}">{{.URLCUFE}}</a></p>{{end}}
  <p>Se adjunta el XML fiscal del documento.</p>
  <p>VIALSA — Vidrios y Aluminios, S.A.</p>
</body>
</html>`

var authorizationTmpl = template.Must(template.New("autorizacion").Parse(authorizationBody))

// SendAuthorizationEmail envía el correo de autorización al cliente.
// No retorna error: el resultado (éxito o fallo) viaja en SendResult para que el
// workflow decida la política de reintento.
func (s *Sender) SendAuthorizationEmail(ctx context.Context, in AuthorizationEmail) SendResult {
	var body bytes.Buffer
	if err := authorizationTmpl.Execute(&body, in); err != nil {
		return SendResult{Err: fmt.Sprintf("renderizar plantilla: %v", err)}
	}

	messageID := uuid.New().String()
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", in.To)
	m.SetHeader("Subject", in.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@vialsa.com.pa>", messageID))
	m.SetBody("text/html", body.String())
	if in.FiscalXML != "" {
		m.Attach(in.DocumentNumber+".xml", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write([]byte(in.FiscalXML))
			return err
		}))
	}

	if err := s.dialAndSend(ctx, m); err != nil {
		return SendResult{Err: err.Error()}
	}
	return SendResult{Success: true, MessageID: messageID}
}

// SendErrorAlert notifica al equipo interno un rechazo o fallo de procesamiento.
// Best-effort: los errores se registran y se descartan, nunca interrumpen el workflow.
func (s *Sender) SendErrorAlert(invoiceID, errorMessage string, contexto map[string]string) {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.AlertTo)
	m.SetHeader("Subject", fmt.Sprintf("[FE] Error procesando factura %s", invoiceID))

	var body bytes.Buffer
	fmt.Fprintf(&body, "<p>Factura: <strong>%s</strong></p>", template.HTMLEscapeString(invoiceID))
	fmt.Fprintf(&body, "<p>Error: %s</p>", template.HTMLEscapeString(errorMessage))
	for k, v := range contexto {
		fmt.Fprintf(&body, "<pre><strong>%s</strong>\n%s</pre>",
			template.HTMLEscapeString(k), template.HTMLEscapeString(v))
	}
	m.SetBody("text/html", body.String())

	if err := s.dialAndSend(context.Background(), m); err != nil {
		s.log.Warn().Err(err).Str("invoice_id", invoiceID).Msg("alerta interna no enviada")
	}
}

// dialAndSend respeta la cancelación del contexto: gomail no acepta context,
// así que el envío corre aparte y aquí se espera al primero que termine.
func (s *Sender) dialAndSend(ctx context.Context, m *gomail.Message) error {
	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
