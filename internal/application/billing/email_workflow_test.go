package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialsa/facturacion-dgi/internal/application/billing"
	"github.com/vialsa/facturacion-dgi/internal/domain"
	"github.com/vialsa/facturacion-dgi/internal/domain/entity"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/email"
	"github.com/vialsa/facturacion-dgi/pkg/logger"
)

type emailFixture struct {
	invoices  *fakeInvoiceRepo
	customers *fakeCustomerRepo
	emailLogs *fakeEmailLogRepo
	sender    *fakeSender
	wf        *billing.EmailWorkflow
}

// newEmailFixture deja una factura AUTHORIZED con correo PENDING, lista para
// el workflow de envío.
func newEmailFixture(t *testing.T) (*emailFixture, *entity.Invoice) {
	t.Helper()
	f := &emailFixture{
		invoices: newFakeInvoiceRepo(),
		customers: &fakeCustomerRepo{customers: map[string]*entity.Customer{
			testCustomerID: {
				ID:        testCustomerID,
				EmitterID: testEmitterID,
				Name:      "Constructora Pacífico",
				Email:     "compras@pacifico.example",
			},
		}},
		emailLogs: &fakeEmailLogRepo{},
		sender:    &fakeSender{},
	}
	f.wf = billing.NewEmailWorkflow(f.invoices, f.customers, f.emailLogs, f.sender, logger.Nop())

	inv := &entity.Invoice{
		EmitterID:      testEmitterID,
		CustomerID:     testCustomerID,
		DocumentNumber: "0000000421",
		Status:         entity.StatusAuthorized,
		EmailStatus:    entity.EmailStatusPending,
		CUFE:           testCUFE,
		URLCUFE:        "https://dgi-fep.mef.gob.pa/consulta/" + testCUFE,
		FiscalXML:      "<rFE><dId>" + testCUFE + "</dId></rFE>",
	}
	require.NoError(t, f.invoices.Create(context.Background(), inv))
	return f, inv
}

func TestEmailWorkflow_EnvioExitoso(t *testing.T) {
	f, inv := newEmailFixture(t)
	f.sender.enqueue(email.SendResult{Success: true, MessageID: "msg-001"})

	require.NoError(t, f.wf.Process(context.Background(), inv.ID))

	got, _ := f.invoices.GetByID(context.Background(), inv.ID)
	assert.Equal(t, entity.EmailStatusSent, got.EmailStatus)

	logs, _ := f.emailLogs.ListByInvoice(context.Background(), inv.ID)
	require.Len(t, logs, 1, "un envío lógico es una sola fila de bitácora")
	assert.Equal(t, entity.EmailLogSent, logs[0].Status)
	assert.Equal(t, "msg-001", logs[0].MessageID)
	assert.Equal(t, "compras@pacifico.example", logs[0].Recipient)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, testCUFE, f.sender.sent[0].CUFE, "el correo lleva el CUFE de autorización")
	assert.NotEmpty(t, f.sender.sent[0].FiscalXML, "el XML fiscal viaja como adjunto")
}

// Cinco intentos fallidos sobre la MISMA fila: Attempts acumula y el estado
// final es FAILED, a la espera del barrido de correos.
func TestEmailWorkflow_CincoFallosAcumulanEnUnaFila(t *testing.T) {
	f, inv := newEmailFixture(t)
	for i := 0; i < 5; i++ {
		f.sender.enqueue(email.SendResult{Success: false, Err: "smtp: connection refused"})
	}

	for i := 0; i < 5; i++ {
		require.Error(t, f.wf.Process(context.Background(), inv.ID),
			"cada intento fallido debe retornar error para que el bus reintente")
	}

	got, _ := f.invoices.GetByID(context.Background(), inv.ID)
	assert.Equal(t, entity.EmailStatusFailed, got.EmailStatus)

	logs, _ := f.emailLogs.ListByInvoice(context.Background(), inv.ID)
	require.Len(t, logs, 1, "los reintentos no crean filas nuevas")
	assert.Equal(t, entity.EmailLogFailed, logs[0].Status)
	assert.Equal(t, 5, logs[0].Attempts, "Attempts refleja el total de intentos")
	assert.Equal(t, "smtp: connection refused", logs[0].ErrorMessage)
}

// Tras un ciclo fallido, el siguiente re-disparo marca RETRYING antes del
// intento y cierra en SENT si el proveedor responde.
func TestEmailWorkflow_ReintentoTrasFalloTermina(t *testing.T) {
	f, inv := newEmailFixture(t)
	f.sender.enqueue(email.SendResult{Success: false, Err: "smtp: timeout"})
	f.sender.enqueue(email.SendResult{Success: true, MessageID: "msg-002"})

	require.Error(t, f.wf.Process(context.Background(), inv.ID))
	require.NoError(t, f.wf.Process(context.Background(), inv.ID))

	got, _ := f.invoices.GetByID(context.Background(), inv.ID)
	assert.Equal(t, entity.EmailStatusSent, got.EmailStatus)

	logs, _ := f.emailLogs.ListByInvoice(context.Background(), inv.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, entity.EmailLogSent, logs[0].Status)
	assert.Equal(t, 1, logs[0].Attempts, "solo el intento fallido incrementó el contador")
	assert.Equal(t, "msg-002", logs[0].MessageID)
}

func TestEmailWorkflow_IdempotenteSiYaEnviado(t *testing.T) {
	f, inv := newEmailFixture(t)
	require.NoError(t, f.invoices.UpdateEmailStatus(context.Background(), inv.ID, entity.EmailStatusSent))

	require.NoError(t, f.wf.Process(context.Background(), inv.ID),
		"procesar un evento duplicado debe ser inocuo")
	assert.Empty(t, f.sender.sent, "no se reenvía un correo ya entregado")
}

func TestEmailWorkflow_RechazaFacturaNoAutorizada(t *testing.T) {
	f, inv := newEmailFixture(t)
	require.NoError(t, f.invoices.UpdateStatus(context.Background(), inv.ID, entity.StatusSendingToPAC))

	err := f.wf.Process(context.Background(), inv.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict, "solo las facturas AUTHORIZED llevan correo")
	assert.Empty(t, f.sender.sent)
}
