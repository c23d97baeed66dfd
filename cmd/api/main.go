package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/vialsa/facturacion-dgi/internal/application/billing"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/bus"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/dgi"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/email"
	"github.com/vialsa/facturacion-dgi/internal/infrastructure/postgres"
	httpRouter "github.com/vialsa/facturacion-dgi/internal/interfaces/http"
	"github.com/vialsa/facturacion-dgi/pkg/config"
	"github.com/vialsa/facturacion-dgi/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	emitterRepo := postgres.NewEmitterRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	apiLogRepo := postgres.NewAPICallLogRepository(pool)
	emailLogRepo := postgres.NewEmailLogRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	pacClient := dgi.NewClient(dgi.Config{
		BaseURL:  cfg.DGI.BaseURL,
		APIKey:   cfg.DGI.APIKey,
		Ambiente: cfg.DGI.Environment,
		Timeout:  cfg.DGI.Timeout,
	})
	sender := email.NewSender(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		AlertTo:  cfg.SMTP.AlertTo,
	}, log)

	dispatcher := bus.NewDispatcher(log)

	// Sin Redis configurado los eventos se despachan en memoria; con Redis el
	// mismo binario publica a la cola y la consume hacia el despachador local.
	runCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	var publisher bus.Publisher = dispatcher
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		transport := bus.NewRedisTransport(rdb, cfg.Redis.Queue, dispatcher, log)
		publisher = transport
		go transport.Run(runCtx)
	}

	invoiceWF := billing.NewInvoiceWorkflow(
		invoiceRepo, emitterRepo, customerRepo, apiLogRepo,
		pacClient, sender, publisher, cfg.DGI.Environment, log,
	)
	emailWF := billing.NewEmailWorkflow(invoiceRepo, customerRepo, emailLogRepo, sender, log)

	if err := dispatcher.Subscribe(bus.Subscription{
		Event:       bus.EventInvoiceCreated,
		MaxAttempts: cfg.Workflow.InvoiceMaxAttempts,
		Backoff:     cfg.Workflow.RetryBackoff,
		MaxParallel: cfg.Workflow.EmitterParallel,
		PerKey:      true, // límite por emisor: el PAC castiga ráfagas del mismo RUC
		Handler:     invoiceWF.Handle,
	}); err != nil {
		log.Fatal().Err(err).Msg("suscripción invoice/created")
	}
	if err := dispatcher.Subscribe(bus.Subscription{
		Event:       bus.EventEmailSend,
		MaxAttempts: cfg.Workflow.EmailMaxAttempts,
		Backoff:     cfg.Workflow.RetryBackoff,
		MaxParallel: cfg.Workflow.EmailParallel,
		Handler:     emailWF.Handle,
	}); err != nil {
		log.Fatal().Err(err).Msg("suscripción invoice/email.send")
	}

	createInvoiceUC := billing.NewCreateInvoiceUseCase(txRunner, emitterRepo, customerRepo, publisher, log)

	sweeper := billing.NewSweeper(invoiceRepo, publisher, billing.SweeperConfig{
		StuckInterval:      cfg.Workflow.StuckInterval,
		StuckThreshold:     cfg.Workflow.StuckThreshold,
		EmailRetryInterval: cfg.Workflow.EmailRetryInterval,
		Limit:              cfg.Workflow.SweepLimit,
	}, log)
	go sweeper.Run(runCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturación DGI API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		CreateInvoice: createInvoiceUC,
		Invoices:      invoiceRepo,
		Emails:        emailLogRepo,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	// Primero se detienen sweeper y consumidor Redis, luego las entregas en vuelo.
	stopWorkers()
	dispatcher.Close()

	log.Info().Msg("aplicación detenida")
}
