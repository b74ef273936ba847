package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rylieapp/adf-pipeline/internal/config"
	"github.com/rylieapp/adf-pipeline/internal/infra/database"
	"github.com/rylieapp/adf-pipeline/internal/infra/http/handlers"
	"github.com/rylieapp/adf-pipeline/internal/infra/http/middleware"
	"github.com/rylieapp/adf-pipeline/internal/infra/integration/twilio"
	"github.com/rylieapp/adf-pipeline/internal/infra/mail"
	"github.com/rylieapp/adf-pipeline/internal/infra/queue"
	"github.com/rylieapp/adf-pipeline/internal/logger"
	"github.com/rylieapp/adf-pipeline/internal/privacy"
	"github.com/rylieapp/adf-pipeline/internal/usecase"
)

const followUpBody = "Thanks for your interest! A member of our team will text you shortly about the vehicle you asked about. Reply STOP to opt out."

func main() {
	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("config load failed", "error", err)
	}

	db, err := database.NewDBConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalw("migrations failed", "error", err)
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitUser, cfg.RabbitPass, cfg.RabbitHost, cfg.RabbitPort)
	if err != nil {
		log.Fatalw("rabbitmq connection failed", "error", err)
	}
	defer rabbit.Close()

	vault, err := privacy.NewPhoneVault(cfg.PhoneEncryptionKey, cfg.PhoneHashKey)
	if err != nil {
		log.Fatalw("phone vault init failed", "error", err)
	}

	// Repositories
	leadRepo := database.NewLeadRepository(db)
	queueRepo := database.NewEmailQueueRepository(db)
	logRepo := database.NewProcessingLogRepository(db)
	smsRepo := database.NewSmsRepository(db)
	optOutRepo := database.NewOptOutRepository(db)
	convRepo := database.NewConversationRepository(db)

	// Adapters
	producer := queue.NewProducer(rabbit.Ch)
	carrier := twilio.NewClient(cfg.CarrierAccountSID, cfg.CarrierAuthToken, cfg.CarrierFromNumber, cfg.CarrierBaseURL)
	alerts := mail.NewAlertSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.AlertFromAddr, cfg.AlertToAddr)

	// UseCases
	ingestUC := usecase.NewIngestEmailUseCase(queueRepo, producer, log)
	processUC := usecase.NewProcessQueueItemUseCase(queueRepo, leadRepo, logRepo, convRepo, producer, alerts, followUpBody, log)
	sendSmsUC := usecase.NewSendSmsUseCase(smsRepo, optOutRepo, logRepo, carrier, vault, log)
	reconcileUC := usecase.NewReconcileDeliveryUseCase(smsRepo, log)
	optOutUC := usecase.NewOptOutKeywordUseCase(optOutRepo, vault, log)

	// Worker pool consuming the broker queues
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := queue.NewWorker(rabbit.Ch, processUC, sendSmsUC, cfg.WorkerCount, log)
	go func() {
		if err := worker.Start(ctx); err != nil {
			log.Errorw("worker pool stopped", "error", err)
		}
	}()

	// Handlers
	emailHandler := handlers.NewEmailHandler(ingestUC, log)
	webhookHandler := handlers.NewCarrierWebhookHandler(reconcileUC, optOutUC, log)
	leadHandler := handlers.NewLeadHandler(leadRepo, logRepo, log)
	queueHandler := handlers.NewQueueHandler(queueRepo, log)
	healthHandler := handlers.NewHealthHandler(db, rabbit.Conn)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Tenant-ID"},
	}))

	r.Post("/inbound/email", emailHandler.Handle)
	r.Post("/webhooks/carrier/status", webhookHandler.HandleStatus)
	r.Post("/webhooks/carrier/inbound/{tenantID}", webhookHandler.HandleInbound)
	r.Get("/leads/{leadID}", leadHandler.HandleGet)
	r.Get("/leads/{leadID}/logs", leadHandler.HandleListLogs)
	r.Get("/queue/items/{itemID}", queueHandler.HandleGet)
	r.Post("/queue/items/{itemID}/cancel", queueHandler.HandleCancel)
	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	log.Infow("adf pipeline listening", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalw("server failed", "error", err)
	}
}
