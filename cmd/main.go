/**
 * @description
 * This is the main entry point for the onboarding-service. It is responsible
 * for initializing all components of the service: configuration, database
 * connection, payment provider clients, the message broker, repositories,
 * the core application service, the reconciliation scheduler, and the HTTP
 * server. It wires everything together and starts the service.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: HTTP routing (via internal/api).
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/pricing,
 *   internal/store: Internal packages for the service.
 * - pkg/stripeclient, pkg/paystackclient, pkg/emailclient, pkg/rabbitmq:
 *   External collaborators.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/devlaunch/onboarding-service/internal/api"
	"github.com/devlaunch/onboarding-service/internal/app"
	"github.com/devlaunch/onboarding-service/internal/config"
	"github.com/devlaunch/onboarding-service/internal/domain"
	"github.com/devlaunch/onboarding-service/internal/pricing"
	"github.com/devlaunch/onboarding-service/internal/store"
	"github.com/devlaunch/onboarding-service/pkg/emailclient"
	"github.com/devlaunch/onboarding-service/pkg/paystackclient"
	"github.com/devlaunch/onboarding-service/pkg/rabbitmq"
	"github.com/devlaunch/onboarding-service/pkg/stripeclient"
)

func main() {
	// Load the optional .env file before viper reads the environment.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting onboarding-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer; the service runs with a no-op
	// publisher when the broker is unavailable at startup.
	var publisher rabbitmq.Publisher
	producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		publisher = &rabbitmq.NoopPublisher{}
	} else {
		defer producer.Close()
		publisher = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Provider clients stay nil when unconfigured; the affected endpoints
	// degrade to precondition failures instead of crashing.
	var stripeGateway app.StripeGateway
	if cfg.StripeSecretKey != "" {
		stripeGateway = stripeclient.NewClient(cfg.StripeSecretKey)
	}
	var paystackGateway app.PaystackGateway
	if cfg.PaystackSecretKey != "" {
		paystackGateway = paystackclient.NewClient(cfg.PaystackSecretKey)
	}
	var emailSender app.EmailSender
	if cfg.EmailJSServiceID != "" && cfg.EmailJSUserID != "" {
		emailSender = emailclient.NewClient(cfg.EmailJSServiceID, cfg.EmailJSUserID)
	}

	repository := store.NewPostgresRepository(dbpool)
	catalog := pricing.DefaultCatalog()

	service := app.NewService(
		repository,
		stripeGateway,
		paystackGateway,
		emailSender,
		publisher,
		catalog,
		app.EmailTemplates{
			Welcome:    cfg.EmailJSTemplateWelcome,
			Submission: cfg.EmailJSTemplateSubmission,
			AdminAlert: cfg.EmailJSTemplateAdminAlert,
			Status:     cfg.EmailJSTemplateStatus,
			Receipt:    cfg.EmailJSTemplateReceipt,
		},
		cfg.AdminUID,
		cfg.AdminEmail,
		cfg.AppBaseURL,
	)

	// Start the notification/bootstrap event consumer.
	eventConsumer := service.Consumer()
	rabbitConsumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; notifications disabled\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()
		bindings := map[string]func([]byte) bool{
			domain.ProjectSubmittedKey: eventConsumer.HandleProjectSubmitted,
			domain.PaymentCompletedKey: eventConsumer.HandlePaymentCompleted,
			domain.UserCreatedKey:      eventConsumer.HandleUserCreated,
		}
		if err := rabbitConsumer.ConsumeWithBindings(domain.EventsExchange, cfg.EventQueue, bindings); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"event consumer start failed\" err=%v", err)
		}
		log.Println("level=info component=bootstrap msg=\"event consumer started\"")
	}

	// Start the stale-pending-payment reconciler.
	reconciler := app.NewReconciler(
		service,
		repository,
		slog.New(slog.NewTextHandler(os.Stdout, nil)),
		cfg.ReconcileSchedule,
		time.Duration(cfg.ReconcileStaleMinutes)*time.Minute,
	)
	reconciler.Start()
	defer reconciler.Stop()

	handlers := api.NewHandlers(service, catalog)
	webhookHandlers := api.NewWebhookHandlers(service, cfg.StripeWebhookSecret, cfg.PaystackSecretKey)
	router := api.NewRouter(handlers, webhookHandlers, cfg.AuthJWKSURL)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
