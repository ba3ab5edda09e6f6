package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rabbitmq/amqp091-go"

	httpHandle "costume-portal/internal/adapter/http"
	"costume-portal/internal/adapter/metrics"
	"costume-portal/internal/adapter/postgresql"
	"costume-portal/internal/adapter/postgresql/audit_repository"
	"costume-portal/internal/adapter/postgresql/notification_repository"
	"costume-portal/internal/adapter/postgresql/preference_repository"
	"costume-portal/internal/adapter/rabbitmq"
	"costume-portal/internal/adapter/rabbitmq/dispatch_subscriber"
	"costume-portal/internal/adapter/server"
	"costume-portal/internal/adapter/transport"
	"costume-portal/internal/core/domain/models"
	"costume-portal/internal/core/domain/types"
	"costume-portal/internal/core/service/delivery"
	"costume-portal/internal/core/service/dispatch"
	"costume-portal/pkg/config"
	"costume-portal/pkg/flags"
	"costume-portal/pkg/logger"
)

// DispatchApp consumes stage transition events, fans out notifications and
// runs the delivery tracker worker pool.
type DispatchApp struct {
	ctx        context.Context
	cancel     context.CancelFunc
	logger     logger.Logger
	subscriber *dispatch_subscriber.DispatchSubscriber
	dispatcher *dispatch.Service
	tracker    *delivery.Tracker
	api        *server.API
	workers    int
}

// NewDispatchApp creates a new dispatch application
func NewDispatchApp() *DispatchApp {
	cfg, err := config.ParseYAML()
	if err != nil {
		config.PrintYAMLHelp()
		slog.Error("failed to configure application", "error", err)
		os.Exit(1)
	}

	log := logger.InitLogger("Dispatch Worker", logger.LevelDebug)

	// Check required worker name
	if *flags.WorkerName == "" {
		log.Error(context.Background(), types.ActionServiceFailed,
			"worker name is required",
			fmt.Errorf("worker name is required"),
		)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool, err := postgresql.Connect(ctx, cfg)
	if err != nil {
		cancel()
		log.Error(ctx, types.ActionDBConnectFailed, "failed to connect to database", err)
		os.Exit(1)
	}
	log.Info(ctx, types.ActionDBConnected, "connected to database")

	prefRepo := preference_repository.NewPreferenceRepository(pool)
	notifRepo := notification_repository.NewNotificationRepository(pool)
	auditRepo := audit_repository.NewAuditRepository(pool)

	deliveryMetrics := metrics.NewDeliveryMetrics()

	policy := delivery.Policy{
		MaxAttempts:     cfg.Delivery.MaxAttempts,
		BaseBackoff:     cfg.Delivery.BaseBackoff.Std(),
		MaxBackoff:      cfg.Delivery.MaxBackoff.Std(),
		ProviderTimeout: cfg.Delivery.ProviderTimeout.Std(),
	}
	tracker := delivery.NewTracker(notifRepo, auditRepo, transport.NewConsoleTransport(), policy, deliveryMetrics)

	templates, err := dispatch.NewTemplateRegistry()
	if err != nil {
		cancel()
		pool.Close()
		log.Error(ctx, types.ActionServiceFailed, "failed to build template registry", err)
		os.Exit(1)
	}

	dispatcher := dispatch.NewDispatcher(prefRepo, notifRepo, auditRepo, tracker, templates, cfg.Delivery.Concurrency)

	subscriber, err := dispatch_subscriber.NewDispatchSubscriber(ctx, cfg, *flags.WorkerName, *flags.Prefetch)
	if err != nil {
		cancel()
		pool.Close()
		log.Error(ctx, types.ActionRabbitMQConnectFailed, "failed to connect to RabbitMQ", err)
		os.Exit(1)
	}

	// Small HTTP surface: provider webhooks and prometheus scraping.
	api := server.NewRouter(log)
	r := api.Router()
	r.Post("/deliveries/{notificationID}/confirm", httpHandle.NewDeliveryHandler(tracker).ConfirmDelivery())
	r.Method("GET", "/metrics", deliveryMetrics.Handler())

	return &DispatchApp{
		ctx:        ctx,
		cancel:     cancel,
		logger:     log,
		subscriber: subscriber,
		dispatcher: dispatcher,
		tracker:    tracker,
		api:        api,
		workers:    cfg.Delivery.Concurrency,
	}
}

// Start begins the dispatch worker operation
func (app *DispatchApp) Start() {
	app.tracker.Start(app.ctx, app.workers)
	if err := app.tracker.Recover(app.ctx); err != nil {
		app.logger.Error(app.ctx, types.ActionDBQueryFailed, "failed to re-queue unfinished notifications", err)
	}

	go app.consumeStageEvents()
	go app.consumeDeliveryCallbacks()
	go func() {
		if err := app.api.Run(app.ctx, *flags.Port); err != nil {
			app.logger.Error(app.ctx, types.ActionServiceFailed, "http server stopped", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	<-sigs
	app.logger.Info(app.ctx, types.ActionGracefulShutdown, "service is shutting down")
	app.cancel()

	app.tracker.Wait()

	if err := app.subscriber.Close(); err != nil {
		app.logger.Error(app.ctx, types.ActionGracefulShutdown, "error closing RabbitMQ connection", err)
	}
}

// consumeStageEvents processes stage transitions from the dispatch queue
func (app *DispatchApp) consumeStageEvents() {
	err := app.subscriber.ConsumeStageEvents(app.ctx, rabbitmq.MessageHandlerFunc(func(ctx context.Context, msg amqp091.Delivery) error {
		var event models.StageTransitioned
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			app.logger.Error(ctx, types.ActionMessageProcessingFailed, "failed to unmarshal stage event", err)
			return err
		}

		if event.OrderNumber == "" || models.StageIndex(event.ToStage) < 0 {
			app.logger.Error(ctx, types.ActionValidationFailed, "malformed stage event",
				errors.New("missing order number or unknown stage"),
			)
			return models.ErrorValidationFailed
		}

		if err := app.dispatcher.OnStageTransitioned(ctx, event); err != nil {
			// Subscriber lookup failed; surface as transient so the event is
			// redelivered.
			return models.ErrorDbTransactionFailed
		}
		return nil
	}))

	if err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(app.ctx, types.ActionRabbitMQConsumeFailed, "error consuming stage events", err)
		app.cancel()
	}
}

// consumeDeliveryCallbacks processes provider delivery confirmations
func (app *DispatchApp) consumeDeliveryCallbacks() {
	err := app.subscriber.ConsumeDeliveryCallbacks(app.ctx, rabbitmq.MessageHandlerFunc(func(ctx context.Context, msg amqp091.Delivery) error {
		var callback struct {
			NotificationID    string `json:"notification_id"`
			ProviderMessageID string `json:"provider_message_id"`
		}
		if err := json.Unmarshal(msg.Body, &callback); err != nil {
			app.logger.Error(ctx, types.ActionMessageProcessingFailed, "failed to unmarshal delivery callback", err)
			return err
		}
		if callback.NotificationID == "" {
			return models.ErrorValidationFailed
		}

		return app.tracker.ConfirmDelivery(ctx, callback.NotificationID, callback.ProviderMessageID)
	}))

	if err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(app.ctx, types.ActionRabbitMQConsumeFailed, "error consuming delivery callbacks", err)
		app.cancel()
	}
}
