package workflow

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	httpHandle "costume-portal/internal/adapter/http"
	"costume-portal/internal/adapter/postgresql"
	"costume-portal/internal/adapter/postgresql/order_repository"
	"costume-portal/internal/adapter/postgresql/preference_repository"
	"costume-portal/internal/adapter/rabbitmq/stage_event_producer"
	"costume-portal/internal/adapter/server"
	"costume-portal/internal/core/domain/types"
	"costume-portal/internal/core/service/stage"
	"costume-portal/pkg/config"
	"costume-portal/pkg/flags"
	"costume-portal/pkg/logger"
)

// WorkflowApp serves the synchronous portal API: stage transitions, order
// history and notification preferences.
type WorkflowApp struct {
	api      *server.API
	ctx      context.Context
	cancel   context.CancelFunc
	logger   logger.Logger
	producer *stage_event_producer.StageEventProducer
}

func NewWorkflowApp() *WorkflowApp {
	cfg, err := config.ParseYAML()
	if err != nil {
		config.PrintYAMLHelp()
		slog.Error("failed to configure application", "error", err)
		os.Exit(1)
	}

	log := logger.InitLogger("Workflow Service", logger.LevelDebug)

	ctx, cancel := context.WithCancel(context.Background())

	pool, err := postgresql.Connect(ctx, cfg)
	if err != nil {
		cancel()
		log.Error(ctx, types.ActionDBConnectFailed, "failed to connect to database", err)
		os.Exit(1)
	}
	log.Info(ctx, types.ActionDBConnected, "connected to database")

	producer, err := stage_event_producer.NewStageEventProducer(ctx, cfg)
	if err != nil {
		cancel()
		pool.Close()
		log.Error(ctx, types.ActionRabbitMQConnectFailed, "failed to connect to RabbitMQ", err)
		os.Exit(1)
	}

	orderRepo := order_repository.NewOrderRepository(pool)
	prefRepo := preference_repository.NewPreferenceRepository(pool)

	stageSvc := stage.NewStageService(orderRepo, producer)

	stageHandler := httpHandle.NewStageHandler(stageSvc, orderRepo)
	prefHandler := httpHandle.NewPreferenceHandler(prefRepo)

	api := server.NewRouter(log)
	r := api.Router()

	r.Get("/orders/{orderNumber}", stageHandler.GetOrder())
	r.Get("/orders/{orderNumber}/history", stageHandler.GetHistory())
	r.Post("/orders/{orderNumber}/advance", stageHandler.Advance())
	r.Post("/orders/{orderNumber}/revert", stageHandler.Revert())

	r.Get("/organizations/{orgID}/users/{userID}/preferences", prefHandler.GetPreference())
	r.Put("/organizations/{orgID}/users/{userID}/preferences", prefHandler.SavePreference())
	r.Post("/organizations/{orgID}/users/{userID}/phone/verify", prefHandler.RequestPhoneVerification(generateVerificationCode))
	r.Post("/organizations/{orgID}/users/{userID}/phone/confirm", prefHandler.ConfirmPhoneVerification())

	return &WorkflowApp{
		api:      api,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log,
		producer: producer,
	}
}

func (app *WorkflowApp) Start() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		app.logger.Info(app.ctx, types.ActionGracefulShutdown, "service is shutting down")
		app.cancel()
	}()

	if err := app.api.Run(app.ctx, *flags.Port); err != nil {
		app.logger.Error(app.ctx, types.ActionServiceFailed, "http server stopped", err)
	}

	if err := app.producer.Close(); err != nil {
		app.logger.Error(app.ctx, types.ActionGracefulShutdown, "error closing RabbitMQ connection", err)
	}
}

// generateVerificationCode returns a six digit code for the SMS opt-in flow.
func generateVerificationCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// crypto/rand only fails when the platform entropy source is broken
		return "000000"
	}
	return fmt.Sprintf("%06d", n.Int64())
}
