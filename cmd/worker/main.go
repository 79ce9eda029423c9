package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yavru421/llama-tail/internal/config"
	"github.com/yavru421/llama-tail/internal/core/domain"
	natsqueue "github.com/yavru421/llama-tail/internal/infrastructure/queue/nats"
	"github.com/yavru421/llama-tail/internal/observability/logging"
	"github.com/yavru421/llama-tail/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	if cfg.NATSURL == "" {
		log.Fatal("worker requires NATS_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		log.Fatalf("init event bus: %v", err)
	}
	defer queue.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = queue.SubscribeTurnCompleted(ctx, func(handlerCtx context.Context, event domain.TurnEvent) error {
		start := time.Now()
		workerMetrics.StartEvent()
		workerMetrics.ObserveEventLag("worker", start.Sub(event.CompletedAt))

		slog.Info("turn_completed",
			"chat", event.ChatID,
			"user", event.UserID,
			"message_id", event.MessageID,
			"outcome", event.Outcome,
			"stage", string(event.Stage),
			"clarity", event.ClarityScore,
			"tool", event.Tool,
		)

		workerMetrics.FinishEvent("worker", event.Outcome, time.Since(start), nil)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
