// Package bootstrap assembles the api service from configuration: stores,
// completion provider, tools, event bus, and the chat turn use case.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/yavru421/llama-tail/internal/config"
	"github.com/yavru421/llama-tail/internal/core/ports"
	"github.com/yavru421/llama-tail/internal/core/usecase"
	"github.com/yavru421/llama-tail/internal/infrastructure/llm/llamaapi"
	natsqueue "github.com/yavru421/llama-tail/internal/infrastructure/queue/nats"
	"github.com/yavru421/llama-tail/internal/infrastructure/resilience"
	"github.com/yavru421/llama-tail/internal/infrastructure/store/localfs"
	"github.com/yavru421/llama-tail/internal/infrastructure/store/postgres"
	"github.com/yavru421/llama-tail/internal/infrastructure/tools"
	"github.com/yavru421/llama-tail/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Chats   ports.ChatStore
	Queue   *natsqueue.Queue
	TurnUC  *usecase.ChatTurnUseCase
	Metrics *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	files, err := localfs.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init data directory: %w", err)
	}

	var (
		states   ports.StateStore
		profiles ports.ProfileStore
		closeDB  func()
	)
	switch cfg.StoreBackend {
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		stateStore := postgres.NewStateStore(db)
		if err := stateStore.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		states = stateStore
		profiles = postgres.NewProfileStore(db)
		closeDB = func() { _ = db.Close() }
	case "file", "":
		states = localfs.NewStateStore(files)
		profiles = localfs.NewProfileStore(files)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	provider := llamaapi.New(
		cfg.LlamaAPIURL,
		cfg.LlamaAPIKey,
		llamaapi.WithModel(cfg.LlamaModel),
		llamaapi.WithExecutor(executor),
	)

	registry := tools.NewDefaultRegistry(cfg.ToolSaveDir)

	var (
		queue  *natsqueue.Queue
		events ports.TurnEventPublisher
	)
	if cfg.NATSURL != "" {
		queue, err = natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			if closeDB != nil {
				closeDB()
			}
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		events = queue
	}

	httpMetrics := metrics.NewHTTPServerMetrics("api")

	turnUC := usecase.NewChatTurnUseCase(
		files,
		states,
		profiles,
		provider,
		registry,
		events,
		cfg.MaxContextMessages,
	).WithObserver(httpMetrics)

	return &App{
		Config:  cfg,
		Chats:   files,
		Queue:   queue,
		TurnUC:  turnUC,
		Metrics: httpMetrics,

		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
			if closeDB != nil {
				closeDB()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
