package daemon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/amarchetti/teledoc/internal/backfill"
	"github.com/amarchetti/teledoc/internal/bus"
	"github.com/amarchetti/teledoc/internal/chat"
	"github.com/amarchetti/teledoc/internal/config"
	"github.com/amarchetti/teledoc/internal/datadir"
	"github.com/amarchetti/teledoc/internal/docs"
	"github.com/amarchetti/teledoc/internal/lock"
	"github.com/amarchetti/teledoc/internal/logging"
	"github.com/amarchetti/teledoc/internal/pipeline"
	"github.com/amarchetti/teledoc/internal/state"
	"github.com/amarchetti/teledoc/internal/status"
)

// subscribeRetryWait spaces reconnect attempts after the update stream drops.
const subscribeRetryWait = 5 * time.Second

// Params holds the resolved startup options passed to the fx module.
type Params struct {
	ConfigPath string
	Debug      bool
}

// Module returns the fx module for the archiver daemon, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideMachine,
			provideLock,
			provideState,
			provideEditor,
			provideCache,
			provideSource,
			providePipeline,
			provideCoordinator,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.Load(p.ConfigPath)
	if err != nil {
		return nil, err
	}
	if p.Debug {
		cfg.Debug = true
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	if err := datadir.EnsureDirs(); err != nil {
		return nil, err
	}
	return logging.New(datadir.LogPath(), cfg.Debug)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data directory lock", zap.String("dir", datadir.Base()))
	l, err := lock.Acquire(datadir.Base())
	if err != nil {
		return nil, err
	}
	logger.Info("data directory lock acquired")
	return l, nil
}

func provideState(logger *zap.Logger) (*state.DB, error) {
	dbPath := datadir.StatePath()
	db, err := state.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("state migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("state migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("state store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideEditor(cfg *config.Config, logger *zap.Logger) docs.Editor {
	return docs.NewClient(cfg.DocumentID, cfg.DocsToken, logger)
}

func provideCache() *chat.InfoCache {
	return chat.NewInfoCache(time.Hour, 512)
}

func provideSource(cfg *config.Config, cache *chat.InfoCache, b *bus.Bus, logger *zap.Logger) chat.Source {
	return chat.NewBot(cfg.BotToken, cache, b, logger)
}

func providePipeline(cfg *config.Config, editor docs.Editor, st *state.DB, m *status.Machine, b *bus.Bus, logger *zap.Logger) *pipeline.Pipeline {
	return pipeline.New(pipeline.Config{
		ChannelID:     cfg.ChannelID,
		BatchSize:     cfg.BatchSize,
		FlushInterval: time.Duration(cfg.FlushInterval) * time.Second,
		MaxRetries:    cfg.MaxRetries,
		RetryMaxWait:  time.Duration(cfg.RetryMaxWait) * time.Second,
	}, editor, st, m, b, logger)
}

func provideCoordinator(cfg *config.Config, st *state.DB, pipe *pipeline.Pipeline, src chat.Source, b *bus.Bus, logger *zap.Logger) *backfill.Coordinator {
	return backfill.New(st, pipe, src, cfg.ChannelID, cfg.FetchLimit, b, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	cfg *config.Config,
	lk *lock.Lock,
	st *state.DB,
	editor docs.Editor,
	src chat.Source,
	pipe *pipeline.Pipeline,
	coord *backfill.Coordinator,
	machine *status.Machine,
	logger *zap.Logger,
) {
	runCtx, stopRun := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !editor.TestConnection(ctx) {
				return fmt.Errorf("document connection test failed")
			}

			if err := src.Start(ctx); err != nil {
				_ = machine.Transition(status.Error)
				return err
			}

			pipe.Start(context.Background())

			// Recovery must finish before live listening so replayed
			// messages keep their original order.
			go func() {
				coord.Run(runCtx)
				listen(runCtx, src, pipe, cfg.ChannelID, logger)
			}()

			return nil
		},
		OnStop: func(_ context.Context) error {
			stopRun()
			pipe.Stop()
			src.Stop()

			if stats, err := st.Stats(); err == nil {
				logger.Info("archiver stopped",
					zap.Int64("total_processed", stats.Processed),
					zap.Int64("errors", stats.Errors),
					zap.Time("last_run", stats.LastRun))
			}
			if err := st.Close(); err != nil {
				logger.Warn("error closing state store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			return nil
		},
	})
}

// listen keeps the live subscription up, reconnecting after stream drops,
// until the run context is cancelled.
func listen(ctx context.Context, src chat.Source, pipe *pipeline.Pipeline, channelID int64, logger *zap.Logger) {
	for {
		err := src.Subscribe(ctx, channelID, pipe.Ingest)
		if ctx.Err() != nil {
			return
		}
		logger.Error("subscription dropped, reconnecting", zap.Error(err))
		select {
		case <-time.After(subscribeRetryWait):
		case <-ctx.Done():
			return
		}
	}
}
