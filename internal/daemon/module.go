package daemon

import (
	"context"

	"github.com/google/uuid"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/api"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/bus"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/importer"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/library"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/lock"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/logging"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/metrics"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/status"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/store"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/viewer"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/watch"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved library configuration passed to the fx module.
type Params struct {
	LibraryName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideMetrics,
			provideLock,
			provideStore,
			provideEngine,
			provideWatcher,
			provideViewer,
			provideHandlers,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(library.LogPath(p.LibraryName), p.LibraryName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := library.EnsureDir(p.LibraryName); err != nil {
		return nil, err
	}
	logger.Info("acquiring library lock", zap.String("library", p.LibraryName))
	l, err := lock.Acquire(library.Dir(p.LibraryName))
	if err != nil {
		return nil, err
	}
	logger.Info("library lock acquired")
	return l, nil
}

// provideStore opens the library database. It depends on the lock so fx
// acquires exclusivity before the first database open.
func provideStore(p Params, logger *zap.Logger, _ *lock.Lock) (*store.DB, error) {
	dbPath := library.DBPath(p.LibraryName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}

	// Stamp the database with a stable identity on first open. The id
	// survives library renames, so log lines can be correlated across
	// them.
	id, err := db.GetMeta("library_id")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
		if err := db.SetMeta("library_id", id); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	logger.Info("store initialized", zap.String("path", dbPath), zap.String("library_id", id))
	return db, nil
}

func provideEngine(db *store.DB, b *bus.Bus, logger *zap.Logger, m *metrics.Metrics) *importer.Engine {
	return importer.NewEngine(db, b, logger, m)
}

func provideWatcher(db *store.DB, b *bus.Bus, logger *zap.Logger) *watch.Watcher {
	return watch.New(db, b, logger)
}

func provideViewer(db *store.DB, b *bus.Bus, logger *zap.Logger, m *metrics.Metrics) *viewer.Manager {
	return viewer.NewManager(db, b, logger, m)
}

func provideHandlers(p Params, db *store.DB, vm *viewer.Manager, engine *importer.Engine, w *watch.Watcher, machine *status.Machine, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *api.Handlers {
	return api.NewHandlers(p.LibraryName, db, vm, engine, w, machine, b, m, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, engine *importer.Engine, w *watch.Watcher, vm *viewer.Manager, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Subscribe before the first import so no events are missed.
			vm.Start(context.Background())
			engine.Start(context.Background())

			// Start HTTP server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()

			// Import registered chats, then hand off to the file watcher.
			go func() {
				_ = machine.Transition(status.Importing)
				imported, skipped, failed, err := engine.SyncOnBoot()
				if err != nil {
					logger.Error("boot import failed", zap.Error(err))
					_ = machine.Transition(status.Error)
					return
				}
				logger.Info("boot import finished",
					zap.Int("imported", imported),
					zap.Int("skipped", skipped),
					zap.Int("failed", failed))
				if failed > 0 {
					_ = machine.Transition(status.Degraded)
				} else {
					_ = machine.Transition(status.Ready)
				}
				if err := w.Start(context.Background()); err != nil {
					logger.Error("watcher start failed", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			w.Stop()
			engine.Stop()
			vm.Stop()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
