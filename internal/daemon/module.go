package daemon

import (
	"context"

	"github.com/matheus3301/tgp/internal/account"
	"github.com/matheus3301/tgp/internal/api"
	"github.com/matheus3301/tgp/internal/bus"
	"github.com/matheus3301/tgp/internal/config"
	"github.com/matheus3301/tgp/internal/drain"
	"github.com/matheus3301/tgp/internal/lock"
	"github.com/matheus3301/tgp/internal/logging"
	"github.com/matheus3301/tgp/internal/session"
	"github.com/matheus3301/tgp/internal/status"
	"github.com/matheus3301/tgp/internal/store"
	intsync "github.com/matheus3301/tgp/internal/sync"
	"github.com/matheus3301/tgp/internal/telegram"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved account configuration passed to the fx module.
type Params struct {
	AccountName string
	SocketPath  string         // optional override for testing; empty = use default
	Config      *config.Config // optional; nil = load ~/.tgp/config.toml
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideData,
			provideHandler,
			provideSyncEngine,
			providePump,
			provideStore,
			provideRecorder,
			provideMonitor,
			provideAccountService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, p.Config.Validate()
	}
	return config.Load(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.AccountName), p.AccountName, cfg.Level())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.AccountName); err != nil {
		return nil, err
	}
	logger.Info("acquiring account lock", zap.String("account", p.AccountName))
	l, err := lock.Acquire(session.Dir(p.AccountName))
	if err != nil {
		return nil, err
	}
	logger.Info("account lock acquired", zap.String("path", l.Path()))
	return l, nil
}

func provideData(logger *zap.Logger) *account.Data {
	return account.New(logger.Named("account"))
}

func provideHandler(b *bus.Bus, logger *zap.Logger) *telegram.Handler {
	return telegram.NewHandler(b, logger.Named("telegram"))
}

func provideSyncEngine(data *account.Data, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(data, b, logger.Named("sync"), cfg.BusBuffer)
}

func providePump(data *account.Data, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *drain.Pump {
	return drain.NewPump(data, b, logger.Named("drain"), cfg.DrainInterval.Duration)
}

// provideStore opens the batch store once the lock is held. A disabled
// store yields a nil *store.DB.
func provideStore(p Params, cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	if !cfg.Store.Enabled {
		logger.Info("store disabled")
		return nil, nil
	}
	dbPath := session.DBPath(p.AccountName)
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
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRecorder(db *store.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *store.Recorder {
	if db == nil {
		return nil
	}
	return store.NewRecorder(db, b, logger.Named("store"), cfg.BusBuffer)
}

func provideMonitor(m *status.Machine, b *bus.Bus, logger *zap.Logger) *status.Monitor {
	return status.NewMonitor(m, b, logger.Named("status"))
}

func provideAccountService(
	p Params,
	data *account.Data,
	handler *telegram.Handler,
	engine *intsync.Engine,
	pump *drain.Pump,
	b *bus.Bus,
	db *store.DB,
	machine *status.Machine,
	logger *zap.Logger,
) *api.AccountService {
	return api.NewAccountService(api.Deps{
		AccountName: p.AccountName,
		Data:        data,
		Handler:     handler,
		Engine:      engine,
		Pump:        pump,
		Bus:         b,
		DB:          db,
		Machine:     machine,
		Logger:      logger.Named("api"),
	})
}

type lifecycleDeps struct {
	fx.In

	Server   *Server
	Lock     *lock.Lock
	Engine   *intsync.Engine
	Pump     *drain.Pump
	DB       *store.DB
	Recorder *store.Recorder
	Monitor  *status.Monitor
	Machine  *status.Machine
	Logger   *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Consumers first so nothing published during startup is lost.
			if d.Recorder != nil {
				d.Recorder.Start(context.Background())
			}
			d.Monitor.Start(context.Background())
			d.Engine.Start(context.Background())
			d.Pump.Start(context.Background())

			go func() {
				if err := d.Server.Start(); err != nil {
					d.Logger.Error("gRPC server error", zap.Error(err))
					_ = d.Machine.Transition(status.Error)
				}
			}()

			return d.Machine.Transition(status.Ready)
		},
		OnStop: func(ctx context.Context) error {
			_ = d.Machine.Transition(status.Stopping)
			d.Server.Stop(ctx)
			d.Engine.Stop()
			d.Pump.Stop()
			// Hand anything still queued to the recorder before it stops.
			d.Pump.DrainOnce()
			if d.Recorder != nil {
				d.Recorder.Stop()
			}
			d.Monitor.Stop()
			if d.DB != nil {
				if err := d.DB.Close(); err != nil {
					d.Logger.Warn("error closing store", zap.Error(err))
				}
			}
			if err := d.Lock.Release(); err != nil {
				d.Logger.Warn("error releasing lock", zap.Error(err))
			}
			d.Logger.Info("daemon stopped")
			_ = d.Logger.Sync()
			return nil
		},
	})
}
