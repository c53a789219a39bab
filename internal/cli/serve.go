package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/CryoRestore/server/internal/engine"
	"github.com/MRamiBalles/CryoRestore/server/internal/events"
	"github.com/MRamiBalles/CryoRestore/server/internal/infra/cache"
	"github.com/MRamiBalles/CryoRestore/server/internal/infra/storage"
	"github.com/MRamiBalles/CryoRestore/server/internal/network"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/config"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/metrics"
)

const shutdownTimeout = 10 * time.Second

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the restoration server",
		Long:  "Restores the last snapshot, runs the simulation clock and serves the HTTP API, WebSocket feed and metrics.",
		RunE:  runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default :8080)")
	cmd.Flags().Int("tps", 0, "Ticks per second at normal speed (default 60)")
	cmd.Flags().Int("speed", 0, "Ticks advanced per clock wake (default 1)")
	cmd.Flags().Int("seed-chambers", 2, "Chambers to install when the game has no saved state")
	cmd.Flags().Bool("low-resource", false, "Use small buffers and a slower clock for development")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := serverConfig()
	if low, _ := cmd.Flags().GetBool("low-resource"); low {
		lowCfg := config.LowResourceConfig()
		lowCfg.DBPath, lowCfg.PostgresDSN, lowCfg.GameID = cfg.DBPath, cfg.PostgresDSN, cfg.GameID
		cfg = lowCfg
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if tps, _ := cmd.Flags().GetInt("tps"); tps > 0 {
		cfg.TicksPerSecond = tps
	}
	if speed, _ := cmd.Flags().GetInt("speed"); speed > 0 {
		cfg.Speed = speed
	}
	seed, _ := cmd.Flags().GetInt("seed-chambers")

	appLogger := logger.NewLogger()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, seed, appLogger); err != nil {
		appLogger.Error(err.Error())
		return err
	}
	return nil
}

func serve(ctx context.Context, cfg *config.ServerConfig, seed int, appLogger *logger.Logger) error {
	appLogger.Info("Initializing restoration server for game " + cfg.GameID + "...")

	store, err := openStore(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	settings, err := loadSettings(ctx, store, cfg.GameID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	statusCache, err := cache.NewStatusCache(cfg.StatusCacheSize)
	if err != nil {
		return fmt.Errorf("status cache: %w", err)
	}
	collector := metrics.Get()

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(&eventPersister{repo: store, gameID: cfg.GameID})

	appLogger.Info("Bootstrapping Engine...")
	eng := engine.NewEngine(eventLog, appLogger, config.NewStore(settings), engine.Options{
		TickInterval:       cfg.TickInterval(),
		Speed:              cfg.Speed,
		StatusPublishEvery: cfg.StatusPublishEvery,
		Metrics:            collector,
		Sink:               statusCache,
	})

	if err := bootstrapState(ctx, store, eng, cfg.GameID, seed, appLogger); err != nil {
		return err
	}

	engineCtx, cancelEngine := context.WithCancel(ctx)
	defer cancelEngine()
	if err := eng.Start(engineCtx); err != nil {
		return err
	}

	// Automated state backup routine
	go func() {
		backupTicker := time.NewTicker(cfg.SnapshotInterval)
		defer backupTicker.Stop()
		for {
			select {
			case <-engineCtx.Done():
				return
			case <-backupTicker.C:
				if err := saveState(engineCtx, eng, store, cfg.GameID); err != nil && engineCtx.Err() == nil {
					appLogger.Errorf("Snapshot failed: %v", err)
				}
			}
		}
	}()

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(eng, appLogger, collector, network.HubOptions{
		BroadcastBuffer: cfg.BroadcastChannelBuffer,
		ClientBuffer:    cfg.ClientSendBuffer,
		CommandInterval: cfg.ClientCommandInterval,
	})
	go hub.Run(engineCtx)
	hub.StartEventPoller(engineCtx, eventLog)

	api := network.NewAPI(eng, appLogger, network.APIOptions{
		GameID:   cfg.GameID,
		Cache:    statusCache,
		Recaps:   storage.NewReconstructor(store),
		Settings: store,
		Metrics:  collector,
		Hub:      hub,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router()}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info("HTTP API & WS Server listening on " + cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down...")
	case err := <-serveErr:
		if err != nil {
			appLogger.Errorf("Server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warnf("HTTP shutdown: %v", err)
	}
	cancelEngine()
	<-eng.Done()

	if err := saveState(shutdownCtx, eng, store, cfg.GameID); err != nil {
		return fmt.Errorf("final snapshot: %w", err)
	}
	appLogger.Infof("Saved state at tick %d", eng.CurrentTick())
	return nil
}

// bootstrapState restores the last snapshot or seeds fresh chambers.
func bootstrapState(ctx context.Context, store storage.Store, eng *engine.Engine, gameID string, seed int, appLogger *logger.Logger) error {
	appLogger.Info("Checking DB for existing state...")
	snap, err := store.LoadSnapshot(ctx, gameID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	if snap == nil {
		appLogger.Infof("Database empty. Seeding %d chambers...", seed)
		for i := 1; i <= seed; i++ {
			if err := eng.RegisterChamber(ctx, engine.NewChamber(fmt.Sprintf("C%d", i), 50)); err != nil {
				return err
			}
		}
		return saveState(ctx, eng, store, gameID)
	}

	appLogger.Info("Reconstructing chambers from saved state...")
	return eng.Restore(ctx, fromSnapshot(snap, eng.Settings().Current()))
}
