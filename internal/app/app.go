package app

import (
	"context"
	"database/sql"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"fuelsign/internal/config"
	"fuelsign/internal/db"
	httpserver "fuelsign/internal/http"
	"fuelsign/internal/http/handlers"
	"fuelsign/internal/monitor"
	redisclient "fuelsign/internal/redis"
	"fuelsign/internal/redisstore"
	"fuelsign/internal/repository"
	"fuelsign/internal/service"
	"fuelsign/internal/transport"
	"fuelsign/internal/ws"
)

// App wires all dependencies for the display service.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	pool       *sql.DB
	redis      *goredis.Client
	stations   *repository.StationRepository
	monitor    *monitor.Monitor
	wsManager  *ws.Manager
	httpServer *httpserver.Server
}

// New builds the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	stationRepo := repository.NewStationRepository(pool)
	panelRepo := repository.NewPanelRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	var (
		redisClient *goredis.Client
		statusCache service.StatusCache
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			pool.Close()
			return nil, err
		}
		statusCache = redisstore.NewStatusStore(redisClient, cfg.StatusTTL())
	} else {
		logger.Warn("redis not configured, status cache disabled")
	}

	transportClient := transport.NewClient(cfg.TransportTimeout(), logger)

	wsManager := ws.NewManager(cfg.WSPingInterval(), logger)
	wsServer := ws.NewServer(wsManager, cfg.WSWriteTimeout(), logger)

	publisher := service.NewStatusPublisher(stationRepo, statusCache, wsManager, logger)
	mon := monitor.New(
		monitor.NewStatusProber(transportClient),
		publisher,
		monitor.Config{
			DebounceThreshold: cfg.Monitor.DebounceThreshold,
			ProbeTimeout:      cfg.ProbeTimeout(),
		},
		logger,
	)

	pricing := service.NewPricingService(
		stationRepo, panelRepo, auditRepo,
		transportClient, cfg.TransportTimeout(), logger,
	)

	router := httpserver.NewRouter(httpserver.Routes{
		UpdatePrices:    handlers.NewUpdatePricesHandler(pricing, logger),
		MonitoringStats: handlers.NewMonitoringStatsHandler(mon),
		StationStatus:   handlers.NewStationStatusHandler(mon),
		StationAudit:    handlers.NewStationAuditHandler(auditRepo, logger),
		StatusFeed:      wsServer.HandleStatusFeed,
		Health:          handlers.NewHealthHandler(),
	})

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		redis:      redisClient,
		stations:   stationRepo,
		monitor:    mon,
		wsManager:  wsManager,
		httpServer: httpserver.NewServer(cfg.HTTPAddress(), router, logger),
	}, nil
}

// Run starts monitoring and the HTTP server, blocking until ctx is
// cancelled. Monitoring is wound down before Run returns.
func (a *App) Run(ctx context.Context) error {
	go a.wsManager.Start(ctx)

	if err := a.bootstrapMonitoring(ctx); err != nil {
		a.logger.Error("failed to bootstrap monitoring", zap.Error(err))
	}

	err := a.httpServer.Run(ctx)
	a.monitor.StopAllMonitoring()
	return err
}

// bootstrapMonitoring registers a probe loop for every known station.
func (a *App) bootstrapMonitoring(ctx context.Context) error {
	stations, err := a.stations.ListStations(ctx)
	if err != nil {
		return err
	}

	registered := 0
	for _, station := range stations {
		if station.ControllerAddress == "" {
			a.logger.Warn("station has no controller address, skipping",
				zap.String("station_id", station.ID))
			continue
		}
		a.monitor.StartMonitoring(monitor.Target{
			StationID: station.ID,
			Address:   station.ControllerAddress,
			Interval:  a.cfg.PollInterval(),
		})
		registered++
	}

	a.logger.Info("monitoring bootstrapped",
		zap.Int("stations", registered),
		zap.Duration("interval", a.cfg.PollInterval()))
	return nil
}

// Close releases resources.
func (a *App) Close() {
	var errs error
	if a.pool != nil {
		errs = multierr.Append(errs, a.pool.Close())
	}
	if a.redis != nil {
		errs = multierr.Append(errs, a.redis.Close())
	}
	if errs != nil {
		a.logger.Warn("failed to close resources cleanly", zap.Error(errs))
	}
}
