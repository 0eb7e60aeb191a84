package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "fieldattendance/backend/libs/db"
	"fieldattendance/backend/libs/rabbit"
	libredis "fieldattendance/backend/libs/redis"
	"fieldattendance/backend/services/attendance-service/internal/auth"
	"fieldattendance/backend/services/attendance-service/internal/config"
	httpserver "fieldattendance/backend/services/attendance-service/internal/http"
	"fieldattendance/backend/services/attendance-service/internal/http/handlers"
	"fieldattendance/backend/services/attendance-service/internal/http/middleware"
	"fieldattendance/backend/services/attendance-service/internal/location"
	redisstore "fieldattendance/backend/services/attendance-service/internal/redis"
	"fieldattendance/backend/services/attendance-service/internal/repository"
	"fieldattendance/backend/services/attendance-service/internal/service"
	"fieldattendance/backend/services/attendance-service/internal/telemetry"
)

const migrateTimeout = 30 * time.Second

// App wires attendance-service dependencies.
type App struct {
	server      *httpserver.Server
	service     *service.AttendanceService
	events      *telemetry.AsyncSink
	feed        *telemetry.Feed
	db          *sql.DB
	redisClient *redis.Client
	rabbit      *rabbit.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	sqlDB, err := libdb.NewPostgresDB(cfg.Database.DSN, libdb.PoolOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		ConnLifetime: cfg.Database.ConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.db = sqlDB

	repo := repository.NewAttendanceRepository(sqlDB)
	migrateCtx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := repo.Migrate(migrateCtx); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	redisClient, err := libredis.NewClient(libredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.redisClient = redisClient
	activeStore := redisstore.NewStore(redisClient, cfg.Redis.TTL)

	downstream := telemetry.MultiSink{
		telemetry.NewStoreSink(repo),
		telemetry.NewHTTPSink(cfg.Telemetry.TrackURL, cfg.Session.SendTimeout, logger),
	}
	if strings.TrimSpace(cfg.Telemetry.AMQPURL) != "" {
		client, err := rabbit.NewClient(cfg.Telemetry.AMQPURL, cfg.Telemetry.AMQPExchange)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		a.rabbit = client
		downstream = append(downstream, telemetry.NewAMQPSink(client.Channel, cfg.Telemetry.AMQPExchange))
	}

	a.events = telemetry.NewAsyncSink(downstream, cfg.Session.EventQueueSize, cfg.Session.SendTimeout, logger)
	a.feed = telemetry.NewFeed(cfg.Session.FeedWriteTimeout, logger)
	sink := telemetry.MultiSink{
		telemetry.NewLogSink(logger),
		a.feed,
		a.events,
	}

	locations := location.NewReportedStore(cfg.Session.LocationMaxAge, nil)
	a.service = service.NewAttendanceService(
		service.Options{
			Site:         cfg.GeofenceSite(),
			PingInterval: cfg.Session.PingInterval,
			SendTimeout:  cfg.Session.SendTimeout,
		},
		locations,
		sink,
		repo,
		activeStore,
		logger,
	)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil)
	accounts := auth.NewService(
		repository.NewWorkerRepository(sqlDB),
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		tokens,
		cfg.Auth.Supervisors,
		logger,
	)

	routes := httpserver.Routes{
		ReportLocation: handlers.NewReportLocationHandler(a.service, logger),
		ForgetLocation: handlers.NewForgetLocationHandler(a.service),
		ClockIn:        handlers.NewClockInHandler(a.service),
		ClockOut:       handlers.NewClockOutHandler(a.service),
		Status:         handlers.NewStatusHandler(a.service),
		History:        handlers.NewHistoryHandler(a.service),
		ActiveSessions: handlers.NewActiveSessionsHandler(a.service),
		Feed:           handlers.NewFeedHandler(a.feed),
		Health:         handlers.NewHealthHandler(),
		Register:       handlers.NewRegisterHandler(accounts),
		Login:          handlers.NewLoginHandler(accounts),
		Auth:           middleware.AuthMiddleware(tokens),
		Supervisor:     middleware.RequireRole(auth.RoleSupervisor),
	}
	router := httpserver.NewRouter(routes)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, cfg.HTTP.ShutdownTimeout, logger)

	site := cfg.GeofenceSite()
	logger.Info("attendance service configured",
		zap.String("site", site.Name),
		zap.Stringer("site_location", site.Location),
		zap.Float64("radius_m", site.RadiusMeters),
		zap.Duration("ping_interval", cfg.Session.PingInterval),
		zap.Bool("track_http", cfg.Telemetry.TrackURL != ""),
		zap.Bool("track_amqp", a.rabbit != nil),
	)
	return a, nil
}

// Run starts HTTP server and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close stops every session, flushes queued events and releases resources.
func (a *App) Close() {
	if a.service != nil {
		a.service.Shutdown()
	}
	if a.events != nil {
		a.events.Close()
		if dropped := a.events.Dropped(); dropped > 0 {
			a.logger.Warn("attendance events dropped", zap.Int64("dropped", dropped))
		}
	}
	if a.feed != nil {
		a.feed.Close()
	}
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
