package cmd

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"cds-ils/internal/ldap"
	"cds-ils/internal/listeners"
	"cds-ils/internal/metrics"
	"cds-ils/internal/repositories"
	"cds-ils/internal/services"
	"cds-ils/internal/sync"
	"cds-ils/pkg/database/postgresql"
	"cds-ils/pkg/eventbus"
)

// app is everything a command needs once the backends are connected.
type app struct {
	db          *pgxpool.Pool
	redis       *redis.Client
	bus         *eventbus.Bus
	registry    *prometheus.Registry
	collector   *metrics.Collector
	indexer     services.PatronIndexerInterface
	syncService *sync.Service
	report      services.SyncReportServiceInterface
}

func newApp(ctx context.Context) (*app, error) {
	db, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Address, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	bus := eventbus.New(logger.Named("eventbus"))
	notificationService := services.NewMockNotificationService(cfg.Sync.NotifyEmail, logger)
	listeners.NewActiveLoansListener(notificationService, logger).Register(bus)

	txManager := repositories.NewTxManager(db)
	userRepo := repositories.NewUserRepository(db, logger.Named("user_repository"))
	profileRepo := repositories.NewUserProfileRepository(db)
	identityRepo := repositories.NewUserIdentityRepository(db)
	remoteAccountRepo := repositories.NewRemoteAccountRepository(db, logger.Named("remote_account_repository"))
	loanRepo := repositories.NewLoanRepository(db)
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)

	indexer := services.NewPatronIndexer(userRepo, profileRepo, remoteAccountRepo, cacheRepo, cfg.OAuth.ClientID, logger)
	anonymizer := services.NewAnonymizationService(txManager, userRepo, profileRepo, identityRepo, remoteAccountRepo, loanRepo, indexer, logger)

	synchronizer := sync.NewSynchronizer(
		ldap.NewDialer(&cfg.LDAP, logger),
		txManager,
		userRepo,
		profileRepo,
		identityRepo,
		remoteAccountRepo,
		indexer,
		anonymizer,
		bus,
		collector,
		sync.Options{
			ClientID:      cfg.OAuth.ClientID,
			RemoteAppName: cfg.OAuth.RemoteAppName,
			DeleteEnabled: cfg.Sync.DeleteEnabled,
		},
		logger,
	)
	lock := sync.NewLock(cacheRepo, cfg.Sync.LockTTL)

	return &app{
		db:          db,
		redis:       redisClient,
		bus:         bus,
		registry:    registry,
		collector:   collector,
		indexer:     indexer,
		syncService: sync.NewService(synchronizer, lock, cfg.Sync.DeleteEnabled, logger),
		report:      services.NewSyncReportService(logger),
	}, nil
}

// close waits for background runs and listeners before dropping the connections.
func (a *app) close() {
	a.syncService.Wait()
	a.bus.Wait()
	if err := a.redis.Close(); err != nil {
		logger.Warn("failed to close Redis client", zap.Error(err))
	}
	a.db.Close()
}
