package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/forgecraft/storefront/internal/adapters/cache"
	eventadapter "github.com/forgecraft/storefront/internal/adapters/events"
	httpadapter "github.com/forgecraft/storefront/internal/adapters/http"
	"github.com/forgecraft/storefront/internal/adapters/jobs"
	"github.com/forgecraft/storefront/internal/adapters/postgres"
	"github.com/forgecraft/storefront/internal/adapters/security"
	"github.com/forgecraft/storefront/internal/application"
	"github.com/forgecraft/storefront/internal/domain"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	reaper     *jobs.Reaper
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping storefront service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	repos := postgres.NewRepositories(db)

	sessionSigner, err := security.NewJWTSigner(cfg.JWTKeyID, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err != nil {
		if !cfg.AllowEphemeralJWT {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init jwt signer: %w", err)
		}
		logger.Warn("using ephemeral JWT keys for local/dev runtime")
		sessionSigner, err = security.NewEphemeralJWTSigner(cfg.JWTKeyID)
		if err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init ephemeral jwt signer: %w", err)
		}
	}

	downloadCodec, err := security.NewDownloadTokenCodec(cfg.DownloadTokenSecret)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init download token codec: %w", err)
	}
	stepUpCodec, err := security.NewStepUpCodec(cfg.AuthSecret)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init step-up codec: %w", err)
	}

	svc := application.NewService(
		application.Config{
			DownloadLimit:    cfg.DownloadLimit,
			DownloadWindow:   cfg.DownloadWindow,
			DownloadTokenTTL: cfg.DownloadTokenTTL,
			StaleDownloadAge: cfg.StaleDownloadAge,
			SessionTTL:       cfg.SessionTTL,
			StepUpTTL:        cfg.StepUpTTL,
			MintThrottleMax:  cfg.MintThrottleMax,
			MintThrottleWin:  cfg.MintThrottleWin,
			LoginThrottleMax: cfg.LoginThrottleMax,
			LoginThrottleWin: cfg.LoginThrottleWin,
		},
		application.Dependencies{
			Logger:        logger,
			Users:         repos.Users,
			Products:      repos.Products,
			Orders:        repos.Orders,
			Licenses:      repos.Licenses,
			Download:      repos.Downloads,
			Audit:         repos.Audit,
			Hasher:        security.NewBcryptHasher(cfg.BcryptCost),
			Sessions:      sessionSigner,
			DownloadCodec: downloadCodec,
			StepUpCodec:   stepUpCodec,
			IPHasher:      security.NewIPHasher(cfg.IPHashSecret),
			Throttle:      cacheadapter.NewRedisThrottleStore(redisClient, ""),
			Origin:        domain.NewOriginPolicy(cfg.AllowedFileHosts),
		},
	)

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	outbox := eventadapter.NewOutboxWorker(
		logger,
		repos.Outbox,
		eventadapter.NewLoggingPublisher(logger),
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
	)
	reaper := jobs.NewReaper(logger, repos.Downloads, cfg.ReaperInterval, cfg.StaleDownloadAge)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		reaper:     reaper,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

// RunWorker runs the outbox publisher and the stale-download reaper until the
// process receives a stop signal.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("outbox worker started")
		if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("outbox worker: %w", err)
		}
	}()
	go func() {
		r.logger.Info("stale download reaper started")
		if err := r.reaper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("reaper: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.Error("worker failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
