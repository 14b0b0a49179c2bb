package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/starcoex/auth-platform/internal/core/port"
	"github.com/starcoex/auth-platform/internal/infra/config"
	"github.com/starcoex/auth-platform/internal/infra/database"
	kafkainfra "github.com/starcoex/auth-platform/internal/infra/kafka"
	"github.com/starcoex/auth-platform/internal/infra/logger"
	redisinfra "github.com/starcoex/auth-platform/internal/infra/redis"
	"github.com/starcoex/auth-platform/internal/infra/security"
	"github.com/starcoex/auth-platform/internal/infra/telemetry"
	postgresrepo "github.com/starcoex/auth-platform/internal/repository/postgres"
	redisrepo "github.com/starcoex/auth-platform/internal/repository/redis"
	transportgrpc "github.com/starcoex/auth-platform/internal/transport/grpc"
	grpcinterceptors "github.com/starcoex/auth-platform/internal/transport/grpc/interceptors"
	"github.com/starcoex/auth-platform/internal/transport/http/middleware"
	"github.com/starcoex/auth-platform/internal/transport/http/routes"
	"github.com/starcoex/auth-platform/internal/usecase"
)

// Application owns the wired service graph and the lifecycle of both servers.
type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracer     *telemetry.TracerProvider
	grpcServer *grpc.Server
	grpcAddr   string
}

// New constructs the application graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	signer, err := security.NewTokenSigner(security.SignerConfig{
		Issuer: cfg.JWT.Issuer,
		Secrets: map[security.TokenPurpose]string{
			security.PurposeAccess:     cfg.JWT.AccessSecret,
			security.PurposeRefresh:    cfg.JWT.RefreshSecret,
			security.PurposeActivation: cfg.JWT.ActivationSecret,
			security.PurposeTwoFactor:  cfg.JWT.TwoFactorSecret,
		},
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token signer: %w", err)
	}

	totpEngine := security.NewTOTPEngine(security.TOTPConfig{
		Issuer: cfg.TOTP.Issuer,
		Digits: cfg.TOTP.Digits,
		Period: cfg.TOTP.Period,
		Skew:   cfg.TOTP.Skew,
	})

	repos := postgresrepo.NewRepositories(pool)
	challengeStore := redisrepo.NewChallengeAttemptRepository(redisClient.Client(), cfg.Redis.ChallengePrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	var producer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			log.Warn("failed to init tracer provider, tracing disabled", zap.Error(err))
			tracer = nil
		}
	}

	passwordValidator := security.DefaultPasswordValidator()

	authService, err := usecase.NewAuthService(cfg, repos.Users, repos.Activations, signer, totpEngine, challengeStore, eventPublisher, log)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	activationService, err := usecase.NewActivationService(cfg, repos.Users, repos.Activations, signer, eventPublisher, log)
	if err != nil {
		return nil, fmt.Errorf("init activation service: %w", err)
	}

	registrationService, err := usecase.NewRegistrationService(cfg, repos.Users, passwordValidator, activationService, eventPublisher, log)
	if err != nil {
		return nil, fmt.Errorf("init registration service: %w", err)
	}

	passwordResetService, err := usecase.NewPasswordResetService(cfg, repos.Users, repos.Activations, signer, passwordValidator, eventPublisher, log)
	if err != nil {
		return nil, fmt.Errorf("init password reset service: %w", err)
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init grpc metrics: %w", err)
	}

	var tracing *grpcinterceptors.TracingInterceptor
	if tracer != nil {
		tracing = grpcinterceptors.NewTracingInterceptor(grpcinterceptors.TracingOptions{
			TracerProvider: tracer.TracerProvider(),
		})
	}

	grpcSrv, err := transportgrpc.NewServer(transportgrpc.ServerDependencies{
		AuthService: authService,
		Metrics:     grpcMetrics,
		Tracing:     tracing,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("init grpc server: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     httpMetrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:          authService,
			Registration:  registrationService,
			Activation:    activationService,
			PasswordReset: passwordResetService,
		},
	})

	return &Application{
		cfg:        cfg,
		engine:     engine,
		logger:     log,
		pool:       pool,
		redis:      redisClient,
		producer:   producer,
		tracer:     tracer,
		grpcServer: grpcSrv,
		grpcAddr:   fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port),
	}, nil
}

// Run starts the HTTP and gRPC servers and blocks until the context is
// cancelled or either server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.tracer.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("shutdown tracer provider", zap.Error(err))
			}
		}
	}()

	grpcErrCh := make(chan error, 1)
	var grpcListener net.Listener
	if a.grpcServer != nil && a.grpcAddr != "" {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcListener = lis
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
		go func() {
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}
	defer func() {
		if a.grpcServer != nil {
			a.grpcServer.GracefulStop()
		}
		if grpcListener != nil {
			_ = grpcListener.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		if a.grpcServer != nil {
			a.grpcServer.GracefulStop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	case err := <-grpcErrCh:
		return err
	}
}
