package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cimillas/storefront-core/internal/app"
	"github.com/cimillas/storefront-core/internal/auth"
	"github.com/cimillas/storefront-core/internal/clock"
	"github.com/cimillas/storefront-core/internal/config"
	"github.com/cimillas/storefront-core/internal/domain"
	"github.com/cimillas/storefront-core/internal/notify"
	"github.com/cimillas/storefront-core/internal/pricing"
	"github.com/cimillas/storefront-core/internal/storage/postgres"
	"github.com/cimillas/storefront-core/internal/storage/redisstore"
	transporthttp "github.com/cimillas/storefront-core/internal/transport/http"
	"github.com/cimillas/storefront-core/migrations"
)

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = 10 * time.Minute
)

func main() {
	envPath, envErr := config.LoadEnvFile()

	cfg, err := config.FromEnv()
	logger := newLogger(cfg.LogJSON)
	slog.SetDefault(logger)
	if err != nil {
		fatal(logger, "load config", err)
	}
	switch {
	case envErr != nil:
		logger.Warn("failed to load .env", slog.Any("err", envErr))
	case envPath != "":
		logger.Info("loaded env file", slog.String("path", envPath))
	}
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid config", err)
	}
	if cfg.Dev() && cfg.AdminToken == "" {
		logger.Warn("STOREFRONT_ADMIN_TOKEN not set, operator endpoints are disabled")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "connect to db", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		fatal(logger, "db ping", err)
	}
	applied, err := migrations.Apply(startupCtx, pool)
	if err != nil {
		fatal(logger, "apply migrations", err)
	}
	for _, name := range applied {
		logger.Info("applied migration", slog.String("name", name))
	}

	var rdb *redis.Client
	if cfg.OTPStore == config.OTPStoreRedis || cfg.NotifyStream != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(startupCtx).Err(); err != nil {
			fatal(logger, "redis ping", err)
		}
	}

	clk := clock.NewSystem()
	phones := domain.PhoneFormat{CountryCode: cfg.PhoneCountryCode, Digits: cfg.PhoneDigits}

	sinks := notify.Fanout{notify.NewLog(logger, cfg.Dev())}
	if cfg.NotifyStream != "" {
		sinks = append(sinks, notify.NewRedisStream(rdb, cfg.NotifyStream, 0))
	}

	pgChallenges := postgres.NewChallengeStore(pool)
	var challenges app.ChallengeStore = pgChallenges
	if cfg.OTPStore == config.OTPStoreRedis {
		challenges = redisstore.NewChallengeStore(rdb, clk)
	}

	hasher := auth.NewHasher(cfg.OTPSalt)
	sessionRepo := postgres.NewSessionRepository(pool)
	sessionSvc := app.NewSessionService(sessionRepo, auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL), hasher, clk, logger, cfg.RefreshTokenTTL)

	otpSvc := app.NewOTPService(
		challenges,
		postgres.NewSubjectRepository(pool),
		sessionSvc,
		sinks,
		hasher,
		clk,
		logger,
		app.WithChallengeTTL(cfg.OTPTTL),
		app.WithMaxSends(cfg.OTPMaxSends),
		app.WithMaxAttempts(cfg.OTPMaxAttempts),
		app.WithPhoneFormat(phones),
		app.WithCodeEcho(cfg.Dev() && cfg.NotifyStream == ""),
		app.WithOTPNotifyTimeout(cfg.NotifyTimeout),
	)

	adminRepo := postgres.NewAdminRepository(pool)
	adminSvc := app.NewAdminService(adminRepo, clk)
	engine := pricing.New(
		pricing.WithFastPathPercent(cfg.FastPathPercent),
		pricing.WithCODAdvance(domain.Money(cfg.CODAdvance)),
		pricing.WithRoundingUnit(domain.Money(cfg.RoundingUnit)),
	)
	pricingSvc := app.NewPricingService(adminRepo, engine, clk, logger)
	orderSvc := app.NewOrderService(
		postgres.NewOrderRepository(pool),
		pricingSvc,
		sinks,
		clk,
		logger,
		app.WithCancellationWindow(cfg.CancellationWindow),
		app.WithOrderPhoneFormat(phones),
		app.WithOrderNotifyTimeout(cfg.NotifyTimeout),
	)

	limiter := transporthttp.NewClientRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	checks := map[string]transporthttp.Check{"postgres": pool.Ping}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/ready", transporthttp.ReadyHandler(checks))
	mux.Handle("/otp/send", limiter.Middleware(transporthttp.HandleSendOTP(otpSvc)))
	mux.Handle("/otp/verify", limiter.Middleware(transporthttp.HandleVerifyOTP(otpSvc)))
	mux.Handle("/auth/refresh", limiter.Middleware(transporthttp.HandleRefresh(sessionSvc)))
	mux.Handle("/auth/logout", transporthttp.RequireSession(sessionSvc, transporthttp.HandleLogout(sessionSvc)))
	mux.Handle("/pricing/quote", transporthttp.RequireSession(sessionSvc, transporthttp.HandleQuote(pricingSvc)))
	mux.Handle("/orders", transporthttp.RequireSession(sessionSvc, transporthttp.HandleOrders(orderSvc, clk)))
	mux.Handle("/orders/", transporthttp.HandleOrderActions(orderSvc, sessionSvc, cfg.AdminToken, clk))
	mux.Handle("/admin/coupons", transporthttp.AdminOnly(cfg.AdminToken, transporthttp.HandleAdminCoupons(adminSvc)))
	mux.Handle("/admin/payments", transporthttp.AdminOnly(cfg.AdminToken, transporthttp.HandleAdminPayments(adminSvc)))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.Recover(
		transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger),
		logger,
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go limiter.Run(stopCtx)
	go purgeExpired(stopCtx, logger, clk, sessionRepo, pgChallenges)

	logger.Info("api listening",
		slog.String("port", cfg.Port),
		slog.String("env", cfg.Env),
		slog.String("otp_store", cfg.OTPStore),
	)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("err", err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", slog.Any("err", err))
	}
	logger.Info("server stopped")
}

func newLogger(json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("err", err))
	os.Exit(1)
}

type purger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// purgeExpired drops expired sessions and Postgres-held challenges. Redis
// challenges expire on their own key TTL.
func purgeExpired(ctx context.Context, logger *slog.Logger, clk clock.Clock, targets ...purger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range targets {
				n, err := p.PurgeExpired(ctx, clk.Now())
				if err != nil {
					logger.WarnContext(ctx, "purge expired rows failed", slog.Any("err", err))
					continue
				}
				if n > 0 {
					logger.DebugContext(ctx, "purged expired rows", slog.Int64("count", n))
				}
			}
		}
	}
}
