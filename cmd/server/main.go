package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/klear-exec/internal/auth"
	"github.com/ksred/klear-exec/internal/commissions"
	"github.com/ksred/klear-exec/internal/config"
	"github.com/ksred/klear-exec/internal/database"
	"github.com/ksred/klear-exec/internal/metrics"
	"github.com/ksred/klear-exec/internal/notify"
	"github.com/ksred/klear-exec/internal/settings"
	"github.com/ksred/klear-exec/internal/trading"
	"github.com/ksred/klear-exec/pkg/middleware"
)

// setupLogging configures the global logger. Development gets pretty
// console output; DEBUG=true enables debug level.
func setupLogging(cfg config.Config) {
	if !cfg.IsProduction() {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main wires the execution service and serves it until SIGINT or SIGTERM
func main() {
	cfg := config.Load("")
	setupLogging(cfg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	settings.SetPricePrecision(cfg.PricePrecision)

	commission, err := commissions.FromConfig(cfg.CommissionModel, cfg.CommissionRate)
	if err != nil {
		zlog.Fatal().Err(err).Str("model", cfg.CommissionModel).Msg("Invalid commission model")
	}

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	dispatcher := notify.NewDispatcher(cfg.NotificationBuffer, m)
	dispatcher.Subscribe(notify.LogListener())
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		dispatcher.Run(ctx)
	}()

	tradingService := trading.NewService(db, trading.Options{
		Source:     cfg.ExecutionSource,
		Precision:  settings.Global,
		Commission: commission,
		Listener:   dispatcher,
		Metrics:    m,
	})
	if _, err := tradingService.Load(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load orders")
	}
	tradingHandlers := trading.NewGinHandlers(tradingService)

	janitor := trading.NewJanitor(tradingService.DB(), time.Hour)
	go janitor.Start(ctx)

	authService := auth.NewService(cfg.JWTSecret)
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)
	authService.RegisterAPICredentials(auth.TestBrokerKey, auth.TestBrokerSecret,
		auth.PermissionTrade, auth.PermissionInternal)
	authHandlers := auth.NewGinHandlers(authService)

	limiter := middleware.NewRateLimiter(middleware.DefaultLimits(), 5)
	go limiter.Cleanup(ctx, time.Minute, 10*time.Minute)

	router := gin.Default()
	router.GET("/metrics", gin.WrapH(m.Handler()))
	setupRoutes(router, cfg.JWTSecret, limiter, authHandlers, tradingHandlers)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		zlog.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain queued notifications before stopping background workers
	dispatcher.Close()
	select {
	case <-dispatched:
	case <-shutdownCtx.Done():
		zlog.Warn().Msg("Notification queue not drained before timeout")
	}
	cancel()

	zlog.Info().Uint64("dropped_notifications", dispatcher.Dropped()).Msg("Server exiting")
}

// setupRoutes configures all API endpoints:
//   - Auth routes: public token issuance
//   - Order routes: JWT protected, scoped to the calling client
//   - Internal routes: broker fill feed, tokens need the internal permission
func setupRoutes(
	router *gin.Engine,
	secret string,
	limiter *middleware.RateLimiter,
	authHandlers *auth.GinHandlers,
	tradingHandlers *trading.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.Use(limiter.Middleware())
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		client := v1.Group("/orders")
		client.Use(middleware.JWTAuth(secret), limiter.Middleware())

		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(secret), limiter.Middleware())

		tradingHandlers.RegisterRoutes(client, internal)
	}
}
