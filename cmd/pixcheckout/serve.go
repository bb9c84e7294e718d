package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pix-checkout/internal/config"
	"pix-checkout/internal/domain/ports/adapter"
	"pix-checkout/internal/infra/adapters/notify"
	"pix-checkout/internal/infra/adapters/payment"
	"pix-checkout/internal/infra/api"
	pg "pix-checkout/internal/infra/db/postgres"
	"pix-checkout/internal/infra/metrics"
	red "pix-checkout/internal/infra/redis"
	"pix-checkout/internal/infra/sched"
	"pix-checkout/internal/infra/worker"
	"pix-checkout/internal/usecase"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the checkout HTTP server, settlement engine and reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.loadWithLogger()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Storage.Driver, cfg.Pix.Provider)

	// ---- Storage ----
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()
	if st.pool != nil {
		go pg.ReportPoolStats(ctx, st.pool, 15*time.Second)
	}
	catalog := st.catalog

	// ---- Redis (optional) ----
	var limiter usecase.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient, cfg.RateLimit.CheckoutPerMinute, time.Minute)
		catalog = red.NewCatalogCacheDecorator(catalog, redisClient, cfg.Redis.TTL, logger)
		logger.Info().Dur("ttl", cfg.Redis.TTL).Msg("redis catalog cache and rate limiter enabled")
	} else {
		logger.Warn().Msg("redis.url not set; checkout rate limiting and catalog cache disabled")
	}

	// ---- PIX gateway ----
	var gateway adapter.PixGateway
	var devCharges api.DevCharges
	switch cfg.Pix.Provider {
	case "noop":
		noop := payment.NewNoopGateway()
		gateway, devCharges = noop, noop
		logger.Warn().Msg("using in-memory PIX gateway; settle charges via /dev/charges")
	default:
		openpix, err := payment.NewOpenPixGateway(cfg.Pix.BaseURL, cfg.Pix.AppID, cfg.Pix.Timeout)
		if err != nil {
			return fmt.Errorf("pix gateway: %w", err)
		}
		gateway = openpix
	}

	// ---- Notifications ----
	notifier := buildNotifier(cfg, logger)

	// ---- Workers ----
	pool := worker.NewPool(cfg.Workers.Size, logger)
	pool.Start(ctx)
	defer pool.Stop()

	// ---- Use cases ----
	settleCfg := usecase.SettlementConfig{
		PollInterval:     cfg.Checkout.PollInterval,
		NavigateDelay:    cfg.Checkout.NavigateDelay,
		MaxPollDuration:  cfg.Checkout.MaxPollDuration,
		Retention:        cfg.Checkout.SessionRetention,
		Currency:         cfg.Checkout.Currency,
		PublicURL:        cfg.HTTP.PublicURL,
		ConfirmationPath: cfg.Checkout.ConfirmationPath,
	}
	engine := usecase.NewSettlementEngine(gateway, st.orders, notifier, nil, usecase.NewSessionRegistry(), settleCfg, logger)
	checkoutUC := usecase.NewCheckoutUseCase(catalog, st.orders, gateway, engine, limiter, pool, payment.NewCorrelationID, logger)
	webhookUC := usecase.NewWebhookUseCase(st.orders, catalog, notifier, settleCfg, logger)
	orderUC := usecase.NewOrderUseCase(st.orders, catalog, notifier, settleCfg, logger)
	catalogUC := usecase.NewCatalogUseCase(catalog)

	// ---- Reconciler ----
	reconciler := sched.NewPendingReconciler(gateway, st.orders, webhookUC, cfg.Scheduler.ExpireInterval, cfg.Scheduler.ExpireAfter, logger)
	go func() {
		if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("pending reconciler stopped")
		}
	}()

	// ---- HTTP ----
	var auth *api.AuthManager
	if cfg.Admin.Username != "" {
		auth = api.NewAuthManager(cfg.Admin.Username, cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.Admin.SecureCookie, cfg.Admin.SessionTTL)
	} else {
		logger.Warn().Msg("admin.username not set; /api/admin disabled")
	}
	srv := api.NewServer(api.Deps{
		Checkout:       checkoutUC,
		Webhook:        webhookUC,
		Orders:         orderUC,
		Catalog:        catalogUC,
		Auth:           auth,
		WebhookPath:    cfg.Pix.WebhookPath,
		WebhookSecret:  cfg.Pix.WebhookSecret,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Health:         healthCheck(st),
		DevCharges:     devCharges,
	}, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Str("pix_provider", gateway.Name()).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown")
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("settlement engine shutdown")
	}
	logger.Info().Msg("stopped")
	return nil
}

// buildNotifier wires only the configured channels; the dispatcher treats a
// nil sender as disabled.
func buildNotifier(cfg *config.Config, logger *zerolog.Logger) *notify.Dispatcher {
	var email adapter.EmailSender
	if cfg.Email.RelayURL != "" {
		email = notify.NewEmailRelay(cfg.Email.RelayURL, cfg.Email.APIKey, cfg.Email.From, cfg.Email.Timeout)
	}
	var attribution adapter.AttributionSender
	if cfg.Attribution.RelayURL != "" {
		attribution = notify.NewAttributionRelay(cfg.Attribution.RelayURL, cfg.Attribution.Token, cfg.Attribution.Platform, cfg.Attribution.Timeout)
	}
	var alerter adapter.MerchantAlerter
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegramAlerter(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram alerts disabled")
		} else {
			alerter = tg
		}
	}
	return notify.NewDispatcher(email, attribution, alerter, logger, cfg.Runtime.Dev)
}

func healthCheck(st *stores) func(ctx context.Context) error {
	if st.pool == nil {
		return nil
	}
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return st.pool.Ping(ctx)
	}
}

