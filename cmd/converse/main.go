package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"converse/internal/app"
	"converse/internal/config"
	"converse/internal/ratelimit"
	"converse/internal/server"
	"converse/internal/util"
	"converse/pkg/ai"
	"converse/pkg/mailer"
	"converse/pkg/payment"
	"converse/pkg/poster"
	"converse/pkg/storage"
	"converse/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		util.Fatal("failed to init postgres store", "err", err)
	}

	revoker := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, 0, revoker)
	if err != nil {
		util.Fatal("failed to init session store", "err", err)
	}

	authLimiter, err := ratelimit.NewRedisFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "converse:ratelimit:auth",
		cfg.AuthRateLimit, time.Duration(cfg.AuthRateWindowSecs)*time.Second,
	)
	if err != nil {
		util.Fatal("failed to init auth rate limiter", "err", err)
	}
	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		util.Fatal("failed to parse trusted proxies", "err", err)
	}

	gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.ChatModel, cfg.ImageModel)
	if err != nil {
		util.Fatal("failed to init gemini client", "err", err)
	}

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		util.Fatal("failed to init object store", "err", err)
	}

	stripeClient, err := payment.NewStripeClient(payment.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		PriceCents:    cfg.PosterPriceCents,
		SuccessURL:    cfg.CheckoutSuccessURL,
		CancelURL:     cfg.CheckoutCancelURL,
	})
	if err != nil {
		util.Fatal("failed to init stripe client", "err", err)
	}

	posterMailer, err := mailer.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom)
	if err != nil {
		util.Fatal("failed to init mailer", "err", err)
	}

	appCore, err := app.New(app.Config{
		Store:              dataStore,
		Sessions:           sessions,
		Generator:          gemini,
		Stylizer:           gemini,
		Checkout:           stripeClient,
		Events:             stripeClient,
		Mailer:             posterMailer,
		Objects:            objects,
		Renderer:           poster.NewRenderer(cfg.PosterFontPath),
		HistoryLimit:       cfg.HistoryLimit,
		DefaultInstruction: cfg.DefaultInstruction,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		CookieName:     cfg.CookieName,
		CookieDomain:   cfg.CookieDomain,
		CookieSecure:   cfg.CookieSecure,
		SessionTTL:     sessions.TTL(),
		AllowedOrigins: cfg.AllowedOrigins,
		AuthLimiter:    authLimiter,
		TrustedProxies: trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		util.Fatal("server error", "err", err)
	}
}
