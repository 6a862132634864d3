package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/notify-stream/internal/api"
	"github.com/notifyhub/notify-stream/internal/client"
	"github.com/notifyhub/notify-stream/internal/config"
	"github.com/notifyhub/notify-stream/internal/credential"
	"github.com/notifyhub/notify-stream/internal/inbox"
	"github.com/notifyhub/notify-stream/internal/metrics"
	"github.com/notifyhub/notify-stream/internal/provider"
	"github.com/notifyhub/notify-stream/internal/ratelimiter"
	"github.com/notifyhub/notify-stream/internal/service"
	"github.com/notifyhub/notify-stream/internal/transport"
)

func main() {
	logger, _ := zap.NewProduction()

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if cfg.Debug {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync() //nolint:errcheck

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	dialer := transport.NewWebSocketDialer(cfg.HandshakeTimeout, logger.Named("transport"))
	c, err := client.New(dialer, cfg.BaseURL, cfg.Keepalive, logger.Named("client"), m.ClientHooks())
	if err != nil {
		logger.Fatal("invalid notification service address", zap.Error(err))
	}

	ctx := context.Background()

	// ---- display sinks ----
	// Background goroutines that outlive a session; cancelled on shutdown.
	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()

	sinks := service.Sinks{service.NewLogSink(logger.Named("toast"))}
	var forwarderDone chan struct{}
	var forwarder *provider.Forwarder
	if cfg.ForwardURL != "" {
		onForwarded, onFailed := m.ForwarderHooks()
		forwarder = provider.NewForwarder(
			provider.NewWebhookProvider(cfg.ForwardURL, cfg.ForwardTimeout),
			cfg.ForwardTimeout,
			logger.Named("forwarder"),
			onForwarded, onFailed,
		)
		sinks = append(sinks, forwarder)
		forwarderDone = make(chan struct{})
		go func() {
			defer close(forwarderDone)
			forwarder.Run(bgCtx)
		}()
	}

	svc := service.NewNotificationService(
		c,
		credentialStore(cfg),
		inbox.New(),
		sinks,
		logger.Named("service"),
		m.ServiceHooks(),
	)

	// A failed auto-connect leaves the daemon up; POST /api/v1/connection retries.
	if cfg.AutoConnect {
		if err := svc.AutoConnect(ctx); err != nil {
			logger.Warn("auto-connect failed", zap.Error(err))
		}
	}

	// ---- HTTP server ----
	connectLimiter := ratelimiter.New(cfg.ConnectInterval, cfg.ConnectBurst)
	router := api.NewRouter(svc, connectLimiter, reg, logger.Named("http"))
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("local api starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting local API requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. End the session: queued receipts are abandoned and the socket is
	// closed with a normal-closure frame.
	svc.Close()

	// 3. Flush forwards already queued, bounded by the shutdown timeout.
	if forwarder != nil {
		forwarder.Stop()
		select {
		case <-forwarderDone:
		case <-shutdownCtx.Done():
			logger.Warn("forwarder did not drain before shutdown timeout")
			cancelBg()
			<-forwarderDone
		}
	}

	logger.Info("stopped cleanly")
}

// credentialStore builds the lookup order for the startup credential.
// NOTIFY_TOKEN, when set, is consulted first.
func credentialStore(cfg *config.Config) credential.Store {
	path := cfg.CredentialsFile
	if path == "" {
		path = credential.DefaultFilePath()
	}
	file := credential.NewFileStore(path)

	var chain credential.Chain
	if cfg.Token != "" {
		chain = append(chain, credential.Static(cfg.Token))
	}
	switch cfg.CredentialBackend {
	case config.BackendKeyring:
		chain = append(chain, credential.NewKeyringStore(cfg.KeyringDir))
	case config.BackendAuto:
		chain = append(chain, file, credential.NewKeyringStore(cfg.KeyringDir))
	default:
		chain = append(chain, file)
	}
	return chain
}
