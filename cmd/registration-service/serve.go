package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ms-registration/internal/api"
	"ms-registration/internal/auth"
	"ms-registration/internal/config"
	"ms-registration/internal/counters"
	"ms-registration/internal/kafka"
	"ms-registration/internal/logger"
	"ms-registration/internal/metrics"
	"ms-registration/internal/reconcile"
	"ms-registration/internal/registration"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := counters.Validate(counters.All()); err != nil {
		return err
	}
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("APP", "Starting registration service")

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var notifier registration.Notifier = registration.NopNotifier{}
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.NotificationsTopic}
		if cfg.Kafka.ConsumeSubmissions {
			topics = append(topics, cfg.Kafka.SubmissionsTopic)
		}
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic, log)
		defer producer.Close()
		notifier = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, notifications are dropped")
	}

	ledger := counters.NewLedger(st, log)
	svc := registration.NewService(st, ledger, notifier, log)
	job := reconcile.NewJob(st, ledger, log)

	if cfg.Kafka.Enabled && cfg.Kafka.ConsumeSubmissions {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.SubmissionsTopic, cfg.Kafka.GroupID, svc, log)
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Submission consumer stopped: %v", err))
			}
		}()
	}

	if cfg.Reconcile.Enabled {
		sched := reconcile.NewScheduler(job, cfg.Reconcile.Events, cfg.Reconcile.Interval, log)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	verifier, err := buildVerifier(ctx, cfg.Auth, log)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.NewHandler(svc, job, log), api.RouterOptions{
		Verifier:      verifier,
		WebhookAPIKey: cfg.Auth.WebhookAPIKey,
		AdminAPIKey:   cfg.Auth.AdminAPIKey,
		Logger:        log,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Registration service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
		return err
	}
	log.Info("HTTP", "✅ Registration service shutdown complete")
	return nil
}

// buildVerifier accepts OIDC tokens when an issuer is configured and HS256
// tokens when a shared secret is.
func buildVerifier(ctx context.Context, c config.AuthConfig, l *logger.Logger) (auth.Verifier, error) {
	var chain auth.ChainVerifier
	if c.OIDCIssuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, c.OIDCIssuer)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
		l.Info("AUTH", fmt.Sprintf("OIDC tokens accepted from %s", c.OIDCIssuer))
	}
	if c.HMACSecret != "" {
		chain = append(chain, &auth.HMACVerifier{Secret: []byte(c.HMACSecret)})
		l.Warn("AUTH", "HS256 tokens accepted; do not use a shared secret in production")
	}
	if len(chain) == 0 {
		return nil, errors.New("no token verifier configured")
	}
	return chain, nil
}
