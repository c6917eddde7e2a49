package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-hackreg/internal/common"
	"github.com/noah-isme/backend-hackreg/internal/config"
	"github.com/noah-isme/backend-hackreg/internal/notify"
	"github.com/noah-isme/backend-hackreg/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "hackreg"), nil)

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri")
	}

	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{cfg.NotifyQueueName: 1},
	})

	// Delivery is a stub transport until an SMTP relay is provisioned; the
	// queue contract and payloads are final.
	emailer := notify.Emailer{
		Mail:   common.NopEmailSender{},
		From:   cfg.NotifyFrom,
		Logger: logger,
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(notify.TaskPaymentConfirmation, emailer.HandlePaymentConfirmation)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("queue", cfg.NotifyQueueName).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
