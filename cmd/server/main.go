package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/festal-inc/haishin/internal"
	"github.com/festal-inc/haishin/internal/dispatch"
	"github.com/festal-inc/haishin/internal/events"
	"github.com/festal-inc/haishin/internal/handler"
	"github.com/festal-inc/haishin/internal/job"
	"github.com/festal-inc/haishin/internal/mail"
	"github.com/festal-inc/haishin/internal/middleware"
	"github.com/festal-inc/haishin/internal/routes"
	"github.com/festal-inc/haishin/internal/service"
)

func run() error {
	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Select the mail provider
	var (
		sender   mail.Sender
		verifier mail.UserVerifier
	)
	switch cfg.MailProvider {
	case "graph":
		graph := mail.NewGraphSender(mail.GraphConfig{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
		})
		sender, verifier = graph, graph
	case "smtp":
		smtp := mail.NewSMTPSender(&mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     int(cfg.SMTP.Port),
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
		sender, verifier = smtp, smtp
	case "mock":
		mock := mail.NewMockSender()
		sender, verifier = mock, mock
	}
	logger.Info("Mail provider initialized", "provider", cfg.MailProvider)

	// Event publishing is optional; without NATS_URL batches still run
	var publisher events.Publisher = events.Noop{}
	if cfg.NatsURL != "" {
		nats, err := events.Connect(cfg.NatsURL, logger)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer nats.Close()
		publisher = nats
		logger.Info("Event publishing enabled", "url", cfg.NatsURL)
	}

	// Wire the batch pipeline
	store := job.NewStore()
	orchestrator := dispatch.NewOrchestrator(sender, logger)
	batchService := service.NewBatchService(store, orchestrator, verifier, publisher, cfg.AllowedDomain, logger)

	// Build the router
	metrics := middleware.NewMetrics("haishin")
	r := routes.New(routes.Deps{
		Auth:           handler.NewAuthHandler(batchService, logger),
		Batch:          handler.NewBatchHandler(batchService, cfg.DefaultDelay, logger),
		Metrics:        metrics,
		Logger:         logger,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadMB * middleware.MB,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting dispatch server", "address", addr, "env", cfg.Env)

	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
