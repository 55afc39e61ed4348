// Package main запускает HTTP-сервер сервиса членских взносов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/c3smembership/dues/internal/config"
	"github.com/c3smembership/dues/internal/dues"
	"github.com/c3smembership/dues/internal/handler"
	"github.com/c3smembership/dues/internal/invoicepdf"
	"github.com/c3smembership/dues/internal/mailer"
	"github.com/c3smembership/dues/internal/metrics"
	"github.com/c3smembership/dues/internal/middleware"
	"github.com/c3smembership/dues/internal/repository"
	"github.com/c3smembership/dues/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse(".env")
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	rates, err := cfg.Rates()
	if err != nil {
		sugar.Fatalw("dues rates error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var m mailer.Mailer
	if cfg.MailToConsole {
		m = mailer.NewConsoleMailer(logger)
	} else {
		m = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.MailerHost,
			Port:     cfg.MailerPort,
			Login:    cfg.MailerLogin,
			Password: cfg.MailerPassword,
		})
	}

	duesMetrics := metrics.New()

	svc := service.NewService(repo, m, logger, service.Config{
		FirstYear:          cfg.DuesFirstYear,
		LastYear:           cfg.DuesLastYear,
		Rates:              rates,
		Sender:             cfg.NotificationSender,
		BaseURL:            cfg.BaseURL,
		DispatchYear:       cfg.DispatchYear,
		DispatchInterval:   cfg.DispatchInterval,
		DispatchBatch:      cfg.DispatchBatch,
		DispatchRetryAfter: cfg.DispatchRetryAfter,
	}).WithMetrics(duesMetrics)
	defer svc.Close()

	renderer := invoicepdf.NewRenderer(invoicepdf.DefaultIssuer, dues.NewQuarterlyCalculator(rates))

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, renderer, logger, authMiddleware, handler.Credentials{
		Login:    cfg.StaffLogin,
		Password: cfg.StaffPassword,
	}).WithMetrics(duesMetrics)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Рассылка писем о взносах за настроенный год
	g.Go(func() error {
		if cfg.DispatchYear != 0 {
			sugar.Infow("starting dues dispatch", "year", cfg.DispatchYear, "interval", cfg.DispatchInterval)
		}
		svc.StartDuesDispatch(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting dues server", "addr", cfg.RunAddress, "years", fmt.Sprintf("%d-%d", cfg.DuesFirstYear, cfg.DuesLastYear))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
