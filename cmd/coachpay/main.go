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

	"github.com/joho/godotenv"

	"github.com/coachware/coachpay/internal/adapty"
	"github.com/coachware/coachpay/internal/database"
	"github.com/coachware/coachpay/internal/logging"
	"github.com/coachware/coachpay/internal/server"
	"github.com/coachware/coachpay/internal/stripeapi"
)

// webhookEventRetention bounds the dedup table; the provider stops
// retrying long before this.
const webhookEventRetention = 30 * 24 * time.Hour

func main() {
	godotenv.Load()

	logger := logging.Setup(os.Getenv("COACHPAY_LOG_LEVEL"))

	port := os.Getenv("COACHPAY_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("COACHPAY_DB_PATH")
	if dbPath == "" {
		dbPath = "coachpay.db"
	}

	baseURL := os.Getenv("COACHPAY_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", port)
	}

	secretKey := os.Getenv("STRIPE_SECRET_KEY")
	if secretKey == "" {
		slog.Error("STRIPE_SECRET_KEY is required")
		os.Exit(1)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	sc := stripeapi.NewClient(stripeapi.Config{
		SecretKey:     secretKey,
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
	})

	mobile := adapty.NewClient(os.Getenv("ADAPTY_API_KEY"))

	srv := server.New(db, sc, mobile, server.Config{
		BaseURL:               baseURL,
		TerminalCaptureMethod: os.Getenv("COACHPAY_TERMINAL_CAPTURE_METHOD"),
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					slog.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up expired sessions", "count", n)
				}
				cutoff := time.Now().Add(-webhookEventRetention)
				if n, err := srv.WebhookEventStore().DeleteOlderThan(cutoff); err != nil {
					slog.Error("cleanup webhook events", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up webhook events", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("coachpay starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
