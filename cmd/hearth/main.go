package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/hearth/internal/backup"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/email"
	"github.com/dukerupert/hearth/internal/logging"
	"github.com/dukerupert/hearth/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("HEARTH_LOG_LEVEL"), os.Getenv("HEARTH_LOG_FORMAT"))

	port := os.Getenv("HEARTH_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("HEARTH_DB_PATH")
	if dbPath == "" {
		dbPath = "hearth.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	inviteSecret := os.Getenv("HEARTH_INVITE_SECRET")
	if inviteSecret == "" {
		logger.Warn("HEARTH_INVITE_SECRET not set, invites disabled after restart")
		inviteSecret = fmt.Sprintf("ephemeral-%d", time.Now().UnixNano())
	}

	baseURL := os.Getenv("HEARTH_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}
	emailClient := email.NewClient(
		os.Getenv("HEARTH_POSTMARK_TOKEN"),
		os.Getenv("HEARTH_FROM_EMAIL"),
		baseURL,
	)

	s3cfg := backup.S3Config{
		Endpoint:  os.Getenv("HEARTH_S3_ENDPOINT"),
		Bucket:    os.Getenv("HEARTH_S3_BUCKET"),
		Region:    os.Getenv("HEARTH_S3_REGION"),
		AccessKey: os.Getenv("HEARTH_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("HEARTH_S3_SECRET_KEY"),
	}

	srv := server.New(db, emailClient, []byte(inviteSecret), s3cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	// Periodic cleanup of expired sessions and stale rate-limit buckets.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("hearth listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
