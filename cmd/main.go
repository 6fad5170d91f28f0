package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"kostBack/internal/config"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil {
		logger.Warnf("Warning: Error loading .env file: %v", err)
	}
	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Fatal(err)
	}

	addr := flag.String("addr", cfg.Server.Address, "HTTP network address")
	flag.Parse()
	cfg.Server.Address = *addr

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)

	db, err := openDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close()

	rdb, err := openRedis(cfg.Redis, logger)
	if err != nil {
		logger.Fatal(err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	app, err := initializeApp(cfg, db, rdb, logger)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go app.wsManager.Run(ctx)

	cleaner, err := startUploadCleaner(ctx, app)
	if err != nil {
		logger.Fatalf("upload cleaner: %v", err)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
	})

	errorWriter := logger.WriterLevel(logrus.ErrorLevel)
	defer errorWriter.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		ErrorLog:     log.New(errorWriter, "", 0),
		Handler:      addSecurityHeaders(c.Handler(app.routes())),
		IdleTimeout:  time.Minute,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("shutdown")
		}
	}()

	logger.Infof("Starting server on %s", cfg.Server.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}

	if cleaner != nil {
		<-cleaner.Stop().Done()
	}
	logger.Info("server stopped")
}
