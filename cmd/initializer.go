package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"kostBack/internal/cache"
	"kostBack/internal/config"
	"kostBack/internal/handlers"
	"kostBack/internal/intake"
	"kostBack/internal/repositories"
	"kostBack/internal/services"
	"kostBack/internal/storage"
)

type application struct {
	cfg            config.Config
	log            *logrus.Logger
	db             *sql.DB
	uploads        *storage.Disk
	listingService *services.ListingService
	listingHandler *handlers.ListingHandler
	wsManager      *WebSocketManager
}

func initializeApp(cfg config.Config, db *sql.DB, rdb *redis.Client, logger *logrus.Logger) (*application, error) {
	dialect, err := repositories.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	disk, err := storage.NewDisk(cfg.Uploads.Dir)
	if err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}
	var store storage.ImageStore = disk
	if cfg.S3.Bucket != "" {
		client, err := storage.NewS3Client(storage.S3Options{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		store = &storage.S3Mirror{Local: disk, Client: client, Bucket: cfg.S3.Bucket, Prefix: cfg.S3.Prefix}
		logger.WithField("bucket", cfg.S3.Bucket).Info("mirroring uploads to s3")
	}

	listingRepo := repositories.NewListingRepository(db, dialect)
	listingRepo.OnDecodeError = func(id int64, column string, err error) {
		logger.WithFields(logrus.Fields{"listing_id": id, "field": column}).WithError(err).Warn("malformed list column")
	}

	wsManager := NewWebSocketManager(logger)

	listingService := &services.ListingService{
		Repo:     listingRepo,
		Intake:   intake.New(store, cfg.Uploads.MaxFileBytes, cfg.Uploads.Allowed),
		Cache:    cache.NewListingCache(rdb, cfg.Redis.ListTTL),
		Notifier: wsManager,
		Log:      logger.WithField("component", "listings"),
	}

	listingHandler := &handlers.ListingHandler{
		Service:        listingService,
		Log:            logger.WithField("component", "http"),
		StrictNotFound: cfg.Server.StrictNotFound,
		UploadsPrefix:  cfg.Server.UploadsPrefix,
		PublicURL:      cfg.Server.PublicURL,
	}

	return &application{
		cfg:            cfg,
		log:            logger,
		db:             db,
		uploads:        disk,
		listingService: listingService,
		listingHandler: listingHandler,
		wsManager:      wsManager,
	}, nil
}

func openDB(cfg config.DatabaseConfig, logger *logrus.Logger) (*sql.DB, error) {
	dialect, err := repositories.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	db.SetMaxIdleConns(35)
	db.SetConnMaxLifetime(5 * time.Minute)
	logger.WithField("driver", string(dialect)).Info("Successfully connected to database")
	return db, nil
}

// openRedis returns nil when no address is configured.
func openRedis(cfg config.RedisConfig, logger *logrus.Logger) (*redis.Client, error) {
	if cfg.Addr == "" {
		logger.Info("redis not configured, list cache disabled")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.WithField("addr", cfg.Addr).Info("connected to redis")
	return rdb, nil
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
		next.ServeHTTP(w, r)
	})
}
