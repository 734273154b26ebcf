package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resto-console/internal/catalog"
	"resto-console/internal/config"
	"resto-console/internal/console"
	"resto-console/internal/db"
	"resto-console/internal/gateway"
	httpapi "resto-console/internal/http"
	"resto-console/internal/http/handlers"
	"resto-console/internal/journal"
	"resto-console/internal/logger"
	"resto-console/internal/queue"
	"resto-console/internal/storage"
	"resto-console/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.BackendAPIURL == "" {
		log.Fatal("BACKEND_API_URL is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	backend := gateway.New(cfg.BackendAPIURL, cfg.BackendTimeout).WithLogger(log.Named("gateway"))

	rdb := config.NewRedisClient(cfg)
	if rdb != nil {
		log.Info("catalog cache using redis", zap.String("addr", cfg.RedisAddr))
		defer rdb.Close()
	} else {
		log.Info("catalog cache in-process")
	}
	catalogService := catalog.NewService(backend, rdb, cfg.CatalogCacheTTL, log.Named("catalog"))

	deps := console.Deps{
		Backend:           backend,
		Catalog:           catalogService,
		Logger:            log.Named("console"),
		ReservationLimit:  cfg.ReservationLimit,
		SuppressionWindow: cfg.ModalSuppressionWindow,
	}

	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("database connection failed", zap.Error(err))
			}
			log.Warn("database connection failed; commit journal disabled", zap.Error(err))
		} else {
			defer pool.Close()
			j := journal.New(pool)
			if err := j.EnsureSchema(ctx); err != nil {
				log.Warn("commit journal schema failed; journal disabled", zap.Error(err))
			} else {
				deps.Journal = j
				log.Info("commit journal enabled")
			}
		}
	} else {
		log.Info("commit journal disabled (DATABASE_URL is empty)")
	}

	if cfg.ObjectStoreEnabled() {
		store, err := storage.NewObjectStore(ctx, storage.Config{
			Endpoint:        cfg.ObjectStoreEndpoint,
			Region:          cfg.ObjectStoreRegion,
			AccessKeyID:     cfg.ObjectStoreAccessKeyID,
			SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
			Bucket:          cfg.ObjectStoreBucket,
			PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
			StorageClass:    cfg.ObjectStoreStorageClass,
		})
		if err != nil {
			log.Warn("object store unavailable; ticket archive disabled", zap.Error(err))
		} else {
			deps.Archive = store
			log.Info("ticket archive enabled", zap.String("bucket", cfg.ObjectStoreBucket))
		}
	}

	var queueClient *queue.Client
	var topology queue.Topology
	if cfg.RabbitMQURL != "" {
		qc, err := queue.New(cfg.RabbitMQURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq connection failed", zap.Error(err))
			}
			log.Warn("rabbitmq connection failed; continuing without events", zap.Error(err))
			qc = nil
		}
		if qc != nil {
			topology, err = queue.EnsureConsoleTopology(qc, queue.Topology{
				BackendExchange: cfg.BackendEventsExchange,
				ConsoleExchange: cfg.ConsoleEventsExchange,
				RefreshQueue:    cfg.ReservationRefreshQueue,
			})
			if err != nil {
				if cfg.Env == "production" {
					log.Fatal("rabbitmq topology failed", zap.Error(err))
				}
				log.Warn("rabbitmq topology failed; continuing without events", zap.Error(err))
				_ = qc.Close()
				qc = nil
			}
		}
		queueClient = qc
		if queueClient != nil {
			defer queueClient.Close()
			deps.Events = queue.NewPublisher(queueClient, topology.ConsoleExchange)
		}
	} else {
		log.Info("console events disabled (RABBITMQ_URL is empty)")
	}

	hub := ws.NewHub(log.Named("ws"))
	deps.Notifier = hub
	registry := console.NewRegistry(deps, cfg.SessionIdleTTL)
	defer registry.Close()
	go registry.Run(ctx, cfg.SessionSweepInterval)

	if queueClient != nil {
		if cfg.RabbitMQWorkerMode == "daemon" {
			log.Info("reservation refresh consumer enabled", zap.String("queue", topology.RefreshQueue))
			go func() {
				err := queueClient.ConsumeWithRetry(ctx, topology.RefreshQueue,
					queue.ReservationRefreshHandler(registry, log.Named("queue")),
					5, 5*time.Second, log.Named("queue"))
				if err != nil && ctx.Err() == nil {
					log.Error("consumer stopped", zap.Error(err))
				}
			}()
		} else {
			log.Info("reservation refresh consumer disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
		}
	}

	h := &handlers.Handler{
		Logger:   log.Named("http"),
		Config:   cfg,
		Sessions: registry,
		Catalog:  catalogService,
	}
	wsServer := ws.New(log.Named("ws"), cfg, hub, registry)
	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(log, cfg, h, wsServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("console api ready", zap.String("base", "/api/console"))
		log.Info("console ws ready", zap.String("base", "/ws/console"))
		log.Info("console service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	stopBackground()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}
