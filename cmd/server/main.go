// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/unclebandit/aidplug-crm/internal/backend/postgres"
	"github.com/unclebandit/aidplug-crm/internal/backend/supabase"
	"github.com/unclebandit/aidplug-crm/internal/blob"
	"github.com/unclebandit/aidplug-crm/internal/blob/s3"
	"github.com/unclebandit/aidplug-crm/internal/cache"
	"github.com/unclebandit/aidplug-crm/internal/config"
	"github.com/unclebandit/aidplug-crm/internal/controller"
	"github.com/unclebandit/aidplug-crm/internal/db"
	"github.com/unclebandit/aidplug-crm/internal/handler"
	"github.com/unclebandit/aidplug-crm/internal/logging"
	"github.com/unclebandit/aidplug-crm/internal/metrics"
	"github.com/unclebandit/aidplug-crm/internal/queue"
	"github.com/unclebandit/aidplug-crm/internal/service"
	"github.com/unclebandit/aidplug-crm/internal/session"
)

func main() {
	cfg, loaded, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	if !loaded {
		logger.Info("no .env file found, relying on OS environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q := queue.NewInMemoryQueue(logger)

	client := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, supabase.WithTimeout(cfg.RequestTimeout))
	auth := supabase.NewAuth(client, supabase.FileSessionStore{Path: cfg.SessionFile}, q, logger)

	// Record store
	tables := supabase.NewTables(client, auth)
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database unavailable", zap.Error(err))
		}
		defer conn.Close()
		tables = postgres.NewTables(conn, auth)
		logger.Info("using direct Postgres record store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		logger.Fatal("metrics", zap.Error(err))
	}
	tables = m.WrapTables(tables)

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, lists will not be cached until it is", zap.Error(err))
		}
		tables = cache.WrapTables(tables, rdb, auth, cfg.CacheTTL, logger)
	}

	photos, err := openBlobStore(ctx, cfg, client)
	if err != nil {
		logger.Fatal("photo storage", zap.Error(err))
	}

	if cfg.AMQPURL != "" {
		conn, ch, err := queue.DialAMQP(cfg.AMQPURL)
		if err != nil {
			logger.Fatal("amqp", zap.Error(err))
		}
		defer conn.Close()
		pub := queue.NewAMQPPublisher(ch)
		defer pub.Close()
		unsub, err := queue.Forward(q, queue.TopicRecordChanged, pub, logger)
		if err != nil {
			logger.Fatal("amqp forward", zap.Error(err))
		}
		defer unsub()
	}

	opts := service.Options{Events: q, Logger: logger}
	leads := service.NewLeadService(tables.Leads, tables.Deals, opts)
	clients := service.NewClientService(tables.Clients, photos, opts)
	deals := service.NewDealService(tables.Deals, tables.Clients, opts)
	tasks := service.NewTaskService(tables.Tasks, opts)
	defer leads.Close()
	defer clients.Close()
	defer deals.Close()
	defer tasks.Close()

	sess := session.NewManager(session.Config{
		Auth:     auth,
		Profiles: tables.Profiles,
		Photos:   photos,
		Events:   q,
		SiteURL:  cfg.SiteURL,
		Logger:   logger,
		Timeout:  cfg.RequestTimeout,
		OnSignOut: func(ctx context.Context) {
			for name, reset := range map[string]func(context.Context) error{
				"leads":   leads.Reset,
				"clients": clients.Reset,
				"deals":   deals.Reset,
				"tasks":   tasks.Reset,
			} {
				if err := reset(ctx); err != nil {
					logger.Warn("failed to reset collection", zap.String("collection", name), zap.Error(err))
				}
			}
		},
	})
	if err := sess.Start(ctx); err != nil {
		logger.Warn("starting signed out", zap.Error(err))
	}
	defer sess.Close()

	ctrl := &controller.Controller{
		Session: sess,
		Leads:   leads,
		Clients: clients,
		Deals:   deals,
		Tasks:   tasks,
		Logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(handler.RequestLogger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	ctrl.Routes(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("server running", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config, client *supabase.Client) (blob.Store, error) {
	if cfg.Blob.Driver != string(blob.DriverS3) {
		return supabase.NewStorage(client, cfg.Blob.Bucket), nil
	}
	return s3.New(ctx, s3.Config{
		Region:          cfg.Blob.S3Region,
		Bucket:          cfg.Blob.Bucket,
		Endpoint:        cfg.Blob.S3Endpoint,
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		PathStyle:       cfg.Blob.S3PathStyle,
		PublicURL:       cfg.Blob.PublicURL,
	})
}
