package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloudbox/config"
	"cloudbox/repository"
	"cloudbox/routes"
	"cloudbox/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	bootLogger := utils.BootLogger(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	// Load .env before reading configuration
	config.LoadEnvFiles(bootLogger)

	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger, err := utils.InitLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		bootLogger.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()
	logger.Info("configuration loaded", cfg.LogFields()...)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := config.CreateContext(15 * time.Second)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := routes.ContainerOptions{Registry: registry}
	repos := routes.MemoryRepositories()

	if cfg.Store == config.StoreMongo {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			logger.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			disconnectCtx, disconnectCancel := config.CreateContext(5 * time.Second)
			defer disconnectCancel()
			if err := mongoClient.Disconnect(disconnectCtx); err != nil {
				logger.Warn("failed to disconnect MongoDB", zap.Error(err))
			}
		}()
		if err := mongoClient.Ping(ctx, nil); err != nil {
			logger.Fatal("failed to ping MongoDB", zap.Error(err))
		}
		logger.Info("connected to MongoDB")

		db := mongoClient.Database(cfg.DatabaseName)
		if err := repository.EnsureIndexes(ctx, db); err != nil {
			logger.Fatal("failed to create indexes", zap.Error(err))
		}
		repos = routes.MongoRepositories(db)
		opts.DB = db
	} else {
		logger.Warn("using in-memory store, data is lost on restart")
	}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		opts.Redis = rdb
		logger.Info("using Redis entry locks")
	}

	container, err := routes.NewServiceContainer(ctx, cfg, repos, opts, logger)
	if err != nil {
		logger.Fatal("failed to initialize services", zap.Error(err))
	}

	router := routes.NewRouter(container, logger, registry, cfg.AllowedOrigins)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           http.TimeoutHandler(router, cfg.RequestTimeout, "request timed out"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting cloudbox server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
