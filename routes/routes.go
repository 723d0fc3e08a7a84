package routes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cloudbox/config"
	"cloudbox/controllers"
	"cloudbox/metrics"
	"cloudbox/middleware"
	"cloudbox/repository"
	"cloudbox/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Repositories groups the persistence gateways the container is built on.
type Repositories struct {
	Files    services.FileRepository
	Versions services.VersionRepository
	Shares   services.SharedAccessRepository
	Users    services.UserRepository
}

// MongoRepositories returns the Mongo-backed gateways for db.
func MongoRepositories(db *mongo.Database) Repositories {
	return Repositories{
		Files:    repository.NewMongoFileRepository(db),
		Versions: repository.NewMongoVersionRepository(db),
		Shares:   repository.NewMongoSharedAccessRepository(db),
		Users:    repository.NewMongoUserRepository(db),
	}
}

// MemoryRepositories returns gateways over a fresh in-memory store.
func MemoryRepositories() Repositories {
	store := repository.NewMemoryStore()
	return Repositories{
		Files:    store.Files(),
		Versions: store.Versions(),
		Shares:   store.Shares(),
		Users:    store.Users(),
	}
}

// ServiceContainer holds all services and dependencies
type ServiceContainer struct {
	JWTSecret   string
	MaxFileSize int64

	FileService         *services.FileService
	AuthService         *services.AuthService
	NotificationService *services.NotificationService
}

// ContainerOptions are the optional collaborators of the container.
type ContainerOptions struct {
	// DB enables share notifications when set.
	DB *mongo.Database
	// Redis switches entry locks from in-process to shared.
	Redis    redis.UniversalClient
	Registry prometheus.Registerer
}

// NewServiceContainer wires the engine from cfg and the given gateways.
func NewServiceContainer(ctx context.Context, cfg *config.Config, repos Repositories, opts ContainerOptions, logger *zap.Logger) (*ServiceContainer, error) {
	blobs, err := NewBlobStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var locker services.EntryLocker = services.NewMemoryEntryLocker()
	if opts.Redis != nil {
		locker = services.NewRedisEntryLocker(opts.Redis, cfg.LockTimeout, logger.Named("lock"))
	}

	fileOpts := []services.FileServiceOption{}
	if opts.Registry != nil {
		fileOpts = append(fileOpts, services.WithMetrics(metrics.NewEngineMetrics(opts.Registry)))
	}

	container := &ServiceContainer{
		JWTSecret:   cfg.JWTSecret,
		MaxFileSize: cfg.MaxFileSize,
		AuthService: services.NewAuthService(repos.Users, cfg.JWTSecret, cfg.JWTExpiration, logger.Named("auth")),
	}
	if opts.DB != nil {
		container.NotificationService = services.NewNotificationService(opts.DB)
		fileOpts = append(fileOpts, services.WithShareNotifier(container.NotificationService))
	}

	engineLogger := logger.Named("files")
	container.FileService = services.NewFileService(
		repos.Files,
		services.NewVersionManager(repos.Versions, locker, engineLogger),
		services.NewAccessControl(repos.Shares, repos.Users, engineLogger),
		services.NewPathResolver(repos.Files, engineLogger),
		blobs,
		engineLogger,
		fileOpts...,
	)
	return container, nil
}

// NewBlobStore builds the blob gateway selected by cfg.BlobBackend.
func NewBlobStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.BlobStore, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendB2:
		return services.NewB2BlobStore(ctx, cfg.B2ApplicationKeyID, cfg.B2ApplicationKey, cfg.B2BucketName, logger.Named("b2"))
	case config.BlobBackendMinio:
		return services.NewMinioBlobStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, logger.Named("minio"))
	case config.BlobBackendMemory:
		return services.NewMemoryBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

// SetupRoutesWithContainer configures all API routes using a service container
func SetupRoutesWithContainer(api *gin.RouterGroup, container *ServiceContainer) {
	RegisterAuthRoutes(api, container.JWTSecret, controllers.NewAuthController(container.AuthService))
	RegisterFileRoutes(api, container.JWTSecret, controllers.NewFileController(container.FileService, container.MaxFileSize))
	if container.NotificationService != nil {
		RegisterNotificationRoutes(api, container.JWTSecret, controllers.NewNotificationController(container.NotificationService))
	}
}

// NewRouter builds the gin engine with middleware, health, metrics and the
// API group. gatherer may be nil to skip /metrics.
func NewRouter(container *ServiceContainer, logger *zap.Logger, gatherer prometheus.Gatherer, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger.Named("http")))
	router.Use(middleware.CORS(allowedOrigins))

	api := router.Group("/api")
	SetupRoutesWithContainer(api, container)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return router
}
