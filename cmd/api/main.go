package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"poslink-core/internal/application"
	"poslink-core/internal/infrastructure/encryption"
	"poslink-core/internal/infrastructure/httpapi"
	"poslink-core/internal/infrastructure/metrics"
	"poslink-core/internal/infrastructure/oauthstate"
	"poslink-core/internal/infrastructure/pos"
	"poslink-core/internal/infrastructure/pubsub"
	"poslink-core/internal/infrastructure/ratelimit"
	"poslink-core/internal/infrastructure/repository"
	"poslink-core/internal/ports"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("No .env file found, relying on environment")
	}

	// Get configuration from environment
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		appURL = "http://localhost:8080"
	}

	// Connect to MongoDB
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(mongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	dbName := os.Getenv("MONGODB_DATABASE")
	if dbName == "" {
		dbName = "poslink"
	}
	db := client.Database(dbName)

	// Credentials are encrypted before they ever reach a repository
	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		logger.Fatal().Msg("ENCRYPTION_KEY environment variable is required")
	}
	encryptionService, err := encryption.NewAESService(encryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	// OAuth state store: Redis when configured, in-process otherwise
	var stateStore ports.OAuthStateStore
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		stateStore = oauthstate.NewRedisStore(redisClient, oauthstate.DefaultTTL)
		logger.Info().Str("addr", redisAddr).Msg("Using Redis OAuth state store")
	} else {
		stateStore = oauthstate.NewMemoryStore(oauthstate.DefaultTTL)
		logger.Warn().Msg("REDIS_ADDR not set, using in-memory OAuth state store")
	}

	// Initialize repositories
	integrationRepo := repository.NewMongoIntegrationRepository(db)
	mappingRepo := repository.NewMongoProductMappingRepository(db)
	syncLogRepo := repository.NewMongoSyncLogRepository(db)
	platformCatalog := repository.NewMongoPlatformCatalog(db)

	// Engine instrumentation and run event bus
	recorder := metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer)
	eventBus := pubsub.NewSyncEventBus(logger)

	// Provider adapters
	shopifyAdapter := pos.NewShopifyAdapter(pos.ShopifyConfig{
		APIKey:      os.Getenv("SHOPIFY_API_KEY"),
		APISecret:   os.Getenv("SHOPIFY_API_SECRET"),
		RedirectURI: appURL + "/pos/callback",
		Scopes:      shopifyScopes(),
		LocationID:  envUint64("SHOPIFY_LOCATION_ID"),
		Currency:    os.Getenv("DEFAULT_CURRENCY"),
	}, logger)
	registry := pos.NewRegistry(shopifyAdapter)

	// One limiter per integration, handed out by the registry per run
	limiters := ratelimit.NewRegistry(envInt("RATE_LIMIT_PER_SECOND", 10), envInt("RATE_LIMIT_PER_MINUTE", 100), ratelimit.WithMetrics(recorder))
	batches := application.NewBatchProcessor(application.DefaultRetryPolicy(), application.DefaultBatchConfig(), logger)

	// Initialize application services
	oauthService := application.NewOAuthService(
		registry,
		integrationRepo,
		stateStore,
		encryptionService,
		application.DefaultOAuthConfig(),
		logger,
	)
	resolver := application.NewConflictResolver(application.DefaultResolverConfig())
	catalogSync := application.NewCatalogSyncService(mappingRepo, platformCatalog, resolver, batches, logger)
	inventorySync := application.NewInventorySyncService(mappingRepo, platformCatalog, batches, logger)
	orchestrator := application.NewSyncOrchestrator(
		oauthService,
		registry,
		integrationRepo,
		syncLogRepo,
		catalogSync,
		inventorySync,
		limiters,
		eventBus,
		recorder,
		logger,
	)

	// Setup router
	handlers := httpapi.NewHandlers(oauthService, orchestrator, integrationRepo, syncLogRepo, logger)
	router := httpapi.NewRouter(handlers, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().Str("port", port).Msg("Starting API server")
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

func shopifyScopes() []string {
	raw := os.Getenv("SHOPIFY_SCOPES")
	if raw == "" {
		raw = "read_products,write_products,read_inventory,write_inventory"
	}
	return strings.Split(raw, ",")
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envUint64(key string) uint64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return v
		}
	}
	return 0
}
