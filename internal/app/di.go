// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"
	"gocloud.dev/docstore"
	"gocloud.dev/pubsub"

	"github.com/allisson/orderflow/internal/config"
	"github.com/allisson/orderflow/internal/database"
	"github.com/allisson/orderflow/internal/http"
	"github.com/allisson/orderflow/internal/metrics"
	"github.com/allisson/orderflow/internal/orchestrator"
	"github.com/allisson/orderflow/internal/order/cache"
	orderHTTP "github.com/allisson/orderflow/internal/order/http"
	"github.com/allisson/orderflow/internal/order/service"
	orderUseCase "github.com/allisson/orderflow/internal/order/usecase"
	"github.com/allisson/orderflow/internal/queue"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger                 *slog.Logger
	db                     *sql.DB
	redisClient            *redis.Client
	orderCollection        *docstore.Collection
	failedOrderCollection  *docstore.Collection
	orderTopic             *pubsub.Topic
	deadLetterTopic        *pubsub.Topic
	orderSubscription      *pubsub.Subscription
	deadLetterSubscription *pubsub.Subscription

	// Managers
	txManager database.TxManager

	// Metrics
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Repositories and services
	orderRepository       orderUseCase.OrderRepository
	failedOrderRepository orderUseCase.FailedOrderRepository
	publisher             orderUseCase.Publisher
	fulfillmentService    service.FulfillmentService
	idempotencyStore      orderUseCase.IdempotencyStore

	// Use Cases
	validatorUseCase   orderUseCase.ValidatorUseCase
	storeUseCase       orderUseCase.StoreUseCase
	fulfillmentUseCase orderUseCase.FulfillmentUseCase
	deadLetterUseCase  orderUseCase.DeadLetterUseCase
	redriveUseCase     orderUseCase.RedriveUseCase
	orderQueryUseCase  orderUseCase.OrderQueryUseCase
	pipeline           *orchestrator.Pipeline

	// HTTP handlers
	orderHandler       *orderHTTP.OrderHandler
	failedOrderHandler *orderHTTP.FailedOrderHandler

	// Servers and Workers
	httpServer          *http.Server
	metricsServer       *http.MetricsServer
	fulfillmentConsumer *queue.Consumer
	deadLetterConsumer  *queue.Consumer
	redriveWorker       *orderUseCase.RedriveWorker

	// Initialization flags and mutex for thread-safety
	mu                         sync.Mutex
	loggerInit                 sync.Once
	dbInit                     sync.Once
	redisClientInit            sync.Once
	orderCollectionInit        sync.Once
	failedOrderCollectionInit  sync.Once
	orderTopicInit             sync.Once
	deadLetterTopicInit        sync.Once
	orderSubscriptionInit      sync.Once
	deadLetterSubscriptionInit sync.Once
	txManagerInit              sync.Once
	metricsProviderInit        sync.Once
	businessMetricsInit        sync.Once
	orderRepositoryInit        sync.Once
	failedOrderRepositoryInit  sync.Once
	publisherInit              sync.Once
	fulfillmentServiceInit     sync.Once
	idempotencyStoreInit       sync.Once
	validatorUseCaseInit       sync.Once
	storeUseCaseInit           sync.Once
	fulfillmentUseCaseInit     sync.Once
	deadLetterUseCaseInit      sync.Once
	redriveUseCaseInit         sync.Once
	orderQueryUseCaseInit      sync.Once
	pipelineInit               sync.Once
	orderHandlerInit           sync.Once
	failedOrderHandlerInit     sync.Once
	httpServerInit             sync.Once
	metricsServerInit          sync.Once
	fulfillmentConsumerInit    sync.Once
	deadLetterConsumerInit     sync.Once
	redriveWorkerInit          sync.Once
	initErrors                 map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// RedisClient returns the Redis client, or nil when REDIS_URL is not set.
func (c *Container) RedisClient() (*redis.Client, error) {
	var err error
	c.redisClientInit.Do(func() {
		c.redisClient, err = c.initRedisClient()
		if err != nil {
			c.initErrors["redisClient"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["redisClient"]; exists {
		return nil, storedErr
	}
	return c.redisClient, nil
}

// TxManager returns the transaction manager.
// The docstore backend has no transactions and gets a no-op manager.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the Prometheus-backed meter provider, or nil when
// metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the pipeline operation metrics.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Subscriptions go before topics: a mem:// subscription holds its topic.
	for name, sub := range map[string]*pubsub.Subscription{
		"order subscription":       c.orderSubscription,
		"dead-letter subscription": c.deadLetterSubscription,
	} {
		if sub == nil {
			continue
		}
		if err := sub.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("%s shutdown: %w", name, err))
		}
	}

	for name, topic := range map[string]*pubsub.Topic{
		"order topic":       c.orderTopic,
		"dead-letter topic": c.deadLetterTopic,
	} {
		if topic == nil {
			continue
		}
		if err := topic.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("%s shutdown: %w", name, err))
		}
	}

	for name, coll := range map[string]*docstore.Collection{
		"order collection":        c.orderCollection,
		"failed order collection": c.failedOrderCollection,
	} {
		if coll == nil {
			continue
		}
		if err := coll.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("%s close: %w", name, err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("redis close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(shutdownErrors...))
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initRedisClient connects to Redis when a URL is configured.
func (c *Container) initRedisClient() (*redis.Client, error) {
	if c.config.RedisURL == "" {
		return nil, nil
	}
	rdb, err := cache.NewRedisClient(context.Background(), c.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// initTxManager creates the transaction manager for the configured store.
func (c *Container) initTxManager() (database.TxManager, error) {
	if c.config.StoreDriver == config.StoreDriverDocstore {
		return database.NewNoopTxManager(), nil
	}
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initMetricsProvider creates the meter provider when metrics are enabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initBusinessMetrics creates business metrics, or a no-op when metrics are disabled.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	orderHandler, err := c.OrderHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get order handler for http server: %w", err)
	}

	failedOrderHandler, err := c.FailedOrderHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get failed order handler for http server: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	checks, err := c.readinessChecks()
	if err != nil {
		return nil, err
	}

	server := http.NewServer(c.config.ServerHost, c.config.ServerPort, logger, checks...)
	server.SetupRouter(c.config, orderHandler, failedOrderHandler, metricsProvider)

	return server, nil
}

// readinessChecks probes the store the process was configured with and Redis
// when idempotency is enabled.
func (c *Container) readinessChecks() ([]http.ReadinessCheck, error) {
	var checks []http.ReadinessCheck

	if c.config.StoreDriver == config.StoreDriverSQL {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for readiness check: %w", err)
		}
		checks = append(checks, http.DatabaseCheck(db))
	}

	rdb, err := c.RedisClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get redis client for readiness check: %w", err)
	}
	if rdb != nil {
		checks = append(checks, http.ReadinessCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		})
	}

	return checks, nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}
	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
