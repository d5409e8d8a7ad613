package app

import (
	"context"
	"errors"
	"fmt"

	"gocloud.dev/docstore"
	"gocloud.dev/pubsub"

	"github.com/allisson/orderflow/internal/config"
	"github.com/allisson/orderflow/internal/orchestrator"
	"github.com/allisson/orderflow/internal/order/cache"
	orderHTTP "github.com/allisson/orderflow/internal/order/http"
	orderRepository "github.com/allisson/orderflow/internal/order/repository"
	"github.com/allisson/orderflow/internal/order/service"
	orderUseCase "github.com/allisson/orderflow/internal/order/usecase"
	"github.com/allisson/orderflow/internal/queue"
)

// OrderCollection returns the docstore collection of live orders.
func (c *Container) OrderCollection() (*docstore.Collection, error) {
	var err error
	c.orderCollectionInit.Do(func() {
		c.orderCollection, err = c.initOrderCollection()
		if err != nil {
			c.initErrors["orderCollection"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orderCollection"]; exists {
		return nil, storedErr
	}
	return c.orderCollection, nil
}

// FailedOrderCollection returns the docstore collection of archived failures.
func (c *Container) FailedOrderCollection() (*docstore.Collection, error) {
	var err error
	c.failedOrderCollectionInit.Do(func() {
		c.failedOrderCollection, err = c.initFailedOrderCollection()
		if err != nil {
			c.initErrors["failedOrderCollection"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["failedOrderCollection"]; exists {
		return nil, storedErr
	}
	return c.failedOrderCollection, nil
}

// OrderTopic returns the fulfillment queue topic.
func (c *Container) OrderTopic() (*pubsub.Topic, error) {
	var err error
	c.orderTopicInit.Do(func() {
		c.orderTopic, err = c.initOrderTopic()
		if err != nil {
			c.initErrors["orderTopic"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orderTopic"]; exists {
		return nil, storedErr
	}
	return c.orderTopic, nil
}

// DeadLetterTopic returns the dead-letter topic, or nil when no dead-letter queue is configured.
func (c *Container) DeadLetterTopic() (*pubsub.Topic, error) {
	var err error
	c.deadLetterTopicInit.Do(func() {
		c.deadLetterTopic, err = c.initDeadLetterTopic()
		if err != nil {
			c.initErrors["deadLetterTopic"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deadLetterTopic"]; exists {
		return nil, storedErr
	}
	return c.deadLetterTopic, nil
}

// OrderSubscription returns the fulfillment queue subscription.
func (c *Container) OrderSubscription() (*pubsub.Subscription, error) {
	var err error
	c.orderSubscriptionInit.Do(func() {
		c.orderSubscription, err = c.initOrderSubscription()
		if err != nil {
			c.initErrors["orderSubscription"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orderSubscription"]; exists {
		return nil, storedErr
	}
	return c.orderSubscription, nil
}

// DeadLetterSubscription returns the dead-letter queue subscription.
func (c *Container) DeadLetterSubscription() (*pubsub.Subscription, error) {
	var err error
	c.deadLetterSubscriptionInit.Do(func() {
		c.deadLetterSubscription, err = c.initDeadLetterSubscription()
		if err != nil {
			c.initErrors["deadLetterSubscription"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deadLetterSubscription"]; exists {
		return nil, storedErr
	}
	return c.deadLetterSubscription, nil
}

// OrderRepository returns the order repository based on the store driver.
func (c *Container) OrderRepository() (orderUseCase.OrderRepository, error) {
	var err error
	c.orderRepositoryInit.Do(func() {
		c.orderRepository, err = c.initOrderRepository()
		if err != nil {
			c.initErrors["orderRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orderRepository"]; exists {
		return nil, storedErr
	}
	return c.orderRepository, nil
}

// FailedOrderRepository returns the failed-order repository based on the store driver.
func (c *Container) FailedOrderRepository() (orderUseCase.FailedOrderRepository, error) {
	var err error
	c.failedOrderRepositoryInit.Do(func() {
		c.failedOrderRepository, err = c.initFailedOrderRepository()
		if err != nil {
			c.initErrors["failedOrderRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["failedOrderRepository"]; exists {
		return nil, storedErr
	}
	return c.failedOrderRepository, nil
}

// Publisher returns the fulfillment queue publisher.
func (c *Container) Publisher() (orderUseCase.Publisher, error) {
	var err error
	c.publisherInit.Do(func() {
		c.publisher, err = c.initPublisher()
		if err != nil {
			c.initErrors["publisher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["publisher"]; exists {
		return nil, storedErr
	}
	return c.publisher, nil
}

// FulfillmentService returns the fulfillment simulator.
func (c *Container) FulfillmentService() (service.FulfillmentService, error) {
	var err error
	c.fulfillmentServiceInit.Do(func() {
		c.fulfillmentService, err = c.initFulfillmentService()
		if err != nil {
			c.initErrors["fulfillmentService"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["fulfillmentService"]; exists {
		return nil, storedErr
	}
	return c.fulfillmentService, nil
}

// IdempotencyStore returns the ingress Idempotency-Key store.
func (c *Container) IdempotencyStore() (orderUseCase.IdempotencyStore, error) {
	var err error
	c.idempotencyStoreInit.Do(func() {
		c.idempotencyStore, err = c.initIdempotencyStore()
		if err != nil {
			c.initErrors["idempotencyStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["idempotencyStore"]; exists {
		return nil, storedErr
	}
	return c.idempotencyStore, nil
}

// ValidatorUseCase returns the order validator.
func (c *Container) ValidatorUseCase() (orderUseCase.ValidatorUseCase, error) {
	var err error
	c.validatorUseCaseInit.Do(func() {
		c.validatorUseCase, err = c.initValidatorUseCase()
		if err != nil {
			c.initErrors["validatorUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["validatorUseCase"]; exists {
		return nil, storedErr
	}
	return c.validatorUseCase, nil
}

// StoreUseCase returns the order store stage.
func (c *Container) StoreUseCase() (orderUseCase.StoreUseCase, error) {
	var err error
	c.storeUseCaseInit.Do(func() {
		c.storeUseCase, err = c.initStoreUseCase()
		if err != nil {
			c.initErrors["storeUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["storeUseCase"]; exists {
		return nil, storedErr
	}
	return c.storeUseCase, nil
}

// FulfillmentUseCase returns the fulfillment stage.
func (c *Container) FulfillmentUseCase() (orderUseCase.FulfillmentUseCase, error) {
	var err error
	c.fulfillmentUseCaseInit.Do(func() {
		c.fulfillmentUseCase, err = c.initFulfillmentUseCase()
		if err != nil {
			c.initErrors["fulfillmentUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["fulfillmentUseCase"]; exists {
		return nil, storedErr
	}
	return c.fulfillmentUseCase, nil
}

// DeadLetterUseCase returns the dead-letter capture stage.
func (c *Container) DeadLetterUseCase() (orderUseCase.DeadLetterUseCase, error) {
	var err error
	c.deadLetterUseCaseInit.Do(func() {
		c.deadLetterUseCase, err = c.initDeadLetterUseCase()
		if err != nil {
			c.initErrors["deadLetterUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deadLetterUseCase"]; exists {
		return nil, storedErr
	}
	return c.deadLetterUseCase, nil
}

// RedriveUseCase returns the failed fulfillment redrive.
func (c *Container) RedriveUseCase() (orderUseCase.RedriveUseCase, error) {
	var err error
	c.redriveUseCaseInit.Do(func() {
		c.redriveUseCase, err = c.initRedriveUseCase()
		if err != nil {
			c.initErrors["redriveUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["redriveUseCase"]; exists {
		return nil, storedErr
	}
	return c.redriveUseCase, nil
}

// OrderQueryUseCase returns the order lookup use case.
func (c *Container) OrderQueryUseCase() (orderUseCase.OrderQueryUseCase, error) {
	var err error
	c.orderQueryUseCaseInit.Do(func() {
		c.orderQueryUseCase, err = c.initOrderQueryUseCase()
		if err != nil {
			c.initErrors["orderQueryUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orderQueryUseCase"]; exists {
		return nil, storedErr
	}
	return c.orderQueryUseCase, nil
}

// Pipeline returns the validate-then-store orchestrator.
func (c *Container) Pipeline() (*orchestrator.Pipeline, error) {
	var err error
	c.pipelineInit.Do(func() {
		c.pipeline, err = c.initPipeline()
		if err != nil {
			c.initErrors["pipeline"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["pipeline"]; exists {
		return nil, storedErr
	}
	return c.pipeline, nil
}

// OrderHandler returns the HTTP handler for order submission and lookup.
func (c *Container) OrderHandler() (*orderHTTP.OrderHandler, error) {
	var err error
	c.orderHandlerInit.Do(func() {
		c.orderHandler, err = c.initOrderHandler()
		if err != nil {
			c.initErrors["orderHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orderHandler"]; exists {
		return nil, storedErr
	}
	return c.orderHandler, nil
}

// FailedOrderHandler returns the HTTP handler for the failed-order archive.
func (c *Container) FailedOrderHandler() (*orderHTTP.FailedOrderHandler, error) {
	var err error
	c.failedOrderHandlerInit.Do(func() {
		c.failedOrderHandler, err = c.initFailedOrderHandler()
		if err != nil {
			c.initErrors["failedOrderHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["failedOrderHandler"]; exists {
		return nil, storedErr
	}
	return c.failedOrderHandler, nil
}

// FulfillmentConsumer returns the consumer of the fulfillment queue.
func (c *Container) FulfillmentConsumer() (*queue.Consumer, error) {
	var err error
	c.fulfillmentConsumerInit.Do(func() {
		c.fulfillmentConsumer, err = c.initFulfillmentConsumer()
		if err != nil {
			c.initErrors["fulfillmentConsumer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["fulfillmentConsumer"]; exists {
		return nil, storedErr
	}
	return c.fulfillmentConsumer, nil
}

// DeadLetterConsumer returns the consumer of the dead-letter queue.
func (c *Container) DeadLetterConsumer() (*queue.Consumer, error) {
	var err error
	c.deadLetterConsumerInit.Do(func() {
		c.deadLetterConsumer, err = c.initDeadLetterConsumer()
		if err != nil {
			c.initErrors["deadLetterConsumer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deadLetterConsumer"]; exists {
		return nil, storedErr
	}
	return c.deadLetterConsumer, nil
}

// RedriveWorker returns the periodic redrive worker.
func (c *Container) RedriveWorker() (*orderUseCase.RedriveWorker, error) {
	var err error
	c.redriveWorkerInit.Do(func() {
		c.redriveWorker, err = c.initRedriveWorker()
		if err != nil {
			c.initErrors["redriveWorker"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["redriveWorker"]; exists {
		return nil, storedErr
	}
	return c.redriveWorker, nil
}

// initOrderCollection opens the live order collection.
func (c *Container) initOrderCollection() (*docstore.Collection, error) {
	return orderRepository.OpenCollection(context.Background(), c.config.DocstoreProvider, c.config.OrdersTableName)
}

// initFailedOrderCollection opens the failed-order collection.
func (c *Container) initFailedOrderCollection() (*docstore.Collection, error) {
	return orderRepository.OpenCollection(
		context.Background(),
		c.config.DocstoreProvider,
		c.config.FailedOrdersTableName,
	)
}

func (c *Container) initOrderTopic() (*pubsub.Topic, error) {
	return queue.OpenTopic(context.Background(), c.config.OrderQueueURL)
}

func (c *Container) initDeadLetterTopic() (*pubsub.Topic, error) {
	if c.config.DeadLetterQueueURL == "" {
		return nil, nil
	}
	return queue.OpenTopic(context.Background(), c.config.DeadLetterQueueURL)
}

// initOrderSubscription opens the topic first so mem:// queues exist before
// they are subscribed to.
func (c *Container) initOrderSubscription() (*pubsub.Subscription, error) {
	if _, err := c.OrderTopic(); err != nil {
		return nil, fmt.Errorf("failed to get order topic for order subscription: %w", err)
	}
	return queue.OpenSubscription(context.Background(), c.config.OrderQueueURL)
}

func (c *Container) initDeadLetterSubscription() (*pubsub.Subscription, error) {
	topic, err := c.DeadLetterTopic()
	if err != nil {
		return nil, fmt.Errorf("failed to get dead-letter topic for dead-letter subscription: %w", err)
	}
	if topic == nil {
		return nil, errors.New("DEAD_LETTER_QUEUE_URL environment variable not set")
	}
	return queue.OpenSubscription(context.Background(), c.config.DeadLetterQueueURL)
}

// initOrderRepository selects the repository by store driver, then by database driver.
func (c *Container) initOrderRepository() (orderUseCase.OrderRepository, error) {
	if c.config.StoreDriver == config.StoreDriverDocstore {
		coll, err := c.OrderCollection()
		if err != nil {
			return nil, fmt.Errorf("failed to get order collection for order repository: %w", err)
		}
		return orderRepository.NewDocstoreOrderRepository(coll), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for order repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return orderRepository.NewMySQLOrderRepository(db, c.config.OrdersTableName), nil
	case "postgres":
		return orderRepository.NewPostgreSQLOrderRepository(db, c.config.OrdersTableName), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initFailedOrderRepository() (orderUseCase.FailedOrderRepository, error) {
	if c.config.StoreDriver == config.StoreDriverDocstore {
		coll, err := c.FailedOrderCollection()
		if err != nil {
			return nil, fmt.Errorf("failed to get failed order collection for failed order repository: %w", err)
		}
		return orderRepository.NewDocstoreFailedOrderRepository(coll), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for failed order repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return orderRepository.NewMySQLFailedOrderRepository(db, c.config.FailedOrdersTableName), nil
	case "postgres":
		return orderRepository.NewPostgreSQLFailedOrderRepository(db, c.config.FailedOrdersTableName), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initPublisher() (orderUseCase.Publisher, error) {
	topic, err := c.OrderTopic()
	if err != nil {
		return nil, fmt.Errorf("failed to get order topic for publisher: %w", err)
	}
	return queue.NewPublisher(topic), nil
}

func (c *Container) initFulfillmentService() (service.FulfillmentService, error) {
	return service.NewSimulator(c.config.FulfillmentSuccessRate, nil), nil
}

// initIdempotencyStore falls back to a no-op store when Redis is not configured.
func (c *Container) initIdempotencyStore() (orderUseCase.IdempotencyStore, error) {
	rdb, err := c.RedisClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get redis client for idempotency store: %w", err)
	}
	if rdb == nil {
		return cache.NewNoopIdempotencyStore(), nil
	}
	return cache.NewRedisIdempotencyStore(rdb, c.config.IdempotencyKeyTTL), nil
}

func (c *Container) initValidatorUseCase() (orderUseCase.ValidatorUseCase, error) {
	baseUseCase := orderUseCase.NewValidatorUseCase()

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for validator use case: %w", err)
		}
		return orderUseCase.NewValidatorUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initStoreUseCase() (orderUseCase.StoreUseCase, error) {
	orderRepo, err := c.OrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get order repository for store use case: %w", err)
	}

	publisher, err := c.Publisher()
	if err != nil {
		return nil, fmt.Errorf("failed to get publisher for store use case: %w", err)
	}

	baseUseCase := orderUseCase.NewStoreUseCase(orderRepo, publisher, c.Logger())

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for store use case: %w", err)
		}
		return orderUseCase.NewStoreUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initFulfillmentUseCase() (orderUseCase.FulfillmentUseCase, error) {
	orderRepo, err := c.OrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get order repository for fulfillment use case: %w", err)
	}

	failedOrderRepo, err := c.FailedOrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get failed order repository for fulfillment use case: %w", err)
	}

	fulfillmentService, err := c.FulfillmentService()
	if err != nil {
		return nil, fmt.Errorf("failed to get fulfillment service for fulfillment use case: %w", err)
	}

	baseUseCase := orderUseCase.NewFulfillmentUseCase(
		orderRepo,
		failedOrderRepo,
		fulfillmentService,
		c.config.Environment,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for fulfillment use case: %w", err)
		}
		return orderUseCase.NewFulfillmentUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initDeadLetterUseCase() (orderUseCase.DeadLetterUseCase, error) {
	failedOrderRepo, err := c.FailedOrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get failed order repository for dead-letter use case: %w", err)
	}

	baseUseCase := orderUseCase.NewDeadLetterUseCase(failedOrderRepo, c.config.Environment, c.Logger())

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for dead-letter use case: %w", err)
		}
		return orderUseCase.NewDeadLetterUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initRedriveUseCase() (orderUseCase.RedriveUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for redrive use case: %w", err)
	}

	orderRepo, err := c.OrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get order repository for redrive use case: %w", err)
	}

	publisher, err := c.Publisher()
	if err != nil {
		return nil, fmt.Errorf("failed to get publisher for redrive use case: %w", err)
	}

	redriveConfig := orderUseCase.RedriveConfig{
		Interval:  c.config.RedriveInterval,
		BatchSize: c.config.RedriveBatchSize,
	}
	baseUseCase := orderUseCase.NewRedriveUseCase(redriveConfig, txManager, orderRepo, publisher, c.Logger())

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for redrive use case: %w", err)
		}
		return orderUseCase.NewRedriveUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initOrderQueryUseCase() (orderUseCase.OrderQueryUseCase, error) {
	orderRepo, err := c.OrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get order repository for order query use case: %w", err)
	}

	failedOrderRepo, err := c.FailedOrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get failed order repository for order query use case: %w", err)
	}

	return orderUseCase.NewOrderQueryUseCase(orderRepo, failedOrderRepo), nil
}

func (c *Container) initPipeline() (*orchestrator.Pipeline, error) {
	validator, err := c.ValidatorUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get validator use case for pipeline: %w", err)
	}

	store, err := c.StoreUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get store use case for pipeline: %w", err)
	}

	pipelineConfig := orchestrator.Config{
		MaxAttempts:   c.config.PipelineMaxAttempts,
		RetryInterval: c.config.PipelineRetryInterval,
	}
	return orchestrator.NewPipeline(pipelineConfig, validator, store, c.Logger()), nil
}

func (c *Container) initOrderHandler() (*orderHTTP.OrderHandler, error) {
	pipeline, err := c.Pipeline()
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline for order handler: %w", err)
	}

	query, err := c.OrderQueryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get order query use case for order handler: %w", err)
	}

	idempotencyStore, err := c.IdempotencyStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency store for order handler: %w", err)
	}

	return orderHTTP.NewOrderHandler(pipeline, query, idempotencyStore, c.Logger()), nil
}

func (c *Container) initFailedOrderHandler() (*orderHTTP.FailedOrderHandler, error) {
	query, err := c.OrderQueryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get order query use case for failed order handler: %w", err)
	}
	return orderHTTP.NewFailedOrderHandler(query, c.Logger()), nil
}

// initFulfillmentConsumer forwards messages past their delivery budget to
// the dead-letter topic when one is configured.
func (c *Container) initFulfillmentConsumer() (*queue.Consumer, error) {
	sub, err := c.OrderSubscription()
	if err != nil {
		return nil, fmt.Errorf("failed to get order subscription for fulfillment consumer: %w", err)
	}

	useCase, err := c.FulfillmentUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get fulfillment use case for fulfillment consumer: %w", err)
	}

	deadLetter, err := c.DeadLetterTopic()
	if err != nil {
		return nil, fmt.Errorf("failed to get dead-letter topic for fulfillment consumer: %w", err)
	}

	maxDeliveries := c.config.QueueMaxDeliveries
	if deadLetter == nil {
		maxDeliveries = 0
	}

	consumerConfig := queue.ConsumerConfig{
		Name:          "fulfillment",
		BatchSize:     c.config.QueueBatchSize,
		BatchWindow:   c.config.QueueBatchWindow,
		MaxDeliveries: maxDeliveries,
	}
	return queue.NewConsumer(consumerConfig, sub, useCase, deadLetter, c.Logger()), nil
}

// initDeadLetterConsumer never forwards: the dead-letter stage acknowledges everything.
func (c *Container) initDeadLetterConsumer() (*queue.Consumer, error) {
	sub, err := c.DeadLetterSubscription()
	if err != nil {
		return nil, fmt.Errorf("failed to get dead-letter subscription for dead-letter consumer: %w", err)
	}

	useCase, err := c.DeadLetterUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dead-letter use case for dead-letter consumer: %w", err)
	}

	consumerConfig := queue.ConsumerConfig{
		Name:        "dead-letter",
		BatchSize:   c.config.QueueBatchSize,
		BatchWindow: c.config.QueueBatchWindow,
	}
	return queue.NewConsumer(consumerConfig, sub, useCase, nil, c.Logger()), nil
}

func (c *Container) initRedriveWorker() (*orderUseCase.RedriveWorker, error) {
	useCase, err := c.RedriveUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get redrive use case for redrive worker: %w", err)
	}
	return orderUseCase.NewRedriveWorker(c.config.RedriveInterval, useCase, c.Logger()), nil
}
