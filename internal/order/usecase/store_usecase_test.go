package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/domain"
	"github.com/allisson/orderflow/internal/order/usecase/mocks"
	"github.com/allisson/orderflow/internal/queue"
)

func newTestStoreUseCase(orderRepo OrderRepository, publisher Publisher) *storeUseCase {
	return &storeUseCase{
		orderRepo:    orderRepo,
		publisher:    publisher,
		logger:       discardLogger(),
		now:          fixedClock,
		newMessageID: messageIDs("msg"),
	}
}

// publisherFunc adapts a function to Publisher and counts its calls.
type publisherFunc struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, messageID string, body []byte, attrs map[string]string) error
}

func (p *publisherFunc) Publish(ctx context.Context, messageID string, body []byte, attrs map[string]string) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.fn(ctx, messageID, body, attrs)
}

func claimedOrder(claimedAt time.Time) *domain.Order {
	order := domain.ClaimDispatch(storedOrder(), "msg-0", claimedAt)
	order.Version = 2
	return order
}

func TestStoreUseCase_Store(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_CreatesClaimedAndPublishes", func(t *testing.T) {
		orderRepo := mocks.NewMockOrderRepository(t)
		publisher := mocks.NewMockPublisher(t)

		orderRepo.On("Create", ctx, mock.MatchedBy(func(o *domain.Order) bool {
			return o.OrderID == "o1" &&
				o.Status == domain.StatusStored &&
				o.StorageTimestamp.Equal(testNow) &&
				o.OrderMetadata != nil &&
				o.OrderSummary != nil && o.OrderSummary.TotalItems == 1 &&
				o.QueueMessageID == "msg-1" &&
				o.HasPendingDispatchClaim(testNow)
		})).Return(nil).Once()

		publisher.On("Publish", ctx, "msg-1", mock.MatchedBy(func(body []byte) bool {
			var raw map[string]any
			if err := json.Unmarshal(body, &raw); err != nil {
				return false
			}
			// Wire form carries plain JSON numbers.
			return raw["order_id"] == "o1" && raw["status"] == "STORED" && raw["calculated_total_amount"] == 10.0
		}), map[string]string{
			queue.AttributeOrderID:     "o1",
			queue.AttributeOrderStatus: "STORED",
		}).Return(nil).Once()

		orderRepo.On("Update", ctx, mock.MatchedBy(func(o *domain.Order) bool {
			return o.QueueMessageID == "msg-1" && o.IsDispatched() && o.Version == domain.InitialVersion
		})).Return(nil).Once()

		result, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())

		require.NoError(t, err)
		assert.Equal(t, "msg-1", result.QueueMessageID)
		assert.Equal(t, domain.StatusStored, result.Order.Status)
		assert.False(t, result.Duplicate)
	})

	t.Run("Success_DuplicateAlreadyDispatchedDoesNotPublish", func(t *testing.T) {
		orderRepo := mocks.NewMockOrderRepository(t)
		publisher := mocks.NewMockPublisher(t)

		existing := domain.MarkDispatched(claimedOrder(testNow.Add(-time.Minute)), testNow.Add(-time.Minute))

		orderRepo.On("Create", ctx, mock.Anything).Return(domain.ErrDuplicateOrder).Once()
		orderRepo.On("GetByID", ctx, "o1").Return(existing, nil).Once()

		result, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())

		require.NoError(t, err)
		assert.True(t, result.Duplicate)
		assert.Equal(t, "msg-0", result.QueueMessageID)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		orderRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("Success_DuplicateWithPendingClaimDoesNotPublish", func(t *testing.T) {
		orderRepo := mocks.NewMockOrderRepository(t)
		publisher := mocks.NewMockPublisher(t)

		orderRepo.On("Create", ctx, mock.Anything).Return(domain.ErrDuplicateOrder).Once()
		orderRepo.On("GetByID", ctx, "o1").Return(claimedOrder(testNow.Add(-5*time.Second)), nil).Once()

		result, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())

		require.NoError(t, err)
		assert.True(t, result.Duplicate)
		assert.Equal(t, "msg-0", result.QueueMessageID)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Success_DuplicateWithStaleClaimRepublishes", func(t *testing.T) {
		orderRepo := mocks.NewMockOrderRepository(t)
		publisher := mocks.NewMockPublisher(t)

		stale := claimedOrder(testNow.Add(-domain.DispatchClaimTimeout - time.Second))

		orderRepo.On("Create", ctx, mock.Anything).Return(domain.ErrDuplicateOrder).Once()
		orderRepo.On("GetByID", ctx, "o1").Return(stale, nil).Once()
		orderRepo.On("Update", ctx, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Version == 2 && o.QueueMessageID == "msg-2" && !o.IsDispatched()
		})).Return(nil).Once()
		publisher.On("Publish", ctx, "msg-2", mock.Anything, mock.Anything).Return(nil).Once()
		orderRepo.On("Update", ctx, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Version == 3 && o.IsDispatched()
		})).Return(nil).Once()

		result, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())

		require.NoError(t, err)
		assert.True(t, result.Duplicate)
		assert.Equal(t, "msg-2", result.QueueMessageID)
	})

	t.Run("Success_DuplicateLosingClaimRaceRereads", func(t *testing.T) {
		orderRepo := mocks.NewMockOrderRepository(t)
		publisher := mocks.NewMockPublisher(t)

		unclaimed := storedOrder()
		unclaimed.Version = 1

		orderRepo.On("Create", ctx, mock.Anything).Return(domain.ErrDuplicateOrder).Once()
		orderRepo.On("GetByID", ctx, "o1").Return(unclaimed, nil).Once()
		orderRepo.On("Update", ctx, mock.Anything).Return(domain.ErrConcurrentUpdate).Once()
		orderRepo.On("GetByID", ctx, "o1").Return(claimedOrder(testNow), nil).Once()

		result, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())

		require.NoError(t, err)
		assert.True(t, result.Duplicate)
		assert.Equal(t, "msg-0", result.QueueMessageID)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Success_ReplacesEarlierStorageFailure", func(t *testing.T) {
		orderRepo := mocks.NewMockOrderRepository(t)
		publisher := mocks.NewMockPublisher(t)

		previous := domain.MarkStorageFailed(validatedOrder(), errors.New("timeout"), testNow.Add(-30*time.Second))
		previous.Version = 1

		orderRepo.On("Create", ctx, mock.Anything).Return(domain.ErrDuplicateOrder).Once()
		orderRepo.On("GetByID", ctx, "o1").Return(previous, nil).Once()
		orderRepo.On("Update", ctx, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.StatusStored && o.Version == 1 && o.QueueMessageID == "msg-2"
		})).Return(nil).Once()
		publisher.On("Publish", ctx, "msg-2", mock.Anything, mock.Anything).Return(nil).Once()
		orderRepo.On("Update", ctx, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Version == 2 && o.IsDispatched()
		})).Return(nil).Once()

		result, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())

		require.NoError(t, err)
		assert.False(t, result.Duplicate)
		assert.Empty(t, result.Order.ErrorMessage)
	})

	t.Run("Error_StoreUnavailableRecordsFailureAndSkipsPublish", func(t *testing.T) {
		orderRepo := mocks.NewMockOrderRepository(t)
		publisher := mocks.NewMockPublisher(t)
		driverErr := errors.New("connection refused")

		orderRepo.On("Create", ctx, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.StatusStored
		})).Return(driverErr).Once()
		orderRepo.On("Create", ctx, mock.MatchedBy(func(o *domain.Order) bool {
			return o.Status == domain.StatusStorageFailed && o.ErrorMessage != ""
		})).Return(nil).Once()

		result, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())

		assert.Nil(t, result)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, domain.ErrStoreUnavailable))
		assert.True(t, apperrors.Is(err, driverErr))
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Error_FailureRecordWriteAlsoFails", func(t *testing.T) {
		orderRepo := mocks.NewMockOrderRepository(t)
		publisher := mocks.NewMockPublisher(t)

		orderRepo.On("Create", ctx, mock.Anything).Return(errors.New("down")).Once()
		orderRepo.On("Create", ctx, mock.Anything).Return(errors.New("still down")).Once()

		_, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())

		require.Error(t, err)
		assert.True(t, apperrors.Is(err, domain.ErrStoreUnavailable))
		assert.Contains(t, err.Error(), "down")
	})

	t.Run("Error_PublishFailureReleasesClaim", func(t *testing.T) {
		orderRepo := mocks.NewMockOrderRepository(t)
		publisher := mocks.NewMockPublisher(t)

		orderRepo.On("Create", ctx, mock.Anything).Return(nil).Once()
		publisher.On("Publish", ctx, "msg-1", mock.Anything, mock.Anything).Return(errors.New("queue down")).Once()
		orderRepo.On("Update", ctx, mock.MatchedBy(func(o *domain.Order) bool {
			return o.QueueMessageID == "" && o.DispatchClaimedAt == nil && !o.IsDispatched()
		})).Return(nil).Once()

		_, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())

		require.Error(t, err)
		assert.True(t, apperrors.Is(err, domain.ErrQueueUnavailable))
	})

	t.Run("Success_ConfirmationFailureIsLogged", func(t *testing.T) {
		orderRepo := mocks.NewMockOrderRepository(t)
		publisher := mocks.NewMockPublisher(t)

		orderRepo.On("Create", ctx, mock.Anything).Return(nil).Once()
		publisher.On("Publish", ctx, "msg-1", mock.Anything, mock.Anything).Return(nil).Once()
		orderRepo.On("Update", ctx, mock.Anything).Return(errors.New("down")).Once()

		result, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())

		require.NoError(t, err)
		assert.Equal(t, "msg-1", result.QueueMessageID)
	})

	t.Run("Error_ExistingRecordUnreadable", func(t *testing.T) {
		orderRepo := mocks.NewMockOrderRepository(t)
		publisher := mocks.NewMockPublisher(t)

		orderRepo.On("Create", ctx, mock.Anything).Return(domain.ErrDuplicateOrder).Once()
		orderRepo.On("GetByID", ctx, "o1").Return(nil, errors.New("timeout")).Once()

		_, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())

		assert.True(t, apperrors.Is(err, domain.ErrStoreUnavailable))
	})
}

func TestStoreUseCase_IdempotentAcrossInvocations(t *testing.T) {
	ctx := context.Background()
	orderRepo := newMemoryOrderRepository()
	publisher := mocks.NewMockPublisher(t)
	publisher.On("Publish", ctx, "msg-1", mock.Anything, mock.Anything).Return(nil).Once()

	uc := newTestStoreUseCase(orderRepo, publisher)

	first, err := uc.Store(ctx, validatedOrder())
	require.NoError(t, err)
	second, err := uc.Store(ctx, validatedOrder())
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, "msg-1", second.QueueMessageID)
	publisher.AssertNumberOfCalls(t, "Publish", 1)

	stored, err := orderRepo.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, stored.IsDispatched())
}

func TestStoreUseCase_ConsumerFinishingBeforeConfirmationKeepsFulfilled(t *testing.T) {
	ctx := context.Background()
	orderRepo := newMemoryOrderRepository()
	fulfillment := newTestFulfillmentUseCase(orderRepo, newMemoryFailedOrderRepository(), &scriptedFulfillment{
		outcomes: []domain.FulfillmentOutcome{succeeded("TRACK123456")},
	})

	// The queue delivers and the consumer finishes before Publish returns.
	publisher := &publisherFunc{fn: func(ctx context.Context, messageID string, body []byte, attrs map[string]string) error {
		summary := fulfillment.ProcessBatch(ctx, []queue.Message{{ID: messageID, Body: body, Attributes: attrs}})
		require.Equal(t, 1, summary.Processed)
		return nil
	}}

	result, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())
	require.NoError(t, err)
	assert.Equal(t, "msg-1", result.QueueMessageID)

	order, err := orderRepo.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFulfilled, order.Status)
	assert.Equal(t, "TRACK123456", order.TrackingNumber)
	assert.Equal(t, "msg-1", order.QueueMessageID)
}

func TestStoreUseCase_DuplicateDuringPublishDoesNotRepublish(t *testing.T) {
	ctx := context.Background()
	orderRepo := newMemoryOrderRepository()
	uc := newTestStoreUseCase(orderRepo, nil)

	var retried *domain.StoreResult
	publisher := &publisherFunc{}
	publisher.fn = func(ctx context.Context, _ string, _ []byte, _ map[string]string) error {
		if publisher.calls > 1 {
			return nil
		}
		// A retried invocation arrives while the first send is in flight.
		var err error
		retried, err = uc.Store(ctx, validatedOrder())
		require.NoError(t, err)
		return nil
	}
	uc.publisher = publisher

	first, err := uc.Store(ctx, validatedOrder())
	require.NoError(t, err)

	assert.Equal(t, 1, publisher.calls)
	assert.False(t, first.Duplicate)
	require.NotNil(t, retried)
	assert.True(t, retried.Duplicate)
	assert.Equal(t, first.QueueMessageID, retried.QueueMessageID)
}

func TestStoreUseCase_StorageFailureRecordDoesNotOverwriteWinner(t *testing.T) {
	ctx := context.Background()
	orderRepo := mocks.NewMockOrderRepository(t)
	publisher := mocks.NewMockPublisher(t)

	// The first create times out after a concurrent invocation already wrote
	// the order; the failure record must not replace it.
	orderRepo.On("Create", ctx, mock.MatchedBy(func(o *domain.Order) bool {
		return o.Status == domain.StatusStored
	})).Return(errors.New("timeout")).Once()
	orderRepo.On("Create", ctx, mock.MatchedBy(func(o *domain.Order) bool {
		return o.Status == domain.StatusStorageFailed
	})).Return(domain.ErrDuplicateOrder).Once()

	_, err := newTestStoreUseCase(orderRepo, publisher).Store(ctx, validatedOrder())

	assert.True(t, apperrors.Is(err, domain.ErrStoreUnavailable))
	orderRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}
