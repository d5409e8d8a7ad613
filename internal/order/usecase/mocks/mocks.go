// Package mocks provides mock implementations for testing order use cases and handlers.
package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/orderflow/internal/order/domain"
)

// MockOrderRepository is a mock implementation of usecase.OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

// NewMockOrderRepository creates a MockOrderRepository that asserts its expectations on cleanup.
func NewMockOrderRepository(t *testing.T) *MockOrderRepository {
	m := &MockOrderRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create mocks the Create method.
func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

// Update mocks the Update method.
func (m *MockOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

// GetByID mocks the GetByID method.
func (m *MockOrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// ListPendingRetry mocks the ListPendingRetry method.
func (m *MockOrderRepository) ListPendingRetry(
	ctx context.Context,
	olderThan time.Time,
	limit int,
) ([]*domain.Order, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

// MockFailedOrderRepository is a mock implementation of usecase.FailedOrderRepository.
type MockFailedOrderRepository struct {
	mock.Mock
}

// NewMockFailedOrderRepository creates a MockFailedOrderRepository that asserts its expectations on cleanup.
func NewMockFailedOrderRepository(t *testing.T) *MockFailedOrderRepository {
	m := &MockFailedOrderRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Save mocks the Save method.
func (m *MockFailedOrderRepository) Save(ctx context.Context, failed *domain.FailedOrder) error {
	return m.Called(ctx, failed).Error(0)
}

// GetByOrderID mocks the GetByOrderID method.
func (m *MockFailedOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.FailedOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FailedOrder), args.Error(1)
}

// List mocks the List method.
func (m *MockFailedOrderRepository) List(ctx context.Context, offset, limit int) ([]*domain.FailedOrder, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FailedOrder), args.Error(1)
}

// MockPublisher is a mock implementation of usecase.Publisher.
type MockPublisher struct {
	mock.Mock
}

// NewMockPublisher creates a MockPublisher that asserts its expectations on cleanup.
func NewMockPublisher(t *testing.T) *MockPublisher {
	m := &MockPublisher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Publish mocks the Publish method.
func (m *MockPublisher) Publish(ctx context.Context, messageID string, body []byte, attrs map[string]string) error {
	return m.Called(ctx, messageID, body, attrs).Error(0)
}

// MockFulfillmentService is a mock implementation of service.FulfillmentService.
type MockFulfillmentService struct {
	mock.Mock
}

// NewMockFulfillmentService creates a MockFulfillmentService that asserts its expectations on cleanup.
func NewMockFulfillmentService(t *testing.T) *MockFulfillmentService {
	m := &MockFulfillmentService{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Fulfill mocks the Fulfill method.
func (m *MockFulfillmentService) Fulfill(order *domain.Order, now time.Time) domain.FulfillmentOutcome {
	return m.Called(order, now).Get(0).(domain.FulfillmentOutcome)
}

// MockValidatorUseCase is a mock implementation of usecase.ValidatorUseCase.
type MockValidatorUseCase struct {
	mock.Mock
}

// NewMockValidatorUseCase creates a MockValidatorUseCase that asserts its expectations on cleanup.
func NewMockValidatorUseCase(t *testing.T) *MockValidatorUseCase {
	m := &MockValidatorUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Validate mocks the Validate method.
func (m *MockValidatorUseCase) Validate(ctx context.Context, raw map[string]any) (*domain.Order, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// MockStoreUseCase is a mock implementation of usecase.StoreUseCase.
type MockStoreUseCase struct {
	mock.Mock
}

// NewMockStoreUseCase creates a MockStoreUseCase that asserts its expectations on cleanup.
func NewMockStoreUseCase(t *testing.T) *MockStoreUseCase {
	m := &MockStoreUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Store mocks the Store method.
func (m *MockStoreUseCase) Store(ctx context.Context, order *domain.Order) (*domain.StoreResult, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StoreResult), args.Error(1)
}

// MockRedriveUseCase is a mock implementation of usecase.RedriveUseCase.
type MockRedriveUseCase struct {
	mock.Mock
}

// NewMockRedriveUseCase creates a MockRedriveUseCase that asserts its expectations on cleanup.
func NewMockRedriveUseCase(t *testing.T) *MockRedriveUseCase {
	m := &MockRedriveUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Redrive mocks the Redrive method.
func (m *MockRedriveUseCase) Redrive(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockOrderQueryUseCase is a mock implementation of usecase.OrderQueryUseCase.
type MockOrderQueryUseCase struct {
	mock.Mock
}

// NewMockOrderQueryUseCase creates a MockOrderQueryUseCase that asserts its expectations on cleanup.
func NewMockOrderQueryUseCase(t *testing.T) *MockOrderQueryUseCase {
	m := &MockOrderQueryUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// GetOrder mocks the GetOrder method.
func (m *MockOrderQueryUseCase) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// GetFailedOrder mocks the GetFailedOrder method.
func (m *MockOrderQueryUseCase) GetFailedOrder(ctx context.Context, orderID string) (*domain.FailedOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FailedOrder), args.Error(1)
}

// ListFailedOrders mocks the ListFailedOrders method.
func (m *MockOrderQueryUseCase) ListFailedOrders(
	ctx context.Context,
	offset, limit int,
) ([]*domain.FailedOrder, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FailedOrder), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of usecase.IdempotencyStore.
type MockIdempotencyStore struct {
	mock.Mock
}

// NewMockIdempotencyStore creates a MockIdempotencyStore that asserts its expectations on cleanup.
func NewMockIdempotencyStore(t *testing.T) *MockIdempotencyStore {
	m := &MockIdempotencyStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// TryLock mocks the TryLock method.
func (m *MockIdempotencyStore) TryLock(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// Remember mocks the Remember method.
func (m *MockIdempotencyStore) Remember(ctx context.Context, key, orderID string) error {
	return m.Called(ctx, key, orderID).Error(0)
}

// Recall mocks the Recall method.
func (m *MockIdempotencyStore) Recall(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

// Release mocks the Release method.
func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
