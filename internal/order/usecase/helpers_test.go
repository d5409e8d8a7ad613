package usecase

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/allisson/orderflow/internal/order/domain"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return testNow
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// messageIDs returns a generator yielding prefix-1, prefix-2 and so on.
func messageIDs(prefix string) func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n), nil
	}
}

func validatedOrder() *domain.Order {
	validatedAt := testNow.Add(-time.Second)
	return &domain.Order{
		OrderID:       "o1",
		Status:        domain.StatusValidated,
		CustomerName:  "A",
		CustomerEmail: "a@b.com",
		Items: []domain.Item{
			{ProductID: "p1", Quantity: decimal.NewFromInt(2), Price: decimal.RequireFromString("5.0")},
		},
		CalculatedTotalAmount: decimal.RequireFromString("10.00"),
		ValidationTimestamp:   &validatedAt,
	}
}

func storedOrder() *domain.Order {
	return domain.PrepareForStorage(validatedOrder(), testNow.Add(-time.Minute))
}

// memoryOrderRepository is a map-backed OrderRepository honoring the
// conditional create and versioned update contracts. failUpdate, when set, is
// consulted before every update and can inject a store failure.
type memoryOrderRepository struct {
	mu         sync.Mutex
	orders     map[string]*domain.Order
	failUpdate func(order *domain.Order) error
}

func newMemoryOrderRepository() *memoryOrderRepository {
	return &memoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *memoryOrderRepository) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.OrderID]; ok {
		return domain.ErrDuplicateOrder
	}
	stored := order.Clone()
	stored.Version = domain.InitialVersion
	r.orders[order.OrderID] = stored
	return nil
}

func (r *memoryOrderRepository) Update(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		if err := r.failUpdate(order); err != nil {
			return err
		}
	}
	current, ok := r.orders[order.OrderID]
	if !ok || current.Version != order.Version {
		return domain.ErrConcurrentUpdate
	}
	stored := order.Clone()
	stored.Version = current.Version + 1
	r.orders[order.OrderID] = stored
	return nil
}

// put seeds order as the live record at its own version, InitialVersion when unset.
func (r *memoryOrderRepository) put(order *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := order.Clone()
	if stored.Version == 0 {
		stored.Version = domain.InitialVersion
	}
	r.orders[order.OrderID] = stored
}

func (r *memoryOrderRepository) GetByID(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (r *memoryOrderRepository) ListPendingRetry(_ context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []*domain.Order
	for _, order := range r.orders {
		if order.Status != domain.StatusFulfillmentFailed || order.RetriesExhausted() {
			continue
		}
		if order.UpdatedAt != nil && !order.UpdatedAt.Before(olderThan) {
			continue
		}
		pending = append(pending, order.Clone())
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// memoryFailedOrderRepository is a map-backed FailedOrderRepository.
type memoryFailedOrderRepository struct {
	mu      sync.Mutex
	records map[string]*domain.FailedOrder
	err     error
}

func newMemoryFailedOrderRepository() *memoryFailedOrderRepository {
	return &memoryFailedOrderRepository{records: make(map[string]*domain.FailedOrder)}
}

func (r *memoryFailedOrderRepository) Save(_ context.Context, failed *domain.FailedOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	c := *failed
	r.records[failed.OrderID] = &c
	return nil
}

func (r *memoryFailedOrderRepository) GetByOrderID(_ context.Context, orderID string) (*domain.FailedOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	failed, ok := r.records[orderID]
	if !ok {
		return nil, domain.ErrFailedOrderNotFound
	}
	c := *failed
	return &c, nil
}

func (r *memoryFailedOrderRepository) List(_ context.Context, offset, limit int) ([]*domain.FailedOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*domain.FailedOrder, 0, len(r.records))
	for _, failed := range r.records {
		c := *failed
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].FailedAt.Equal(all[j].FailedAt) {
			return all[i].OrderID < all[j].OrderID
		}
		return all[i].FailedAt.After(all[j].FailedAt)
	})
	if offset >= len(all) {
		return []*domain.FailedOrder{}, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

// scriptedFulfillment returns its outcomes in order, repeating the last one.
type scriptedFulfillment struct {
	mu       sync.Mutex
	outcomes []domain.FulfillmentOutcome
	calls    int
}

func (s *scriptedFulfillment) Fulfill(_ *domain.Order, _ time.Time) domain.FulfillmentOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	s.calls++
	return s.outcomes[i]
}

func succeeded(tracking string) domain.FulfillmentOutcome {
	return domain.FulfillmentOutcome{
		Success:        true,
		TrackingNumber: tracking,
		Details: domain.FulfillmentDetails{
			FulfillmentCenter: "FC-01",
			EstimatedDelivery: testNow.AddDate(0, 0, 5),
			ShippingMethod:    "STANDARD",
			ItemsFulfilled:    1,
		},
	}
}

func declined(reason string) domain.FulfillmentOutcome {
	return domain.FulfillmentOutcome{FailureReason: reason}
}
