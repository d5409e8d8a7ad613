package usecase

import (
	"context"

	"github.com/allisson/orderflow/internal/order/domain"
)

// orderQueryUseCase implements OrderQueryUseCase.
type orderQueryUseCase struct {
	orderRepo       OrderRepository
	failedOrderRepo FailedOrderRepository
}

// NewOrderQueryUseCase creates a new OrderQueryUseCase.
func NewOrderQueryUseCase(orderRepo OrderRepository, failedOrderRepo FailedOrderRepository) OrderQueryUseCase {
	return &orderQueryUseCase{
		orderRepo:       orderRepo,
		failedOrderRepo: failedOrderRepo,
	}
}

// GetOrder returns the live record of orderID.
func (q *orderQueryUseCase) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return q.orderRepo.GetByID(ctx, orderID)
}

// GetFailedOrder returns the archive record of orderID.
func (q *orderQueryUseCase) GetFailedOrder(ctx context.Context, orderID string) (*domain.FailedOrder, error) {
	return q.failedOrderRepo.GetByOrderID(ctx, orderID)
}

// ListFailedOrders pages through the archive, most recent failure first.
func (q *orderQueryUseCase) ListFailedOrders(
	ctx context.Context,
	offset, limit int,
) ([]*domain.FailedOrder, error) {
	return q.failedOrderRepo.List(ctx, offset, limit)
}
