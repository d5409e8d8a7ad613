package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/codec"
	"github.com/allisson/orderflow/internal/order/domain"
	"github.com/allisson/orderflow/internal/queue"
)

// maxClaimAttempts bounds how often a duplicate invocation re-reads the live
// record after losing a conditional update.
const maxClaimAttempts = 3

// storeUseCase implements StoreUseCase.
type storeUseCase struct {
	orderRepo    OrderRepository
	publisher    Publisher
	logger       *slog.Logger
	now          func() time.Time
	newMessageID func() (string, error)
}

// NewStoreUseCase creates a new StoreUseCase.
func NewStoreUseCase(orderRepo OrderRepository, publisher Publisher, logger *slog.Logger) StoreUseCase {
	return &storeUseCase{
		orderRepo:    orderRepo,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
		newMessageID: queue.NewMessageID,
	}
}

// Store writes the order with a conditional create and then publishes it.
//
// The record is created already holding a dispatch claim: the queue message id
// is chosen and stored before the message is sent, and the send is confirmed
// with a conditional update afterwards. A consumer can therefore never see a
// message whose receipt is written after it. When the create reports a
// duplicate, the stored record wins: a confirmed or pending dispatch is
// returned as is, a stale or missing claim is taken over with a conditional
// update, and a record left behind by a failed earlier attempt
// (STORAGE_FAILED) is replaced.
func (s *storeUseCase) Store(ctx context.Context, order *domain.Order) (*domain.StoreResult, error) {
	now := s.now().UTC()

	messageID, err := s.newMessageID()
	if err != nil {
		return nil, err
	}
	prepared := domain.ClaimDispatch(domain.PrepareForStorage(order, now), messageID, now)

	err = s.orderRepo.Create(ctx, prepared)
	if err == nil {
		prepared.Version = domain.InitialVersion
		s.logger.Info("order stored", slog.String("order_id", prepared.OrderID))
		return s.dispatch(ctx, prepared, false, now)
	}

	if !apperrors.Is(err, domain.ErrDuplicateOrder) {
		err = storeError("failed to create order", err)
		s.recordStorageFailure(ctx, order, err, now)
		return nil, err
	}

	for range maxClaimAttempts {
		result, err := s.resolveDuplicate(ctx, order, now)
		if apperrors.Is(err, domain.ErrConcurrentUpdate) {
			continue
		}
		return result, err
	}
	return nil, storeError("failed to claim order dispatch", domain.ErrConcurrentUpdate)
}

// resolveDuplicate decides what a repeated invocation does with the stored
// record. It returns domain.ErrConcurrentUpdate when it lost a conditional
// update and should re-read.
func (s *storeUseCase) resolveDuplicate(ctx context.Context, order *domain.Order, now time.Time) (*domain.StoreResult, error) {
	existing, err := s.orderRepo.GetByID(ctx, order.OrderID)
	if err != nil {
		return nil, storeError("failed to load existing order", err)
	}

	switch {
	case existing.Status == domain.StatusStorageFailed:
		messageID, err := s.newMessageID()
		if err != nil {
			return nil, err
		}
		replacement := domain.ClaimDispatch(domain.PrepareForStorage(order, now), messageID, now)
		replacement.Version = existing.Version
		if err := s.update(ctx, replacement, "failed to replace storage failure record"); err != nil {
			return nil, err
		}
		s.logger.Info("order stored after earlier storage failure", slog.String("order_id", replacement.OrderID))
		return s.dispatch(ctx, replacement, false, now)

	case existing.Status != domain.StatusStored || existing.IsDispatched():
		s.logger.Info("order already stored and dispatched",
			slog.String("order_id", existing.OrderID),
			slog.String("status", existing.Status.String()),
			slog.String("queue_message_id", existing.QueueMessageID),
		)
		return duplicateResult(existing), nil

	case existing.HasPendingDispatchClaim(now):
		s.logger.Info("order dispatch in progress",
			slog.String("order_id", existing.OrderID),
			slog.String("queue_message_id", existing.QueueMessageID),
		)
		return duplicateResult(existing), nil
	}

	messageID, err := s.newMessageID()
	if err != nil {
		return nil, err
	}
	claimed := domain.ClaimDispatch(existing, messageID, now)
	if err := s.update(ctx, claimed, "failed to claim order dispatch"); err != nil {
		return nil, err
	}
	s.logger.Info("order already stored, dispatching", slog.String("order_id", existing.OrderID))
	return s.dispatch(ctx, claimed, true, now)
}

// dispatch sends the wire form of a claimed order under its claimed message
// id and then confirms the send. A failed send releases the claim so the next
// invocation can dispatch without waiting for the claim to expire.
func (s *storeUseCase) dispatch(ctx context.Context, order *domain.Order, duplicate bool, now time.Time) (*domain.StoreResult, error) {
	body, err := codec.EncodeWire(order)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order %s: %w", order.OrderID, err)
	}

	err = s.publisher.Publish(ctx, order.QueueMessageID, body, map[string]string{
		queue.AttributeOrderID:     order.OrderID,
		queue.AttributeOrderStatus: string(order.Status),
	})
	if err != nil {
		s.releaseClaim(ctx, order)
		return nil, fmt.Errorf("%w: %w", domain.ErrQueueUnavailable, err)
	}

	s.logger.Info("order sent to fulfillment queue",
		slog.String("order_id", order.OrderID),
		slog.String("queue_message_id", order.QueueMessageID),
	)

	dispatched := domain.MarkDispatched(order, now)
	switch err := s.orderRepo.Update(ctx, dispatched); {
	case err == nil:
		dispatched.Version++
	case apperrors.Is(err, domain.ErrConcurrentUpdate):
		// A consumer already moved the order past STORED; that proves the send.
		s.logger.Info("order advanced before dispatch confirmation",
			slog.String("order_id", order.OrderID),
		)
	default:
		s.logger.Warn("failed to confirm dispatch",
			slog.String("order_id", order.OrderID),
			slog.Any("error", err),
		)
	}

	return &domain.StoreResult{Order: dispatched, QueueMessageID: dispatched.QueueMessageID, Duplicate: duplicate}, nil
}

// releaseClaim makes one attempt to drop an unconfirmed claim.
func (s *storeUseCase) releaseClaim(ctx context.Context, order *domain.Order) {
	if err := s.orderRepo.Update(ctx, domain.ReleaseDispatchClaim(order)); err != nil {
		s.logger.Warn("failed to release dispatch claim",
			slog.String("order_id", order.OrderID),
			slog.Any("error", err),
		)
	}
}

// update writes order conditionally and bumps its in-memory version.
// domain.ErrConcurrentUpdate is returned unwrapped.
func (s *storeUseCase) update(ctx context.Context, order *domain.Order, op string) error {
	if err := s.orderRepo.Update(ctx, order); err != nil {
		if apperrors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}
		return storeError(op, err)
	}
	order.Version++
	return nil
}

// recordStorageFailure makes one attempt to leave a STORAGE_FAILED record. The
// write is a conditional create, so a record written by a concurrent winner is
// never overwritten.
func (s *storeUseCase) recordStorageFailure(ctx context.Context, order *domain.Order, cause error, now time.Time) {
	s.logger.Error("error storing order",
		slog.String("order_id", order.OrderID),
		slog.Any("error", cause),
	)

	failed := domain.MarkStorageFailed(order, cause, now)
	switch err := s.orderRepo.Create(ctx, failed); {
	case err == nil:
	case apperrors.Is(err, domain.ErrDuplicateOrder):
		s.logger.Info("order record already exists, keeping it",
			slog.String("order_id", order.OrderID),
		)
	default:
		s.logger.Error("failed to store error order",
			slog.String("order_id", order.OrderID),
			slog.Any("error", err),
		)
	}
}

func duplicateResult(existing *domain.Order) *domain.StoreResult {
	return &domain.StoreResult{Order: existing, QueueMessageID: existing.QueueMessageID, Duplicate: true}
}

// storeError wraps err as ErrStoreUnavailable unless it already is.
func storeError(op string, err error) error {
	if apperrors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return domain.StoreUnavailable(op, err)
}
