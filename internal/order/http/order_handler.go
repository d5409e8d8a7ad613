// Package http provides HTTP handlers for order submission and for reading
// the live and archived order records.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/httputil"
	"github.com/allisson/orderflow/internal/order/domain"
	"github.com/allisson/orderflow/internal/order/http/dto"
	"github.com/allisson/orderflow/internal/order/usecase"
	customValidation "github.com/allisson/orderflow/internal/validation"
)

// ErrIdempotencyKeyInUse is returned while another request holds the same Idempotency-Key.
var ErrIdempotencyKeyInUse = apperrors.Wrap(apperrors.ErrConflict, "idempotency key is in use by another request")

// OrderSubmitter runs a received order through the pipeline.
type OrderSubmitter interface {
	Submit(ctx context.Context, raw map[string]any) (*domain.StoreResult, error)
}

// OrderHandler handles HTTP requests for order submission and lookup.
type OrderHandler struct {
	submitter   OrderSubmitter
	query       usecase.OrderQueryUseCase
	idempotency usecase.IdempotencyStore
	logger      *slog.Logger
	newID       func() string
	now         func() time.Time
}

// NewOrderHandler creates a new order handler with required dependencies.
func NewOrderHandler(
	submitter OrderSubmitter,
	query usecase.OrderQueryUseCase,
	idempotency usecase.IdempotencyStore,
	logger *slog.Logger,
) *OrderHandler {
	return &OrderHandler{
		submitter:   submitter,
		query:       query,
		idempotency: idempotency,
		logger:      logger,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// SubmitHandler accepts an order and runs it through validation and storage.
// POST /v1/orders - Optional Idempotency-Key header.
// Returns 202 Accepted with the order id and the fulfillment queue message id.
func (h *OrderHandler) SubmitHandler(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := dto.DecodeOrderSubmission(c.Request.Body)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	key := c.GetHeader(dto.IdempotencyKeyHeader)
	if key != "" {
		if err := dto.ValidateIdempotencyKey(key); err != nil {
			httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
			return
		}
		if h.replay(c, key) {
			return
		}
	}

	submission := dto.NewOrderSubmission(body, h.newID(), h.now())
	result, err := h.submitter.Submit(ctx, submission)
	if err != nil {
		if key != "" {
			if releaseErr := h.idempotency.Release(ctx, key); releaseErr != nil {
				h.logger.Warn("failed to release idempotency key", slog.Any("error", releaseErr))
			}
		}
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	if key != "" {
		if err := h.idempotency.Remember(ctx, key, result.Order.OrderID); err != nil {
			h.logger.Warn("failed to remember idempotency key",
				slog.String("order_id", result.Order.OrderID),
				slog.Any("error", err),
			)
		}
	}

	c.JSON(http.StatusAccepted, dto.MapStoreResultToSubmitResponse(result))
}

// replay answers a request whose Idempotency-Key was already used, or claims
// the key for this request. It reports whether a response was written.
func (h *OrderHandler) replay(c *gin.Context, key string) bool {
	ctx := c.Request.Context()

	orderID, found, err := h.idempotency.Recall(ctx, key)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return true
	}
	if found {
		order, err := h.query.GetOrder(ctx, orderID)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return true
		}
		c.JSON(http.StatusAccepted, dto.MapStoreResultToSubmitResponse(&domain.StoreResult{
			Order:          order,
			QueueMessageID: order.QueueMessageID,
			Duplicate:      true,
		}))
		return true
	}

	locked, err := h.idempotency.TryLock(ctx, key)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return true
	}
	if !locked {
		httputil.HandleErrorGin(c, ErrIdempotencyKeyInUse, h.logger)
		return true
	}
	return false
}

// GetHandler retrieves the live record of an order.
// GET /v1/orders/:order_id
func (h *OrderHandler) GetHandler(c *gin.Context) {
	order, err := h.query.GetOrder(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOrderToResponse(order))
}
