package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/orderflow/internal/httputil"
	"github.com/allisson/orderflow/internal/order/http/dto"
	"github.com/allisson/orderflow/internal/order/usecase"
)

// FailedOrderHandler handles HTTP requests for the failed-order archive.
type FailedOrderHandler struct {
	query  usecase.OrderQueryUseCase
	logger *slog.Logger
}

// NewFailedOrderHandler creates a new failed-order handler.
func NewFailedOrderHandler(query usecase.OrderQueryUseCase, logger *slog.Logger) *FailedOrderHandler {
	return &FailedOrderHandler{query: query, logger: logger}
}

// GetHandler retrieves the archive record of an order.
// GET /v1/failed-orders/:order_id
func (h *FailedOrderHandler) GetHandler(c *gin.Context) {
	failed, err := h.query.GetFailedOrder(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapFailedOrderToResponse(failed))
}

// ListHandler pages through the archive, most recent failure first.
// GET /v1/failed-orders?offset=0&limit=50
func (h *FailedOrderHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	failedOrders, err := h.query.ListFailedOrders(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapFailedOrdersToListResponse(failedOrders))
}
