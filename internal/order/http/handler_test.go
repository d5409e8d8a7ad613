package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/orderflow/internal/order/cache"
	"github.com/allisson/orderflow/internal/order/domain"
	"github.com/allisson/orderflow/internal/order/http/dto"
	httpMocks "github.com/allisson/orderflow/internal/order/http/mocks"
	"github.com/allisson/orderflow/internal/order/usecase/mocks"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type handlerFixture struct {
	handler     *OrderHandler
	submitter   *httpMocks.MockOrderSubmitter
	query       *mocks.MockOrderQueryUseCase
	idempotency *mocks.MockIdempotencyStore
}

func setupOrderHandler(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		submitter:   httpMocks.NewMockOrderSubmitter(t),
		query:       mocks.NewMockOrderQueryUseCase(t),
		idempotency: mocks.NewMockIdempotencyStore(t),
	}
	f.handler = NewOrderHandler(f.submitter, f.query, f.idempotency, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.handler.newID = func() string { return "generated-id" }
	f.handler.now = func() time.Time { return testNow }
	return f
}

// createTestContext creates a test Gin context with the given request.
func createTestContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	return c, w
}

const validBody = `{"customer_name":"A","customer_email":"a@b.com","items":[{"product_id":"p1","quantity":2,"price":5.0}]}`

func acceptedResult(orderID string) *domain.StoreResult {
	return &domain.StoreResult{
		Order:          &domain.Order{OrderID: orderID, Status: domain.StatusStored},
		QueueMessageID: "m1",
	}
}

func TestOrderHandler_SubmitHandler(t *testing.T) {
	t.Run("Success_AssignsReceiptFields", func(t *testing.T) {
		f := setupOrderHandler(t)

		f.submitter.On("Submit", mock.Anything, mock.MatchedBy(func(raw map[string]any) bool {
			return raw["order_id"] == "generated-id" &&
				raw["status"] == "RECEIVED" &&
				raw["created_at"] == "2024-05-01T12:00:00Z" &&
				raw["customer_name"] == "A"
		})).Return(acceptedResult("generated-id"), nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders", []byte(validBody))
		f.handler.SubmitHandler(c)

		assert.Equal(t, http.StatusAccepted, w.Code)
		var response dto.SubmitOrderResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, dto.SubmitOrderMessage, response.Message)
		assert.Equal(t, "generated-id", response.OrderID)
		assert.Equal(t, "m1", response.QueueMessageID)
	})

	t.Run("Success_KeepsExactNumberText", func(t *testing.T) {
		f := setupOrderHandler(t)

		f.submitter.On("Submit", mock.Anything, mock.MatchedBy(func(raw map[string]any) bool {
			item := raw["items"].([]any)[0].(map[string]any)
			return item["price"] == json.Number("19.99")
		})).Return(acceptedResult("generated-id"), nil).Once()

		body := `{"customer_name":"A","customer_email":"a@b.com","items":[{"product_id":"p1","quantity":1,"price":19.99}]}`
		c, w := createTestContext(http.MethodPost, "/v1/orders", []byte(body))
		f.handler.SubmitHandler(c)

		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		f := setupOrderHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/orders", []byte(`{not json`))
		f.handler.SubmitHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid JSON")
	})

	t.Run("Error_MissingBody", func(t *testing.T) {
		f := setupOrderHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/orders", nil)
		f.handler.SubmitHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Error_ValidationFailed", func(t *testing.T) {
		f := setupOrderHandler(t)

		f.submitter.On("Submit", mock.Anything, mock.Anything).
			Return(nil, domain.NewValidationError("customer_email", "invalid email format")).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders", []byte(validBody))
		f.handler.SubmitHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "customer_email")
	})

	t.Run("Error_StoreUnavailable", func(t *testing.T) {
		f := setupOrderHandler(t)

		f.submitter.On("Submit", mock.Anything, mock.Anything).
			Return(nil, domain.StoreUnavailable("failed to create order", errors.New("timeout"))).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders", []byte(validBody))
		f.handler.SubmitHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "timeout")
	})
}

func TestOrderHandler_SubmitHandler_IdempotencyKey(t *testing.T) {
	t.Run("FirstUse_ClaimsAndRemembers", func(t *testing.T) {
		f := setupOrderHandler(t)

		f.idempotency.On("Recall", mock.Anything, "k1").Return("", false, nil).Once()
		f.idempotency.On("TryLock", mock.Anything, "k1").Return(true, nil).Once()
		f.submitter.On("Submit", mock.Anything, mock.Anything).Return(acceptedResult("generated-id"), nil).Once()
		f.idempotency.On("Remember", mock.Anything, "k1", "generated-id").Return(nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders", []byte(validBody))
		c.Request.Header.Set(dto.IdempotencyKeyHeader, "k1")
		f.handler.SubmitHandler(c)

		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("Replay_ReturnsStoredOrder", func(t *testing.T) {
		f := setupOrderHandler(t)

		f.idempotency.On("Recall", mock.Anything, "k1").Return("o1", true, nil).Once()
		f.query.On("GetOrder", mock.Anything, "o1").
			Return(&domain.Order{OrderID: "o1", QueueMessageID: "m1"}, nil).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders", []byte(validBody))
		c.Request.Header.Set(dto.IdempotencyKeyHeader, "k1")
		f.handler.SubmitHandler(c)

		assert.Equal(t, http.StatusAccepted, w.Code)
		var response dto.SubmitOrderResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "o1", response.OrderID)
		assert.Equal(t, "m1", response.QueueMessageID)
		assert.True(t, response.Duplicate)
		f.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("InFlight_Conflict", func(t *testing.T) {
		f := setupOrderHandler(t)

		f.idempotency.On("Recall", mock.Anything, "k1").Return("", false, nil).Once()
		f.idempotency.On("TryLock", mock.Anything, "k1").Return(false, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders", []byte(validBody))
		c.Request.Header.Set(dto.IdempotencyKeyHeader, "k1")
		f.handler.SubmitHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("SubmitFails_ReleasesKey", func(t *testing.T) {
		f := setupOrderHandler(t)

		f.idempotency.On("Recall", mock.Anything, "k1").Return("", false, nil).Once()
		f.idempotency.On("TryLock", mock.Anything, "k1").Return(true, nil).Once()
		f.submitter.On("Submit", mock.Anything, mock.Anything).Return(nil, domain.ErrQueueUnavailable).Once()
		f.idempotency.On("Release", mock.Anything, "k1").Return(nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders", []byte(validBody))
		c.Request.Header.Set(dto.IdempotencyKeyHeader, "k1")
		f.handler.SubmitHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("StoreDown_ServiceUnavailable", func(t *testing.T) {
		f := setupOrderHandler(t)

		f.idempotency.On("Recall", mock.Anything, "k1").
			Return("", false, domain.ErrStoreUnavailable).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders", []byte(validBody))
		c.Request.Header.Set(dto.IdempotencyKeyHeader, "k1")
		f.handler.SubmitHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("BlankKey_Rejected", func(t *testing.T) {
		f := setupOrderHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/orders", []byte(validBody))
		c.Request.Header.Set(dto.IdempotencyKeyHeader, "   ")
		f.handler.SubmitHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestOrderHandler_SubmitHandler_NoopIdempotency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	submitter := httpMocks.NewMockOrderSubmitter(t)
	handler := NewOrderHandler(
		submitter,
		mocks.NewMockOrderQueryUseCase(t),
		cache.NewNoopIdempotencyStore(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	submitter.On("Submit", mock.Anything, mock.Anything).Return(acceptedResult("o1"), nil).Once()

	c, w := createTestContext(http.MethodPost, "/v1/orders", []byte(validBody))
	c.Request.Header.Set(dto.IdempotencyKeyHeader, "k1")
	handler.SubmitHandler(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestOrderHandler_GetHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := setupOrderHandler(t)
		total := decimal.RequireFromString("10.10")
		order := &domain.Order{
			OrderID:               "o1",
			Status:                domain.StatusFulfilled,
			Items:                 []domain.Item{{ProductID: "p1", Quantity: decimal.NewFromInt(1), Price: total}},
			CalculatedTotalAmount: total,
			TrackingNumber:        "TRACK123456",
			FulfillmentDetails:    &domain.FulfillmentDetails{FulfillmentCenter: "FC-01", ItemsFulfilled: 1},
		}
		f.query.On("GetOrder", mock.Anything, "o1").Return(order, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/orders/o1", nil)
		c.Params = gin.Params{{Key: "order_id", Value: "o1"}}
		f.handler.GetHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "FULFILLED", response["status"])
		assert.Equal(t, "10.1", response["calculated_total_amount"])
		assert.Equal(t, "TRACK123456", response["tracking_number"])
	})

	t.Run("NotFound", func(t *testing.T) {
		f := setupOrderHandler(t)
		f.query.On("GetOrder", mock.Anything, "missing").Return(nil, domain.ErrOrderNotFound).Once()

		c, w := createTestContext(http.MethodGet, "/v1/orders/missing", nil)
		c.Params = gin.Params{{Key: "order_id", Value: "missing"}}
		f.handler.GetHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestFailedOrderHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	value := decimal.RequireFromString("10.50")
	failed := &domain.FailedOrder{
		OrderID:         "o1",
		Status:          domain.StatusFulfillmentFailed,
		FailureSource:   domain.FailureSourceFulfillment,
		FailedAt:        testNow,
		ErrorMessage:    "Insufficient inventory",
		RetryCount:      3,
		OrderValue:      &value,
		OriginalMessage: json.RawMessage(`{"order_id":"o1"}`),
	}

	t.Run("Get", func(t *testing.T) {
		query := mocks.NewMockOrderQueryUseCase(t)
		query.On("GetFailedOrder", mock.Anything, "o1").Return(failed, nil).Once()
		handler := NewFailedOrderHandler(query, logger)

		c, w := createTestContext(http.MethodGet, "/v1/failed-orders/o1", nil)
		c.Params = gin.Params{{Key: "order_id", Value: "o1"}}
		handler.GetHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "FULFILLMENT", response["failure_source"])
		assert.Equal(t, "10.5", response["order_value"])
		assert.Equal(t, float64(3), response["retry_count"])
		assert.Equal(t, map[string]any{"order_id": "o1"}, response["original_message"])
	})

	t.Run("GetNotFound", func(t *testing.T) {
		query := mocks.NewMockOrderQueryUseCase(t)
		query.On("GetFailedOrder", mock.Anything, "o2").Return(nil, domain.ErrFailedOrderNotFound).Once()
		handler := NewFailedOrderHandler(query, logger)

		c, w := createTestContext(http.MethodGet, "/v1/failed-orders/o2", nil)
		c.Params = gin.Params{{Key: "order_id", Value: "o2"}}
		handler.GetHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("List", func(t *testing.T) {
		query := mocks.NewMockOrderQueryUseCase(t)
		query.On("ListFailedOrders", mock.Anything, 10, 5).Return([]*domain.FailedOrder{failed}, nil).Once()
		handler := NewFailedOrderHandler(query, logger)

		c, w := createTestContext(http.MethodGet, "/v1/failed-orders?offset=10&limit=5", nil)
		handler.ListHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.ListFailedOrdersResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, "o1", response.Data[0].OrderID)
	})

	t.Run("ListInvalidPagination", func(t *testing.T) {
		handler := NewFailedOrderHandler(mocks.NewMockOrderQueryUseCase(t), logger)

		c, w := createTestContext(http.MethodGet, "/v1/failed-orders?limit=500", nil)
		handler.ListHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

var _ OrderSubmitter = (*httpMocks.MockOrderSubmitter)(nil)
