package service

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/orderflow/internal/order/domain"
)

// scriptedSource replays fixed draws.
type scriptedSource struct {
	floats []float64
	ints   []int
}

func (s *scriptedSource) Float64() float64 {
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedSource) IntN(n int) int {
	v := s.ints[0] % n
	s.ints = s.ints[1:]
	return v
}

func testOrder() *domain.Order {
	return &domain.Order{
		OrderID: "o1",
		Items: []domain.Item{
			{ProductID: "p1", Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(5)},
			{ProductID: "p2", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1)},
		},
	}
}

func TestSimulator_Fulfill(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		sim := NewSimulator(DefaultSuccessRate, &scriptedSource{
			floats: []float64{0.5},
			ints:   []int{23456, 4},
		})

		outcome := sim.Fulfill(testOrder(), now)

		require.True(t, outcome.Success)
		assert.Equal(t, "TRACK123456", outcome.TrackingNumber)
		assert.Equal(t, "FC-01", outcome.Details.FulfillmentCenter)
		assert.Equal(t, "STANDARD", outcome.Details.ShippingMethod)
		assert.Equal(t, 2, outcome.Details.ItemsFulfilled)
		assert.Equal(t, now.AddDate(0, 0, 7), outcome.Details.EstimatedDelivery)
		assert.Empty(t, outcome.FailureReason)
	})

	t.Run("Failure", func(t *testing.T) {
		sim := NewSimulator(DefaultSuccessRate, &scriptedSource{
			floats: []float64{0.9},
			ints:   []int{3},
		})

		outcome := sim.Fulfill(testOrder(), now)

		assert.False(t, outcome.Success)
		assert.Equal(t, "Product discontinued", outcome.FailureReason)
		assert.Empty(t, outcome.TrackingNumber)
	})

	t.Run("Distribution", func(t *testing.T) {
		sim := NewSimulator(DefaultSuccessRate, nil)
		order := testOrder()

		var wg sync.WaitGroup
		var mu sync.Mutex
		successes := 0
		for i := 0; i < 2000; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcome := sim.Fulfill(order, now)
				if outcome.Success {
					days := outcome.Details.EstimatedDelivery.Sub(now).Hours() / 24
					assert.GreaterOrEqual(t, days, 3.0)
					assert.LessOrEqual(t, days, 7.0)
					assert.True(t, strings.HasPrefix(outcome.TrackingNumber, "TRACK"))
					assert.Len(t, outcome.TrackingNumber, 11)
				} else {
					assert.Contains(t, FailureReasons, outcome.FailureReason)
				}
				mu.Lock()
				if outcome.Success {
					successes++
				}
				mu.Unlock()
			}()
		}
		wg.Wait()

		rate := float64(successes) / 2000
		assert.InDelta(t, 0.9, rate, 0.05)
	})

	t.Run("AlwaysFails", func(t *testing.T) {
		sim := NewSimulator(0, nil)
		assert.False(t, sim.Fulfill(testOrder(), now).Success)
	})
}
