package service

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/allisson/orderflow/internal/order/domain"
)

// Simulator constants.
const (
	DefaultSuccessRate   = 0.9
	FulfillmentCenter    = "FC-01"
	ShippingMethod       = "STANDARD"
	minDeliveryDays      = 3
	maxDeliveryDays      = 7
	minTrackingSuffix    = 100000
	maxTrackingSuffix    = 999999
	trackingNumberPrefix = "TRACK"
)

// FailureReasons are the decline reasons a simulated fulfillment may report.
var FailureReasons = []string{
	"Insufficient inventory",
	"Payment authorization failed",
	"Invalid shipping address",
	"Product discontinued",
	"Fulfillment center unavailable",
}

// RandomSource is the subset of *rand.Rand used by the simulator.
type RandomSource interface {
	Float64() float64
	IntN(n int) int
}

type simulator struct {
	mu          sync.Mutex
	rng         RandomSource
	successRate float64
}

// NewSimulator creates a FulfillmentService that succeeds with probability
// successRate. A nil rng uses a time-seeded PCG source.
func NewSimulator(successRate float64, rng RandomSource) FulfillmentService {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &simulator{rng: rng, successRate: successRate}
}

// Fulfill draws one outcome. On success the estimated delivery is a whole
// number of days between 3 and 7 after now.
func (s *simulator) Fulfill(order *domain.Order, now time.Time) domain.FulfillmentOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() >= s.successRate {
		return domain.FulfillmentOutcome{
			FailureReason: FailureReasons[s.rng.IntN(len(FailureReasons))],
		}
	}

	suffix := minTrackingSuffix + s.rng.IntN(maxTrackingSuffix-minTrackingSuffix+1)
	days := minDeliveryDays + s.rng.IntN(maxDeliveryDays-minDeliveryDays+1)

	return domain.FulfillmentOutcome{
		Success:        true,
		TrackingNumber: fmt.Sprintf("%s%d", trackingNumberPrefix, suffix),
		Details: domain.FulfillmentDetails{
			FulfillmentCenter: FulfillmentCenter,
			EstimatedDelivery: now.AddDate(0, 0, days),
			ShippingMethod:    ShippingMethod,
			ItemsFulfilled:    len(order.Items),
		},
	}
}
