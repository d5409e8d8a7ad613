// Package domain defines the order entity, its lifecycle statuses and the
// failure records kept in the failed-order archive.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Defaults attached to an order when it is first stored.
const (
	DefaultMetadataSource  = "api"
	DefaultMetadataVersion = "1.0"
	DefaultCurrency        = "USD"
)

// InitialVersion is the version of a freshly created live record.
const InitialVersion int64 = 1

// DispatchClaimTimeout bounds how long a dispatch claim blocks other store
// invocations of the same order. A claim older than this whose publication was
// never confirmed may be taken over.
const DispatchClaimTimeout = 30 * time.Second

// Item is a single order line.
type Item struct {
	ProductID string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
}

// LineTotal returns quantity times price without rounding.
func (i Item) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.Price)
}

// OrderMetadata tags where an order came from.
type OrderMetadata struct {
	Source  string
	Version string
}

// OrderSummary is derived from the items when the order is stored.
type OrderSummary struct {
	TotalItems    int
	TotalQuantity decimal.Decimal
	Currency      string
}

// FulfillmentDetails describes a successful fulfillment.
type FulfillmentDetails struct {
	FulfillmentCenter string
	EstimatedDelivery time.Time
	ShippingMethod    string
	ItemsFulfilled    int
}

// Order is the central entity tracked through the pipeline.
type Order struct {
	OrderID       string
	Status        Status
	CustomerName  string
	CustomerEmail string
	Items         []Item

	// TotalAmount is the caller-supplied total, kept as given. It is never
	// reconciled against CalculatedTotalAmount.
	TotalAmount           *decimal.Decimal
	CalculatedTotalAmount decimal.Decimal

	RetryCount int

	CreatedAt            *time.Time
	ValidationTimestamp  *time.Time
	StorageTimestamp     *time.Time
	FulfillmentTimestamp *time.Time
	UpdatedAt            *time.Time

	TrackingNumber     string
	FulfillmentDetails *FulfillmentDetails
	ErrorMessage       string

	OrderMetadata *OrderMetadata
	OrderSummary  *OrderSummary

	// QueueMessageID is chosen and written when a dispatch is claimed, before
	// the message is sent. DispatchedAt is set once the send succeeded. A
	// stored order with a nil DispatchedAt was never confirmed on the queue.
	QueueMessageID    string
	DispatchClaimedAt *time.Time
	DispatchedAt      *time.Time

	// Version is the optimistic concurrency token of the live record. It is
	// kept by the store, not in the order document.
	Version int64
}

// CalculateTotal returns the sum of quantity times price over items, rounded to 2 places.
func CalculateTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total.Round(2)
}

// Summarize computes the item count and total quantity of the order.
func (o *Order) Summarize() OrderSummary {
	quantity := decimal.Zero
	for _, item := range o.Items {
		quantity = quantity.Add(item.Quantity)
	}
	return OrderSummary{
		TotalItems:    len(o.Items),
		TotalQuantity: quantity,
		Currency:      DefaultCurrency,
	}
}

// IsDispatched reports whether the order was published to the fulfillment queue.
func (o *Order) IsDispatched() bool {
	return o.DispatchedAt != nil
}

// HasPendingDispatchClaim reports whether another invocation claimed the
// dispatch of o less than DispatchClaimTimeout ago and has not confirmed it.
func (o *Order) HasPendingDispatchClaim(now time.Time) bool {
	if o.DispatchClaimedAt == nil || o.IsDispatched() {
		return false
	}
	return now.Sub(*o.DispatchClaimedAt) < DispatchClaimTimeout
}

// Clone returns a deep copy so stage transformations never mutate their input.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	c.TotalAmount = clonePtr(o.TotalAmount)
	c.CreatedAt = clonePtr(o.CreatedAt)
	c.ValidationTimestamp = clonePtr(o.ValidationTimestamp)
	c.StorageTimestamp = clonePtr(o.StorageTimestamp)
	c.FulfillmentTimestamp = clonePtr(o.FulfillmentTimestamp)
	c.UpdatedAt = clonePtr(o.UpdatedAt)
	c.FulfillmentDetails = clonePtr(o.FulfillmentDetails)
	c.OrderMetadata = clonePtr(o.OrderMetadata)
	c.OrderSummary = clonePtr(o.OrderSummary)
	c.DispatchClaimedAt = clonePtr(o.DispatchClaimedAt)
	c.DispatchedAt = clonePtr(o.DispatchedAt)
	return &c
}

// PrepareForStorage returns a copy of o advanced to STORED with the storage
// timestamp, a default creation time and metadata, and a fresh summary.
func PrepareForStorage(o *Order, now time.Time) *Order {
	next := o.Clone()
	next.Status = StatusStored
	next.StorageTimestamp = &now
	next.UpdatedAt = &now
	if next.CreatedAt == nil {
		next.CreatedAt = &now
	}
	if next.OrderMetadata == nil {
		next.OrderMetadata = &OrderMetadata{
			Source:  DefaultMetadataSource,
			Version: DefaultMetadataVersion,
		}
	}
	summary := next.Summarize()
	next.OrderSummary = &summary
	return next
}

// MarkStorageFailed returns a copy of o recording a failed store write.
func MarkStorageFailed(o *Order, cause error, now time.Time) *Order {
	next := o.Clone()
	next.Status = StatusStorageFailed
	next.ErrorMessage = cause.Error()
	next.StorageTimestamp = &now
	next.UpdatedAt = &now
	return next
}

// ClaimDispatch returns a copy of o claiming its publication under messageID.
func ClaimDispatch(o *Order, messageID string, now time.Time) *Order {
	next := o.Clone()
	next.QueueMessageID = messageID
	next.DispatchClaimedAt = &now
	next.DispatchedAt = nil
	return next
}

// ReleaseDispatchClaim returns a copy of o without its unconfirmed claim.
func ReleaseDispatchClaim(o *Order) *Order {
	next := o.Clone()
	next.QueueMessageID = ""
	next.DispatchClaimedAt = nil
	return next
}

// MarkDispatched returns a copy of o confirming that its claimed message was sent.
func MarkDispatched(o *Order, now time.Time) *Order {
	next := o.Clone()
	next.DispatchedAt = &now
	return next
}

// MarkRedriven returns a copy of o republished under messageID. Touching
// UpdatedAt keeps the next redrive tick from picking it again.
func MarkRedriven(o *Order, messageID string, now time.Time) *Order {
	next := o.Clone()
	next.QueueMessageID = messageID
	next.DispatchClaimedAt = &now
	next.UpdatedAt = &now
	return next
}

// MarkFulfilled returns a copy of o sealed as FULFILLED.
func MarkFulfilled(o *Order, trackingNumber string, details FulfillmentDetails, now time.Time) *Order {
	next := o.Clone()
	next.Status = StatusFulfilled
	next.FulfillmentTimestamp = &now
	next.UpdatedAt = &now
	next.TrackingNumber = trackingNumber
	next.FulfillmentDetails = &details
	next.ErrorMessage = ""
	return next
}

// MarkFulfillmentFailed returns a copy of o with the retry count incremented
// and the failure reason recorded. The second result reports whether the retry
// ceiling was reached.
func MarkFulfillmentFailed(o *Order, reason string, now time.Time) (*Order, bool) {
	next := o.Clone()
	next.Status = StatusFulfillmentFailed
	next.FulfillmentTimestamp = &now
	next.UpdatedAt = &now
	next.ErrorMessage = reason
	next.RetryCount++
	return next, next.RetryCount >= MaxFulfillmentRetries
}

// RetriesExhausted reports whether the order reached the retry ceiling.
func (o *Order) RetriesExhausted() bool {
	return o.RetryCount >= MaxFulfillmentRetries
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
