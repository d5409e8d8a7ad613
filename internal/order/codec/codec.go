// Package codec converts orders to and from their boundary representations.
//
// Two forms exist. The store form is written to the order store and the
// failed-order archive: every monetary and quantity field is an exact decimal
// string. The wire form is published to the fulfillment queue: the same fields
// are plain JSON numbers. Decoding accepts either form.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/allisson/orderflow/internal/order/domain"
)

// Form selects how numbers are encoded.
type Form int

const (
	// FormStore encodes numbers as exact decimal strings.
	FormStore Form = iota
	// FormWire encodes numbers as JSON numbers.
	FormWire
)

// Number is a decimal that encodes according to its Form.
type Number struct {
	decimal.Decimal
	form Form
}

func newNumber(d decimal.Decimal, form Form) Number {
	return Number{Decimal: d, form: form}
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.form == FormWire {
		return json.Marshal(n.InexactFloat64())
	}
	return []byte(strconv.Quote(n.String())), nil
}

// UnmarshalJSON accepts both quoted decimal strings and JSON numbers.
func (n *Number) UnmarshalJSON(data []byte) error {
	return n.Decimal.UnmarshalJSON(data)
}

type itemDocument struct {
	ProductID string  `json:"product_id"`
	Quantity  Number  `json:"quantity"`
	Price     Number  `json:"price"`
	UnitPrice *Number `json:"unit_price,omitempty"`
}

// price resolves the legacy unit_price field written by older producers.
func (i itemDocument) price() decimal.Decimal {
	if i.Price.IsZero() && i.UnitPrice != nil {
		return i.UnitPrice.Decimal
	}
	return i.Price.Decimal
}

type fulfillmentDocument struct {
	FulfillmentCenter string    `json:"fulfillment_center"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
	ShippingMethod    string    `json:"shipping_method"`
	ItemsFulfilled    int       `json:"items_fulfilled"`
}

type metadataDocument struct {
	Source  string `json:"source"`
	Version string `json:"version"`
}

type summaryDocument struct {
	TotalItems    int    `json:"total_items"`
	TotalQuantity Number `json:"total_quantity"`
	Currency      string `json:"currency"`
}

type orderDocument struct {
	OrderID               string               `json:"order_id"`
	Status                string               `json:"status,omitempty"`
	CustomerName          string               `json:"customer_name,omitempty"`
	CustomerEmail         string               `json:"customer_email,omitempty"`
	Items                 []itemDocument       `json:"items"`
	TotalAmount           *Number              `json:"total_amount,omitempty"`
	CalculatedTotalAmount *Number              `json:"calculated_total_amount,omitempty"`
	RetryCount            int                  `json:"retry_count"`
	CreatedAt             *time.Time           `json:"created_at,omitempty"`
	ValidationTimestamp   *time.Time           `json:"validation_timestamp,omitempty"`
	StorageTimestamp      *time.Time           `json:"storage_timestamp,omitempty"`
	FulfillmentTimestamp  *time.Time           `json:"fulfillment_timestamp,omitempty"`
	UpdatedAt             *time.Time           `json:"updated_at,omitempty"`
	TrackingNumber        string               `json:"tracking_number,omitempty"`
	FulfillmentDetails    *fulfillmentDocument `json:"fulfillment_details,omitempty"`
	ErrorMessage          string               `json:"error_message,omitempty"`
	OrderMetadata         *metadataDocument    `json:"order_metadata,omitempty"`
	OrderSummary          *summaryDocument     `json:"order_summary,omitempty"`
	QueueMessageID        string               `json:"queue_message_id,omitempty"`
	DispatchClaimedAt     *time.Time           `json:"dispatch_claimed_at,omitempty"`
	DispatchedAt          *time.Time           `json:"dispatched_at,omitempty"`
}

// Encode serializes o in the given form.
func Encode(o *domain.Order, form Form) ([]byte, error) {
	if o == nil {
		return nil, fmt.Errorf("codec: nil order")
	}
	return json.Marshal(toDocument(o, form))
}

// EncodeStore serializes o for the order store and the archive.
func EncodeStore(o *domain.Order) ([]byte, error) {
	return Encode(o, FormStore)
}

// EncodeWire serializes o for the fulfillment queue.
func EncodeWire(o *domain.Order) ([]byte, error) {
	return Encode(o, FormWire)
}

// Decode parses an order document in either form.
func Decode(data []byte) (*domain.Order, error) {
	var doc orderDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.OrderID == "" {
		return nil, fmt.Errorf("order document has no order_id")
	}
	return fromDocument(&doc), nil
}

// DecodeMessage parses a queue message body. The body is either an order
// object or a JSON string whose content is an order object.
func DecodeMessage(body []byte) (*domain.Order, error) {
	payload, err := UnwrapBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	order, err := Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	return order, nil
}

// UnwrapBody returns the inner JSON of a double-encoded body, or the body itself.
func UnwrapBody(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return trimmed, nil
	}
	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return nil, err
	}
	return []byte(inner), nil
}

func toDocument(o *domain.Order, form Form) *orderDocument {
	doc := &orderDocument{
		OrderID:              o.OrderID,
		Status:               string(o.Status),
		CustomerName:         o.CustomerName,
		CustomerEmail:        o.CustomerEmail,
		Items:                make([]itemDocument, 0, len(o.Items)),
		RetryCount:           o.RetryCount,
		CreatedAt:            o.CreatedAt,
		ValidationTimestamp:  o.ValidationTimestamp,
		StorageTimestamp:     o.StorageTimestamp,
		FulfillmentTimestamp: o.FulfillmentTimestamp,
		UpdatedAt:            o.UpdatedAt,
		TrackingNumber:       o.TrackingNumber,
		ErrorMessage:         o.ErrorMessage,
		QueueMessageID:       o.QueueMessageID,
		DispatchClaimedAt:    o.DispatchClaimedAt,
		DispatchedAt:         o.DispatchedAt,
	}

	for _, item := range o.Items {
		doc.Items = append(doc.Items, itemDocument{
			ProductID: item.ProductID,
			Quantity:  newNumber(item.Quantity, form),
			Price:     newNumber(item.Price, form),
		})
	}

	if o.TotalAmount != nil {
		total := newNumber(*o.TotalAmount, form)
		doc.TotalAmount = &total
	}
	calculated := newNumber(o.CalculatedTotalAmount, form)
	doc.CalculatedTotalAmount = &calculated

	if d := o.FulfillmentDetails; d != nil {
		doc.FulfillmentDetails = &fulfillmentDocument{
			FulfillmentCenter: d.FulfillmentCenter,
			EstimatedDelivery: d.EstimatedDelivery,
			ShippingMethod:    d.ShippingMethod,
			ItemsFulfilled:    d.ItemsFulfilled,
		}
	}
	if m := o.OrderMetadata; m != nil {
		doc.OrderMetadata = &metadataDocument{Source: m.Source, Version: m.Version}
	}
	if s := o.OrderSummary; s != nil {
		doc.OrderSummary = &summaryDocument{
			TotalItems:    s.TotalItems,
			TotalQuantity: newNumber(s.TotalQuantity, form),
			Currency:      s.Currency,
		}
	}

	return doc
}

func fromDocument(doc *orderDocument) *domain.Order {
	o := &domain.Order{
		OrderID:              doc.OrderID,
		Status:               domain.Status(doc.Status),
		CustomerName:         doc.CustomerName,
		CustomerEmail:        doc.CustomerEmail,
		Items:                make([]domain.Item, 0, len(doc.Items)),
		RetryCount:           doc.RetryCount,
		CreatedAt:            doc.CreatedAt,
		ValidationTimestamp:  doc.ValidationTimestamp,
		StorageTimestamp:     doc.StorageTimestamp,
		FulfillmentTimestamp: doc.FulfillmentTimestamp,
		UpdatedAt:            doc.UpdatedAt,
		TrackingNumber:       doc.TrackingNumber,
		ErrorMessage:         doc.ErrorMessage,
		QueueMessageID:       doc.QueueMessageID,
		DispatchClaimedAt:    doc.DispatchClaimedAt,
		DispatchedAt:         doc.DispatchedAt,
	}

	for _, item := range doc.Items {
		o.Items = append(o.Items, domain.Item{
			ProductID: item.ProductID,
			Quantity:  item.Quantity.Decimal,
			Price:     item.price(),
		})
	}

	if doc.TotalAmount != nil {
		total := doc.TotalAmount.Decimal
		o.TotalAmount = &total
	}
	if doc.CalculatedTotalAmount != nil {
		o.CalculatedTotalAmount = doc.CalculatedTotalAmount.Decimal
	} else {
		o.CalculatedTotalAmount = domain.CalculateTotal(o.Items)
	}

	if d := doc.FulfillmentDetails; d != nil {
		o.FulfillmentDetails = &domain.FulfillmentDetails{
			FulfillmentCenter: d.FulfillmentCenter,
			EstimatedDelivery: d.EstimatedDelivery,
			ShippingMethod:    d.ShippingMethod,
			ItemsFulfilled:    d.ItemsFulfilled,
		}
	}
	if m := doc.OrderMetadata; m != nil {
		o.OrderMetadata = &domain.OrderMetadata{Source: m.Source, Version: m.Version}
	}
	if s := doc.OrderSummary; s != nil {
		o.OrderSummary = &domain.OrderSummary{
			TotalItems:    s.TotalItems,
			TotalQuantity: s.TotalQuantity.Decimal,
			Currency:      s.Currency,
		}
	}

	return o
}
