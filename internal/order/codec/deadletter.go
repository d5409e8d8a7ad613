package codec

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// UnknownCustomer fills customer fields missing from dead-lettered order data.
const UnknownCustomer = "unknown"

// DeadLetterPayload is what could be recovered from a dead-lettered message.
// Every field is optional: the body may not be an order at all.
type DeadLetterPayload struct {
	OrderID       string
	OrderData     json.RawMessage
	CustomerName  string
	CustomerEmail string
	OrderValue    *decimal.Decimal
	ItemCount     *int
}

// HasOrderData reports whether an order object was found in the body.
func (p *DeadLetterPayload) HasOrderData() bool {
	return len(p.OrderData) > 0
}

type deadLetterItem struct {
	Quantity  *Number `json:"quantity"`
	Price     *Number `json:"price"`
	UnitPrice *Number `json:"unit_price"`
}

type deadLetterOrder struct {
	OrderID       string          `json:"order_id"`
	CustomerName  *string         `json:"customer_name"`
	CustomerEmail *string         `json:"customer_email"`
	Items         json.RawMessage `json:"items"`
}

// ParseDeadLetter recovers order data from a dead-lettered body. The body may
// be an order object, a JSON string containing one, or an envelope holding the
// order under "order_data". Parsing never fails; unrecognized bodies yield an
// empty payload.
func ParseDeadLetter(body []byte) *DeadLetterPayload {
	payload := &DeadLetterPayload{}

	data, err := UnwrapBody(body)
	if err != nil || len(data) == 0 || data[0] != '{' {
		return payload
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return payload
	}

	orderData := data
	if _, ok := fields["order_id"]; !ok {
		inner, ok := fields["order_data"]
		if !ok || !bytes.HasPrefix(bytes.TrimSpace(inner), []byte("{")) {
			return payload
		}
		orderData = inner
	}

	var order deadLetterOrder
	if err := json.Unmarshal(orderData, &order); err != nil {
		return payload
	}

	payload.OrderID = order.OrderID
	payload.OrderData = json.RawMessage(bytes.TrimSpace(orderData))
	payload.CustomerName = valueOr(order.CustomerName, UnknownCustomer)
	payload.CustomerEmail = valueOr(order.CustomerEmail, UnknownCustomer)

	var items []deadLetterItem
	if len(order.Items) > 0 && json.Unmarshal(order.Items, &items) == nil {
		total := decimal.Zero
		for _, item := range items {
			total = total.Add(numberOr(item.Quantity).Mul(item.linePrice()))
		}
		count := len(items)
		payload.OrderValue = &total
		payload.ItemCount = &count
	}

	return payload
}

// linePrice prefers a non-zero unit_price over price.
func (i deadLetterItem) linePrice() decimal.Decimal {
	if i.UnitPrice != nil && !i.UnitPrice.IsZero() {
		return i.UnitPrice.Decimal
	}
	return numberOr(i.Price)
}

func numberOr(n *Number) decimal.Decimal {
	if n == nil {
		return decimal.Zero
	}
	return n.Decimal
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
