// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/allisson/orderflow/internal/order/domain"
	appValidation "github.com/allisson/orderflow/internal/validation"
)

// IdempotencyKeyHeader names the optional header that deduplicates submissions.
const IdempotencyKeyHeader = "Idempotency-Key"

// ErrInvalidJSON is returned when a submission body is not a JSON object.
var ErrInvalidJSON = errors.New("invalid JSON in request body")

// DecodeOrderSubmission reads a JSON object from r. Numbers are kept as
// json.Number so prices reach the validator with their exact text.
func DecodeOrderSubmission(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrInvalidJSON
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("missing request body")
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var body map[string]any
	if err := decoder.Decode(&body); err != nil || body == nil {
		return nil, ErrInvalidJSON
	}
	return body, nil
}

// NewOrderSubmission stamps a received order with orderID, the receive time
// and status RECEIVED. Fields present in body take precedence, so a client may
// supply its own order_id.
func NewOrderSubmission(body map[string]any, orderID string, now time.Time) map[string]any {
	submission := map[string]any{
		"order_id":   orderID,
		"created_at": now.UTC().Format(time.RFC3339Nano),
		"status":     string(domain.StatusReceived),
	}
	maps.Copy(submission, body)
	return submission
}

// ValidateIdempotencyKey checks an Idempotency-Key header value.
func ValidateIdempotencyKey(key string) error {
	return validation.Validate(key,
		validation.Required,
		appValidation.NotBlank,
		validation.Length(1, 255),
	)
}
