package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	"github.com/allisson/orderflow/internal/order/domain"
	appValidation "github.com/allisson/orderflow/internal/validation"
)

// validatorUseCase adapts ValidateOrder to the ValidatorUseCase interface.
type validatorUseCase struct {
	now func() time.Time
}

// Validate admits a raw submission.
func (v *validatorUseCase) Validate(_ context.Context, raw map[string]any) (*domain.Order, error) {
	return ValidateOrder(raw, v.now().UTC())
}

// NewValidatorUseCase creates a new ValidatorUseCase.
func NewValidatorUseCase() ValidatorUseCase {
	return &validatorUseCase{now: time.Now}
}

// ValidateOrder maps a raw submission to an order with status VALIDATED and a
// computed total. Rules run in a fixed order and the first failure is returned
// as a *domain.ValidationError. The caller total, when given, is checked for
// positivity only and is never reconciled with the computed total.
func ValidateOrder(raw map[string]any, now time.Time) (*domain.Order, error) {
	if raw == nil {
		return nil, domain.NewValidationError("order", "must be an object")
	}

	order := &domain.Order{}
	var err error

	if order.OrderID, err = requiredString(raw, "order_id"); err != nil {
		return nil, err
	}
	if order.CustomerName, err = requiredString(raw, "customer_name"); err != nil {
		return nil, err
	}
	if order.CustomerEmail, err = requiredString(raw, "customer_email"); err != nil {
		return nil, err
	}
	if err := fieldError("items", validation.Validate(raw["items"], validation.Required)); err != nil {
		return nil, err
	}

	if err := fieldError("customer_email", validation.Validate(order.CustomerEmail, appValidation.WeakEmail)); err != nil {
		return nil, err
	}

	rawItems, ok := raw["items"].([]any)
	if !ok || len(rawItems) == 0 {
		return nil, domain.NewValidationError("items", "must be a non-empty list")
	}
	order.Items = make([]domain.Item, 0, len(rawItems))
	for i, rawItem := range rawItems {
		item, err := validateItem(i, rawItem)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if value, present := raw["total_amount"]; present && value != nil {
		total, err := positiveNumber("total_amount", value)
		if err != nil {
			return nil, err
		}
		order.TotalAmount = &total
	}

	if value, present := raw["created_at"]; present && value != nil {
		createdAt, err := timestamp("created_at", value)
		if err != nil {
			return nil, err
		}
		if createdAt.After(now) {
			return nil, domain.NewValidationError("created_at", "must not be later than the validation time")
		}
		order.CreatedAt = &createdAt
	}

	if value, ok := raw["order_metadata"].(map[string]any); ok {
		source, _ := value["source"].(string)
		version, _ := value["version"].(string)
		order.OrderMetadata = &domain.OrderMetadata{Source: source, Version: version}
	}

	order.Status = domain.StatusValidated
	order.ValidationTimestamp = &now
	order.CalculatedTotalAmount = domain.CalculateTotal(order.Items)

	return order, nil
}

func validateItem(index int, raw any) (domain.Item, error) {
	prefix := fmt.Sprintf("items[%d]", index)

	fields, ok := raw.(map[string]any)
	if !ok {
		return domain.Item{}, domain.NewValidationError(prefix, "must be an object")
	}

	productID, err := requiredString(fields, "product_id")
	if err != nil {
		return domain.Item{}, prefixed(prefix, err)
	}
	if quantity, present := fields["quantity"]; !present || quantity == nil {
		return domain.Item{}, domain.NewValidationError(prefix+".quantity", "is required")
	}

	price, hasPrice := fields["price"]
	unitPrice, hasUnitPrice := fields["unit_price"]
	hasPrice = hasPrice && price != nil
	hasUnitPrice = hasUnitPrice && unitPrice != nil
	switch {
	case hasPrice && hasUnitPrice:
		return domain.Item{}, domain.NewValidationError(prefix+".price", "only one of price or unit_price may be given")
	case !hasPrice && !hasUnitPrice:
		return domain.Item{}, domain.NewValidationError(prefix+".price", "is required")
	case hasUnitPrice:
		price = unitPrice
	}

	quantity, err := positiveNumber(prefix+".quantity", fields["quantity"])
	if err != nil {
		return domain.Item{}, err
	}
	amount, err := positiveNumber(prefix+".price", price)
	if err != nil {
		return domain.Item{}, err
	}

	return domain.Item{ProductID: productID, Quantity: quantity, Price: amount}, nil
}

func requiredString(fields map[string]any, name string) (string, error) {
	value, present := fields[name]
	if !present || value == nil {
		return "", domain.NewValidationError(name, "is required")
	}
	s, ok := value.(string)
	if !ok {
		return "", domain.NewValidationError(name, "must be a string")
	}
	if err := validation.Validate(s, validation.Required, appValidation.NotBlank); err != nil {
		return "", fieldError(name, err)
	}
	return s, nil
}

// positiveNumber accepts JSON numbers only. Strings such as "5" are rejected
// even when they parse.
func positiveNumber(field string, value any) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch v := value.(type) {
	case json.Number:
		parsed, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, domain.NewValidationError(field, "must be a number")
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(v)
	case float32:
		d = decimal.NewFromFloat32(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case decimal.Decimal:
		d = v
	default:
		return decimal.Zero, domain.NewValidationError(field, "must be a number")
	}

	if err := validation.Validate(d, appValidation.PositiveDecimal); err != nil {
		return decimal.Zero, fieldError(field, err)
	}
	return d, nil
}

func timestamp(field string, value any) (time.Time, error) {
	s, ok := value.(string)
	if !ok {
		return time.Time{}, domain.NewValidationError(field, "must be an RFC 3339 timestamp")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "must be an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}

// fieldError converts a jellydator rule error into a ValidationError for field.
func fieldError(field string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewValidationError(field, err.Error())
}

func prefixed(prefix string, err error) error {
	if ve, ok := err.(*domain.ValidationError); ok {
		return domain.NewValidationError(prefix+"."+ve.Field, ve.Reason)
	}
	return err
}
