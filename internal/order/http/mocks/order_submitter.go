// Package mocks provides mock implementations for testing HTTP handlers.
package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/orderflow/internal/order/domain"
)

// MockOrderSubmitter is a mock implementation of OrderSubmitter for testing.
type MockOrderSubmitter struct {
	mock.Mock
}

// NewMockOrderSubmitter creates a MockOrderSubmitter that asserts its expectations on cleanup.
func NewMockOrderSubmitter(t *testing.T) *MockOrderSubmitter {
	m := &MockOrderSubmitter{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Submit mocks the Submit method of OrderSubmitter.
func (m *MockOrderSubmitter) Submit(ctx context.Context, raw map[string]any) (*domain.StoreResult, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StoreResult), args.Error(1)
}
