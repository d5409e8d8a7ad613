// Package repository implements persistence for live orders and the failed-order
// archive. PostgreSQL and MySQL store the exact-decimal document next to the
// columns the queries filter on; the docstore backends keep the same document
// in a gocloud.dev/docstore collection.
package repository

import (
	"database/sql"
	"time"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/codec"
	"github.com/allisson/orderflow/internal/order/domain"
)

// Default table names created by the bundled migrations.
const (
	DefaultOrdersTable       = "orders"
	DefaultFailedOrdersTable = "failed_orders"
)

// orderRow holds the column values written for a live order.
type orderRow struct {
	document  string
	createdAt *time.Time
	updatedAt *time.Time
}

func newOrderRow(order *domain.Order) (*orderRow, error) {
	document, err := codec.EncodeStore(order)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode order")
	}
	return &orderRow{
		document:  string(document),
		createdAt: order.CreatedAt,
		updatedAt: order.UpdatedAt,
	}, nil
}

func decodeOrder(document []byte) (*domain.Order, error) {
	order, err := codec.Decode(document)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to decode order")
	}
	return order, nil
}

func decodeVersionedOrder(document []byte, version int64) (*domain.Order, error) {
	order, err := decodeOrder(document)
	if err != nil {
		return nil, err
	}
	order.Version = version
	return order, nil
}

func decodeFailedOrder(document []byte) (*domain.FailedOrder, error) {
	failed, err := codec.DecodeFailedOrder(document)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to decode failed order")
	}
	return failed, nil
}

// scanDocuments reads (document, version) rows.
func scanDocuments(rows *sql.Rows) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0)
	for rows.Next() {
		var document []byte
		var version int64
		if err := rows.Scan(&document, &version); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan order")
		}
		order, err := decodeVersionedOrder(document, version)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate orders")
	}
	return orders, nil
}

func scanFailedDocuments(rows *sql.Rows) ([]*domain.FailedOrder, error) {
	failedOrders := make([]*domain.FailedOrder, 0)
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan failed order")
		}
		failed, err := decodeFailedOrder(document)
		if err != nil {
			return nil, err
		}
		failedOrders = append(failedOrders, failed)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate failed orders")
	}
	return failedOrders, nil
}
