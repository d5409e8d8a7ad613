package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/allisson/orderflow/internal/database"
	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/codec"
	"github.com/allisson/orderflow/internal/order/domain"
)

// MySQLFailedOrderRepository implements archive persistence for MySQL databases.
type MySQLFailedOrderRepository struct {
	db    *sql.DB
	table string
}

// Save writes the archive record, replacing any record with the same order_id.
func (m *MySQLFailedOrderRepository) Save(ctx context.Context, failed *domain.FailedOrder) error {
	querier := database.GetTx(ctx, m.db)

	document, err := codec.EncodeFailedOrder(failed)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode failed order")
	}

	query := fmt.Sprintf(`INSERT INTO %s (order_id, status, failure_source, failed_at, document)
			  VALUES (?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			  status = VALUES(status),
			  failure_source = VALUES(failure_source),
			  failed_at = VALUES(failed_at),
			  document = VALUES(document)`, m.table)

	_, err = querier.ExecContext(
		ctx,
		query,
		failed.OrderID,
		string(failed.Status),
		string(failed.FailureSource),
		failed.FailedAt,
		string(document),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to save failed order")
	}
	return nil
}

// GetByOrderID retrieves an archive record by its order_id.
func (m *MySQLFailedOrderRepository) GetByOrderID(
	ctx context.Context,
	orderID string,
) (*domain.FailedOrder, error) {
	querier := database.GetTx(ctx, m.db)

	query := fmt.Sprintf(`SELECT document FROM %s WHERE order_id = ?`, m.table)

	var document []byte
	if err := querier.QueryRowContext(ctx, query, orderID).Scan(&document); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrFailedOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get failed order by id")
	}

	return decodeFailedOrder(document)
}

// List returns archive records, most recent failure first.
func (m *MySQLFailedOrderRepository) List(ctx context.Context, offset, limit int) ([]*domain.FailedOrder, error) {
	querier := database.GetTx(ctx, m.db)

	query := fmt.Sprintf(`SELECT document FROM %s
			  ORDER BY failed_at DESC, order_id ASC
			  LIMIT ? OFFSET ?`, m.table)

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list failed orders")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanFailedDocuments(rows)
}

// NewMySQLFailedOrderRepository creates a new MySQL archive repository instance.
func NewMySQLFailedOrderRepository(db *sql.DB, table string) *MySQLFailedOrderRepository {
	return &MySQLFailedOrderRepository{db: db, table: quoteMySQLIdentifier(table)}
}
