package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/allisson/orderflow/internal/database"
	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/domain"
)

// MySQLOrderRepository implements live order persistence for MySQL databases.
type MySQLOrderRepository struct {
	db    *sql.DB
	table string
}

// Create inserts order at domain.InitialVersion and maps a primary key
// violation to domain.ErrDuplicateOrder.
func (m *MySQLOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	querier := database.GetTx(ctx, m.db)

	row, err := newOrderRow(order)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (order_id, status, retry_count, document, created_at, updated_at, version)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`, m.table)

	_, err = querier.ExecContext(
		ctx,
		query,
		order.OrderID,
		string(order.Status),
		order.RetryCount,
		row.document,
		row.createdAt,
		row.updatedAt,
		domain.InitialVersion,
	)
	if err != nil {
		if database.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateOrder
		}
		return apperrors.Wrap(err, "failed to create order")
	}
	return nil
}

// Update replaces order if the stored version still equals order.Version and
// bumps the version. A missing record or a newer version yields
// domain.ErrConcurrentUpdate.
func (m *MySQLOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	querier := database.GetTx(ctx, m.db)

	row, err := newOrderRow(order)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET
			  status = ?,
			  retry_count = ?,
			  document = ?,
			  created_at = ?,
			  updated_at = ?,
			  version = version + 1
			  WHERE order_id = ? AND version = ?`, m.table)

	result, err := querier.ExecContext(
		ctx,
		query,
		string(order.Status),
		order.RetryCount,
		row.document,
		row.createdAt,
		row.updatedAt,
		order.OrderID,
		order.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update order")
	}

	// The version always changes, so a matched row is always reported as affected.
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

// GetByID retrieves an order by its order_id.
func (m *MySQLOrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	querier := database.GetTx(ctx, m.db)

	query := fmt.Sprintf(`SELECT document, version FROM %s WHERE order_id = ?`, m.table)

	var document []byte
	var version int64
	if err := querier.QueryRowContext(ctx, query, orderID).Scan(&document, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get order by id")
	}

	return decodeVersionedOrder(document, version)
}

// ListPendingRetry returns failed fulfillments below the retry ceiling, oldest first.
func (m *MySQLOrderRepository) ListPendingRetry(
	ctx context.Context,
	olderThan time.Time,
	limit int,
) ([]*domain.Order, error) {
	querier := database.GetTx(ctx, m.db)

	query := fmt.Sprintf(`SELECT document, version FROM %s
			  WHERE status = ? AND retry_count < ? AND updated_at < ?
			  ORDER BY updated_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`, m.table)

	rows, err := querier.QueryContext(
		ctx,
		query,
		string(domain.StatusFulfillmentFailed),
		domain.MaxFulfillmentRetries,
		olderThan,
		limit,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list orders pending retry")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanDocuments(rows)
}

// NewMySQLOrderRepository creates a new MySQL order repository instance.
func NewMySQLOrderRepository(db *sql.DB, table string) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db, table: quoteMySQLIdentifier(table)}
}

func quoteMySQLIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
