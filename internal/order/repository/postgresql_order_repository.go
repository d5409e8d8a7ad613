package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/allisson/orderflow/internal/database"
	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/domain"
)

// PostgreSQLOrderRepository implements live order persistence for PostgreSQL databases.
type PostgreSQLOrderRepository struct {
	db    *sql.DB
	table string
}

// Create inserts order at domain.InitialVersion unless a record with its order_id exists.
func (p *PostgreSQLOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	querier := database.GetTx(ctx, p.db)

	row, err := newOrderRow(order)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (order_id, status, retry_count, document, created_at, updated_at, version)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (order_id) DO NOTHING`, p.table)

	result, err := querier.ExecContext(
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
		return apperrors.Wrap(err, "failed to create order")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return domain.ErrDuplicateOrder
	}
	return nil
}

// Update replaces order if the stored version still equals order.Version and
// bumps the version. A missing record or a newer version yields
// domain.ErrConcurrentUpdate.
func (p *PostgreSQLOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	querier := database.GetTx(ctx, p.db)

	row, err := newOrderRow(order)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET
			  status = $1,
			  retry_count = $2,
			  document = $3,
			  created_at = $4,
			  updated_at = $5,
			  version = version + 1
			  WHERE order_id = $6 AND version = $7`, p.table)

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
func (p *PostgreSQLOrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	querier := database.GetTx(ctx, p.db)

	query := fmt.Sprintf(`SELECT document, version FROM %s WHERE order_id = $1`, p.table)

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

// ListPendingRetry returns failed fulfillments below the retry ceiling, oldest
// first. Inside a transaction the rows are locked and rows locked by a
// concurrent redrive are skipped.
func (p *PostgreSQLOrderRepository) ListPendingRetry(
	ctx context.Context,
	olderThan time.Time,
	limit int,
) ([]*domain.Order, error) {
	querier := database.GetTx(ctx, p.db)

	query := fmt.Sprintf(`SELECT document, version FROM %s
			  WHERE status = $1 AND retry_count < $2 AND updated_at < $3
			  ORDER BY updated_at ASC
			  LIMIT $4
			  FOR UPDATE SKIP LOCKED`, p.table)

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

// NewPostgreSQLOrderRepository creates a new PostgreSQL order repository instance.
func NewPostgreSQLOrderRepository(db *sql.DB, table string) *PostgreSQLOrderRepository {
	return &PostgreSQLOrderRepository{db: db, table: pq.QuoteIdentifier(table)}
}
