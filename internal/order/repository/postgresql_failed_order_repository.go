package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/allisson/orderflow/internal/database"
	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/codec"
	"github.com/allisson/orderflow/internal/order/domain"
)

// PostgreSQLFailedOrderRepository implements archive persistence for PostgreSQL databases.
type PostgreSQLFailedOrderRepository struct {
	db    *sql.DB
	table string
}

// Save writes the archive record, replacing any record with the same order_id.
func (p *PostgreSQLFailedOrderRepository) Save(ctx context.Context, failed *domain.FailedOrder) error {
	querier := database.GetTx(ctx, p.db)

	document, err := codec.EncodeFailedOrder(failed)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode failed order")
	}

	query := fmt.Sprintf(`INSERT INTO %s (order_id, status, failure_source, failed_at, document)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (order_id) DO UPDATE SET
			  status = EXCLUDED.status,
			  failure_source = EXCLUDED.failure_source,
			  failed_at = EXCLUDED.failed_at,
			  document = EXCLUDED.document`, p.table)

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
func (p *PostgreSQLFailedOrderRepository) GetByOrderID(
	ctx context.Context,
	orderID string,
) (*domain.FailedOrder, error) {
	querier := database.GetTx(ctx, p.db)

	query := fmt.Sprintf(`SELECT document FROM %s WHERE order_id = $1`, p.table)

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
func (p *PostgreSQLFailedOrderRepository) List(ctx context.Context, offset, limit int) ([]*domain.FailedOrder, error) {
	querier := database.GetTx(ctx, p.db)

	query := fmt.Sprintf(`SELECT document FROM %s
			  ORDER BY failed_at DESC, order_id ASC
			  LIMIT $1 OFFSET $2`, p.table)

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list failed orders")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanFailedDocuments(rows)
}

// NewPostgreSQLFailedOrderRepository creates a new PostgreSQL archive repository instance.
func NewPostgreSQLFailedOrderRepository(db *sql.DB, table string) *PostgreSQLFailedOrderRepository {
	return &PostgreSQLFailedOrderRepository{db: db, table: pq.QuoteIdentifier(table)}
}
