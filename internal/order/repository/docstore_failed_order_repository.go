package repository

import (
	"context"
	"errors"
	"io"
	"time"

	"gocloud.dev/docstore"
	"gocloud.dev/gcerrors"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/codec"
	"github.com/allisson/orderflow/internal/order/domain"
)

// docstoreFailedOrder is the collection item of an archive record.
type docstoreFailedOrder struct {
	OrderID       string    `docstore:"order_id"`
	Status        string    `docstore:"status"`
	FailureSource string    `docstore:"failure_source"`
	FailedAt      time.Time `docstore:"failed_at"`
	Document      string    `docstore:"document"`
}

// DocstoreFailedOrderRepository implements archive persistence on a gocloud.dev/docstore collection.
type DocstoreFailedOrderRepository struct {
	coll *docstore.Collection
}

// Save writes the archive record, replacing any record with the same order_id.
func (d *DocstoreFailedOrderRepository) Save(ctx context.Context, failed *domain.FailedOrder) error {
	document, err := codec.EncodeFailedOrder(failed)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode failed order")
	}

	item := &docstoreFailedOrder{
		OrderID:       failed.OrderID,
		Status:        string(failed.Status),
		FailureSource: string(failed.FailureSource),
		FailedAt:      failed.FailedAt.UTC(),
		Document:      string(document),
	}
	if err := d.coll.Put(ctx, item); err != nil {
		return apperrors.Wrap(err, "failed to save failed order")
	}
	return nil
}

// GetByOrderID retrieves an archive record by its order_id.
func (d *DocstoreFailedOrderRepository) GetByOrderID(
	ctx context.Context,
	orderID string,
) (*domain.FailedOrder, error) {
	item := &docstoreFailedOrder{OrderID: orderID}
	if err := d.coll.Get(ctx, item); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, domain.ErrFailedOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get failed order by id")
	}
	return decodeFailedOrder([]byte(item.Document))
}

// List returns archive records, most recent failure first. Collections have
// no offset cursor, so skipped records are still read. DynamoDB needs an index
// on failed_at to order the query.
func (d *DocstoreFailedOrderRepository) List(ctx context.Context, offset, limit int) ([]*domain.FailedOrder, error) {
	iter := d.coll.Query().
		Where("failed_at", ">", time.Time{}).
		OrderBy("failed_at", docstore.Descending).
		Limit(offset + limit).
		Get(ctx)
	defer iter.Stop()

	failedOrders := make([]*domain.FailedOrder, 0, limit)
	for seen := 0; ; seen++ {
		var item docstoreFailedOrder
		err := iter.Next(ctx, &item)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to list failed orders")
		}
		if seen < offset {
			continue
		}
		failed, err := decodeFailedOrder([]byte(item.Document))
		if err != nil {
			return nil, err
		}
		failedOrders = append(failedOrders, failed)
	}
	return failedOrders, nil
}

// NewDocstoreFailedOrderRepository creates a new docstore archive repository instance.
func NewDocstoreFailedOrderRepository(coll *docstore.Collection) *DocstoreFailedOrderRepository {
	return &DocstoreFailedOrderRepository{coll: coll}
}
