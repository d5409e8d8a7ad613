package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gocloud.dev/docstore"
	_ "gocloud.dev/docstore/awsdynamodb/v2" // registers dynamodb://
	_ "gocloud.dev/docstore/memdocstore" // registers mem://
	"gocloud.dev/gcerrors"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/domain"
)

// Supported docstore providers.
const (
	DocstoreProviderMem      = "mem"
	DocstoreProviderDynamoDB = "dynamodb"
)

// keyField is the partition key of both collections.
const keyField = "order_id"

// CollectionURL builds the gocloud.dev/docstore URL of a collection keyed by order_id.
func CollectionURL(provider, name string) (string, error) {
	switch provider {
	case DocstoreProviderMem:
		return fmt.Sprintf("mem://%s/%s", name, keyField), nil
	case DocstoreProviderDynamoDB:
		return fmt.Sprintf("dynamodb://%s?partition_key=%s", name, keyField), nil
	default:
		return "", fmt.Errorf("unsupported docstore provider: %s", provider)
	}
}

// OpenCollection opens the named collection with the given provider.
func OpenCollection(ctx context.Context, provider, name string) (*docstore.Collection, error) {
	url, err := CollectionURL(provider, name)
	if err != nil {
		return nil, err
	}
	coll, err := docstore.OpenCollection(ctx, url)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open collection "+name)
	}
	return coll, nil
}

// docstoreOrder is the collection item of a live order. Status, retry count
// and update time are lifted out of the document so queries can filter on them.
// DocstoreRevision is maintained by the driver and makes Replace conditional.
type docstoreOrder struct {
	OrderID          string    `docstore:"order_id"`
	Status           string    `docstore:"status"`
	RetryCount       int       `docstore:"retry_count"`
	UpdatedAt        time.Time `docstore:"updated_at"`
	Document         string    `docstore:"document"`
	Version          int64     `docstore:"version"`
	DocstoreRevision any
}

func newDocstoreOrder(order *domain.Order) (*docstoreOrder, error) {
	row, err := newOrderRow(order)
	if err != nil {
		return nil, err
	}
	item := &docstoreOrder{
		OrderID:    order.OrderID,
		Status:     string(order.Status),
		RetryCount: order.RetryCount,
		Document:   row.document,
		Version:    order.Version,
	}
	if row.updatedAt != nil {
		item.UpdatedAt = row.updatedAt.UTC()
	}
	return item, nil
}

// DocstoreOrderRepository implements live order persistence on a gocloud.dev/docstore collection.
type DocstoreOrderRepository struct {
	coll *docstore.Collection
}

// Create inserts order at domain.InitialVersion and maps an existing key to
// domain.ErrDuplicateOrder.
func (d *DocstoreOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	item, err := newDocstoreOrder(order)
	if err != nil {
		return err
	}
	item.Version = domain.InitialVersion
	if err := d.coll.Create(ctx, item); err != nil {
		if gcerrors.Code(err) == gcerrors.AlreadyExists {
			return domain.ErrDuplicateOrder
		}
		return apperrors.Wrap(err, "failed to create order")
	}
	return nil
}

// Update replaces order if the stored version still equals order.Version and
// bumps the version. The replace carries the revision read alongside the
// version, so a write that lands in between makes it fail. A missing record
// or a newer version yields domain.ErrConcurrentUpdate.
func (d *DocstoreOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	current := &docstoreOrder{OrderID: order.OrderID}
	if err := d.coll.Get(ctx, current); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return domain.ErrConcurrentUpdate
		}
		return apperrors.Wrap(err, "failed to get order for update")
	}
	if current.Version != order.Version {
		return domain.ErrConcurrentUpdate
	}

	item, err := newDocstoreOrder(order)
	if err != nil {
		return err
	}
	item.Version = order.Version + 1
	item.DocstoreRevision = current.DocstoreRevision

	if err := d.coll.Replace(ctx, item); err != nil {
		switch gcerrors.Code(err) {
		case gcerrors.FailedPrecondition, gcerrors.NotFound:
			return domain.ErrConcurrentUpdate
		}
		return apperrors.Wrap(err, "failed to update order")
	}
	return nil
}

// GetByID retrieves an order by its order_id.
func (d *DocstoreOrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	item := &docstoreOrder{OrderID: orderID}
	if err := d.coll.Get(ctx, item); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, domain.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get order by id")
	}
	return decodeVersionedOrder([]byte(item.Document), item.Version)
}

// ListPendingRetry returns failed fulfillments below the retry ceiling. The
// collection offers no row locks, so concurrent redrives may both pick an order.
func (d *DocstoreOrderRepository) ListPendingRetry(
	ctx context.Context,
	olderThan time.Time,
	limit int,
) ([]*domain.Order, error) {
	iter := d.coll.Query().
		Where("status", "=", string(domain.StatusFulfillmentFailed)).
		Where("retry_count", "<", domain.MaxFulfillmentRetries).
		Where("updated_at", "<", olderThan.UTC()).
		Limit(limit).
		Get(ctx)
	defer iter.Stop()

	orders := make([]*domain.Order, 0)
	for {
		var item docstoreOrder
		err := iter.Next(ctx, &item)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to list orders pending retry")
		}
		order, err := decodeVersionedOrder([]byte(item.Document), item.Version)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// NewDocstoreOrderRepository creates a new docstore order repository instance.
func NewDocstoreOrderRepository(coll *docstore.Collection) *DocstoreOrderRepository {
	return &DocstoreOrderRepository{coll: coll}
}
