package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	orderHTTP "github.com/allisson/orderflow/internal/order/http"
	"github.com/allisson/orderflow/internal/order/http/dto"
	orderUseCase "github.com/allisson/orderflow/internal/order/usecase"
)

// RunSubmitOrder reads one order as JSON from streams.Reader and runs it through
// validation and storage, the same way the HTTP ingress does.
func RunSubmitOrder(
	ctx context.Context,
	submitter orderHTTP.OrderSubmitter,
	logger *slog.Logger,
	streams IOTuple,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	body, err := dto.DecodeOrderSubmission(streams.Reader)
	if err != nil {
		return fmt.Errorf("failed to read order: %w", err)
	}

	submission := dto.NewOrderSubmission(body, uuid.NewString(), time.Now())
	result, err := submitter.Submit(ctx, submission)
	if err != nil {
		return fmt.Errorf("failed to submit order: %w", err)
	}

	logger.Info("order submitted",
		slog.String("order_id", result.Order.OrderID),
		slog.Bool("duplicate", result.Duplicate),
	)

	if format == "json" {
		return writeJSON(streams.Writer, dto.MapStoreResultToSubmitResponse(result))
	}

	if result.Duplicate {
		_, err = fmt.Fprintf(streams.Writer, "Order %s was already stored (queue message %s)\n",
			result.Order.OrderID, result.QueueMessageID)
		return err
	}
	_, err = fmt.Fprintf(streams.Writer, "Order %s accepted (queue message %s)\n",
		result.Order.OrderID, result.QueueMessageID)
	return err
}

// RunRedrive republishes failed fulfillments once and reports how many were sent.
func RunRedrive(
	ctx context.Context,
	useCase orderUseCase.RedriveUseCase,
	logger *slog.Logger,
	out io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	count, err := useCase.Redrive(ctx)
	if err != nil {
		return fmt.Errorf("failed to redrive orders: %w", err)
	}

	logger.Info("redrive completed", slog.Int("count", count))

	if format == "json" {
		return writeJSON(out, map[string]interface{}{"republished": count})
	}
	_, err = fmt.Fprintf(out, "Republished %d order(s) to the fulfillment queue\n", count)
	return err
}

// RunListFailedOrders prints a page of the failed-order archive, most recent first.
func RunListFailedOrders(
	ctx context.Context,
	query orderUseCase.OrderQueryUseCase,
	out io.Writer,
	offset, limit int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("offset must be zero or positive, got: %d", offset)
	}
	if limit < 1 || limit > 100 {
		return fmt.Errorf("limit must be between 1 and 100, got: %d", limit)
	}

	failedOrders, err := query.ListFailedOrders(ctx, offset, limit)
	if err != nil {
		return fmt.Errorf("failed to list failed orders: %w", err)
	}

	if format == "json" {
		return writeJSON(out, dto.MapFailedOrdersToListResponse(failedOrders))
	}

	if len(failedOrders) == 0 {
		_, err = fmt.Fprintln(out, "No failed orders found")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER ID\tSTATUS\tSOURCE\tFAILED AT\tERROR")
	for _, failed := range failedOrders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			failed.OrderID,
			failed.Status,
			failed.FailureSource,
			failed.FailedAt.UTC().Format(time.RFC3339),
			failed.ErrorMessage,
		)
	}
	return w.Flush()
}
