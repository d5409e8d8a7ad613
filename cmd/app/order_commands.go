package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/allisson/orderflow/cmd/app/commands"
	"github.com/allisson/orderflow/internal/app"
)

func getOrderCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "submit-order",
			Usage: "Submit one order read as JSON from stdin",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					pipeline, err := container.Pipeline()
					if err != nil {
						return fmt.Errorf("failed to initialize pipeline: %w", err)
					}

					return commands.RunSubmitOrder(
						ctx,
						pipeline,
						container.Logger(),
						commands.DefaultIO(),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "redrive",
			Usage: "Republish failed fulfillments below the retry ceiling once",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					useCase, err := container.RedriveUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize redrive use case: %w", err)
					}

					return commands.RunRedrive(
						ctx,
						useCase,
						container.Logger(),
						commands.DefaultIO().Writer,
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "list-failed-orders",
			Usage: "List archived failures, most recent first",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "offset",
					Aliases: []string{"o"},
					Value:   0,
					Usage:   "Number of records to skip",
				},
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Value:   50,
					Usage:   "Maximum number of records (1-100)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					query, err := container.OrderQueryUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize order query use case: %w", err)
					}

					return commands.RunListFailedOrders(
						ctx,
						query,
						commands.DefaultIO().Writer,
						int(cmd.Int("offset")),
						int(cmd.Int("limit")),
						cmd.String("format"),
					)
				})
			},
		},
	}
}
