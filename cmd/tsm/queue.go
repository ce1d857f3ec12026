package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// addTimeout covers the daemon's metadata lookup before it replies.
const addTimeout = 45 * time.Second

func queueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "queue [bot]",
		Short: "Show the current track and queue",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := app.withTimeout()
			defer cancel()
			result, err := app.service.Queue(ctx, selectorArg(args))
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}

func addCommand() *cobra.Command {
	var bot string

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a YouTube or audio URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			timeout := app.timeout
			if timeout < addTimeout {
				timeout = addTimeout
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			result, err := app.service.Add(ctx, bot, args[0])
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().StringVar(&bot, "bot", "", "bot selector")
	return cmd
}

func clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [bot]",
		Short: "Remove all queued tracks",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := app.withTimeout()
			defer cancel()
			result, err := app.service.Clear(ctx, selectorArg(args))
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}
