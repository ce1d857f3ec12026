package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/tsmusic/internal/core"
)

func lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List online music bots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := app.withTimeout()
			defer cancel()
			result, err := app.service.ListNodes(ctx)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}

func statusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status [bot]",
		Short: "Show player status",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			selector := selectorArg(args)
			if watch {
				return watchStatus(app, selector)
			}
			ctx, cancel := app.withTimeout()
			defer cancel()
			result, err := app.service.Status(ctx, selector)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "watch state and events")
	return cmd
}

func watchStatus(app *app, selector string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initialCtx, cancel := context.WithTimeout(ctx, app.timeout)
	initial, err := app.service.Status(initialCtx, selector)
	cancel()
	if err != nil {
		return err
	}
	if err := app.printer.Print(initial); err != nil {
		return err
	}

	bot, states, events, errs, err := app.service.Watch(ctx, selector)
	if err != nil {
		return err
	}

	for {
		select {
		case state, ok := <-states:
			if !ok {
				return nil
			}
			if err := app.printer.Print(core.StatusResult{Bot: bot, State: state}); err != nil {
				return err
			}
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := app.printer.Print(core.EventResult{BotID: bot.NodeID, Event: evt}); err != nil {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if err != nil {
				return core.WrapError(core.ExitRuntime, "watch", err)
			}
		}
	}
}
