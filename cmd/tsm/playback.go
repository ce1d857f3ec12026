package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/tsmusic/internal/core"
)

var errVolumeRequired = errors.New("volume value required")

type playbackFunc func(core.Service, context.Context, string) error

func simpleCommand(use string, short string, run playbackFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [bot]",
		Short: short,
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := app.withTimeout()
			defer cancel()
			if err := run(app.service, ctx, selectorArg(args)); err != nil {
				return err
			}
			return app.printer.Print(struct{}{})
		},
	}
}

func volumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vol [bot] <0..100|+n|-n>",
		Short: "Set volume",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			selector, arg, err := splitVolumeArgs(args)
			if err != nil {
				return err
			}
			ctx, cancel := app.withTimeout()
			defer cancel()
			result, err := app.service.SetVolume(ctx, selector, arg)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Example = "  tsm vol 40\n  tsm vol lounge +10\n  tsm vol -- -10"
	return cmd
}

func splitVolumeArgs(args []string) (string, string, error) {
	switch len(args) {
	case 1:
		if looksLikeVolume(args[0]) {
			return "", args[0], nil
		}
		return args[0], "", &core.CLIError{Code: core.ExitUsage, Msg: errVolumeRequired.Error()}
	case 2:
		return args[0], args[1], nil
	default:
		return "", "", &core.CLIError{Code: core.ExitUsage, Msg: errVolumeRequired.Error()}
	}
}

func looksLikeVolume(arg string) bool {
	if arg == "" {
		return false
	}
	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		return true
	}
	return arg[0] >= '0' && arg[0] <= '9'
}
