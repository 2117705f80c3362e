package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"transcodehost/internal/host"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Supervise the transcoder until interrupted",
		Long: "Launches the transcoder entry point with the resolved ffmpeg paths and relaunches\n" +
			"it after every exit until SIGINT or SIGTERM is received.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			runCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			h, err := host.New(cfg, logger)
			if err != nil {
				return err
			}
			defer h.Close()

			if err := h.Run(runCtx); err != nil {
				if errors.Is(err, host.ErrAlreadyRunning) {
					return fmt.Errorf("%w (lock %s)", err, cfg.LockPath())
				}
				return err
			}
			return nil
		},
	}
}
