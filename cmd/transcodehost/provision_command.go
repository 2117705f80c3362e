package main

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"transcodehost/internal/config"
	"transcodehost/internal/logging"
	"transcodehost/internal/platform"
	"transcodehost/internal/provision"
)

func newProvisionCommand(ctx *commandContext) *cobra.Command {
	var rootFlag string
	var extractorFlag string

	cmd := &cobra.Command{
		Use:   "provision <win|mac|linux>",
		Short: "Extract and verify the ffmpeg bundle for a platform",
		Long: "Extracts <root>/ffmpeg<platform>.zip into <root>/ffmpeg<platform>/, flattens a single\n" +
			"wrapper directory, deletes the archive and verifies ffmpeg and ffprobe are present.\n" +
			"When the archive is absent the existing bundle is verified instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := platform.Parse(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			root := cfg.Paths.FFmpegRoot
			if trimmed := strings.TrimSpace(rootFlag); trimmed != "" {
				if root, err = config.ExpandPath(trimmed); err != nil {
					return fmt.Errorf("resolve --root: %w", err)
				}
			}
			mode := cfg.Provision.Extractor
			if trimmed := strings.TrimSpace(extractorFlag); trimmed != "" {
				mode = trimmed
			}
			extractor, err := provision.SelectExtractor(mode, runtime.GOOS)
			if err != nil {
				return err
			}

			provisioner := provision.New(root,
				provision.WithExtractor(extractor),
				provision.WithLogger(logger),
				provision.WithLockTimeout(cfg.LockTimeout()),
				provision.WithLockPath(cfg.ProvisionLockPath()),
			)
			bundle, err := provisioner.Provision(cmd.Context(), tag)
			if err != nil {
				var verr *provision.VerificationError
				if errors.As(err, &verr) {
					for _, path := range verr.Missing {
						logger.Error("Missing: "+path,
							logging.String(logging.FieldEventType, "binary_missing"),
							logging.String(logging.FieldPlatform, tag.String()),
						)
					}
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provisioned %s bundle in %s\n", tag, bundle.Dir)
			for _, path := range bundle.Paths() {
				fmt.Fprintf(out, "  %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rootFlag, "root", "", "Bundle root directory (defaults to paths.ffmpeg_root)")
	cmd.Flags().StringVar(&extractorFlag, "extractor", "", "Extractor to use: auto, native or builtin (defaults to provision.extractor)")
	return cmd
}
