package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transcodehost/internal/config"
	"transcodehost/internal/deps"
	"transcodehost/internal/fileutil"
	"transcodehost/internal/platform"
	"transcodehost/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [win|mac|linux]",
		Short: "Show bundle binaries and ffmpeg resolution",
		Long: "Reports whether the provisioned bundle is complete for a platform (the host\n" +
			"platform by default) and which source each ffmpeg lookup step would use.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag := platform.Host()
			if len(args) == 1 {
				parsed, err := platform.Parse(args[0])
				if err != nil {
					return err
				}
				tag = parsed
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			layout := platform.NewLayout(cfg.Paths.FFmpegRoot, tag)
			bundle := layout.Bundle()

			fmt.Fprintf(out, "Bundle (%s)\n", tag)
			fmt.Fprintln(out, renderBundleTable(layout, bundle, colorize))

			fmt.Fprintln(out, "FFmpeg resolution")
			fmt.Fprintln(out, renderResolutionTable(cfg, tag, colorize))

			fmt.Fprintln(out, "Runtime dependencies")
			fmt.Fprintln(out, renderDepsTable(preflight.CheckSystemDeps(cfg, tag), colorize))

			if missing := bundle.Missing(); len(missing) > 0 {
				fmt.Fprintf(out, "Bundle incomplete: run `transcodehost provision %s`\n", tag)
			}
			return nil
		},
	}
}

func renderBundleTable(layout platform.Layout, bundle platform.Bundle, colorize bool) string {
	archivePresent, _ := fileutil.Exists(layout.ArchivePath())
	rows := [][]string{
		{"archive", layout.ArchivePath(), statusCell(archivePresent, colorize)},
	}
	missing := map[string]struct{}{}
	for _, path := range bundle.Missing() {
		missing[path] = struct{}{}
	}
	for _, path := range bundle.Paths() {
		_, absent := missing[path]
		rows = append(rows, []string{binaryLabel(bundle, path), path, statusCell(!absent, colorize)})
	}
	return renderTable([]string{"Item", "Path", "Present"}, rows, nil, colorize)
}

func renderResolutionTable(cfg *config.Config, tag platform.Tag, colorize bool) string {
	trace := deps.FFmpegChain(cfg.Transcoder.FFmpegPath, cfg.Paths.FFmpegRoot, tag).Trace()
	selected := -1
	for i, res := range trace {
		if res.Found {
			selected = i
			break
		}
	}
	rows := make([][]string, 0, len(trace))
	for i, res := range trace {
		path := res.Path
		if path == "" {
			path = "-"
		}
		marker := ""
		if i == selected {
			marker = "*"
		}
		rows = append(rows, []string{fmt.Sprintf("%d%s", i+1, marker), res.Source, path, statusCell(res.Found, colorize)})
	}
	return renderTable([]string{"Step", "Source", "Path", "Found"}, rows, []columnAlignment{alignRight}, colorize)
}

func renderDepsTable(statuses []deps.Status, colorize bool) string {
	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		detail := status.Command
		if !status.Available {
			detail = strings.TrimSpace(status.Detail)
		}
		source := status.Source
		if source == "" {
			source = "-"
		}
		rows = append(rows, []string{status.Name, source, detail, yesNo(status.Optional), statusCell(status.Available, colorize)})
	}
	return renderTable([]string{"Dependency", "Source", "Detail", "Optional", "Available"}, rows, nil, colorize)
}

func binaryLabel(bundle platform.Bundle, path string) string {
	if path == bundle.FFprobe {
		return "ffprobe"
	}
	return "ffmpeg"
}
