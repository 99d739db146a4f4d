package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"chapterreel/internal/manifest"
	"chapterreel/internal/media/duration"
	"chapterreel/internal/plan"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <project-root>",
		Short: "Preview chapter lengths without rendering",
		Long: "Load the manifest, measure every speech and music file, and print the\n" +
			"length each chapter will render at. A chapter ends when the first of its\n" +
			"image hold, speech track, or music bed ends.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			root, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve project root: %w", err)
			}
			project, err := manifest.Load(root)
			if err != nil {
				return err
			}

			prober := duration.NewProber(cfg.FFprobeBinary(), logger)
			p, err := plan.Build(cmd.Context(), root, project, cfg.Encoder.FrameRate, prober)
			if err != nil {
				return fmt.Errorf("plan %s: %w", project.ProjectID, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project %s (%d chapters)\n", p.ProjectID, len(p.Chapters))
			fmt.Fprintln(out, renderPlanTable(p))
			return nil
		},
	}
}

func renderPlanTable(p plan.Plan) string {
	headers := []string{"#", "Title", "Image", "Speech", "Music", "Expected", "Limited By", "Speech Cut"}
	rows := make([][]string, 0, len(p.Chapters))
	var declared time.Duration
	for _, ch := range p.Chapters {
		declared += ch.Declared
		music := "-"
		if ch.HasMusic {
			music = formatDuration(ch.Music)
		}
		cut := "-"
		if ch.Truncated > 0 {
			cut = formatDuration(ch.Truncated)
		}
		rows = append(rows, []string{
			strconv.Itoa(ch.Index),
			ch.Title,
			formatDuration(ch.Declared),
			formatDuration(ch.Speech),
			music,
			formatDuration(ch.Expected),
			string(ch.Limiter),
			cut,
		})
	}
	footer := []string{"", "Total", formatDuration(declared), "", "", formatDuration(p.Total), "", ""}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignRight}
	return renderTableWithFooter(headers, rows, footer, aligns)
}

func formatDuration(d time.Duration) string {
	return d.Round(10 * time.Millisecond).String()
}
