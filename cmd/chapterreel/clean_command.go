package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chapterreel/internal/preflight"
	"chapterreel/internal/scratch"
)

const defaultStaleAge = 24 * time.Hour

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	var all bool
	var list bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove scratch directories left behind by interrupted runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if list {
				dirs, err := scratch.ListDirectories(cfg.Paths.ScratchDir)
				if err != nil {
					return fmt.Errorf("list scratch directories: %w", err)
				}
				if len(dirs) == 0 {
					fmt.Fprintln(out, "No scratch directories")
					return nil
				}
				rows := make([][]string, 0, len(dirs))
				for _, dir := range dirs {
					rows = append(rows, []string{
						dir.Name,
						preflight.FormatBytes(uint64(dir.Size)),
						formatDuration(time.Since(dir.ModTime).Round(time.Second)),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Directory", "Size", "Age"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight}))
				return nil
			}

			age := maxAge
			if !cmd.Flags().Changed("max-age") {
				age = time.Duration(cfg.Pipeline.StaleScratchHours) * time.Hour
				if age <= 0 {
					age = defaultStaleAge
				}
			}
			if all {
				age = 0
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			result := scratch.CleanStale(cmd.Context(), cfg.Paths.ScratchDir, age, logger)
			for _, path := range result.Removed {
				fmt.Fprintf(out, "removed %s\n", path)
			}
			fmt.Fprintf(out, "Removed %d scratch %s\n", len(result.Removed), pluralize(len(result.Removed), "directory", "directories"))
			if len(result.Skipped) > 0 {
				fmt.Fprintf(out, "Skipped %d in use by a running project\n", len(result.Skipped))
			}
			if len(result.Errors) > 0 {
				msgs := make([]string, 0, len(result.Errors))
				for _, e := range result.Errors {
					msgs = append(msgs, fmt.Sprintf("%s: %v", e.Path, e.Error))
				}
				return fmt.Errorf("clean scratch: %s", strings.Join(msgs, "; "))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", defaultStaleAge, "Remove directories older than this (defaults to pipeline.stale_scratch_hours)")
	cmd.Flags().BoolVar(&all, "all", false, "Remove every scratch directory not held by a running project")
	cmd.Flags().BoolVar(&list, "list", false, "List scratch directories instead of removing them")
	return cmd
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
