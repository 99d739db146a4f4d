package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chapterreel/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var projectID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), projectID, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderRunsTable(runs, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Only show runs for this project id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show details for a single run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				run, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					if errors.Is(err, history.ErrNotFound) {
						return fmt.Errorf("run %s not found", args[0])
					}
					return err
				}
				printRunDetail(cmd.OutOrStdout(), run, time.Now())
				return nil
			})
		},
	}
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errors.New("run history is disabled (set history.enabled = true)")
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func renderRunsTable(runs []history.Run, now time.Time) string {
	headers := []string{"Run", "Project", "Status", "Started", "Elapsed", "Chapters", "Detail"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortRunID(run.RunID),
			valueOrDash(run.ProjectID),
			string(run.Status),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatDuration(run.Elapsed(now)),
			strconv.Itoa(run.Chapters),
			runDetail(run),
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
	return renderTable(headers, rows, aligns)
}

func printRunDetail(out io.Writer, run history.Run, now time.Time) {
	fmt.Fprintf(out, "Run:        %s\n", run.RunID)
	fmt.Fprintf(out, "Project:    %s\n", valueOrDash(run.ProjectID))
	fmt.Fprintf(out, "Root:       %s\n", valueOrDash(run.ProjectRoot))
	fmt.Fprintf(out, "Status:     %s\n", run.Status)
	fmt.Fprintf(out, "Chapters:   %d\n", run.Chapters)
	fmt.Fprintf(out, "Started:    %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "Elapsed:    %s\n", formatDuration(run.Elapsed(now)))
	if run.ArtifactPath != "" {
		fmt.Fprintf(out, "Artifact:   %s\n", run.ArtifactPath)
	}
	if run.FailedStage != "" {
		fmt.Fprintf(out, "Stage:      %s\n", run.FailedStage)
	}
	if run.ChapterIndex != nil {
		fmt.Fprintf(out, "Chapter:    %d\n", *run.ChapterIndex)
	}
	if run.Error != "" {
		fmt.Fprintf(out, "Error:      %s\n", run.Error)
	}
	if run.Warnings > 0 {
		fmt.Fprintf(out, "Warnings:   %d\n", run.Warnings)
	}
}

func runDetail(run history.Run) string {
	switch run.Status {
	case history.StatusSucceeded:
		return run.ArtifactPath
	case history.StatusRunning:
		return ""
	}
	detail := run.FailedStage
	if run.ChapterIndex != nil {
		detail += fmt.Sprintf(" (chapter %d)", *run.ChapterIndex)
	}
	return strings.TrimSpace(detail)
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
