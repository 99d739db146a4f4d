package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chapterreel/internal/history"
	"chapterreel/internal/logging"
	"chapterreel/internal/pipeline"
	"chapterreel/internal/preflight"
)

func runProject(cmd *cobra.Command, ctx *commandContext, root string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.logger()
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, failed := range preflight.Failed(preflight.RunAll(runCtx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldErrorHint, "run `chapterreel check` for details"),
			logging.String(logging.FieldImpact, "the run may fail"),
		)
	}

	opts := []pipeline.Option{}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check history.path or disable history"),
				logging.String(logging.FieldImpact, "this run will not be recorded"),
			)
		} else {
			defer store.Close()
			opts = append(opts, pipeline.WithRecorder(store))
		}
	}

	controller := pipeline.New(cfg, newRunner(logger), logger, opts...)
	result, err := controller.Run(runCtx, root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, warning := range result.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", warning)
	}
	fmt.Fprintln(out, result.ArtifactPath)
	return nil
}
