package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"chapterreel/internal/deps"
	"chapterreel/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify encoder binaries and directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report := newCheckReport(out)

			report.section("Dependencies")
			for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				outcome, detail := dependencyOutcome(status)
				report.add(status.Name, outcome, detail)
			}

			report.section("Directories")
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				report.add(result.Name, preflightOutcome(result), result.Detail)
			}

			fmt.Fprintln(out, report.String())
			if report.failures > 0 {
				return errors.New("environment check failed")
			}
			return nil
		},
	}
}

func dependencyOutcome(status deps.Status) (checkOutcome, string) {
	switch {
	case status.Available && status.Version != "":
		return outcomeOK, fmt.Sprintf("%s (%s)", status.Version, status.Command)
	case status.Available, status.Optional:
		return outcomeAdvisory, status.Detail
	default:
		return outcomeFailed, status.Detail
	}
}

func preflightOutcome(result preflight.Result) checkOutcome {
	switch {
	case result.Passed:
		return outcomeOK
	case result.Advisory:
		return outcomeAdvisory
	default:
		return outcomeFailed
	}
}
