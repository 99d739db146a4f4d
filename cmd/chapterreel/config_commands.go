package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"chapterreel/internal/config"
	"chapterreel/internal/fileutil"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveConfigTarget(targetPath)
			if err != nil {
				return err
			}
			if err := writeSampleConfig(target, overwrite); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set paths.output_dir before rendering, or export CHAPTERREEL_OUTPUT_DIR.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

// resolveConfigTarget expands an explicit --path or falls back to the
// per-user default location.
func resolveConfigTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		target, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return target, nil
	}
	target, err := config.ExpandPath(raw)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return target, nil
}

// writeSampleConfig stages the sample next to target and publishes it the
// same way rendered artifacts are, so an existing config is never clobbered
// without overwrite.
func writeSampleConfig(target string, overwrite bool) error {
	staged := fileutil.PartialPath(target)
	if err := config.CreateSample(staged); err != nil {
		return fmt.Errorf("create sample config: %w", err)
	}
	if err := fileutil.Publish(staged, target, overwrite); err != nil {
		_ = os.Remove(staged)
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
		}
		return fmt.Errorf("publish sample config: %w", err)
	}
	return nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			source := path
			if !exists {
				source = path + " (missing, defaults used)"
			}
			rows := [][]string{
				{"Config", source},
				{"Artifact", filepath.Join(cfg.Paths.OutputDir, cfg.ArtifactName("<projectId>"))},
				{"Scratch", cfg.Paths.ScratchDir},
				{"Geometry", fmt.Sprintf("%dx%d @ %d fps", cfg.Encoder.Width, cfg.Encoder.Height, cfg.Encoder.FrameRate)},
				{"Concurrency", strconv.Itoa(cfg.Pipeline.Concurrency)},
				{"Overwrite", strconv.FormatBool(cfg.Output.OverwriteExisting)},
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
