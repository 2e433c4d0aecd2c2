package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/pagespec/packages/core/config"
	"github.com/abdul-hamid-achik/pagespec/packages/suites/history"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new pagespec project",
	Long: `Initialize a new pagespec project in the current directory.

This creates:
  - pagespec.config.yaml                  - Run configuration
  - scenarios/history.pagespec.yaml       - The conversation history suite

Examples:
  pagespec init
  pagespec init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

// initConfig is the starting configuration written by init. Retries and
// workers are left out so the run mode decides them.
func initConfig() map[string]any {
	d := config.DefaultConfig()
	return map[string]any{
		"baseURL":       "http://localhost:3000",
		"storageState":  d.StorageState,
		"timeout":       d.Timeout.String(),
		"actionTimeout": d.ActionTimeout.String(),
		"expectTimeout": d.ExpectTimeout.String(),
		"reporters":     d.Reporters,
		"outputDir":     d.OutputDir,
		"reportDir":     d.ReportDir,
		"openReport":    config.OpenOnFailure,
		"browser": map[string]any{
			"name":     d.Browser.Name,
			"headless": true,
			"device":   d.Browser.Device,
		},
		"artifacts": map[string]string{
			"screenshot": d.Artifacts.Screenshot,
			"video":      d.Artifacts.Video,
			"trace":      d.Artifacts.Trace,
		},
	}
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	exampleFile := filepath.Join(cwd, "scenarios", history.FileName)

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return withExit(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	configYAML, err := yaml.Marshal(initConfig())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configFile, configYAML, 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.MkdirAll(filepath.Dir(exampleFile), 0755); err != nil {
		return fmt.Errorf("failed to create scenarios directory: %w", err)
	}
	if err := os.WriteFile(exampleFile, []byte(history.Source()), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\npagespec project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'pagespec mock' and then 'pagespec run scenarios/' to try it.\n")

	return nil
}
