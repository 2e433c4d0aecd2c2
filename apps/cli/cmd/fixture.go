package cmd

import (
	"fmt"
	"net/url"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/config"
	"github.com/abdul-hamid-achik/pagespec/packages/fixture"
	"github.com/spf13/cobra"
)

var (
	fixtureConfigFlag  string
	fixtureBaseURLFlag string
)

var fixtureCmd = &cobra.Command{
	Use:   "fixture",
	Short: "Inspect the authenticated session fixture",
}

var fixtureCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Check that the session fixture holds a live session",
	Long: `Check the Playwright storage-state file every scenario starts from.

The file must exist, match the storage-state schema and carry an unexpired
cookie or local storage for the host of the base URL. Path and base URL
default to the run configuration.

Examples:
  pagespec fixture check
  pagespec fixture check .auth/user.json --base-url https://console.example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: fixtureCheckCommand,
}

func init() {
	fixtureCheckCmd.Flags().StringVar(&fixtureConfigFlag, "config", getEnvString("PAGESPEC_CONFIG", ""), "Path to config file (env: PAGESPEC_CONFIG)")
	fixtureCheckCmd.Flags().StringVar(&fixtureBaseURLFlag, "base-url", "", "Base URL the session must be valid for (env: PAGESPEC_BASE_URL)")
	fixtureCmd.AddCommand(fixtureCheckCmd)
}

func fixtureCheckCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(fixtureConfigFlag)
	if err != nil {
		return withExit(ExitConfigError, err)
	}

	path := cfg.StorageState
	if len(args) == 1 {
		path = args[0]
	}
	baseURL := cfg.BaseURL
	if fixtureBaseURLFlag != "" {
		baseURL = fixtureBaseURLFlag
	}

	state, err := fixture.Check(path, baseURL, time.Now())
	if err != nil {
		return withExit(ExitBrowserError, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Valid: %s\n", path)
	fmt.Fprintf(out, "  cookies: %d, origins: %d\n", len(state.Cookies), len(state.Origins))
	if baseURL == "" {
		fmt.Fprintln(out, "  no base URL given, session host not checked")
		return nil
	}
	if u, err := url.Parse(baseURL); err == nil {
		fmt.Fprintf(out, "  session for %s: %d cookie(s)\n", u.Hostname(), len(state.CookiesFor(u.Hostname())))
	}
	return nil
}
