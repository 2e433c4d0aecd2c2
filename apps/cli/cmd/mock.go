package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/mock"
	"github.com/spf13/cobra"
)

var (
	mockPortFlag          int
	mockDelayFlag         string
	mockRowsFlag          int
	mockSessionCookieFlag string
	mockVerboseFlag       bool
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve an imitation of the conversation history screen",
	Long: `Start an HTTP server that imitates the conversation history screen of
the console, so scenarios can be developed and checked without the real
system.

The console imitation:
- Serves the history screen at /chat/history and redirects / to it
- Validates DD.MM.YYYY dates on blur and shows the validation message
- Shows table columns picked in the column dropdown
- Filters rows through the search box
- Can require a session cookie and add artificial delays

Examples:
  pagespec mock
  pagespec mock --port 3000 --rows 0
  pagespec mock --delay 200ms --session-cookie session
  pagespec mock --verbose`,
	Args: cobra.NoArgs,
	RunE: mockCommand,
}

func init() {
	mockCmd.Flags().IntVarP(&mockPortFlag, "port", "p", getEnvInt("PAGESPEC_MOCK_PORT", mock.DefaultPort), "Port to run the console imitation on (env: PAGESPEC_MOCK_PORT)")
	mockCmd.Flags().StringVarP(&mockDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	mockCmd.Flags().IntVar(&mockRowsFlag, "rows", mock.DefaultRows, "Number of conversations in the history")
	mockCmd.Flags().StringVar(&mockSessionCookieFlag, "session-cookie", "", "Require a session cookie of this name")
	mockCmd.Flags().BoolVarP(&mockVerboseFlag, "verbose", "v", false, "Enable verbose logging")
}

func mockCommand(cmd *cobra.Command, args []string) error {
	var delay time.Duration
	if mockDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(mockDelayFlag)
		if err != nil {
			return withExit(ExitUsageError, fmt.Errorf("invalid delay value %q: %w", mockDelayFlag, err))
		}
	}
	if mockRowsFlag < 0 {
		return withExit(ExitUsageError, fmt.Errorf("--rows must not be negative, got %d", mockRowsFlag))
	}

	server := mock.NewServer(
		mock.WithPort(mockPortFlag),
		mock.WithDelay(delay),
		mock.WithRows(mockRowsFlag),
		mock.WithSessionCookie(mockSessionCookieFlag),
		mock.WithVerbose(mockVerboseFlag),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(cmd.ErrOrStderr(), "\nShutting down console imitation...")
	}()

	return server.StartWithContext(ctx)
}
