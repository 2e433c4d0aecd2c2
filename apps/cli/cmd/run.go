package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/browser"
	"github.com/abdul-hamid-achik/pagespec/packages/core/config"
	"github.com/abdul-hamid-achik/pagespec/packages/core/env"
	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
	"github.com/abdul-hamid-achik/pagespec/packages/export/metrics"
	"github.com/abdul-hamid-achik/pagespec/packages/notify"
	"github.com/abdul-hamid-achik/pagespec/packages/output"
	"github.com/abdul-hamid-achik/pagespec/packages/stats"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file|directory...]",
	Short: "Run browser scenarios",
	Long: `Run the scenarios defined in *.pagespec.yaml files.

Without arguments the built-in conversation history suite runs.

Examples:
  pagespec run
  pagespec run ./scenarios/ --tags history
  pagespec run history.pagespec.yaml --name "invalid*" --headed
  pagespec run --ci --reporter list,junit
  pagespec run ./scenarios/ --watch`,
	ValidArgsFunction: scenarioArgs,
	RunE:              runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond

	// slowestShown is how many scenarios the verbose summary lists.
	slowestShown = 5
)

var (
	configFlag       string
	envFileFlag      string
	baseURLFlag      string
	storageStateFlag string
	nameFlag         string
	grepFlag         string
	tagsFlag         string
	varFlags         map[string]string
	workersFlag      int
	retriesFlag      int
	ciFlag           bool
	bailFlag         bool
	timeoutFlag      time.Duration
	expectTimeout    time.Duration
	actionTimeout    time.Duration
	dryRunFlag       bool
	watchFlag        bool

	// Output flags
	reporterFlag   []string
	outputDirFlag  string
	reportDirFlag  string
	openReportFlag string
	verboseFlag    bool
	noColorFlag    bool

	// Browser flags
	headedFlag      bool
	browserFlag     string
	channelFlag     string
	deviceFlag      string
	skipInstallFlag bool

	// Metrics flags
	metricsFileFlag string
	metricsJSONFlag string

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
)

func init() {
	// Core flags
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("PAGESPEC_CONFIG", ""), "Path to config file (env: PAGESPEC_CONFIG)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("PAGESPEC_ENV_FILE", ".env"), "Path to .env file loaded before the config (env: PAGESPEC_ENV_FILE)")
	runCmd.Flags().StringVar(&baseURLFlag, "base-url", "", "Base URL of the console under test (env: PAGESPEC_BASE_URL)")
	runCmd.Flags().StringVar(&storageStateFlag, "storage-state", "", "Authenticated session fixture (env: PAGESPEC_STORAGE_STATE)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only scenarios matching name pattern")
	runCmd.Flags().StringVarP(&grepFlag, "grep", "g", "", "Run only scenarios whose name contains the text")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("PAGESPEC_TAGS", ""), "Run only scenarios with specified tags (comma-separated) (env: PAGESPEC_TAGS)")
	runCmd.Flags().StringToStringVar(&varFlags, "var", nil, "Override a suite variable (key=value, repeatable)")

	// Execution flags
	runCmd.Flags().IntVarP(&workersFlag, "workers", "j", 0, "Parallel browser sessions (default: 1 in CI, half the CPUs otherwise)")
	runCmd.Flags().IntVar(&retriesFlag, "retries", -1, "Retries per failed scenario (default: 2 in CI, 1 otherwise)")
	runCmd.Flags().BoolVar(&ciFlag, "ci", getEnvBool("CI", false), "Run in CI mode: forbid only markers, retry twice, one worker (env: CI)")
	runCmd.Flags().BoolVar(&bailFlag, "bail", false, "Stop scheduling scenarios after the first failure (env: PAGESPEC_BAIL)")
	runCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Timeout of one scenario attempt, e.g. 30s (env: PAGESPEC_TIMEOUT)")
	runCmd.Flags().DurationVar(&expectTimeout, "expect-timeout", 0, "How long an expectation polls, e.g. 5s (env: PAGESPEC_EXPECT_TIMEOUT)")
	runCmd.Flags().DurationVar(&actionTimeout, "action-timeout", 0, "Timeout of one browser action (env: PAGESPEC_ACTION_TIMEOUT)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and show what would run without starting a browser")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch scenario files for changes and re-run")

	// Output flags
	runCmd.Flags().StringSliceVar(&reporterFlag, "reporter", nil, "Reporters: list, html, json, junit, tap (env: PAGESPEC_REPORTERS)")
	runCmd.Flags().StringVar(&outputDirFlag, "output-dir", "", "Directory for screenshots, videos and traces (env: PAGESPEC_OUTPUT_DIR)")
	runCmd.Flags().StringVar(&reportDirFlag, "report-dir", "", "Directory for the HTML report and report files (env: PAGESPEC_REPORT_DIR)")
	runCmd.Flags().StringVar(&openReportFlag, "open-report", "", "Open the HTML report: always, never, on-failure (env: PAGESPEC_OPEN_REPORT)")
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output (env: PAGESPEC_VERBOSE)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("NO_COLOR", false), "Disable colored output (env: NO_COLOR, PAGESPEC_NO_COLOR)")

	// Browser flags
	runCmd.Flags().BoolVar(&headedFlag, "headed", false, "Show the browser window")
	runCmd.Flags().StringVar(&browserFlag, "browser", "", "Browser: chromium, firefox, webkit (env: PAGESPEC_BROWSER)")
	runCmd.Flags().StringVar(&channelFlag, "channel", "", "Browser channel, e.g. chrome or msedge (env: PAGESPEC_BROWSER_CHANNEL)")
	runCmd.Flags().StringVar(&deviceFlag, "device", "", "Emulated device (env: PAGESPEC_DEVICE)")
	runCmd.Flags().BoolVar(&skipInstallFlag, "skip-install", getEnvBool("PAGESPEC_SKIP_INSTALL", false), "Do not install the browser driver (env: PAGESPEC_SKIP_INSTALL)")

	// Metrics flags
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("PAGESPEC_METRICS_FILE", ""), "Write Prometheus metrics to a textfile (env: PAGESPEC_METRICS_FILE)")
	runCmd.Flags().StringVar(&metricsJSONFlag, "metrics-json", getEnvString("PAGESPEC_METRICS_JSON", ""), "Write JSON metrics to a file (env: PAGESPEC_METRICS_JSON)")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("PAGESPEC_NOTIFY", ""), "Notification services: slack, teams (env: PAGESPEC_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", "", "When to notify: always, failure, success, recovery (env: PAGESPEC_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", "", "Slack webhook URL (env: PAGESPEC_SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", "", "Slack channel override (env: PAGESPEC_SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", "", "Microsoft Teams webhook URL (env: PAGESPEC_TEAMS_WEBHOOK)")

	// The flags exist by now, so registration cannot fail.
	_ = runCmd.RegisterFlagCompletionFunc("reporter", fixedCompletions(config.KnownReporters...))
	_ = runCmd.RegisterFlagCompletionFunc("browser", fixedCompletions("chromium", "firefox", "webkit"))
	_ = runCmd.RegisterFlagCompletionFunc("open-report", fixedCompletions(config.OpenAlways, config.OpenNever, config.OpenOnFailure))
	_ = runCmd.RegisterFlagCompletionFunc("notify-on", fixedCompletions("always", "failure", "success", "recovery"))
	_ = runCmd.RegisterFlagCompletionFunc("notify", fixedCompletions("slack", "teams"))
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return withExit(ExitConfigError, err)
	}

	suites, err := loadSuites(args)
	if err != nil {
		return withExit(ExitParseError, err)
	}

	rcfg := runner.FromConfig(cfg)
	rcfg.NameFilter = nameFlag
	rcfg.TagsFilter = splitList(tagsFlag)
	rcfg.Grep = grepFlag
	rcfg.Variables = varFlags

	out := cmd.OutOrStdout()
	if dryRunFlag {
		printPlan(out, cfg, suites)
		return nil
	}
	if watchFlag && len(args) == 0 {
		return withExit(ExitUsageError, errors.New("--watch needs scenario files or directories"))
	}

	notifyManager, err := buildNotifier(cfg)
	if err != nil {
		return withExit(ExitConfigError, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	launcher, err := browser.NewPlaywrightLauncher(launchOptions(cfg))
	if err != nil {
		return withExit(ExitBrowserError, fmt.Errorf("starting browser: %w", err))
	}
	defer launcher.Close()

	metricsCollector := buildMetrics()
	if metricsCollector != nil {
		defer metricsCollector.Close()
	}

	session := &runSession{
		cfg:      cfg,
		rcfg:     rcfg,
		launcher: launcher,
		out:      out,
		notify:   notifyManager,
		metrics:  metricsCollector,
	}

	failed, err := session.run(ctx, suites)
	if watchFlag {
		return watch(ctx, cmd, args, session)
	}
	if err != nil {
		return &exitError{code: ExitTestFailure, err: err, quiet: true}
	}
	if failed {
		return &exitError{code: ExitTestFailure, quiet: true}
	}
	return nil
}

// resolveConfig layers the .env file, the config file, PAGESPEC_* variables
// and explicitly set flags, then fills in the defaults of the run mode.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := loadDotEnv(envFileFlag, cmd.Flags().Changed("env-file")); err != nil {
		return nil, err
	}

	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}

	cfg := fileConfig.Merge(flagConfig(cmd)).ResolveMode(ciFlag || config.IsCI())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv exports the variables of path. A missing default file is fine.
func loadDotEnv(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	_, err := env.LoadAndExportDotEnv(path)
	return err
}

// flagConfig returns the settings given on the command line. Unset flags
// stay zero so Merge keeps the file and environment values.
func flagConfig(cmd *cobra.Command) *config.Config {
	changed := cmd.Flags().Changed
	cfg := &config.Config{
		BaseURL:       baseURLFlag,
		StorageState:  storageStateFlag,
		Workers:       workersFlag,
		Timeout:       timeoutFlag,
		ActionTimeout: actionTimeout,
		ExpectTimeout: expectTimeout,
		Reporters:     reporterFlag,
		OutputDir:     outputDirFlag,
		ReportDir:     reportDirFlag,
		OpenReport:    openReportFlag,
		Browser: config.BrowserConfig{
			Name:    browserFlag,
			Channel: channelFlag,
			Device:  deviceFlag,
		},
		Notify: config.NotifyConfig{
			On:           notifyOnFlag,
			SlackWebhook: slackWebhookFlag,
			SlackChannel: slackChannelFlag,
			TeamsWebhook: teamsWebhookFlag,
		},
	}

	if retriesFlag >= 0 {
		cfg.Retries = config.IntPtr(retriesFlag)
	}
	if changed("bail") {
		cfg.Bail = config.BoolPtr(bailFlag)
	}
	if changed("verbose") {
		cfg.Verbose = config.BoolPtr(verboseFlag)
	}
	if changed("no-color") || noColorFlag {
		cfg.NoColor = config.BoolPtr(noColorFlag)
	}
	if changed("headed") {
		cfg.Browser.Headless = config.BoolPtr(!headedFlag)
	}
	return cfg
}

func launchOptions(cfg *config.Config) browser.LaunchOptions {
	return browser.LaunchOptions{
		Browser:           cfg.Browser.Name,
		Channel:           cfg.Browser.Channel,
		Headless:          cfg.Browser.GetHeadless(),
		SlowMo:            cfg.Browser.SlowMo,
		Device:            cfg.Browser.Device,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		IgnoreHTTPSErrors: cfg.Browser.IgnoreHTTPSErrors,
		Locale:            cfg.Browser.Locale,
		SkipInstall:       skipInstallFlag,
	}
}

// buildNotifier creates the webhook notifiers named by --notify, or those
// with a configured webhook when --notify is empty.
func buildNotifier(cfg *config.Config) (*notify.Manager, error) {
	services := splitList(notifyFlag)
	if len(services) == 0 {
		if cfg.Notify.SlackWebhook != "" {
			services = append(services, "slack")
		}
		if cfg.Notify.TeamsWebhook != "" {
			services = append(services, "teams")
		}
	}
	if len(services) == 0 {
		return nil, nil
	}

	notifyOn, err := notify.ParseNotifyOn(cfg.Notify.On)
	if err != nil {
		return nil, err
	}

	var notifiers []notify.Notifier
	for _, service := range services {
		switch strings.ToLower(service) {
		case "slack":
			if cfg.Notify.SlackWebhook == "" {
				return nil, fmt.Errorf("--slack-webhook is required when using --notify slack")
			}
			slackOpts := []notify.SlackOption{}
			if cfg.Notify.SlackChannel != "" {
				slackOpts = append(slackOpts, notify.WithSlackChannel(cfg.Notify.SlackChannel))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notify.SlackWebhook, slackOpts...))

		case "teams":
			if cfg.Notify.TeamsWebhook == "" {
				return nil, fmt.Errorf("--teams-webhook is required when using --notify teams")
			}
			notifiers = append(notifiers, notify.NewTeamsNotifier(cfg.Notify.TeamsWebhook))

		default:
			return nil, fmt.Errorf("unknown notification service %q", service)
		}
	}

	return notify.NewManager(notifyOn, notifiers...), nil
}

func buildMetrics() *metrics.Collector {
	var exporters []metrics.Exporter
	if metricsFileFlag != "" {
		exporters = append(exporters, metrics.NewPrometheusExporter(metrics.WithPrometheusFile(metricsFileFlag)))
	}
	if metricsJSONFlag != "" {
		exporters = append(exporters, metrics.NewJSONExporter(
			metrics.WithJSONFile(metricsJSONFlag),
			metrics.WithJSONVersion(version),
		))
	}
	if len(exporters) == 0 {
		return nil
	}
	return metrics.NewCollector(exporters...)
}

// runSession holds what stays fixed across the runs of one invocation, so
// watch mode can re-run with the same browser.
type runSession struct {
	cfg      *config.Config
	rcfg     *runner.Config
	launcher browser.Launcher
	out      io.Writer
	notify   *notify.Manager
	metrics  *metrics.Collector
	opened   bool
}

// run executes suites once with fresh reporters. It reports whether any
// scenario failed; the error collects suites that could not run.
func (s *runSession) run(ctx context.Context, suites []*parser.Suite) (bool, error) {
	reports, err := buildReporters(s.cfg, s.out)
	if err != nil {
		return true, err
	}
	defer reports.Close()

	reports.FormatHeader(version)

	collector := stats.NewCollector()
	r := runner.NewRunner(s.rcfg, s.launcher, runner.WithStats(collector))

	start := time.Now()
	var results []*runner.RunResult
	var runErr error
	for _, suite := range suites {
		if ctx.Err() != nil {
			break
		}

		result, err := r.RunSuite(ctx, suite)
		if err != nil {
			reports.FormatError(err)
			runErr = errors.Join(runErr, err)
			continue
		}

		reports.FormatResult(result)
		results = append(results, result)

		if s.rcfg.Bail && !result.Success() {
			break
		}
	}
	duration := time.Since(start)

	if err := reports.Flush(duration); err != nil {
		fmt.Fprintf(os.Stderr, "warning: writing reports: %v\n", err)
	}
	if err := reports.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing reports: %v\n", err)
	}

	failed := runErr != nil
	for _, result := range results {
		if !result.Success() {
			failed = true
		}
	}

	if s.cfg.GetVerbose() {
		printSlowest(s.out, collector.Summary())
	}

	if s.metrics != nil {
		for _, result := range results {
			s.metrics.RecordRun(result)
		}
		if err := s.metrics.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to export metrics: %v\n", err)
		}
	}

	if s.notify != nil {
		if err := s.notify.Notify(notify.NewRunSummary(results, duration)); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to send notification: %v\n", err)
		}
	}

	s.openReport(reports.htmlPath, failed)
	return failed, runErr
}

// openReport opens the HTML report per the openReport policy, once per
// invocation and never on CI.
func (s *runSession) openReport(path string, failed bool) {
	if path == "" || s.opened || config.IsCI() {
		return
	}
	switch s.cfg.OpenReport {
	case config.OpenAlways:
	case config.OpenOnFailure:
		if !failed {
			return
		}
	default:
		return
	}

	s.opened = true
	if err := output.OpenReport(path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

func printPlan(w io.Writer, cfg *config.Config, suites []*parser.Suite) {
	fmt.Fprintf(w, "Would run against %s with %d worker(s), %d retries\n\n",
		displayBaseURL(cfg.BaseURL), cfg.Workers, cfg.GetRetries())
	for _, suite := range suites {
		printSuite(w, suite)
	}
}

func displayBaseURL(u string) string {
	if u == "" {
		return "the suite base URL"
	}
	return u
}

func printSlowest(w io.Writer, summary *stats.Summary) {
	if summary == nil || summary.Attempts == 0 {
		return
	}
	fmt.Fprintf(w, "\nAttempts: %d  p50 %s  p95 %s  p99 %s  max %s\n",
		summary.Attempts, summary.P50, summary.P95, summary.P99, summary.Max)
	fmt.Fprintln(w, "Slowest scenarios:")
	for _, s := range summary.Slowest(slowestShown) {
		fmt.Fprintf(w, "  %8s  %s\n", s.Max, s.Name)
	}
}
