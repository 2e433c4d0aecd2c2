package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the pagespec run configuration
type Config struct {
	BaseURL       string        `mapstructure:"baseURL"`
	StorageState  string        `mapstructure:"storageState"`
	Retries       *int          `mapstructure:"retries"`
	Workers       int           `mapstructure:"workers"`
	Timeout       time.Duration `mapstructure:"timeout"`       // per scenario attempt
	ActionTimeout time.Duration `mapstructure:"actionTimeout"` // per browser action
	ExpectTimeout time.Duration `mapstructure:"expectTimeout"` // polling budget of an expectation
	RetryDelay    time.Duration `mapstructure:"retryDelay"`
	LaunchRate    float64       `mapstructure:"launchRate"` // browser sessions per second, 0 = unpaced
	Reporters     []string      `mapstructure:"reporters"`
	OutputDir     string        `mapstructure:"outputDir"` // failure artifacts
	ReportDir     string        `mapstructure:"reportDir"` // html report
	OpenReport    string        `mapstructure:"openReport"`
	ForbidOnly    *bool         `mapstructure:"forbidOnly"`
	Bail          *bool         `mapstructure:"bail"`
	Verbose       *bool         `mapstructure:"verbose"`
	NoColor       *bool         `mapstructure:"noColor"`
	PrintSteps    *bool         `mapstructure:"printSteps"`
	Setup         []string      `mapstructure:"setup"`
	Teardown      []string      `mapstructure:"teardown"`

	Browser   BrowserConfig  `mapstructure:"browser"`
	Artifacts ArtifactConfig `mapstructure:"artifacts"`
	Notify    NotifyConfig   `mapstructure:"notify"`
}

type BrowserConfig struct {
	Name              string        `mapstructure:"name"` // chromium, firefox, webkit
	Channel           string        `mapstructure:"channel"`
	Headless          *bool         `mapstructure:"headless"`
	SlowMo            time.Duration `mapstructure:"slowMo"`
	Device            string        `mapstructure:"device"`
	ViewportWidth     int           `mapstructure:"viewportWidth"`
	ViewportHeight    int           `mapstructure:"viewportHeight"`
	IgnoreHTTPSErrors bool          `mapstructure:"ignoreHTTPSErrors"`
	Locale            string        `mapstructure:"locale"`
}

type ArtifactConfig struct {
	Screenshot string `mapstructure:"screenshot"`
	Video      string `mapstructure:"video"`
	Trace      string `mapstructure:"trace"`
}

type NotifyConfig struct {
	On           string `mapstructure:"on"`
	SlackWebhook string `mapstructure:"slackWebhook"`
	SlackChannel string `mapstructure:"slackChannel"`
	TeamsWebhook string `mapstructure:"teamsWebhook"`
}

// Artifact capture policies.
const (
	CaptureOff             = "off"
	CaptureOn              = "on"
	CaptureOnlyOnFailure   = "only-on-failure"
	CaptureRetainOnFailure = "retain-on-failure"
	CaptureOnFirstRetry    = "on-first-retry"
)

// Report opening policies.
const (
	OpenAlways    = "always"
	OpenNever     = "never"
	OpenOnFailure = "on-failure"
)

// KnownReporters lists the reporter names accepted in Reporters.
var KnownReporters = []string{"list", "console", "html", "json", "junit", "tap"}

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// boolPtr returns a pointer to a bool value
func boolPtr(b bool) *bool {
	return &b
}

// BoolPtr is exported version of boolPtr for external use
func BoolPtr(b bool) *bool {
	return &b
}

// IntPtr returns a pointer to an int value
func IntPtr(i int) *int {
	return &i
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetRetries returns the retry count, defaulting to 0 when unresolved
func (c *Config) GetRetries() int {
	if c.Retries == nil {
		return 0
	}
	return *c.Retries
}

// GetForbidOnly returns the forbid-only setting, defaulting to false
func (c *Config) GetForbidOnly() bool {
	return getBool(c.ForbidOnly, false)
}

// GetBail returns the bail setting, defaulting to false
func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetPrintSteps returns whether the list reporter prints steps, defaulting to true
func (c *Config) GetPrintSteps() bool {
	return getBool(c.PrintSteps, true)
}

// GetHeadless returns the headless setting, defaulting to true
func (b *BrowserConfig) GetHeadless() bool {
	return getBool(b.Headless, true)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	"pagespec.config.yaml",
	".pagespec.config.yaml",
	"pagespec.config.yml",
	"pagespec.config.json",
	".pagespecrc",
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAGESPEC"

// envKeys maps config keys to their environment variable suffixes.
var envKeys = map[string]string{
	"baseURL":              "BASE_URL",
	"storageState":         "STORAGE_STATE",
	"retries":              "RETRIES",
	"workers":              "WORKERS",
	"timeout":              "TIMEOUT",
	"actionTimeout":        "ACTION_TIMEOUT",
	"expectTimeout":        "EXPECT_TIMEOUT",
	"retryDelay":           "RETRY_DELAY",
	"launchRate":           "LAUNCH_RATE",
	"reporters":            "REPORTERS",
	"outputDir":            "OUTPUT_DIR",
	"reportDir":            "REPORT_DIR",
	"openReport":           "OPEN_REPORT",
	"forbidOnly":           "FORBID_ONLY",
	"bail":                 "BAIL",
	"verbose":              "VERBOSE",
	"noColor":              "NO_COLOR",
	"printSteps":           "PRINT_STEPS",
	"browser.name":         "BROWSER",
	"browser.channel":      "BROWSER_CHANNEL",
	"browser.headless":     "HEADLESS",
	"browser.slowMo":       "SLOW_MO",
	"browser.device":       "DEVICE",
	"browser.locale":       "LOCALE",
	"artifacts.screenshot": "SCREENSHOT",
	"artifacts.video":      "VIDEO",
	"artifacts.trace":      "TRACE",
	"notify.on":            "NOTIFY_ON",
	"notify.slackWebhook":  "SLACK_WEBHOOK",
	"notify.slackChannel":  "SLACK_CHANNEL",
	"notify.teamsWebhook":  "TEAMS_WEBHOOK",
}

// LoadConfig loads configuration from the specified path or searches for config files.
// Environment overrides are applied in both cases.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return load(newViper())
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for key, env := range envKeys {
		// BindEnv only errors without a key
		_ = v.BindEnv(key, EnvPrefix+"_"+env)
	}
	return v
}

func load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// IsCI reports whether the process runs under a CI system.
func IsCI() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("CI")))
	return v != "" && v != "0" && v != "false"
}

// ResolveMode fills values left unset with the defaults of the run mode.
// CI forbids only markers, retries twice and runs one worker; locally a
// scenario is retried once and half the CPUs are used.
func (c *Config) ResolveMode(ci bool) *Config {
	result := *c
	if result.Retries == nil {
		if ci {
			result.Retries = IntPtr(2)
		} else {
			result.Retries = IntPtr(1)
		}
	}
	if result.Workers <= 0 {
		if ci {
			result.Workers = 1
		} else {
			result.Workers = max(1, runtime.NumCPU()/2)
		}
	}
	if result.ForbidOnly == nil {
		result.ForbidOnly = boolPtr(ci)
	}
	return &result
}

// Validate checks enumerated values and bounds.
func (c *Config) Validate() error {
	var problems []string

	if c.Workers < 1 {
		problems = append(problems, fmt.Sprintf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Retries != nil && *c.Retries < 0 {
		problems = append(problems, "retries must not be negative")
	}
	if c.Timeout < 0 || c.ActionTimeout < 0 || c.ExpectTimeout < 0 {
		problems = append(problems, "timeouts must not be negative")
	}
	for _, r := range c.Reporters {
		if !contains(KnownReporters, r) {
			problems = append(problems, fmt.Sprintf("unknown reporter %q", r))
		}
	}
	if !contains([]string{CaptureOff, CaptureOn, CaptureOnlyOnFailure}, c.Artifacts.Screenshot) {
		problems = append(problems, fmt.Sprintf("invalid screenshot policy %q", c.Artifacts.Screenshot))
	}
	recording := []string{CaptureOff, CaptureOn, CaptureRetainOnFailure, CaptureOnFirstRetry}
	if !contains(recording, c.Artifacts.Video) {
		problems = append(problems, fmt.Sprintf("invalid video policy %q", c.Artifacts.Video))
	}
	if !contains(recording, c.Artifacts.Trace) {
		problems = append(problems, fmt.Sprintf("invalid trace policy %q", c.Artifacts.Trace))
	}
	if !contains([]string{OpenAlways, OpenNever, OpenOnFailure}, c.OpenReport) {
		problems = append(problems, fmt.Sprintf("invalid openReport %q", c.OpenReport))
	}
	if !contains([]string{"chromium", "firefox", "webkit"}, c.Browser.Name) {
		problems = append(problems, fmt.Sprintf("unknown browser %q", c.Browser.Name))
	}
	if c.Notify.On != "" && !contains([]string{"always", "failure", "success", "recovery"}, c.Notify.On) {
		problems = append(problems, fmt.Sprintf("invalid notify.on %q", c.Notify.On))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.StorageState != "" {
		result.StorageState = other.StorageState
	}
	if other.Retries != nil {
		result.Retries = other.Retries
	}
	if other.Workers > 0 {
		result.Workers = other.Workers
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.ActionTimeout > 0 {
		result.ActionTimeout = other.ActionTimeout
	}
	if other.ExpectTimeout > 0 {
		result.ExpectTimeout = other.ExpectTimeout
	}
	if other.RetryDelay > 0 {
		result.RetryDelay = other.RetryDelay
	}
	if other.LaunchRate > 0 {
		result.LaunchRate = other.LaunchRate
	}
	if other.OutputDir != "" {
		result.OutputDir = other.OutputDir
	}
	if other.ReportDir != "" {
		result.ReportDir = other.ReportDir
	}
	if other.OpenReport != "" {
		result.OpenReport = other.OpenReport
	}

	// Boolean flags - only override if explicitly set in other config
	if other.ForbidOnly != nil {
		result.ForbidOnly = other.ForbidOnly
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.PrintSteps != nil {
		result.PrintSteps = other.PrintSteps
	}

	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}
	if len(other.Setup) > 0 {
		result.Setup = other.Setup
	}
	if len(other.Teardown) > 0 {
		result.Teardown = other.Teardown
	}

	if other.Browser.Name != "" {
		result.Browser.Name = other.Browser.Name
	}
	if other.Browser.Channel != "" {
		result.Browser.Channel = other.Browser.Channel
	}
	if other.Browser.Headless != nil {
		result.Browser.Headless = other.Browser.Headless
	}
	if other.Browser.SlowMo > 0 {
		result.Browser.SlowMo = other.Browser.SlowMo
	}
	if other.Browser.Device != "" {
		result.Browser.Device = other.Browser.Device
	}
	if other.Browser.ViewportWidth > 0 && other.Browser.ViewportHeight > 0 {
		result.Browser.ViewportWidth = other.Browser.ViewportWidth
		result.Browser.ViewportHeight = other.Browser.ViewportHeight
	}
	if other.Browser.IgnoreHTTPSErrors {
		result.Browser.IgnoreHTTPSErrors = true
	}
	if other.Browser.Locale != "" {
		result.Browser.Locale = other.Browser.Locale
	}

	if other.Artifacts.Screenshot != "" {
		result.Artifacts.Screenshot = other.Artifacts.Screenshot
	}
	if other.Artifacts.Video != "" {
		result.Artifacts.Video = other.Artifacts.Video
	}
	if other.Artifacts.Trace != "" {
		result.Artifacts.Trace = other.Artifacts.Trace
	}

	if other.Notify.On != "" {
		result.Notify.On = other.Notify.On
	}
	if other.Notify.SlackWebhook != "" {
		result.Notify.SlackWebhook = other.Notify.SlackWebhook
	}
	if other.Notify.SlackChannel != "" {
		result.Notify.SlackChannel = other.Notify.SlackChannel
	}
	if other.Notify.TeamsWebhook != "" {
		result.Notify.TeamsWebhook = other.Notify.TeamsWebhook
	}

	return &result
}
