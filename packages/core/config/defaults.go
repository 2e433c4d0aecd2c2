package config

import "time"

// Default values shared by the CLI flags and DefaultConfig.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultActionTimeout = 10 * time.Second
	DefaultExpectTimeout = 5 * time.Second
	DefaultRetryDelay    = 0
	DefaultOutputDir     = "test-results"
	DefaultReportDir     = "pagespec-report"
	DefaultStorageState  = ".auth/user.json"
	DefaultDevice        = "Desktop Chrome"
)

// DefaultConfig returns a configuration with default values.
// Retries, Workers and ForbidOnly stay unset until ResolveMode picks them
// for the CI or local run mode.
func DefaultConfig() *Config {
	return &Config{
		StorageState:  DefaultStorageState,
		Timeout:       DefaultTimeout,
		ActionTimeout: DefaultActionTimeout,
		ExpectTimeout: DefaultExpectTimeout,
		RetryDelay:    DefaultRetryDelay,
		Reporters:     []string{"list", "html"},
		OutputDir:     DefaultOutputDir,
		ReportDir:     DefaultReportDir,
		OpenReport:    OpenAlways,
		PrintSteps:    boolPtr(true),
		Browser: BrowserConfig{
			Name:     "chromium",
			Headless: boolPtr(true),
			Device:   DefaultDevice,
		},
		Artifacts: ArtifactConfig{
			Screenshot: CaptureOnlyOnFailure,
			Video:      CaptureRetainOnFailure,
			Trace:      CaptureRetainOnFailure,
		},
		Notify: NotifyConfig{
			On: "failure",
		},
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.BaseURL == defaults.BaseURL &&
		c.StorageState == defaults.StorageState &&
		c.Retries == nil &&
		c.Workers == 0 &&
		c.Timeout == defaults.Timeout &&
		c.ActionTimeout == defaults.ActionTimeout &&
		c.ExpectTimeout == defaults.ExpectTimeout &&
		c.OutputDir == defaults.OutputDir &&
		c.ReportDir == defaults.ReportDir &&
		c.OpenReport == defaults.OpenReport &&
		c.ForbidOnly == nil &&
		c.Browser.Name == defaults.Browser.Name &&
		c.Browser.Device == defaults.Browser.Device &&
		c.Artifacts == defaults.Artifacts
}
