package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.IsDefault())
	assert.Equal(t, 5*time.Second, cfg.ExpectTimeout)
	assert.Equal(t, []string{"list", "html"}, cfg.Reporters)
	assert.Equal(t, CaptureOnlyOnFailure, cfg.Artifacts.Screenshot)
	assert.Equal(t, CaptureRetainOnFailure, cfg.Artifacts.Video)
	assert.Equal(t, CaptureRetainOnFailure, cfg.Artifacts.Trace)
	assert.True(t, cfg.Browser.GetHeadless())
	assert.True(t, cfg.GetPrintSteps())
	assert.Nil(t, cfg.Retries)
}

func TestResolveMode(t *testing.T) {
	t.Run("ci", func(t *testing.T) {
		cfg := DefaultConfig().ResolveMode(true)
		assert.Equal(t, 2, cfg.GetRetries())
		assert.Equal(t, 1, cfg.Workers)
		assert.True(t, cfg.GetForbidOnly())
	})

	t.Run("local", func(t *testing.T) {
		cfg := DefaultConfig().ResolveMode(false)
		assert.Equal(t, 1, cfg.GetRetries())
		assert.Equal(t, max(1, runtime.NumCPU()/2), cfg.Workers)
		assert.False(t, cfg.GetForbidOnly())
	})

	t.Run("explicit values win", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Retries = IntPtr(0)
		cfg.Workers = 4
		cfg.ForbidOnly = BoolPtr(false)
		resolved := cfg.ResolveMode(true)
		assert.Equal(t, 0, resolved.GetRetries())
		assert.Equal(t, 4, resolved.Workers)
		assert.False(t, resolved.GetForbidOnly())
	})
}

func TestIsCI(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"true", true},
		{"1", true},
		{"false", false},
		{"0", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("CI", tt.value)
			assert.Equal(t, tt.want, IsCI())
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return DefaultConfig().ResolveMode(false) }

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"workers", func(c *Config) { c.Workers = 0 }, "workers must be at least 1"},
		{"reporter", func(c *Config) { c.Reporters = []string{"list", "dot"} }, `unknown reporter "dot"`},
		{"screenshot", func(c *Config) { c.Artifacts.Screenshot = CaptureRetainOnFailure }, "invalid screenshot policy"},
		{"video", func(c *Config) { c.Artifacts.Video = "sometimes" }, "invalid video policy"},
		{"trace", func(c *Config) { c.Artifacts.Trace = "" }, "invalid trace policy"},
		{"browser", func(c *Config) { c.Browser.Name = "ie" }, `unknown browser "ie"`},
		{"open", func(c *Config) { c.OpenReport = "maybe" }, "invalid openReport"},
		{"notify", func(c *Config) { c.Notify.On = "weekly" }, "invalid notify.on"},
		{"retries", func(c *Config) { c.Retries = IntPtr(-1) }, "retries must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	other := &Config{
		BaseURL:    "https://admin.example.test",
		Retries:    IntPtr(0),
		Workers:    3,
		Reporters:  []string{"json"},
		Bail:       BoolPtr(true),
		Browser:    BrowserConfig{Name: "firefox", Headless: BoolPtr(false)},
		Artifacts:  ArtifactConfig{Video: CaptureOff},
		Notify:     NotifyConfig{SlackWebhook: "https://hooks.example.test/x"},
		OpenReport: OpenNever,
	}

	merged := base.Merge(other)
	assert.Equal(t, "https://admin.example.test", merged.BaseURL)
	assert.Equal(t, 0, merged.GetRetries())
	assert.Equal(t, 3, merged.Workers)
	assert.Equal(t, []string{"json"}, merged.Reporters)
	assert.True(t, merged.GetBail())
	assert.Equal(t, "firefox", merged.Browser.Name)
	assert.False(t, merged.Browser.GetHeadless())
	assert.Equal(t, DefaultDevice, merged.Browser.Device)
	assert.Equal(t, CaptureOff, merged.Artifacts.Video)
	assert.Equal(t, CaptureRetainOnFailure, merged.Artifacts.Trace)
	assert.Equal(t, "failure", merged.Notify.On)
	assert.Equal(t, OpenNever, merged.OpenReport)

	// base is untouched
	assert.Equal(t, "", base.BaseURL)
	assert.Same(t, base, base.Merge(nil))
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pagespec.config.yaml")
	content := `baseURL: https://admin.example.test
storageState: tests/.auth/user.json
retries: 0
workers: 2
expectTimeout: 3s
reporters: [list, junit]
browser:
  name: webkit
  headless: false
  slowMo: 250ms
artifacts:
  screenshot: "on"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://admin.example.test", cfg.BaseURL)
	assert.Equal(t, "tests/.auth/user.json", cfg.StorageState)
	require.NotNil(t, cfg.Retries)
	assert.Equal(t, 0, *cfg.Retries)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 3*time.Second, cfg.ExpectTimeout)
	assert.Equal(t, []string{"list", "junit"}, cfg.Reporters)
	assert.Equal(t, "webkit", cfg.Browser.Name)
	assert.False(t, cfg.Browser.GetHeadless())
	assert.Equal(t, 250*time.Millisecond, cfg.Browser.SlowMo)
	assert.Equal(t, CaptureOn, cfg.Artifacts.Screenshot)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, CaptureRetainOnFailure, cfg.Artifacts.Video)
	assert.Equal(t, DefaultDevice, cfg.Browser.Device)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("PAGESPEC_BASE_URL", "https://env.example.test")
	t.Setenv("PAGESPEC_RETRIES", "3")
	t.Setenv("PAGESPEC_BROWSER", "firefox")
	t.Setenv("PAGESPEC_EXPECT_TIMEOUT", "7s")

	dir := t.TempDir()
	path := filepath.Join(dir, "pagespec.config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"baseURL": "https://file.example.test", "workers": 6}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.test", cfg.BaseURL)
	assert.Equal(t, 3, cfg.GetRetries())
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, "firefox", cfg.Browser.Name)
	assert.Equal(t, 7*time.Second, cfg.ExpectTimeout)
}

func TestFindAndLoadConfig(t *testing.T) {
	t.Run("no file gives defaults", func(t *testing.T) {
		cfg, err := FindAndLoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.True(t, cfg.IsDefault())
	})

	t.Run("rc file is yaml", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".pagespecrc"), []byte("workers: 5\n"), 0644))
		cfg, err := FindAndLoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Workers)
	})

	t.Run("broken file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "pagespec.config.yaml"), []byte("workers: [\n"), 0644))
		_, err := FindAndLoadConfig(dir)
		assert.Error(t, err)
	})
}
