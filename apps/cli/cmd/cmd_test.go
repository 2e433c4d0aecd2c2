package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/pagespec/packages/core/config"
	"github.com/abdul-hamid-achik/pagespec/packages/suites/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalSuite = `name: minimal
scenarios:
  - name: opens
    steps:
      - goto: /
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pagespec.yaml"), minimalSuite)
	writeFile(t, filepath.Join(dir, "nested", "b.pagespec.yml"), minimalSuite)
	writeFile(t, filepath.Join(dir, "notes.yaml"), "x: 1")
	writeFile(t, filepath.Join(dir, ".auth", "c.pagespec.yaml"), minimalSuite)
	writeFile(t, filepath.Join(dir, "node_modules", "d.pagespec.yaml"), minimalSuite)

	t.Run("directory", func(t *testing.T) {
		files, err := collectFiles([]string{dir})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			filepath.Join(dir, "a.pagespec.yaml"),
			filepath.Join(dir, "nested", "b.pagespec.yml"),
		}, files)
	})

	t.Run("explicit file with any suffix", func(t *testing.T) {
		files, err := collectFiles([]string{filepath.Join(dir, "notes.yaml")})
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "notes.yaml")}, files)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := collectFiles([]string{filepath.Join(dir, "missing")})
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadSuites(t *testing.T) {
	t.Run("built-in suite without args", func(t *testing.T) {
		suites, err := loadSuites(nil)
		require.NoError(t, err)
		require.Len(t, suites, 1)
		assert.Equal(t, "Conversation history", suites[0].Name)
		assert.Len(t, suites[0].Scenarios, 8)
	})

	t.Run("no scenario files", func(t *testing.T) {
		_, err := loadSuites([]string{t.TempDir()})
		assert.ErrorIs(t, err, errNoScenarioFiles)
	})

	t.Run("parse errors are joined", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "ok.pagespec.yaml"), minimalSuite)
		writeFile(t, filepath.Join(dir, "bad.pagespec.yaml"), "name: bad\nscenarios: 3\n")
		writeFile(t, filepath.Join(dir, "worse.pagespec.yaml"), "scenarios: [\n")

		_, err := loadSuites([]string{dir})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad.pagespec.yaml")
		assert.Contains(t, err.Error(), "worse.pagespec.yaml")
	})
}

func TestExitError(t *testing.T) {
	cause := fmt.Errorf("%w: unknown reporter", config.ErrInvalidConfig)
	err := fmt.Errorf("run: %w", withExit(ExitConfigError, cause))

	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ExitConfigError, ee.code)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Equal(t, "exit status 1", (&exitError{code: ExitTestFailure}).Error())
}

func TestBuildReporters(t *testing.T) {
	t.Run("files next to the list reporter", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.ReportDir = t.TempDir()
		cfg.Reporters = []string{"list", "html", "json", "junit", "tap"}

		var out bytes.Buffer
		set, err := buildReporters(cfg, &out)
		require.NoError(t, err)
		assert.Equal(t, 5, set.Len())
		assert.Equal(t, filepath.Join(cfg.ReportDir, "index.html"), set.htmlPath)
		require.NoError(t, set.Close())

		for _, name := range []string{"index.html", "results.json", "junit.xml", "results.tap"} {
			assert.FileExists(t, filepath.Join(cfg.ReportDir, name))
		}
	})

	t.Run("machine reporter alone writes to stdout", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.ReportDir = filepath.Join(t.TempDir(), "unused")
		cfg.Reporters = []string{"junit"}

		var out bytes.Buffer
		set, err := buildReporters(cfg, &out)
		require.NoError(t, err)
		require.NoError(t, set.Flush(0))
		require.NoError(t, set.Close())

		assert.Contains(t, out.String(), "<testsuites")
		assert.NoDirExists(t, cfg.ReportDir)
	})

	t.Run("console is an alias of list", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Reporters = []string{"console", "list"}
		set, err := buildReporters(cfg, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, 1, set.Len())
	})

	t.Run("unknown reporter", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Reporters = []string{"pdf"}
		_, err := buildReporters(cfg, &bytes.Buffer{})
		assert.ErrorContains(t, err, `unknown reporter "pdf"`)
	})
}

func TestBuildNotifier(t *testing.T) {
	t.Cleanup(func() { notifyFlag = "" })

	cfg := config.DefaultConfig()
	m, err := buildNotifier(cfg)
	require.NoError(t, err)
	assert.Nil(t, m)

	cfg.Notify.TeamsWebhook = "https://teams.example.com/hook"
	m, err = buildNotifier(cfg)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 1, m.Len())

	notifyFlag = "slack"
	_, err = buildNotifier(cfg)
	assert.ErrorContains(t, err, "--slack-webhook is required")

	notifyFlag = "pager"
	_, err = buildNotifier(cfg)
	assert.ErrorContains(t, err, `unknown notification service "pager"`)
}

func TestResolveConfig(t *testing.T) {
	t.Cleanup(func() { configFlag = "" })
	dir := t.TempDir()

	path := filepath.Join(dir, "pagespec.config.yaml")
	writeFile(t, path, "baseURL: http://file.example\nworkers: 3\nretries: 0\n")
	configFlag = path

	cfg, err := resolveConfig(runCmd)
	require.NoError(t, err)
	assert.Equal(t, "http://file.example", cfg.BaseURL)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 0, cfg.GetRetries())

	t.Setenv("PAGESPEC_BASE_URL", "http://env.example")
	cfg, err = resolveConfig(runCmd)
	require.NoError(t, err)
	assert.Equal(t, "http://env.example", cfg.BaseURL)

	writeFile(t, path, "reporters: [pdf]\n")
	_, err = resolveConfig(runCmd)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, loadDotEnv(filepath.Join(dir, ".env"), false))
	assert.Error(t, loadDotEnv(filepath.Join(dir, ".env"), true))

	path := filepath.Join(dir, "custom.env")
	writeFile(t, path, "PAGESPEC_TEST_DOTENV=loaded\n")
	t.Setenv("PAGESPEC_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("PAGESPEC_TEST_DOTENV"))
	require.NoError(t, loadDotEnv(path, true))
	assert.Equal(t, "loaded", os.Getenv("PAGESPEC_TEST_DOTENV"))
}

func TestListAndValidate_BuiltIn(t *testing.T) {
	var out bytes.Buffer
	listCmd.SetOut(&out)
	require.NoError(t, listCommand(listCmd, nil))
	assert.Contains(t, out.String(), "Conversation history (history.pagespec.yaml):")
	assert.Contains(t, out.String(), "  - search without matches empties the table [conditional]")
	assert.Contains(t, out.String(), "tags: history, search")

	out.Reset()
	validateCmd.SetOut(&out)
	require.NoError(t, validateCommand(validateCmd, nil))
	assert.Equal(t, "Valid: built-in history.pagespec.yaml\n", out.String())
}

func TestValidate_ParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.pagespec.yaml"), "name: bad\nscenarios: 3\n")

	var out, errOut bytes.Buffer
	validateCmd.SetOut(&out)
	validateCmd.SetErr(&errOut)
	err := validateCommand(validateCmd, []string{dir})

	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ExitParseError, ee.code)
	assert.Contains(t, errOut.String(), "bad.pagespec.yaml")
}

func TestInit(t *testing.T) {
	t.Cleanup(func() { forceInit = false })
	// equivalent of t.Chdir (Go 1.24+) for the Go 1.21 toolchain
	prevDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(prevDir) })

	var out bytes.Buffer
	initCmd.SetOut(&out)
	require.NoError(t, initCommand(initCmd, nil))

	cfg, err := config.LoadConfig(config.ConfigFilenames[0])
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, config.OpenOnFailure, cfg.OpenReport)
	assert.Nil(t, cfg.Retries)

	scenarios, err := os.ReadFile(filepath.Join("scenarios", history.FileName))
	require.NoError(t, err)
	assert.Equal(t, history.Source(), string(scenarios))

	err = initCommand(initCmd, nil)
	assert.ErrorContains(t, err, "already exists")

	forceInit = true
	assert.NoError(t, initCommand(initCmd, nil))
}
