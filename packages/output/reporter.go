package output

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
)

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Multi fans every call out to several formatters, in order.
type Multi struct {
	formatters []Formatter
}

func NewMulti(formatters ...Formatter) *Multi {
	return &Multi{formatters: formatters}
}

// Add appends f to the fan-out.
func (m *Multi) Add(f Formatter) {
	m.formatters = append(m.formatters, f)
}

func (m *Multi) Len() int {
	return len(m.formatters)
}

func (m *Multi) FormatResult(result *runner.RunResult) {
	for _, f := range m.formatters {
		f.FormatResult(result)
	}
}

func (m *Multi) FormatError(err error) {
	for _, f := range m.formatters {
		f.FormatError(err)
	}
}

func (m *Multi) FormatHeader(version string) {
	for _, f := range m.formatters {
		f.FormatHeader(version)
	}
}

// Flush flushes every flushable formatter, even after one fails.
func (m *Multi) Flush(totalDuration time.Duration) error {
	var errs []error
	for _, f := range m.formatters {
		if fl, ok := f.(Flushable); ok {
			if err := fl.Flush(totalDuration); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// OpenCommand returns the OS command that opens path in the default viewer.
func OpenCommand(goos, path string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		return exec.Command("xdg-open", path)
	}
}

// OpenReport opens the HTML report without waiting for the viewer.
func OpenReport(path string) error {
	cmd := OpenCommand(runtime.GOOS, path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening report %s: %w", path, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
