package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/pagespec/packages/core/config"
	"github.com/abdul-hamid-achik/pagespec/packages/output"
	"golang.org/x/term"
)

// reportFiles names the files machine-readable reporters write into the
// report directory when the list reporter already owns stdout.
var reportFiles = map[string]string{
	"json":  "results.json",
	"junit": "junit.xml",
	"tap":   "results.tap",
}

// reportSet is the active reporters of one run plus the files they write.
type reportSet struct {
	*output.Multi
	files    []*os.File
	htmlPath string
}

// isTerminal reports whether w is a terminal, so colour is only used there.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func buildReporters(cfg *config.Config, out io.Writer) (*reportSet, error) {
	set := &reportSet{Multi: output.NewMulti()}

	listActive := false
	for _, name := range cfg.Reporters {
		if name == "list" || name == "console" {
			listActive = true
		}
	}

	seen := make(map[string]bool)
	for _, name := range cfg.Reporters {
		if name == "console" {
			name = "list"
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case "list":
			set.Add(output.NewConsoleFormatter(
				output.WithWriter(out),
				output.WithVerbose(cfg.GetVerbose()),
				output.WithNoColor(cfg.GetNoColor() || !isTerminal(out)),
				output.WithPrintSteps(cfg.GetPrintSteps()),
			))

		case "html":
			f, err := set.create(cfg.ReportDir, "index.html")
			if err != nil {
				return nil, errors.Join(err, set.Close())
			}
			set.htmlPath = f.Name()
			set.Add(output.NewHTMLFormatter(
				output.HTMLWithWriter(f),
				output.HTMLWithReportDir(cfg.ReportDir),
			))

		case "json", "junit", "tap":
			w := out
			if listActive {
				f, err := set.create(cfg.ReportDir, reportFiles[name])
				if err != nil {
					return nil, errors.Join(err, set.Close())
				}
				w = f
			}
			switch name {
			case "json":
				set.Add(output.NewJSONFormatter(output.JSONWithWriter(w)))
			case "junit":
				set.Add(output.NewJUnitFormatter(output.JUnitWithWriter(w)))
			case "tap":
				set.Add(output.NewTAPFormatter(output.TAPWithWriter(w)))
			}

		default:
			return nil, errors.Join(fmt.Errorf("unknown reporter %q", name), set.Close())
		}
	}

	return set, nil
}

func (s *reportSet) create(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating report file: %w", err)
	}
	s.files = append(s.files, f)
	return f, nil
}

// Close closes every report file.
func (s *reportSet) Close() error {
	var errs []error
	for _, f := range s.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.files = nil
	return errors.Join(errs...)
}
