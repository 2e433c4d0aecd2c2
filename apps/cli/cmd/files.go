package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
	"github.com/abdul-hamid-achik/pagespec/packages/suites/history"
)

var errNoScenarioFiles = errors.New("no .pagespec.yaml or .pagespec.yml files found")

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() && path != arg && (d.Name() == "node_modules" || d.Name()[0] == '.') {
					return filepath.SkipDir
				}
				if !d.IsDir() && parser.IsScenarioFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else {
			// an explicitly named file is taken whatever its suffix
			files = append(files, arg)
		}
	}

	return files, nil
}

// loadSuites parses the scenario files named by args, or returns the
// built-in history suite when there are no args.
func loadSuites(args []string) ([]*parser.Suite, error) {
	if len(args) == 0 {
		suite, err := history.Suite()
		if err != nil {
			return nil, fmt.Errorf("built-in suite: %w", err)
		}
		return []*parser.Suite{suite}, nil
	}

	files, err := collectFiles(args)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errNoScenarioFiles
	}

	var errs []error
	suites := make([]*parser.Suite, 0, len(files))
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		suites = append(suites, suite)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return suites, nil
}
