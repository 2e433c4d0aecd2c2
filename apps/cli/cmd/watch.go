package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watch re-runs the suites named by args whenever a scenario file or the
// config file changes, until ctx is cancelled.
func watch(ctx context.Context, cmd *cobra.Command, args []string, session *runSession) error {
	out := cmd.OutOrStdout()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dirs, err := watchDirs(args)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to watch %s: %v\n", dir, err)
		}
	}

	fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// A nil channel blocks, so no rerun is pending until the first event.
	var rerun <-chan time.Time
	var changed string

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if !relevant(event) {
				continue
			}
			changed = event.Name
			rerun = time.After(WatchDebounceDelay)

		case <-rerun:
			rerun = nil
			fmt.Fprintf(out, "\n\nFile changed: %s\nRe-running scenarios...\n\n", changed)

			suites, err := loadSuites(args)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			} else {
				_, _ = session.run(ctx, suites)
			}

			fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "warning: watcher error: %v\n", err)
		}
	}
}

// relevant reports whether event touches a scenario file or the config file.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	if parser.IsScenarioFile(event.Name) {
		return true
	}
	return configFlag != "" && filepath.Clean(event.Name) == filepath.Clean(configFlag)
}

// watchDirs lists the directories to watch: every directory below a
// directory argument, the directory of each file argument and the directory
// of the config file.
func watchDirs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(filepath.Dir(arg))
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && (d.Name() == "node_modules" || d.Name()[0] == '.') {
					return filepath.SkipDir
				}
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if configFlag != "" {
		add(filepath.Dir(configFlag))
	}
	return dirs, nil
}
