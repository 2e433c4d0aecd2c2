//go:build mage

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binary  = "bin/pagespec"
	cmdPath = "./apps/cli"
)

// Default target - build the binary
var Default = Build

func ldflags() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("-s -w -X main.version=%s -X main.buildTime=%s",
		version, time.Now().UTC().Format(time.RFC3339))
}

// Build builds the pagespec binary
func Build() error {
	return sh.RunV("go", "build", "-ldflags", ldflags(), "-o", binary, cmdPath)
}

// Install installs the playwright driver and chromium
func Install() error {
	return sh.RunV("go", "run", "github.com/playwright-community/playwright-go/cmd/playwright", "install", "--with-deps", "chromium")
}

// Clean removes build artifacts and reports
func Clean() error {
	for _, path := range []string{"bin", "test-results", "pagespec-report"} {
		if err := sh.Rm(path); err != nil {
			return err
		}
	}
	return nil
}

// Test namespace for testing commands
type Test mg.Namespace

// Unit runs the tests that need no browser
func (Test) Unit() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// E2E runs the built-in suite in a real browser against the console imitation
func (Test) E2E() error {
	mg.Deps(Install)
	return sh.RunV("go", "test", "-tags", "e2e", "./packages/suites/...", "./packages/browser/...")
}

// All runs unit and e2e tests
func (Test) All() {
	mg.SerialDeps(Test.Unit, Test.E2E)
}

// Lint namespace for linting commands
type Lint mg.Namespace

// Vet runs go vet
func (Lint) Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Golangci runs golangci-lint
func (Lint) Golangci() error {
	return sh.RunV("golangci-lint", "run", "--timeout=5m", "./...")
}

// Mock serves the console imitation on port 3000
func Mock() error {
	return sh.RunV("go", "run", cmdPath, "mock", "--verbose")
}
