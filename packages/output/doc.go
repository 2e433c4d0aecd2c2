// Package output provides reporters for scenario results.
//
// Supported output formats:
//   - Console ("list"): coloured terminal output, one line per scenario and
//     optionally one per step
//   - HTML: self-contained report with steps and attachments
//   - JSON: machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//
// Each formatter implements Formatter and can optionally implement
// Flushable for formats that accumulate results before output. Multi runs
// several reporters at once.
package output
