// Package stats keeps HDR histograms of scenario attempt durations and
// reports run-wide and per-scenario percentiles.
package stats
