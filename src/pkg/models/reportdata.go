package models

import "time"

// ReportData represents the complete report data structure
type ReportData struct {
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
	Root      string    `json:"root"`

	// Filters as given on the command line; Configs holds the effective set
	Arches  []string `json:"arches,omitempty"`
	Configs []string `json:"configs"`
	Crates  []string `json:"crates,omitempty"`
	Tools   []string `json:"tools,omitempty"`

	// Generate holds the per-tool generate step, Invocations the command itself
	Generate    []InvocationReport `json:"generate"`
	Invocations []InvocationReport `json:"invocations"`

	// Built is true when any invocation succeeded or reported warnings
	Built bool `json:"built"`

	Privileged *PrivilegedSummary `json:"privileged,omitempty"`
}
