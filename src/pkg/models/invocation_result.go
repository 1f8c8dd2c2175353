package models

// InvocationReport is one tool spawn and how it ended
type InvocationReport struct {
	Tool    string   `json:"tool"`
	Command string   `json:"command"`
	Config  string   `json:"config,omitempty"`
	Arches  []string `json:"arches,omitempty"`
	Crates  []string `json:"crates"`

	Outcome    string `json:"outcome"`  // "success", "degraded", "skipped" or "abort"
	ExitCode   int    `json:"exitCode"` // raw process exit code
	DurationMs int64  `json:"durationMs"`
}

// PrivilegedSummary describes the batched admin tasks of a run
type PrivilegedSummary struct {
	Decision string   `json:"decision"` // "none", "allowed" or "denied"
	Commands []string `json:"commands,omitempty"`
	Packages []string `json:"packages,omitempty"`
}
