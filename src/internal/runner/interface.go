package runner

import "github.com/gh-nvat/cargo-container/src/pkg/models"

type RunnerInterface interface {
	// Initialize the runner with necessary context and data
	Initialize() error

	// Main routine to process the runner
	Process() error

	// Handling the export
	Output(data *models.ReportData) error
}
