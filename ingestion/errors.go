package ingestion

import "errors"

var (
	// ErrCheckerRequired is returned when no checker is provided.
	ErrCheckerRequired = errors.New("checker required")

	// ErrPipelineReleased is returned when work is submitted after Release.
	ErrPipelineReleased = errors.New("pipeline released")
)
