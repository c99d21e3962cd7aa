package pipeline

import "errors"

// Sentinel errors for the pipeline.
var (
	// ErrMissingColumn means a required header is absent from the sheet.
	// It is a configuration error and ends Run.
	ErrMissingColumn = errors.New("required column not found in sheet")
)
