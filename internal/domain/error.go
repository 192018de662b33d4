package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("task not found")
	ErrValidation         = errors.New("invalid argument")
	ErrAlreadyRunning     = errors.New("task execution already in flight")
	ErrBackendUnavailable = errors.New("store backend unavailable")

	// Inference failures, recorded into the task record rather than
	// propagated to the submitter.
	ErrInferenceTimeout    = errors.New("inference request timed out")
	ErrInferenceConnection = errors.New("inference backend unreachable")
	ErrInferenceBackend    = errors.New("inference backend error")
)
