package model

import "errors"

// Error definitions shared by the persistence and inference layers.
var (
	// ErrNotFound means a model name or ID is absent from the registry.
	ErrNotFound = errors.New("model not found in registry")

	// ErrMissingArtifact means the registry references files that no longer
	// exist on durable storage.
	ErrMissingArtifact = errors.New("model files missing on storage")

	// ErrNotLoaded means predict was requested before the model was prepared.
	ErrNotLoaded = errors.New("model not loaded for inference")

	// ErrUnsupported means the model exposes no capability for the requested
	// operation.
	ErrUnsupported = errors.New("operation not supported by model")

	// ErrValidation means the caller supplied malformed or missing input.
	ErrValidation = errors.New("invalid input")

	// ErrConfiguration means the deployment lacks a feature schema for a
	// requested model name. This is an operator defect, not a caller error.
	ErrConfiguration = errors.New("missing feature configuration")

	// ErrSerialization means an artifact or document failed to encode or decode.
	ErrSerialization = errors.New("model serialization failed")

	// ErrConcurrentWrite means the registry document changed underneath a
	// write; the losing mutation is rejected instead of silently discarded.
	ErrConcurrentWrite = errors.New("registry modified by concurrent writer")
)
