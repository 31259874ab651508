package ml

import (
	"errors"
	"fmt"

	"sustainai/internal/features"
)

var (
	// ErrArtifactNotFound means the artifact path does not resolve to a readable file.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrArtifactCorrupt means the bytes could not be turned into a valid ensemble.
	ErrArtifactCorrupt = errors.New("artifact corrupt")

	// ErrSchemaMismatch means the ensemble was not trained on the five process features.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrModelNotLoaded is returned by engine calls made before a model is bound.
	ErrModelNotLoaded = errors.New("model not loaded")

	// ErrAlreadyLoaded is returned by a second attempt to bind a model.
	ErrAlreadyLoaded = errors.New("model already loaded")

	// ErrInvalidInput is the kind of every rejected feature vector.
	ErrInvalidInput = features.ErrInvalidInput
)

// ArtifactError is a loader failure tied to the file that caused it.
type ArtifactError struct {
	Kind error
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func artifactError(kind error, path string, err error) error {
	return &ArtifactError{Kind: kind, Path: path, Err: err}
}

func artifactErrorf(kind error, path string, format string, args ...any) error {
	return &ArtifactError{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

// decodeError is raised by decoders that do not know the artifact path;
// Load attaches it.
type decodeError struct {
	kind error
	err  error
}

func (e *decodeError) Error() string {
	return e.err.Error()
}

func (e *decodeError) Unwrap() error {
	return e.err
}

func schemaErrorf(format string, args ...any) error {
	return &decodeError{kind: ErrSchemaMismatch, err: fmt.Errorf(format, args...)}
}

func corruptErrorf(format string, args ...any) error {
	return &decodeError{kind: ErrArtifactCorrupt, err: fmt.Errorf(format, args...)}
}

// withPath converts a decoder error into an ArtifactError. Errors without an
// explicit kind are treated as corruption.
func withPath(path string, err error) error {
	var de *decodeError
	if errors.As(err, &de) {
		return artifactError(de.kind, path, err)
	}
	return artifactError(ErrArtifactCorrupt, path, err)
}

// ErrorKind names the error class of err for transport layers.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrModelNotLoaded):
		return "model_not_loaded"
	case errors.Is(err, ErrArtifactNotFound):
		return "artifact_not_found"
	case errors.Is(err, ErrArtifactCorrupt):
		return "artifact_corrupt"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrAlreadyLoaded):
		return "already_loaded"
	default:
		return "internal"
	}
}

// KindError maps a name produced by ErrorKind back to its sentinel.
func KindError(kind string) error {
	switch kind {
	case "invalid_input":
		return ErrInvalidInput
	case "model_not_loaded":
		return ErrModelNotLoaded
	case "artifact_not_found":
		return ErrArtifactNotFound
	case "artifact_corrupt":
		return ErrArtifactCorrupt
	case "schema_mismatch":
		return ErrSchemaMismatch
	case "already_loaded":
		return ErrAlreadyLoaded
	default:
		return nil
	}
}
