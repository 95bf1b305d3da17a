package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateNotFound is fatal: no template, not even the task default, exists.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrCacheMiss indicates no live cached entry was found.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable indicates the cache backend could not be reached.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest indicates malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrOverlappingWindows indicates drift windows share time.
	ErrOverlappingWindows = errors.New("windows overlap")

	// ErrModelUnavailable matches any ModelUnavailableError.
	ErrModelUnavailable = errors.New("model unavailable")
)

// TemplateNotFoundError names the missing template.
type TemplateNotFoundError struct {
	TaskType     TaskType
	DocumentType DocumentType
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("no prompt template for task %q (document type %q) and no task default", e.TaskType, e.DocumentType)
}

// Is matches ErrTemplateNotFound.
func (e *TemplateNotFoundError) Is(target error) bool {
	return target == ErrTemplateNotFound
}

// ModelInvocationError is a single failed model call, including timeouts.
type ModelInvocationError struct {
	ModelID string
	Attempt int
	Err     error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model %s invocation failed (attempt %d): %v", e.ModelID, e.Attempt, e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}

// ModelUnavailableError is surfaced once retries are exhausted so the caller
// can choose a fallback tier.
type ModelUnavailableError struct {
	TaskType TaskType
	ModelID  string
	Tier     ModelTier
	Attempts int
	Err      error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("processing failed, retry later: task %s on model %s (tier %s) failed after %d attempts: %v",
		e.TaskType, e.ModelID, e.Tier, e.Attempts, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}

// Is matches ErrModelUnavailable.
func (e *ModelUnavailableError) Is(target error) bool {
	return target == ErrModelUnavailable
}

// InsufficientDataError describes an under-populated drift window. It is
// returned as a value inside DriftReport, not as an error.
type InsufficientDataError struct {
	Window   string `json:"window"`
	Eligible int    `json:"eligible"`
	Minimum  int    `json:"minimum"`
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data in %s window: %d eligible records, need %d", e.Window, e.Eligible, e.Minimum)
}
