// Package errors provides centralized error handling for the event pipeline.
// Errors carry a component, a category and free-form context, and the category
// determines whether the queue layer may redrive the failed work item.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryDatabase      ErrorCategory = "database"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryStorage       ErrorCategory = "storage"
	CategoryQueue         ErrorCategory = "queue"
	CategoryClassifier    ErrorCategory = "classifier"
	CategoryAudio         ErrorCategory = "audio-processing"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryNotification  ErrorCategory = "notification"
	CategoryNetwork       ErrorCategory = "network"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryState         ErrorCategory = "state"
	CategoryGeneric       ErrorCategory = "generic"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// retryableCategories lists categories that represent transient infrastructure
// failures. Anything else is permanent unless marked retryable explicitly.
var retryableCategories = map[ErrorCategory]bool{
	CategoryStorage: true,
	CategoryQueue:   true,
	CategoryNetwork: true,
	CategoryTimeout: true,
}

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where error occurred
	Category  ErrorCategory  // Error category for better grouping
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
	retryable *bool          // Explicit retryable override
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is implements error type checking, matching on category for enhanced targets
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetCategory returns the error category
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// Retryable reports whether the error represents a transient condition that
// the queue layer is allowed to redrive.
func (ee *EnhancedError) Retryable() bool {
	if ee.retryable != nil {
		return *ee.retryable
	}
	return retryableCategories[ee.Category]
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
	retryable *bool
}

// New creates a new error builder wrapping err
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error builder
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Retryable overrides the category-derived transient/permanent classification
func (eb *ErrorBuilder) Retryable(retryable bool) *ErrorBuilder {
	eb.retryable = &retryable
	return eb
}

// Build creates the EnhancedError
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
		retryable: eb.retryable,
	}
	if ee.Component == "" {
		ee.Component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = CategoryGeneric
	}
	return ee
}

// IsRetryable reports whether err (or any error in its chain) is a transient
// failure. Plain errors without category information are treated as permanent.
func IsRetryable(err error) bool {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Retryable()
	}
	return false
}

// IsConflict reports whether err carries the conflict category.
func IsConflict(err error) bool {
	return hasCategory(err, CategoryConflict)
}

// IsNotFound reports whether err carries the not-found category.
func IsNotFound(err error) bool {
	return hasCategory(err, CategoryNotFound)
}

// IsValidation reports whether err carries the validation category.
func IsValidation(err error) bool {
	return hasCategory(err, CategoryValidation)
}

func hasCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category == category
	}
	return false
}

// Standard library pass-throughs so callers only need this package.

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join returns an error wrapping the given errors
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
