package scoring

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned by collaborators when an exam has no
	// template, or a section has no curve assigned.
	ErrNotConfigured = errors.New("not configured")
	// ErrNotFound is returned by collaborators for unknown attempts or answers.
	ErrNotFound = errors.New("not found")

	ErrAttemptNotCompleted = errors.New("can only regrade completed attempts")
	ErrNoChange            = errors.New("new grading result is the same as current result")
)

// ConfigError aborts a scoring run: missing template, empty template, or a
// structurally invalid curve. It is never turned into a score of zero.
type ConfigError struct {
	Scope  string // "template", "curve:<section>", ...
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Scope == "" {
		return "scoring config: " + e.Reason
	}
	return fmt.Sprintf("scoring config (%s): %s", e.Scope, e.Reason)
}

// DataQualityError aborts a scoring run when too many answers reference
// missing or broken question data.
type DataQualityError struct {
	Invalid  int
	Total    int
	MaxRatio float64
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("%d of %d answers missing valid question data (limit %.0f%%)", e.Invalid, e.Total, e.MaxRatio*100)
}

// IsConfigError reports whether err carries a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsDataQualityError reports whether err carries a *DataQualityError.
func IsDataQualityError(err error) bool {
	var de *DataQualityError
	return errors.As(err, &de)
}
