package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks lookups of segments or records that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrPrecondition marks actions that are illegal in the record's current state.
	ErrPrecondition = errors.New("precondition violation")
	// ErrStale marks callbacks that would regress a record's state.
	ErrStale = errors.New("stale event")
	// ErrAlreadySatisfied marks duplicate deliveries whose effect is already
	// applied; callers treat it as a successful no-op.
	ErrAlreadySatisfied = errors.New("already satisfied")
	// ErrValidation marks malformed requests or payloads.
	ErrValidation = errors.New("validation error")
	// ErrUnavailable marks backend failures (store or queue unreachable).
	ErrUnavailable = errors.New("backend unavailable")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
