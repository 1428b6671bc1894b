package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Failure markers for upstream requests. Callers match them with errors.Is
// to decide whether a failure is worth retrying or should surface as-is.
var (
	// ErrTransient marks failures worth retrying: timeouts, connection
	// resets, 5xx responses, and throttling.
	ErrTransient = errors.New("transient failure")

	// ErrPermanent marks failures that will not succeed on retry, such as
	// rejected requests and malformed payloads.
	ErrPermanent = errors.New("permanent failure")

	// ErrNotFound marks a 404 for an id that does not exist upstream. During
	// sequential scans this is an expected outcome, not a fault.
	ErrNotFound = errors.New("not found")
)

// Wrap annotates err with a failure marker, the source and endpoint it came
// from, and an optional message. A nil marker defaults to ErrTransient.
func Wrap(marker error, source, endpoint, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := buildDetail(source, endpoint, message)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsPermanent reports whether err will keep failing on retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// IsNotFound reports whether err represents a record missing upstream.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ClassifyStatus maps an HTTP status code to its failure marker. Success
// codes map to nil.
func ClassifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrTransient
	case code >= 500:
		return ErrTransient
	default:
		return ErrPermanent
	}
}

// FailureLabel returns a short label describing the failure class of err,
// suitable for persisting alongside queue items.
func FailureLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermanent):
		return "permanent"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "error"
	}
}

func buildDetail(source, endpoint, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{source, endpoint, message} {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return "request failure"
	}
	return strings.Join(parts, ": ")
}
