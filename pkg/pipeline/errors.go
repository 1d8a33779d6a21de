package pipeline

import (
	"errors"
	"strings"
)

// Error kinds recorded in dead-letter payloads.
const (
	ErrorKindTransient = "transient"
	ErrorKindPermanent = "permanent"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as non-retryable: the failure policy dead-letters
// the task immediately instead of burning retries on it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err or any error it wraps was marked
// permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Kind returns the error kind for dead-letter payloads.
func Kind(err error) string {
	if IsPermanent(err) {
		return ErrorKindPermanent
	}
	return ErrorKindTransient
}

// nonRetryableTokens mark dead-letter messages that no amount of
// replaying can fix. Kept for entries that predate the error_kind tag
// or were pushed by hand.
var nonRetryableTokens = []string{
	"local_path is required",
	"local_path is missing",
}

// RetryableMessage classifies an error message by substring. The check
// is case-insensitive.
func RetryableMessage(msg string) bool {
	lowered := strings.ToLower(msg)
	for _, token := range nonRetryableTokens {
		if strings.Contains(lowered, token) {
			return false
		}
	}
	return true
}

// ReplayEligible reports whether a dead-letter entry is worth replaying.
// The explicit error_kind tag wins; entries without one fall back to the
// message classifier.
func ReplayEligible(p DLQPayload) bool {
	switch p.ErrorKind {
	case ErrorKindPermanent:
		return false
	case ErrorKindTransient:
		return true
	}
	return RetryableMessage(p.ErrorMessage)
}
