package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks failures caused by caller input; never retried.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks failures caused by missing or invalid configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups for records that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrRenderUnavailable marks a render attempt where every backend failed.
	ErrRenderUnavailable = errors.New("render unavailable")
	// ErrAuthenticationRequired marks platform calls rejected for a stale session.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrVerificationRequired marks logins blocked on an interactive challenge.
	ErrVerificationRequired = errors.New("verification required")
	// ErrTransient marks failures worth retrying with backoff.
	ErrTransient = errors.New("transient failure")
	// ErrStorage marks persistence failures; retried a bounded number of times.
	ErrStorage = errors.New("storage error")
	// ErrPublishFailed marks a publish that exhausted every retry.
	ErrPublishFailed = errors.New("publish failed")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
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

// Reason extracts a human-readable failure description suitable for the
// message error_reason column. Sentinel prefixes stay, raw credentials and
// stack traces never enter errors built through Wrap.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}
