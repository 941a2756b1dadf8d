package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Outcome tags a platform error with the single recovery strategy that
// applies to it. Classification happens once, at this boundary; everything
// downstream switches on the tag and never inspects error text.
type Outcome int

const (
	// OutcomeFatal means no automatic recovery applies.
	OutcomeFatal Outcome = iota
	// OutcomeRecoverable means the cached session is invalid and exactly one
	// fresh login may fix it.
	OutcomeRecoverable
	// OutcomeVerification means the platform demands an interactive
	// verification step before the session is trusted.
	OutcomeVerification
	// OutcomeThrottled means the platform is rate limiting; back off and
	// retry.
	OutcomeThrottled
	// OutcomeTransient means a network-level or server-side failure that a
	// plain retry may fix.
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecoverable:
		return "recoverable"
	case OutcomeVerification:
		return "verification"
	case OutcomeThrottled:
		return "throttled"
	case OutcomeTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// loginRequiredError reports that the platform no longer accepts the cached
// session.
type loginRequiredError struct {
	message string
}

func (e *loginRequiredError) Error() string {
	if e.message == "" {
		return "login required"
	}
	return e.message
}

// clientOutdatedError reports the platform's "update the app" rejection,
// which in practice means the cached device profile is stale and a full
// login with a fresh profile is needed.
type clientOutdatedError struct {
	message string
}

func (e *clientOutdatedError) Error() string { return e.message }

// ChallengeRequiredError reports an interactive verification demand.
type ChallengeRequiredError struct {
	APIPath string
	Methods []string
}

func (e *ChallengeRequiredError) Error() string {
	return fmt.Sprintf("verification challenge required (methods: %v)", e.Methods)
}

// TwoFactorRequiredError reports a two-factor code demand during login.
type TwoFactorRequiredError struct {
	Identifier string
}

func (e *TwoFactorRequiredError) Error() string { return "two-factor code required" }

// throttledError reports a rate-limit rejection.
type throttledError struct {
	message string
}

func (e *throttledError) Error() string {
	if e.message == "" {
		return "request throttled"
	}
	return e.message
}

// errNoResult reports a call the platform accepted but answered without the
// expected payload. Treated as transient: a retry usually completes.
var errNoResult = errors.New("platform returned no result")

// apiError is any other structured rejection from the platform.
type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("platform rejected request (%d): %s", e.StatusCode, e.Message)
}

// Classify maps a platform error onto the closed Outcome set. Context
// cancellation is deliberately fatal here: the caller decided to stop, not
// the platform.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeFatal
	}

	var loginRequired *loginRequiredError
	var outdated *clientOutdatedError
	var challenge *ChallengeRequiredError
	var twoFactor *TwoFactorRequiredError
	var throttled *throttledError
	var api *apiError
	var netErr net.Error

	switch {
	case errors.As(err, &loginRequired), errors.As(err, &outdated):
		return OutcomeRecoverable
	case errors.As(err, &challenge), errors.As(err, &twoFactor):
		return OutcomeVerification
	case errors.As(err, &throttled):
		return OutcomeThrottled
	case errors.Is(err, errNoResult):
		return OutcomeTransient
	case errors.As(err, &api):
		if api.StatusCode >= 500 {
			return OutcomeTransient
		}
		return OutcomeFatal
	case errors.As(err, &netErr):
		return OutcomeTransient
	default:
		return OutcomeFatal
	}
}
