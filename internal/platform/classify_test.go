package platform

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeFatal},
		{"login required", &loginRequiredError{}, OutcomeRecoverable},
		{"client outdated", &clientOutdatedError{message: "update the app to the latest version"}, OutcomeRecoverable},
		{"challenge", &ChallengeRequiredError{Methods: []string{"email"}}, OutcomeVerification},
		{"two factor", &TwoFactorRequiredError{Identifier: "abc"}, OutcomeVerification},
		{"throttled", &throttledError{}, OutcomeThrottled},
		{"no result", fmt.Errorf("story upload: %w", errNoResult), OutcomeTransient},
		{"server error", &apiError{StatusCode: 503, Message: "unavailable"}, OutcomeTransient},
		{"client error", &apiError{StatusCode: 400, Message: "bad request"}, OutcomeFatal},
		{"network timeout", timeoutErr{}, OutcomeTransient},
		{"wrapped login required", fmt.Errorf("validate: %w", &loginRequiredError{}), OutcomeRecoverable},
		{"cancelled", context.Canceled, OutcomeFatal},
		{"deadline", context.DeadlineExceeded, OutcomeFatal},
		{"unknown", errors.New("mystery"), OutcomeFatal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}
