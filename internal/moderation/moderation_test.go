package moderation_test

import (
	"testing"

	"spotd/internal/moderation"
	"spotd/internal/queue"
)

func TestParsePolicy(t *testing.T) {
	for _, valid := range []string{"review", "approve", "hold"} {
		if _, err := moderation.ParsePolicy(valid); err != nil {
			t.Errorf("ParsePolicy(%q): %v", valid, err)
		}
	}
	if _, err := moderation.ParsePolicy("sometimes"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestStatusForDecisions(t *testing.T) {
	cases := []struct {
		name      string
		policy    moderation.InconclusivePolicy
		decision  moderation.Decision
		want      queue.Status
		wantWrite bool
	}{
		{"approve always approves", moderation.PolicyReview, moderation.DecisionApprove, queue.StatusApproved, true},
		{"reject always rejects", moderation.PolicyApprove, moderation.DecisionReject, queue.StatusRejected, true},
		{"inconclusive review", moderation.PolicyReview, moderation.DecisionInconclusive, queue.StatusReview, true},
		{"inconclusive approve", moderation.PolicyApprove, moderation.DecisionInconclusive, queue.StatusApproved, true},
		{"inconclusive hold", moderation.PolicyHold, moderation.DecisionInconclusive, queue.StatusPending, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, write := tc.policy.StatusFor(tc.decision)
			if got != tc.want || write != tc.wantWrite {
				t.Fatalf("StatusFor(%s) = (%s, %v), want (%s, %v)",
					tc.decision, got, write, tc.want, tc.wantWrite)
			}
		})
	}
}
