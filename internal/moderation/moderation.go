// Package moderation defines the contract the publishing pipeline expects
// from the content-moderation collaborator, plus the policy that maps an
// inconclusive outcome onto a message status. The decision logic itself
// lives outside this repository.
package moderation

import (
	"context"
	"fmt"

	"spotd/internal/queue"
)

// Decision is the moderation collaborator's verdict for a submission.
type Decision string

const (
	DecisionApprove      Decision = "approve"
	DecisionReject       Decision = "reject"
	DecisionInconclusive Decision = "inconclusive"
)

// Result carries a decision and the rationale behind it.
type Result struct {
	Decision Decision
	Reason   string
}

// Moderator is implemented by the external moderation collaborator.
type Moderator interface {
	Moderate(ctx context.Context, text string) (Result, error)
}

// InconclusivePolicy decides where a message lands when moderation cannot
// reach a verdict (including moderation-service errors).
type InconclusivePolicy string

const (
	// PolicyReview routes inconclusive messages to manual review.
	PolicyReview InconclusivePolicy = "review"
	// PolicyApprove auto-approves so publishing is never blocked on the
	// moderation service.
	PolicyApprove InconclusivePolicy = "approve"
	// PolicyHold leaves the message pending until an operator decides.
	PolicyHold InconclusivePolicy = "hold"
)

// ParsePolicy converts a config value into an InconclusivePolicy.
func ParsePolicy(value string) (InconclusivePolicy, error) {
	switch InconclusivePolicy(value) {
	case PolicyReview, PolicyApprove, PolicyHold:
		return InconclusivePolicy(value), nil
	default:
		return "", fmt.Errorf("unknown inconclusive policy %q", value)
	}
}

// StatusFor maps a moderation decision to the message status the
// orchestrator should persist. The second return value reports whether a
// status write is needed at all: a held inconclusive message stays pending.
func (p InconclusivePolicy) StatusFor(decision Decision) (queue.Status, bool) {
	switch decision {
	case DecisionApprove:
		return queue.StatusApproved, true
	case DecisionReject:
		return queue.StatusRejected, true
	default:
		switch p {
		case PolicyApprove:
			return queue.StatusApproved, true
		case PolicyHold:
			return queue.StatusPending, false
		default:
			return queue.StatusReview, true
		}
	}
}
