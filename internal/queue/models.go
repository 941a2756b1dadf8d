package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a spotted message.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusReview   Status = "review"
	StatusPosted   Status = "posted"
	StatusFailed   Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusApproved,
	StatusRejected,
	StatusReview,
	StatusPosted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// allowedFrom encodes the publishing state machine: the set of statuses a
// message may hold immediately before entering the key status. An approved
// retry of a failed message is the admin reset path.
var allowedFrom = map[Status][]Status{
	StatusApproved: {StatusPending, StatusReview, StatusFailed},
	StatusRejected: {StatusPending, StatusReview},
	StatusReview:   {StatusPending},
	StatusPosted:   {StatusApproved},
	StatusFailed:   {StatusApproved},
}

// Message represents a spotted submission persisted in SQLite.
type Message struct {
	ID             int64
	Text           string
	Status         Status
	SubmitterToken string
	ModerationNote string
	MediaID        string
	ErrorReason    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	PostedAt       *time.Time
}

// StatusUpdate carries the optional columns written alongside a status change.
type StatusUpdate struct {
	MediaID        string
	ErrorReason    string
	PostedAt       *time.Time
	ModerationNote string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the pipeline for a message.
// Failed messages can still be reset to approved by an operator, but the
// pipeline itself never moves them.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusPosted, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the state machine permits moving a message
// from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range allowedFrom[to] {
		if allowed == from {
			return true
		}
	}
	return false
}

// IsPublishable reports whether the message is ready for the render+publish flow.
func (m *Message) IsPublishable() bool {
	return m != nil && m.Status == StatusApproved
}
