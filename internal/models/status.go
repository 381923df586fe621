package models

import (
	"fmt"
	"strings"
)

// ArticleStatus represents the moderation/publication state of an article
type ArticleStatus string

const (
	StatusPending   ArticleStatus = "pending"
	StatusApproved  ArticleStatus = "approved"
	StatusRejected  ArticleStatus = "rejected"
	StatusDeferred  ArticleStatus = "deferred"
	StatusPublished ArticleStatus = "published"
)

// AllStatuses lists every status in display order
var AllStatuses = []ArticleStatus{
	StatusPending,
	StatusApproved,
	StatusRejected,
	StatusDeferred,
	StatusPublished,
}

// ParseStatus converts a boundary value into an ArticleStatus
func ParseStatus(value string) (ArticleStatus, error) {
	s := ArticleStatus(strings.ToLower(strings.TrimSpace(value)))
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusDeferred, StatusPublished:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, value)
}

// ModerationAction is a reviewer decision
type ModerationAction string

const (
	ActionApprove ModerationAction = "approve"
	ActionReject  ModerationAction = "reject"
	ActionDefer   ModerationAction = "defer"
)

// ParseAction converts a boundary value into a ModerationAction
func ParseAction(value string) (ModerationAction, error) {
	a := ModerationAction(strings.ToLower(strings.TrimSpace(value)))
	switch a {
	case ActionApprove, ActionReject, ActionDefer:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q (use approve, reject or defer)", ErrInvalidInput, value)
}

// Target returns the status an action moves an article into
func (a ModerationAction) Target() ArticleStatus {
	switch a {
	case ActionApprove:
		return StatusApproved
	case ActionReject:
		return StatusRejected
	case ActionDefer:
		return StatusDeferred
	}
	return ""
}

// NextStatus applies a moderation action to the current status.
//
// pending moves to approved, rejected or deferred. Approving an approved or
// published article keeps its status (only the moderation timestamp moves).
// rejected and deferred accept nothing; published is only reachable through
// publication.
func NextStatus(current ArticleStatus, action ModerationAction) (ArticleStatus, error) {
	switch current {
	case StatusPending:
		if target := action.Target(); target != "" {
			return target, nil
		}
	case StatusApproved, StatusPublished:
		if action == ActionApprove {
			return current, nil
		}
	case StatusRejected, StatusDeferred:
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, current)
	}
	return "", fmt.Errorf("%w: cannot %s an article that is %s", ErrInvalidTransition, action, current)
}

// CanPublish reports whether articles in this status may be sent to platforms
func (s ArticleStatus) CanPublish() bool {
	return s == StatusApproved || s == StatusPublished
}
