package models

import "errors"

var (
	// ErrNotFound is returned when an article id is unknown
	ErrNotFound = errors.New("article not found")

	// ErrPreconditionFailed is returned when publish has no text to send
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrInvalidInput covers malformed candidates, actions, statuses and platforms
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned for moves the state machine does not allow
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateURL is the storage-level uniqueness violation on articles.url
	ErrDuplicateURL = errors.New("article url already exists")
)

// ErrUpstream is returned when an on-demand AI call fails
var ErrUpstream = errors.New("upstream service unavailable")
