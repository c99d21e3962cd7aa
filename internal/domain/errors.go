package domain

import "errors"

// Sentinel errors shared by the attendee repositories.
var (
	ErrAttendeeNotFound  = errors.New("attendee not found")
	ErrDuplicateAttendee = errors.New("attendee already exists")
)
