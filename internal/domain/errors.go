package domain

import "errors"

// Allocation failures surfaced to the caller. The handler maps each of these to
// an error kind in the response body.
var (
	ErrInvalidInput          = errors.New("patient and doctor identifiers must be positive integers")
	ErrDoctorNotFound        = errors.New("doctor not found")
	ErrDuplicateActiveTicket = errors.New("an active ticket already exists for this user with this doctor")
	ErrNoScheduleThisWeek    = errors.New("no available schedules for this doctor this week")
	ErrCapacityExhausted     = errors.New("the doctor's capacity is full, please try again later")
	ErrStorageConflict       = errors.New("the schedule was modified by a concurrent reservation, please retry")
)
