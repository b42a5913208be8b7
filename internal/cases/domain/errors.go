package domain

import "errors"

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidZone       = errors.New("invalid_zone")
	ErrInvalidAction     = errors.New("invalid_action")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidDueDate    = errors.New("invalid_due_date")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidDays       = errors.New("invalid_days")
	ErrNotFound          = errors.New("not_found")
	ErrCaseClosed        = errors.New("case_closed")
	ErrConcurrentUpdate  = errors.New("concurrent_update")
	ErrInvalidTransition = errors.New("invalid_transition")
)
