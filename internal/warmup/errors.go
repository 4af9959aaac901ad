package warmup

import "errors"

// Sentinel errors for the warmup service layer.
var (
	ErrPlanNotFound      = errors.New("warmup plan not found")
	ErrJobNotFound       = errors.New("warmup job not found")
	ErrEmailNotFound     = errors.New("warmup email not found")
	ErrInvalidStrategy   = errors.New("unknown warmup strategy")
	ErrInvalidSettings   = errors.New("warmup settings out of range")
	ErrInvalidTransition = errors.New("invalid plan status transition")
	ErrNoRecipients      = errors.New("no warmup recipients available")
)
