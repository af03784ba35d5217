package registry

import (
	"errors"

	"github.com/IronJam11/zk-carbon/pkg/safemath"
)

// Domain errors. Every precondition failure aborts the whole call with no
// partial effect; there is no retry or recovery inside the registry.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidResponse     = errors.New("invalid response")
	ErrRequestNotFound     = errors.New("request not found")
	ErrClaimNotFound       = errors.New("claim not found")
	ErrRequestNotActive    = errors.New("request not active")
	ErrClaimNotActive      = errors.New("claim not active")
	ErrVotingEnded         = errors.New("voting period has ended")
	ErrVotingNotEnded      = errors.New("voting period not ended yet")
	ErrAlreadyVoted        = errors.New("already voted")
	ErrNotEnoughCredits    = errors.New("not enough carbon credits")
	ErrBorrowerNotEligible = errors.New("borrower not eligible")
	ErrInvalidNumericInput = errors.New("invalid numeric input")
	ErrNotInstantiated     = errors.New("registry not instantiated")
	ErrAlreadyInstantiated = errors.New("registry already instantiated")

	// ErrOverflow is shared with the checked-math helpers so that callers can
	// match on a single sentinel.
	ErrOverflow = safemath.ErrOverflow
)
