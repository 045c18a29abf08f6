package distributor

import "errors"

var (
	ErrFrozen               = errors.New("distributor is frozen")
	ErrNotFrozen            = errors.New("distributor not frozen")
	ErrClaimsPeriodFinished = errors.New("claims period has finished")
	ErrAlreadyClaimed       = errors.New("drop already claimed")
	ErrInvalidProof         = errors.New("invalid proof")
	ErrInvalidAddress       = errors.New("invalid address")
)
