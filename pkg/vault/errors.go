package vault

import "errors"

var (
	ErrDepositTooSmall     = errors.New("deposit too small")
	ErrNoUsers             = errors.New("no users")
	ErrConfigTooHigh       = errors.New("config value too high")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrNotActive           = errors.New("vault strategy not set")
	ErrStrategyAlreadySet  = errors.New("vault strategy already set")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrPermissionedHarvest = errors.New("permissioned harvest")
	ErrOverflow            = errors.New("uint256 overflow")
	ErrDivisionByZero      = errors.New("division by zero")
)
