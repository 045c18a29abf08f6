package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Default fee policy of the Union generic vault
const (
	DefaultPlatformFeeBps       = 1200
	DefaultCallIncentiveBps     = 500
	DefaultWithdrawalPenaltyBps = 100

	DefaultMaxPlatformFeeBps       = 2000
	DefaultMaxCallIncentiveBps     = 500
	DefaultMaxWithdrawalPenaltyBps = 150
)

// Config is the fee policy of a vault. Caps are policy too: vault families differ.
type Config struct {
	// Platform receives the platform fee on every harvest
	Platform common.Address `json:"platform"`

	PlatformFeeBps       uint64 `json:"platformFeeBps"`
	CallIncentiveBps     uint64 `json:"callIncentiveBps"`
	WithdrawalPenaltyBps uint64 `json:"withdrawalPenaltyBps"`

	MaxPlatformFeeBps       uint64 `json:"maxPlatformFeeBps"`
	MaxCallIncentiveBps     uint64 `json:"maxCallIncentiveBps"`
	MaxWithdrawalPenaltyBps uint64 `json:"maxWithdrawalPenaltyBps"`

	// HarvestPermissioned restricts harvest to authorized callers while there are depositors
	HarvestPermissioned bool `json:"harvestPermissioned"`
}

// DefaultConfig returns the generic vault defaults
func DefaultConfig() *Config {
	return &Config{
		PlatformFeeBps:          DefaultPlatformFeeBps,
		CallIncentiveBps:        DefaultCallIncentiveBps,
		WithdrawalPenaltyBps:    DefaultWithdrawalPenaltyBps,
		MaxPlatformFeeBps:       DefaultMaxPlatformFeeBps,
		MaxCallIncentiveBps:     DefaultMaxCallIncentiveBps,
		MaxWithdrawalPenaltyBps: DefaultMaxWithdrawalPenaltyBps,
	}
}

// Validate checks every fee against its cap. All failures wrap ErrConfigTooHigh.
func (c *Config) Validate() error {
	caps := []struct {
		name string
		cap  uint64
	}{
		{"max platform fee", c.MaxPlatformFeeBps},
		{"max call incentive", c.MaxCallIncentiveBps},
		{"max withdrawal penalty", c.MaxWithdrawalPenaltyBps},
	}
	for _, cp := range caps {
		if cp.cap > FeeDenominator {
			return fmt.Errorf("%w: %s %d exceeds %d", ErrConfigTooHigh, cp.name, cp.cap, FeeDenominator)
		}
	}

	if err := checkBps("platform fee", c.PlatformFeeBps, c.MaxPlatformFeeBps); err != nil {
		return err
	}
	if err := checkBps("call incentive", c.CallIncentiveBps, c.MaxCallIncentiveBps); err != nil {
		return err
	}
	if err := checkBps("withdrawal penalty", c.WithdrawalPenaltyBps, c.MaxWithdrawalPenaltyBps); err != nil {
		return err
	}

	// Fee and incentive are both taken from the same harvest
	if c.PlatformFeeBps+c.CallIncentiveBps > FeeDenominator {
		return fmt.Errorf("%w: platform fee %d plus call incentive %d exceeds %d",
			ErrConfigTooHigh, c.PlatformFeeBps, c.CallIncentiveBps, FeeDenominator)
	}
	return nil
}

func checkBps(name string, value, max uint64) error {
	if value > max {
		return fmt.Errorf("%w: %s %d exceeds max %d", ErrConfigTooHigh, name, value, max)
	}
	return nil
}
