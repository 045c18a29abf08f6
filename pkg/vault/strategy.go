package vault

import (
	"context"

	"github.com/holiman/uint256"
)

// Harvester is the strategy side of a vault. It converts accrued external rewards
// (Curve, Balancer, Votium...) into the vault's underlying asset and reports the
// amount obtained. The vault only sees the final amount in underlying units.
type Harvester interface {
	Harvest(ctx context.Context) (*uint256.Int, error)
}

// HarvesterFunc adapts a function to the Harvester interface
type HarvesterFunc func(ctx context.Context) (*uint256.Int, error)

func (f HarvesterFunc) Harvest(ctx context.Context) (*uint256.Int, error) {
	return f(ctx)
}
