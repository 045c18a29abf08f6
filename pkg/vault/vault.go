// Package vault models the share accounting of a Union auto-compounding vault:
// deposits mint shares, withdrawals burn them less a penalty that stays with the
// remaining holders, and harvests grow the underlying balance net of fees.
package vault

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Layr-Labs/union-rewards-go/pkg/logger"
	"github.com/Layr-Labs/union-rewards-go/pkg/persistence"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// StateStore receives the vault state after every mutation
type StateStore interface {
	SaveVaultState(state *persistence.VaultState) error
}

// WithdrawResult describes a completed withdrawal
type WithdrawResult struct {
	Shares        *uint256.Int
	GrossAmount   *uint256.Int
	Penalty       *uint256.Int
	AmountPaidOut *uint256.Int
}

// HarvestResult splits a harvest between the platform, the caller and the depositors
type HarvestResult struct {
	Gross           *uint256.Int
	PlatformFee     *uint256.Int
	CallerIncentive *uint256.Int
	NetToDepositors *uint256.Int
	Platform        common.Address
	Caller          common.Address
}

// state is everything a mutation may change. Operations work on a clone and
// only swap it in once it has been persisted.
type state struct {
	cfg             Config
	strategy        common.Address
	harvesters      map[common.Address]bool
	totalUnderlying *uint256.Int
	totalSupply     *uint256.Int
	balances        map[common.Address]*uint256.Int
}

func (s *state) clone() *state {
	harvesters := make(map[common.Address]bool, len(s.harvesters))
	for k, v := range s.harvesters {
		harvesters[k] = v
	}
	balances := make(map[common.Address]*uint256.Int, len(s.balances))
	for k, v := range s.balances {
		balances[k] = new(uint256.Int).Set(v)
	}
	return &state{
		cfg:             s.cfg,
		strategy:        s.strategy,
		harvesters:      harvesters,
		totalUnderlying: new(uint256.Int).Set(s.totalUnderlying),
		totalSupply:     new(uint256.Int).Set(s.totalSupply),
		balances:        balances,
	}
}

func (s *state) balanceOf(account common.Address) *uint256.Int {
	if b, ok := s.balances[account]; ok {
		return b
	}
	return new(uint256.Int)
}

// Vault is safe for concurrent use.
type Vault struct {
	mu         sync.RWMutex
	id         string
	underlying common.Address
	state      *state
	store      StateStore
	logger     *zap.Logger
}

// NewVault creates an uninitialized vault; it accepts deposits once SetStrategy is called.
// cfg defaults to DefaultConfig. store may be nil.
func NewVault(id string, underlying common.Address, cfg *Config, store StateStore, l *zap.Logger) (*Vault, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &Vault{
		id:         id,
		underlying: underlying,
		state: &state{
			cfg:             *cfg,
			harvesters:      make(map[common.Address]bool),
			totalUnderlying: new(uint256.Int),
			totalSupply:     new(uint256.Int),
			balances:        make(map[common.Address]*uint256.Int),
		},
		store:  store,
		logger: logger.OrNop(l),
	}

	if err := v.persist(v.state); err != nil {
		return nil, err
	}
	return v, nil
}

// persist must be called with the write lock held
func (v *Vault) persist(next *state) error {
	if v.store == nil {
		return nil
	}
	if err := v.store.SaveVaultState(v.snapshot(next)); err != nil {
		return fmt.Errorf("failed to persist vault %s: %w", v.id, err)
	}
	return nil
}

// apply runs fn against a clone of the current state and commits the clone only if
// fn and persistence both succeed.
func (v *Vault) apply(fn func(next *state) error) error {
	next := v.state.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := v.persist(next); err != nil {
		return err
	}
	v.state = next
	return nil
}

func (v *Vault) ID() string {
	return v.id
}

func (v *Vault) Underlying() common.Address {
	return v.underlying
}

// Strategy returns the zero address while the vault is uninitialized
func (v *Vault) Strategy() common.Address {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.strategy
}

func (v *Vault) IsActive() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.strategy != (common.Address{})
}

// Config returns a copy of the current fee policy
func (v *Vault) Config() Config {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.cfg
}

// SetStrategy activates the vault. It can only be called once.
func (v *Vault) SetStrategy(strategy common.Address) error {
	if strategy == (common.Address{}) {
		return fmt.Errorf("%w: strategy", ErrInvalidAddress)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.strategy != (common.Address{}) {
		return ErrStrategyAlreadySet
	}

	err := v.apply(func(next *state) error {
		next.strategy = strategy
		return nil
	})
	if err != nil {
		return err
	}

	v.logger.Sugar().Infow("Vault strategy set", "vault", v.id, "strategy", strategy.Hex())
	return nil
}

// Deposit adds amount of underlying on behalf of receiver and returns the shares minted.
// A deposit that would mint zero shares is rejected.
func (v *Vault) Deposit(receiver common.Address, amount *uint256.Int) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.strategy == (common.Address{}) {
		return nil, ErrNotActive
	}
	if receiver == (common.Address{}) {
		return nil, fmt.Errorf("%w: receiver", ErrInvalidAddress)
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrDepositTooSmall
	}

	var shares *uint256.Int
	err := v.apply(func(next *state) error {
		if next.totalSupply.IsZero() {
			shares = new(uint256.Int).Set(amount)
		} else {
			var err error
			shares, err = mulDiv(amount, next.totalSupply, next.totalUnderlying)
			if err != nil {
				return err
			}
		}
		if shares.IsZero() {
			return ErrDepositTooSmall
		}

		underlying, err := checkedAdd(next.totalUnderlying, amount)
		if err != nil {
			return err
		}
		supply, err := checkedAdd(next.totalSupply, shares)
		if err != nil {
			return err
		}
		balance, err := checkedAdd(next.balanceOf(receiver), shares)
		if err != nil {
			return err
		}

		next.totalUnderlying = underlying
		next.totalSupply = supply
		next.balances[receiver] = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	v.logger.Sugar().Debugw("Vault deposit",
		"vault", v.id,
		"receiver", receiver.Hex(),
		"amount", amount.Dec(),
		"shares", shares.Dec(),
	)
	return shares, nil
}

// Withdraw burns shares from owner and pays receiver their value less the withdrawal
// penalty. The penalty stays in the vault, unless no shares remain after the burn.
func (v *Vault) Withdraw(owner, receiver common.Address, shares *uint256.Int) (*WithdrawResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.withdraw(owner, receiver, shares)
}

// WithdrawAll redeems every share owner holds
func (v *Vault) WithdrawAll(owner, receiver common.Address) (*WithdrawResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.withdraw(owner, receiver, v.state.balanceOf(owner))
}

func (v *Vault) withdraw(owner, receiver common.Address, shares *uint256.Int) (*WithdrawResult, error) {
	if v.state.strategy == (common.Address{}) {
		return nil, ErrNotActive
	}
	if receiver == (common.Address{}) {
		return nil, fmt.Errorf("%w: receiver", ErrInvalidAddress)
	}
	if v.state.totalSupply.IsZero() {
		return nil, ErrNoUsers
	}
	if shares == nil {
		shares = new(uint256.Int)
	}
	if shares.Gt(v.state.balanceOf(owner)) {
		return nil, ErrInsufficientShares
	}

	result := &WithdrawResult{Shares: new(uint256.Int).Set(shares)}
	err := v.apply(func(next *state) error {
		gross, err := mulDiv(shares, next.totalUnderlying, next.totalSupply)
		if err != nil {
			return err
		}
		supply, err := checkedSub(next.totalSupply, shares)
		if err != nil {
			return err
		}

		penalty := new(uint256.Int)
		if !supply.IsZero() {
			if penalty, err = bpsOf(gross, next.cfg.WithdrawalPenaltyBps); err != nil {
				return err
			}
		}
		paid, err := checkedSub(gross, penalty)
		if err != nil {
			return err
		}
		underlying, err := checkedSub(next.totalUnderlying, paid)
		if err != nil {
			return err
		}
		balance, err := checkedSub(next.balanceOf(owner), shares)
		if err != nil {
			return err
		}

		next.totalSupply = supply
		next.totalUnderlying = underlying
		if balance.IsZero() {
			delete(next.balances, owner)
		} else {
			next.balances[owner] = balance
		}

		result.GrossAmount = gross
		result.Penalty = penalty
		result.AmountPaidOut = paid
		return nil
	})
	if err != nil {
		return nil, err
	}

	v.logger.Sugar().Debugw("Vault withdraw",
		"vault", v.id,
		"owner", owner.Hex(),
		"receiver", receiver.Hex(),
		"shares", shares.Dec(),
		"gross", result.GrossAmount.Dec(),
		"penalty", result.Penalty.Dec(),
	)
	return result, nil
}

// Harvest books gross rewards realised by the strategy. The platform fee and the
// caller incentive are taken from gross; the rest compounds for depositors.
func (v *Vault) Harvest(caller common.Address, gross *uint256.Int) (*HarvestResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkHarvester(caller); err != nil {
		return nil, err
	}
	if gross == nil {
		gross = new(uint256.Int)
	}

	var result *HarvestResult
	err := v.apply(func(next *state) error {
		platformFee, err := bpsOf(gross, next.cfg.PlatformFeeBps)
		if err != nil {
			return err
		}
		incentive, err := bpsOf(gross, next.cfg.CallIncentiveBps)
		if err != nil {
			return err
		}
		fees, err := checkedAdd(platformFee, incentive)
		if err != nil {
			return err
		}
		net, err := checkedSub(gross, fees)
		if err != nil {
			return err
		}
		underlying, err := checkedAdd(next.totalUnderlying, net)
		if err != nil {
			return err
		}

		next.totalUnderlying = underlying
		result = &HarvestResult{
			Gross:           new(uint256.Int).Set(gross),
			PlatformFee:     platformFee,
			CallerIncentive: incentive,
			NetToDepositors: net,
			Platform:        next.cfg.Platform,
			Caller:          caller,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	v.logger.Sugar().Infow("Vault harvest",
		"vault", v.id,
		"caller", caller.Hex(),
		"gross", gross.Dec(),
		"platformFee", result.PlatformFee.Dec(),
		"callerIncentive", result.CallerIncentive.Dec(),
		"net", result.NetToDepositors.Dec(),
	)
	return result, nil
}

// HarvestFrom asks h to realise pending rewards and books the amount it returns.
// Permissions are checked before h runs.
func (v *Vault) HarvestFrom(ctx context.Context, caller common.Address, h Harvester) (*HarvestResult, error) {
	v.mu.RLock()
	err := v.checkHarvester(caller)
	v.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	gross, err := h.Harvest(ctx)
	if err != nil {
		return nil, fmt.Errorf("strategy harvest failed: %w", err)
	}
	return v.Harvest(caller, gross)
}

// checkHarvester must be called with the lock held
func (v *Vault) checkHarvester(caller common.Address) error {
	if v.state.strategy == (common.Address{}) {
		return ErrNotActive
	}
	if v.state.cfg.HarvestPermissioned && !v.state.totalSupply.IsZero() && !v.state.harvesters[caller] {
		return ErrPermissionedHarvest
	}
	return nil
}

func (v *Vault) updateConfig(name string, fn func(cfg *Config)) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var cfg Config
	err := v.apply(func(next *state) error {
		fn(&next.cfg)
		cfg = next.cfg
		return next.cfg.Validate()
	})
	if err != nil {
		return err
	}

	v.logger.Sugar().Infow("Vault config updated",
		"vault", v.id,
		"field", name,
		"platformFeeBps", cfg.PlatformFeeBps,
		"callIncentiveBps", cfg.CallIncentiveBps,
		"withdrawalPenaltyBps", cfg.WithdrawalPenaltyBps,
		"harvestPermissioned", cfg.HarvestPermissioned,
	)
	return nil
}

func (v *Vault) SetPlatformFee(bps uint64) error {
	return v.updateConfig("platformFee", func(cfg *Config) { cfg.PlatformFeeBps = bps })
}

func (v *Vault) SetCallIncentive(bps uint64) error {
	return v.updateConfig("callIncentive", func(cfg *Config) { cfg.CallIncentiveBps = bps })
}

func (v *Vault) SetWithdrawalPenalty(bps uint64) error {
	return v.updateConfig("withdrawalPenalty", func(cfg *Config) { cfg.WithdrawalPenaltyBps = bps })
}

func (v *Vault) SetPlatform(platform common.Address) error {
	if platform == (common.Address{}) {
		return fmt.Errorf("%w: platform", ErrInvalidAddress)
	}
	return v.updateConfig("platform", func(cfg *Config) { cfg.Platform = platform })
}

func (v *Vault) SetHarvestPermissions(permissioned bool) error {
	return v.updateConfig("harvestPermissioned", func(cfg *Config) { cfg.HarvestPermissioned = permissioned })
}

// SetHarvester grants or revokes harvest rights for permissioned harvests
func (v *Vault) SetHarvester(harvester common.Address, authorized bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.apply(func(next *state) error {
		if authorized {
			next.harvesters[harvester] = true
		} else {
			delete(next.harvesters, harvester)
		}
		return nil
	})
}

func (v *Vault) TotalUnderlying() *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return new(uint256.Int).Set(v.state.totalUnderlying)
}

func (v *Vault) TotalSupply() *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return new(uint256.Int).Set(v.state.totalSupply)
}

func (v *Vault) BalanceOf(account common.Address) *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return new(uint256.Int).Set(v.state.balanceOf(account))
}

// BalanceOfUnderlying is the value of account's shares before any withdrawal penalty
func (v *Vault) BalanceOfUnderlying(account common.Address) (*uint256.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.state.totalSupply.IsZero() {
		return nil, ErrNoUsers
	}
	return mulDiv(v.state.balanceOf(account), v.state.totalUnderlying, v.state.totalSupply)
}

// PricePerShare returns the underlying value of 1e18 shares
func (v *Vault) PricePerShare() (*uint256.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.state.totalSupply.IsZero() {
		return nil, ErrNoUsers
	}
	one := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))
	return mulDiv(one, v.state.totalUnderlying, v.state.totalSupply)
}

// State returns the persisted form of the vault
func (v *Vault) State() *persistence.VaultState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot(v.state)
}

func (v *Vault) snapshot(s *state) *persistence.VaultState {
	harvesters := make([]string, 0, len(s.harvesters))
	for h := range s.harvesters {
		harvesters = append(harvesters, h.Hex())
	}
	sort.Strings(harvesters)

	balances := make(map[string]string, len(s.balances))
	for account, b := range s.balances {
		balances[account.Hex()] = b.Hex()
	}

	return &persistence.VaultState{
		ID:                      v.id,
		Underlying:              v.underlying.Hex(),
		Strategy:                s.strategy.Hex(),
		Platform:                s.cfg.Platform.Hex(),
		PlatformFeeBps:          s.cfg.PlatformFeeBps,
		CallIncentiveBps:        s.cfg.CallIncentiveBps,
		WithdrawalPenaltyBps:    s.cfg.WithdrawalPenaltyBps,
		MaxPlatformFeeBps:       s.cfg.MaxPlatformFeeBps,
		MaxCallIncentiveBps:     s.cfg.MaxCallIncentiveBps,
		MaxWithdrawalPenaltyBps: s.cfg.MaxWithdrawalPenaltyBps,
		HarvestPermissioned:     s.cfg.HarvestPermissioned,
		Harvesters:              harvesters,
		TotalUnderlying:         s.totalUnderlying.Hex(),
		TotalSupply:             s.totalSupply.Hex(),
		Balances:                balances,
		UpdatedAt:               time.Now().Unix(),
	}
}

// Restore rebuilds a vault from its persisted form
func Restore(vs *persistence.VaultState, store StateStore, l *zap.Logger) (*Vault, error) {
	if vs == nil {
		return nil, fmt.Errorf("cannot restore vault from nil state")
	}

	cfg := Config{
		Platform:                common.HexToAddress(vs.Platform),
		PlatformFeeBps:          vs.PlatformFeeBps,
		CallIncentiveBps:        vs.CallIncentiveBps,
		WithdrawalPenaltyBps:    vs.WithdrawalPenaltyBps,
		MaxPlatformFeeBps:       vs.MaxPlatformFeeBps,
		MaxCallIncentiveBps:     vs.MaxCallIncentiveBps,
		MaxWithdrawalPenaltyBps: vs.MaxWithdrawalPenaltyBps,
		HarvestPermissioned:     vs.HarvestPermissioned,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config for vault %s: %w", vs.ID, err)
	}

	totalUnderlying, err := uint256.FromHex(vs.TotalUnderlying)
	if err != nil {
		return nil, fmt.Errorf("invalid total underlying for vault %s: %w", vs.ID, err)
	}
	totalSupply, err := uint256.FromHex(vs.TotalSupply)
	if err != nil {
		return nil, fmt.Errorf("invalid total supply for vault %s: %w", vs.ID, err)
	}

	sum := new(uint256.Int)
	balances := make(map[common.Address]*uint256.Int, len(vs.Balances))
	for account, hex := range vs.Balances {
		if !common.IsHexAddress(account) {
			return nil, fmt.Errorf("%w: balance holder %q", ErrInvalidAddress, account)
		}
		b, err := uint256.FromHex(hex)
		if err != nil {
			return nil, fmt.Errorf("invalid balance for %s: %w", account, err)
		}
		if sum, err = checkedAdd(sum, b); err != nil {
			return nil, err
		}
		balances[common.HexToAddress(account)] = b
	}
	if !sum.Eq(totalSupply) {
		return nil, fmt.Errorf("vault %s balances sum to %s but total supply is %s", vs.ID, sum.Dec(), totalSupply.Dec())
	}

	harvesters := make(map[common.Address]bool, len(vs.Harvesters))
	for _, h := range vs.Harvesters {
		harvesters[common.HexToAddress(h)] = true
	}

	return &Vault{
		id:         vs.ID,
		underlying: common.HexToAddress(vs.Underlying),
		state: &state{
			cfg:             cfg,
			strategy:        common.HexToAddress(vs.Strategy),
			harvesters:      harvesters,
			totalUnderlying: totalUnderlying,
			totalSupply:     totalSupply,
			balances:        balances,
		},
		store:  store,
		logger: logger.OrNop(l),
	}, nil
}
