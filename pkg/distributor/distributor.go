// Package distributor models a weekly merkle distributor: an admin freezes claims,
// publishes a new root (which starts a new week with a fresh claimed bitmap) and
// unfreezes; accounts then claim their entitlement once per week with a sorted-pair proof.
package distributor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Layr-Labs/union-rewards-go/pkg/logger"
	"github.com/Layr-Labs/union-rewards-go/pkg/merkle"
	"github.com/Layr-Labs/union-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/union-rewards-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// StateStore receives the distributor state after every mutation
type StateStore interface {
	SaveDistributorState(state *persistence.DistributorState) error
}

// ClaimReceipt records a successful claim
type ClaimReceipt struct {
	Week    uint64         `json:"week"`
	Index   uint64         `json:"index"`
	Account common.Address `json:"account"`
	Amount  *uint256.Int   `json:"amount"`
}

type bitmap map[uint64]*uint256.Int

type state struct {
	root     common.Hash
	week     uint64
	frozen   bool
	deadline int64
	claimed  map[uint64]bitmap
}

func (s *state) clone() *state {
	claimed := make(map[uint64]bitmap, len(s.claimed))
	for week, words := range s.claimed {
		c := make(bitmap, len(words))
		for i, w := range words {
			c[i] = new(uint256.Int).Set(w)
		}
		claimed[week] = c
	}
	return &state{
		root:     s.root,
		week:     s.week,
		frozen:   s.frozen,
		deadline: s.deadline,
		claimed:  claimed,
	}
}

func (s *state) isClaimed(index uint64) bool {
	word, ok := s.claimed[s.week][index/256]
	if !ok {
		return false
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(index%256))
	return !new(uint256.Int).And(word, mask).IsZero()
}

func (s *state) setClaimed(index uint64) {
	words, ok := s.claimed[s.week]
	if !ok {
		words = make(bitmap)
		s.claimed[s.week] = words
	}
	word, ok := words[index/256]
	if !ok {
		word = new(uint256.Int)
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(index%256))
	words[index/256] = new(uint256.Int).Or(word, mask)
}

// Option configures a Distributor
type Option func(d *Distributor)

// WithClock replaces time.Now for deadline checks
func WithClock(now func() time.Time) Option {
	return func(d *Distributor) { d.now = now }
}

// WithDeadline sets the time after which claims are rejected
func WithDeadline(deadline time.Time) Option {
	return func(d *Distributor) { d.state.deadline = deadline.Unix() }
}

// Distributor is safe for concurrent use.
type Distributor struct {
	mu     sync.RWMutex
	id     string
	state  *state
	store  StateStore
	logger *zap.Logger
	now    func() time.Time
}

// NewDistributor returns an unfrozen distributor at week 0 with an empty root.
// store may be nil.
func NewDistributor(id string, store StateStore, l *zap.Logger, opts ...Option) (*Distributor, error) {
	d := &Distributor{
		id:     id,
		state:  &state{claimed: make(map[uint64]bitmap)},
		store:  store,
		logger: logger.OrNop(l),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.persist(d.state); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Distributor) persist(next *state) error {
	if d.store == nil {
		return nil
	}
	if err := d.store.SaveDistributorState(d.snapshot(next)); err != nil {
		return fmt.Errorf("failed to persist distributor %s: %w", d.id, err)
	}
	return nil
}

func (d *Distributor) apply(fn func(next *state) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.state.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := d.persist(next); err != nil {
		return err
	}
	d.state = next
	return nil
}

func (d *Distributor) ID() string {
	return d.id
}

func (d *Distributor) MerkleRoot() common.Hash {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.root
}

func (d *Distributor) Week() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.week
}

func (d *Distributor) Frozen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.frozen
}

// Deadline returns the zero time when claims never expire
func (d *Distributor) Deadline() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state.deadline == 0 {
		return time.Time{}
	}
	return time.Unix(d.state.deadline, 0)
}

func (d *Distributor) Freeze() error {
	if err := d.apply(func(next *state) error {
		next.frozen = true
		return nil
	}); err != nil {
		return err
	}
	d.logger.Sugar().Infow("Distributor frozen", "distributor", d.id)
	return nil
}

func (d *Distributor) Unfreeze() error {
	if err := d.apply(func(next *state) error {
		next.frozen = false
		return nil
	}); err != nil {
		return err
	}
	d.logger.Sugar().Infow("Distributor unfrozen", "distributor", d.id)
	return nil
}

// SetDeadline sets the claim deadline; the zero time removes it
func (d *Distributor) SetDeadline(deadline time.Time) error {
	return d.apply(func(next *state) error {
		if deadline.IsZero() {
			next.deadline = 0
		} else {
			next.deadline = deadline.Unix()
		}
		return nil
	})
}

// UpdateMerkleRoot publishes a new root and starts a new week. The distributor
// must be frozen; it is unfrozen afterwards when unfreeze is set.
func (d *Distributor) UpdateMerkleRoot(root common.Hash, unfreeze bool) error {
	var week uint64
	err := d.apply(func(next *state) error {
		if !next.frozen {
			return ErrNotFrozen
		}
		next.root = root
		next.week++
		if unfreeze {
			next.frozen = false
		}
		week = next.week
		return nil
	})
	if err != nil {
		return err
	}

	d.logger.Sugar().Infow("Distributor merkle root updated",
		"distributor", d.id,
		"root", root.Hex(),
		"week", week,
		"unfrozen", unfreeze,
	)
	return nil
}

// IsClaimed reports whether index was claimed during the current week
func (d *Distributor) IsClaimed(index uint64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.isClaimed(index)
}

// Claim marks index as claimed for the current week once proof shows that
// (index, account, amount) is committed to by the current root.
func (d *Distributor) Claim(index uint64, account common.Address, amount *uint256.Int, proof []common.Hash) (*ClaimReceipt, error) {
	if account == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	if amount == nil {
		amount = new(uint256.Int)
	}

	var receipt *ClaimReceipt
	err := d.apply(func(next *state) error {
		if next.deadline != 0 && d.now().Unix() > next.deadline {
			return ErrClaimsPeriodFinished
		}
		if next.frozen {
			return ErrFrozen
		}
		if next.isClaimed(index) {
			return ErrAlreadyClaimed
		}
		leaf := merkle.HashClaim(index, account, amount)
		if !merkle.VerifySortedProof(proof, leaf, next.root) {
			return ErrInvalidProof
		}

		next.setClaimed(index)
		receipt = &ClaimReceipt{
			Week:    next.week,
			Index:   index,
			Account: account,
			Amount:  new(uint256.Int).Set(amount),
		}
		return nil
	})
	if err != nil {
		d.logger.Sugar().Debugw("Claim rejected",
			"distributor", d.id,
			"index", index,
			"account", account.Hex(),
			"error", err,
		)
		return nil, err
	}

	d.logger.Sugar().Infow("Claim accepted",
		"distributor", d.id,
		"week", receipt.Week,
		"index", index,
		"account", account.Hex(),
		"amount", amount.Dec(),
	)
	return receipt, nil
}

// ClaimProof claims with a proof taken from a Distribution
func (d *Distributor) ClaimProof(cp *types.ClaimProof) (*ClaimReceipt, error) {
	if cp == nil {
		return nil, ErrInvalidProof
	}
	return d.Claim(cp.Claim.Index, cp.Claim.Account, cp.Claim.Amount, cp.Hashes())
}

// State returns the persisted form of the distributor
func (d *Distributor) State() *persistence.DistributorState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot(d.state)
}

func (d *Distributor) snapshot(s *state) *persistence.DistributorState {
	claimed := make(map[uint64]map[uint64]string, len(s.claimed))
	for week, words := range s.claimed {
		c := make(map[uint64]string, len(words))
		for i, w := range words {
			c[i] = w.Hex()
		}
		claimed[week] = c
	}
	return &persistence.DistributorState{
		ID:         d.id,
		MerkleRoot: s.root.Hex(),
		Week:       s.week,
		Frozen:     s.frozen,
		Deadline:   s.deadline,
		Claimed:    claimed,
		UpdatedAt:  d.now().Unix(),
	}
}

// ClaimedIndices returns the indices claimed during week, in ascending order
func (d *Distributor) ClaimedIndices(week uint64) []uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []uint64
	for wordIndex, word := range d.state.claimed[week] {
		for bit := 0; bit < 256; bit++ {
			if new(uint256.Int).Rsh(word, uint(bit)).Uint64()&1 == 1 {
				out = append(out, wordIndex*256+uint64(bit))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Restore rebuilds a distributor from its persisted form
func Restore(ds *persistence.DistributorState, store StateStore, l *zap.Logger, opts ...Option) (*Distributor, error) {
	if ds == nil {
		return nil, fmt.Errorf("cannot restore distributor from nil state")
	}

	root := common.Hash{}
	if ds.MerkleRoot != "" {
		b, err := hexutil.Decode(ds.MerkleRoot)
		if err != nil || len(b) != common.HashLength {
			return nil, fmt.Errorf("invalid merkle root %q for distributor %s", ds.MerkleRoot, ds.ID)
		}
		root = common.BytesToHash(b)
	}

	claimed := make(map[uint64]bitmap, len(ds.Claimed))
	for week, words := range ds.Claimed {
		c := make(bitmap, len(words))
		for i, hex := range words {
			w, err := uint256.FromHex(hex)
			if err != nil {
				return nil, fmt.Errorf("invalid claimed word %d of week %d: %w", i, week, err)
			}
			c[i] = w
		}
		claimed[week] = c
	}

	d := &Distributor{
		id: ds.ID,
		state: &state{
			root:     root,
			week:     ds.Week,
			frozen:   ds.Frozen,
			deadline: ds.Deadline,
			claimed:  claimed,
		},
		store:  store,
		logger: logger.OrNop(l),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}
