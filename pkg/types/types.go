package types

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ClaimInput is a single (account, amount) entitlement before it is placed in a tree
type ClaimInput struct {
	Account common.Address
	Amount  *uint256.Int
}

// Claim is an entitlement as committed to by a merkle root.
// Index is the claim's position after sorting by account; it is the value the
// on-chain claim function expects as its index argument.
type Claim struct {
	Index   uint64
	Account common.Address
	Amount  *uint256.Int
}

// Side tells which side of the running hash a proof sibling sits on
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

func (s Side) MarshalJSON() ([]byte, error) {
	switch s {
	case SideLeft, SideRight:
		return json.Marshal(s.String())
	default:
		return nil, fmt.Errorf("invalid proof side: %d", uint8(s))
	}
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "left":
		*s = SideLeft
	case "right":
		*s = SideRight
	default:
		return fmt.Errorf("invalid proof side: %q", str)
	}
	return nil
}

// ProofEntry is one sibling hash on the path from a leaf to the root
type ProofEntry struct {
	Side Side        `json:"side"`
	Hash common.Hash `json:"hash"`
}

// ClaimProof bundles a claim with everything needed to prove its inclusion
type ClaimProof struct {
	Claim Claim

	// TreePosition is the leaf's position in level 0 of the tree (after the leaf-hash sort)
	TreePosition int

	// Proof is ordered leaf to root
	Proof []ProofEntry
}

// Hashes returns the sibling hashes without side tags, the bytes32[] form taken by
// distributor contracts.
func (cp *ClaimProof) Hashes() []common.Hash {
	hashes := make([]common.Hash, len(cp.Proof))
	for i, entry := range cp.Proof {
		hashes[i] = entry.Hash
	}
	return hashes
}

// Distribution is one published generation of a claim tree
type Distribution struct {
	ID         string        `json:"id"`
	MerkleRoot common.Hash   `json:"merkleRoot"`
	Proofs     []*ClaimProof `json:"proofs"`
	CreatedAt  int64         `json:"createdAt"` // unix seconds
}

// ProofForAccount returns the first proof for account, or nil
func (d *Distribution) ProofForAccount(account common.Address) *ClaimProof {
	for _, p := range d.Proofs {
		if p.Claim.Account == account {
			return p
		}
	}
	return nil
}

// ProofForIndex returns the proof for the claim index, or nil
func (d *Distribution) ProofForIndex(index uint64) *ClaimProof {
	for _, p := range d.Proofs {
		if p.Claim.Index == index {
			return p
		}
	}
	return nil
}

// claimJSON is the wire form of a Claim; amounts travel as 0x-prefixed hex
type claimJSON struct {
	Index   uint64         `json:"index"`
	Account common.Address `json:"account"`
	Amount  string         `json:"amount"`
}

func (c Claim) MarshalJSON() ([]byte, error) {
	amount := "0x0"
	if c.Amount != nil {
		amount = c.Amount.Hex()
	}
	return json.Marshal(claimJSON{Index: c.Index, Account: c.Account, Amount: amount})
}

func (c *Claim) UnmarshalJSON(data []byte) error {
	var raw claimJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount, err := uint256.FromHex(raw.Amount)
	if err != nil {
		return fmt.Errorf("invalid claim amount %q: %w", raw.Amount, err)
	}
	c.Index = raw.Index
	c.Account = raw.Account
	c.Amount = amount
	return nil
}

type claimProofJSON struct {
	Claim        Claim        `json:"claim"`
	TreePosition int          `json:"treePosition"`
	Proof        []ProofEntry `json:"proof"`
}

func (cp ClaimProof) MarshalJSON() ([]byte, error) {
	proof := cp.Proof
	if proof == nil {
		proof = []ProofEntry{}
	}
	return json.Marshal(claimProofJSON{Claim: cp.Claim, TreePosition: cp.TreePosition, Proof: proof})
}

func (cp *ClaimProof) UnmarshalJSON(data []byte) error {
	var raw claimProofJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cp.Claim = raw.Claim
	cp.TreePosition = raw.TreePosition
	cp.Proof = raw.Proof
	return nil
}
