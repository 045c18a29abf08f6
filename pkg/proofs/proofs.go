// Package proofs reads claim lists and reads and writes the proofs.json file
// published alongside a distributor's merkle root.
package proofs

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Layr-Labs/union-rewards-go/pkg/merkle"
	"github.com/Layr-Labs/union-rewards-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

var (
	ErrAccountNotFound  = errors.New("account not found in proofs file")
	ErrDuplicateAccount = errors.New("account appears more than once in distribution")
	ErrInvalidProof     = errors.New("invalid proof")
)

// AccountProof is what an account needs to call claim on-chain
type AccountProof struct {
	Index  uint64        `json:"index"`
	Amount string        `json:"amount"`
	Proof  []common.Hash `json:"proof"`
}

// ProofsFile is the published proofs.json, keyed by checksummed address
type ProofsFile struct {
	ID         string                   `json:"id"`
	MerkleRoot common.Hash              `json:"merkleRoot"`
	Proofs     map[string]*AccountProof `json:"proofs"`
}

// FromDistribution converts a distribution to its published form. A distribution
// without an ID gets a random one. Accounts must be unique since the file is keyed by account.
func FromDistribution(dist *types.Distribution) (*ProofsFile, error) {
	if dist == nil {
		return nil, fmt.Errorf("cannot convert nil Distribution")
	}

	id := dist.ID
	if id == "" {
		id = uuid.NewString()
	}

	pf := &ProofsFile{
		ID:         id,
		MerkleRoot: dist.MerkleRoot,
		Proofs:     make(map[string]*AccountProof, len(dist.Proofs)),
	}
	for _, cp := range dist.Proofs {
		key := cp.Claim.Account.Hex()
		if _, exists := pf.Proofs[key]; exists {
			return nil, errors.Wrapf(ErrDuplicateAccount, "account %s", key)
		}
		amount := cp.Claim.Amount
		if amount == nil {
			amount = new(uint256.Int)
		}
		pf.Proofs[key] = &AccountProof{
			Index:  cp.Claim.Index,
			Amount: amount.Hex(),
			Proof:  cp.Hashes(),
		}
	}
	return pf, nil
}

// Lookup finds the proof for account
func (pf *ProofsFile) Lookup(account common.Address) (*AccountProof, bool) {
	ap, ok := pf.Proofs[account.Hex()]
	return ap, ok
}

// Claim returns the claim committed to for account
func (pf *ProofsFile) Claim(account common.Address) (*types.Claim, []common.Hash, error) {
	ap, ok := pf.Lookup(account)
	if !ok {
		return nil, nil, errors.Wrapf(ErrAccountNotFound, "account %s", account.Hex())
	}
	amount, err := parseAmountString(ap.Amount)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "account %s", account.Hex())
	}
	return &types.Claim{Index: ap.Index, Account: account, Amount: amount}, ap.Proof, nil
}

// Verify checks account's proof against the file's root the way the claim contract does
func (pf *ProofsFile) Verify(account common.Address) error {
	claim, proof, err := pf.Claim(account)
	if err != nil {
		return err
	}
	leaf := merkle.HashClaimStruct(*claim)
	if !merkle.VerifySortedProof(proof, leaf, pf.MerkleRoot) {
		return errors.Wrapf(ErrInvalidProof, "account %s", account.Hex())
	}
	return nil
}

// VerifyAll checks every account in the file and returns the first failure
func (pf *ProofsFile) VerifyAll() error {
	for key := range pf.Proofs {
		if !common.IsHexAddress(key) {
			return fmt.Errorf("invalid account key %q", key)
		}
		if err := pf.Verify(common.HexToAddress(key)); err != nil {
			return err
		}
	}
	return nil
}

// WriteProofsFile writes pf as indented JSON
func WriteProofsFile(path string, pf *ProofsFile) error {
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal proofs file")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write proofs file %s", path)
	}
	return nil
}

// ReadProofsFile loads a proofs.json. Keys are normalised to checksummed form.
func ReadProofsFile(path string) (*ProofsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read proofs file %s", path)
	}

	var pf ProofsFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, errors.Wrapf(err, "failed to parse proofs file %s", path)
	}

	normalised := make(map[string]*AccountProof, len(pf.Proofs))
	for key, ap := range pf.Proofs {
		if !common.IsHexAddress(key) {
			return nil, fmt.Errorf("invalid account key %q in %s", key, path)
		}
		k := common.HexToAddress(key).Hex()
		if _, dup := normalised[k]; dup {
			return nil, fmt.Errorf("duplicate account key %q in %s", key, path)
		}
		normalised[k] = ap
	}
	pf.Proofs = normalised
	return &pf, nil
}
