package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Layr-Labs/union-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/union-rewards-go/pkg/proofs"
	"github.com/Layr-Labs/union-rewards-go/pkg/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// vaultScript is the input of vault-replay. When the store already holds state
// for Vault.ID the vault is restored and Underlying, Strategy and Config are ignored.
type vaultScript struct {
	Vault struct {
		ID         string        `json:"id"`
		Underlying string        `json:"underlying"`
		Strategy   string        `json:"strategy"`
		Config     *vault.Config `json:"config"`
	} `json:"vault"`
	Operations []vaultOp `json:"operations"`
}

type vaultOp struct {
	Op       string          `json:"op"`
	Account  string          `json:"account"`
	Receiver string          `json:"receiver"`
	Amount   json.RawMessage `json:"amount"`
	Shares   json.RawMessage `json:"shares"`
	Bps      uint64          `json:"bps"`
	Address  string          `json:"address"`
	Enabled  bool            `json:"enabled"`
}

type opResult struct {
	Step  int    `json:"step"`
	Op    string `json:"op"`
	Error string `json:"error,omitempty"`

	Shares          string `json:"shares,omitempty"`
	GrossAmount     string `json:"grossAmount,omitempty"`
	Penalty         string `json:"penalty,omitempty"`
	AmountPaidOut   string `json:"amountPaidOut,omitempty"`
	PlatformFee     string `json:"platformFee,omitempty"`
	CallerIncentive string `json:"callerIncentive,omitempty"`
	NetToDepositors string `json:"netToDepositors,omitempty"`
}

type replayReport struct {
	Results []opResult              `json:"results"`
	Final   *persistence.VaultState `json:"final"`
}

func readVaultScript(path string) (*vaultScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read vault script %s", path)
	}
	var script vaultScript
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, errors.Wrapf(err, "failed to parse vault script %s", path)
	}
	if script.Vault.ID == "" {
		return nil, fmt.Errorf("vault script %s has no vault id", path)
	}
	return &script, nil
}

// openVault restores the scripted vault from store, or creates and activates it
func openVault(script *vaultScript, store persistence.IRewardsPersistence, l *zap.Logger) (*vault.Vault, error) {
	vs, err := store.LoadVaultState(script.Vault.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load vault %s", script.Vault.ID)
	}
	if vs != nil {
		l.Sugar().Infow("Restored vault", "vault", vs.ID, "total_supply", vs.TotalSupply)
		return vault.Restore(vs, store, l)
	}

	underlying, err := parseAddress("underlying", script.Vault.Underlying)
	if err != nil {
		return nil, err
	}
	v, err := vault.NewVault(script.Vault.ID, underlying, script.Vault.Config, store, l)
	if err != nil {
		return nil, err
	}
	if script.Vault.Strategy != "" {
		strategy, err := parseAddress("strategy", script.Vault.Strategy)
		if err != nil {
			return nil, err
		}
		if err := v.SetStrategy(strategy); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// replayVault applies every operation in order. A failed operation is recorded
// and leaves the vault untouched; with stopOnError the replay ends there.
func replayVault(v *vault.Vault, ops []vaultOp, stopOnError bool) *replayReport {
	report := &replayReport{Results: make([]opResult, 0, len(ops))}
	for i, op := range ops {
		res, err := applyVaultOp(v, op)
		res.Step = i
		res.Op = op.Op
		if err != nil {
			res.Error = err.Error()
		}
		report.Results = append(report.Results, res)
		if err != nil && stopOnError {
			break
		}
	}
	report.Final = v.State()
	return report
}

func applyVaultOp(v *vault.Vault, op vaultOp) (opResult, error) {
	var res opResult

	switch op.Op {
	case "setStrategy":
		addr, err := parseAddress("address", op.Address)
		if err != nil {
			return res, err
		}
		return res, v.SetStrategy(addr)

	case "deposit":
		account, err := parseAddress("account", op.Account)
		if err != nil {
			return res, err
		}
		amount, err := proofs.ParseAmount(op.Amount)
		if err != nil {
			return res, err
		}
		shares, err := v.Deposit(account, amount)
		if err != nil {
			return res, err
		}
		res.Shares = shares.Dec()
		return res, nil

	case "withdraw", "withdrawAll":
		owner, err := parseAddress("account", op.Account)
		if err != nil {
			return res, err
		}
		receiver := owner
		if op.Receiver != "" {
			if receiver, err = parseAddress("receiver", op.Receiver); err != nil {
				return res, err
			}
		}

		var wr *vault.WithdrawResult
		if op.Op == "withdrawAll" {
			wr, err = v.WithdrawAll(owner, receiver)
		} else {
			var shares *uint256.Int
			if shares, err = proofs.ParseAmount(op.Shares); err != nil {
				return res, err
			}
			wr, err = v.Withdraw(owner, receiver, shares)
		}
		if err != nil {
			return res, err
		}
		res.Shares = wr.Shares.Dec()
		res.GrossAmount = wr.GrossAmount.Dec()
		res.Penalty = wr.Penalty.Dec()
		res.AmountPaidOut = wr.AmountPaidOut.Dec()
		return res, nil

	case "harvest":
		caller, err := parseAddress("account", op.Account)
		if err != nil {
			return res, err
		}
		gross, err := proofs.ParseAmount(op.Amount)
		if err != nil {
			return res, err
		}
		hr, err := v.Harvest(caller, gross)
		if err != nil {
			return res, err
		}
		res.GrossAmount = hr.Gross.Dec()
		res.PlatformFee = hr.PlatformFee.Dec()
		res.CallerIncentive = hr.CallerIncentive.Dec()
		res.NetToDepositors = hr.NetToDepositors.Dec()
		return res, nil

	case "setPlatformFee":
		return res, v.SetPlatformFee(op.Bps)
	case "setCallIncentive":
		return res, v.SetCallIncentive(op.Bps)
	case "setWithdrawalPenalty":
		return res, v.SetWithdrawalPenalty(op.Bps)

	case "setPlatform":
		addr, err := parseAddress("address", op.Address)
		if err != nil {
			return res, err
		}
		return res, v.SetPlatform(addr)

	case "setHarvestPermissions":
		return res, v.SetHarvestPermissions(op.Enabled)

	case "setHarvester":
		addr, err := parseAddress("address", op.Address)
		if err != nil {
			return res, err
		}
		return res, v.SetHarvester(addr, op.Enabled)

	default:
		return res, fmt.Errorf("unknown vault operation %q", op.Op)
	}
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, value)
	}
	return common.HexToAddress(value), nil
}
