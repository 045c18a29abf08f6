package proofs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/Layr-Labs/union-rewards-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// claimEntry is one element of the array claims form
type claimEntry struct {
	User    string          `json:"user"`
	Account string          `json:"account"`
	Amount  json.RawMessage `json:"amount"`
}

// ReadClaims loads a claims file from disk. See ParseClaims for the accepted forms.
func ReadClaims(path string) ([]types.ClaimInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read claims file %s", path)
	}
	claims, err := ParseClaims(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse claims file %s", path)
	}
	return claims, nil
}

// ParseClaims accepts either an object mapping address to amount, or an array of
// {"user": address, "amount": amount} entries ("account" is accepted for "user").
// Amounts may be JSON integers, decimal strings or 0x-prefixed hex strings.
// Object keys are returned in file order.
func ParseClaims(data []byte) ([]types.ClaimInput, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty claims document")
	}

	switch trimmed[0] {
	case '[':
		var entries []claimEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, errors.Wrap(err, "invalid claims array")
		}
		out := make([]types.ClaimInput, 0, len(entries))
		for i, e := range entries {
			user := e.User
			if user == "" {
				user = e.Account
			}
			in, err := parseClaim(user, e.Amount)
			if err != nil {
				return nil, errors.Wrapf(err, "claim %d", i)
			}
			out = append(out, in)
		}
		return out, nil
	case '{':
		return parseClaimsObject(trimmed)
	default:
		return nil, fmt.Errorf("claims document must be a JSON object or array")
	}
}

// parseClaimsObject walks the object with a token decoder so that file order survives
func parseClaimsObject(data []byte) ([]types.ClaimInput, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "invalid claims object")
	}

	var out []types.ClaimInput
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "invalid claims object")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected claims object key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.Wrapf(err, "invalid amount for %s", key)
		}
		in, err := parseClaim(key, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "invalid claims object")
	}
	if tok != json.Delim('}') {
		return nil, fmt.Errorf("unexpected token %v at end of claims object", tok)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after claims object")
	}
	return out, nil
}

func parseClaim(account string, rawAmount json.RawMessage) (types.ClaimInput, error) {
	if !common.IsHexAddress(account) {
		return types.ClaimInput{}, fmt.Errorf("invalid account address %q", account)
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return types.ClaimInput{}, errors.Wrapf(err, "invalid amount for %s", account)
	}
	return types.ClaimInput{Account: common.HexToAddress(account), Amount: amount}, nil
}

// ParseAmount decodes a JSON integer, decimal string or 0x hex string into a uint256.
// Integral exponent forms such as 1e+20 are accepted.
func ParseAmount(raw json.RawMessage) (*uint256.Int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("missing amount")
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
	}
	return parseAmountString(strings.TrimSpace(s))
}

func parseAmountString(s string) (*uint256.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		// leading zeros are common in hand-written files, so go through big.Int
		b, ok := new(big.Int).SetString(s[2:], 16)
		if !ok || b.Sign() < 0 {
			return nil, fmt.Errorf("invalid hex amount %q", s)
		}
		v, overflow := uint256.FromBig(b)
		if overflow {
			return nil, fmt.Errorf("amount %q overflows uint256", s)
		}
		return v, nil
	}

	if strings.ContainsAny(s, "eE") {
		return parseExponentAmount(s)
	}

	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal amount %q: %w", s, err)
	}
	return v, nil
}

// maxAmountExponent bounds exponent forms before any big arithmetic; 2^256 has 78 digits.
const maxAmountExponent = 100

func parseExponentAmount(s string) (*uint256.Int, error) {
	mantissa, exp, ok := strings.Cut(strings.ToLower(s), "e")
	if !ok || mantissa == "" || strings.ContainsAny(mantissa, "+-/") {
		return nil, fmt.Errorf("invalid decimal amount %q", s)
	}
	e, err := strconv.Atoi(exp)
	if err != nil || e > maxAmountExponent || e < -maxAmountExponent {
		return nil, fmt.Errorf("invalid decimal amount %q", s)
	}

	r, ok := new(big.Rat).SetString(mantissa + "e" + strconv.Itoa(e))
	if !ok || !r.IsInt() {
		return nil, fmt.Errorf("invalid decimal amount %q: not an integer", s)
	}
	v, overflow := uint256.FromBig(r.Num())
	if overflow {
		return nil, fmt.Errorf("amount %q overflows uint256", s)
	}
	return v, nil
}
