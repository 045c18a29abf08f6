package proofs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func FuzzParseAmount(f *testing.F) {
	f.Add(`0`)
	f.Add(`1000`)
	f.Add(`"1000"`)
	f.Add(`"0x3e8"`)
	f.Add(`"0x0000ff"`)
	f.Add(`"115792089237316195423570985008687907853269984665640564039457584007913129639935"`)
	f.Add(`"-1"`)
	f.Add(`null`)

	f.Fuzz(func(t *testing.T, raw string) {
		amount, err := ParseAmount(json.RawMessage(raw))
		if err != nil {
			return
		}
		require.NotNil(t, amount)

		// whatever parses must survive both textual forms the tool writes
		dec, err := ParseAmount(json.RawMessage(`"` + amount.Dec() + `"`))
		require.NoError(t, err)
		require.True(t, amount.Eq(dec))

		hex, err := ParseAmount(json.RawMessage(`"` + amount.Hex() + `"`))
		require.NoError(t, err)
		require.True(t, amount.Eq(hex))
	})
}
