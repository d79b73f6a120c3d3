package abi

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const erc20Doc = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"transferFrom",
   "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"name","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

func TestParseInterface_Malformed(t *testing.T) {
	for _, doc := range []string{``, `{}`, `{"name":"x"}`, `"abi"`, `[{"name":}]`} {
		_, err := ParseInterface([]byte(doc))
		assert.ErrorIs(t, err, ErrMalformedAbi, doc)
	}
}

func TestInterface_ParameterTypes(t *testing.T) {
	iface, err := ParseInterface([]byte(erc20Doc))
	require.NoError(t, err)

	types, err := iface.ParameterTypes("transferFrom")
	require.NoError(t, err)
	assert.Equal(t, []string{"address", "address", "uint256"}, types)

	types, err = iface.ParameterTypes("name")
	require.NoError(t, err)
	assert.Empty(t, types)

	_, err = iface.ParameterTypes("approve")
	assert.ErrorIs(t, err, ErrMethodNotFound)
}

func TestInterface_OutputTypes(t *testing.T) {
	iface, err := ParseInterface([]byte(erc20Doc))
	require.NoError(t, err)

	out, err := iface.OutputTypes("balanceOf")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, TypeUint256, out[0].Base)

	// string is outside the recognized set; the failure surfaces on use.
	_, err = iface.OutputTypes("name")
	assert.ErrorIs(t, err, ErrMalformedAbi)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestInterface_FirstMatchWins(t *testing.T) {
	doc := `[
	  {"type":"function","name":"f","inputs":[{"type":"uint256"}]},
	  {"type":"function","name":"f","inputs":[{"type":"address"},{"type":"bool"}]}
	]`
	iface, err := ParseInterface([]byte(doc))
	require.NoError(t, err)

	types, err := iface.ParameterTypes("f")
	require.NoError(t, err)
	assert.Equal(t, []string{"uint256"}, types)
}

func TestInterface_Signatures(t *testing.T) {
	iface, err := ParseInterface([]byte(erc20Doc))
	require.NoError(t, err)

	sig, err := iface.EventSignature("Transfer")
	require.NoError(t, err)
	assert.Equal(t, "Transfer(address,address,uint256)", sig)

	topic, err := iface.EventTopic("Transfer")
	require.NoError(t, err)
	assert.Equal(t, "ddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", hex.EncodeToString(topic[:]))

	_, err = iface.EventSignature("Approval")
	assert.ErrorIs(t, err, ErrEventNotFound)

	sel, err := iface.Selector("transferFrom")
	require.NoError(t, err)
	assert.Equal(t, "23b872dd", hex.EncodeToString(sel[:]))

	_, err = iface.Selector("mint")
	assert.ErrorIs(t, err, ErrMethodNotFound)
}

func TestHashEvent_MatchesKeccakOfLiteral(t *testing.T) {
	sig := "Transfer(address,uint256)"
	got := HashEvent(sig)
	assert.Equal(t, crypto.Keccak256([]byte(sig)), got[:])
}

func TestAddress_Checksum(t *testing.T) {
	for _, want := range []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	} {
		a, err := ParseAddress(want)
		require.NoError(t, err)
		assert.Equal(t, want, a.Checksum())
	}
}
