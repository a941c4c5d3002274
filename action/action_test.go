package action

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/swap-go/btchtlc"
	"github.com/TEENet-io/swap-go/ledger"
)

func TestCheckSubmittable(t *testing.T) {
	expiry := time.Unix(1_700_000_000, 0)
	a := &Action{Kind: KindRefund, Ledger: ledger.Bitcoin, InvalidUntil: &expiry}

	assert.ErrorIs(t, a.CheckSubmittable(expiry.Add(-time.Second)), ErrTimelockNotElapsed)
	assert.NoError(t, a.CheckSubmittable(expiry))
	assert.NoError(t, a.CheckSubmittable(expiry.Add(time.Second)))

	fund := &Action{Kind: KindFund, Ledger: ledger.Bitcoin}
	assert.NoError(t, fund.CheckSubmittable(time.Unix(0, 0)))
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindDeploy, KindFund, KindRedeem, KindRefund} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("accept")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSpendOutputJSONHidesKey(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	expiry := time.Unix(1_700_000_000, 0)
	a := Action{
		Kind:         KindRefund,
		Ledger:       ledger.Bitcoin,
		InvalidUntil: &expiry,
		Payload: SpendOutput{
			Spend:   btchtlc.Spend{Outpoint: *wire.NewOutPoint(&chainhash.Hash{}, 0), Value: 1000, Key: key},
			Network: ledger.BitcoinRegtest,
		},
	}
	b, err := json.Marshal(a)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "refund", out["type"])
	assert.Equal(t, float64(1_700_000_000), out["invalid_until"])
	payload := out["payload"].(map[string]interface{})
	assert.Equal(t, true, payload["refund"])
	assert.NotContains(t, string(b), "Key")
}

func TestSendTransactionJSON(t *testing.T) {
	a := Action{
		Kind:   KindRedeem,
		Ledger: ledger.Ethereum,
		Payload: SendTransaction{
			Data:     []byte{0xde, 0xad},
			Amount:   ledger.NewEtherQuantity(big.NewInt(0)),
			GasLimit: 100_000,
			Network:  ledger.NewEthereumNetwork(1337),
		},
	}
	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"data":"0xdead"`)
	assert.Contains(t, string(b), `"gas_limit":"0x186a0"`)
	assert.NotContains(t, string(b), "invalid_until")
}
