package swap

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/secret"
)

// SimulatedParties holds the per-swap sources of both sides of RandRequest.
type SimulatedParties struct {
	Alice secret.Source
	Bob   secret.Source
}

// RandRequest proposes 1 BTC on a 24h alpha leg for 10 ETH on a 12h beta
// leg, with fresh seeds for both parties, plus bob's matching answer.
func RandRequest(now time.Time) (Request, Accept, SimulatedParties) {
	id := uuid.New()
	p := SimulatedParties{
		Alice: secret.NewRandomSeed().SwapSource(id),
		Bob:   secret.NewRandomSeed().SwapSource(id),
	}
	tenETH := new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))

	req := Request{
		ID:                  id,
		Alpha:               htlc.NewTerms(ledger.NewBitcoinQuantity(100_000_000), string(ledger.BitcoinRegtest), now.Add(24*time.Hour)),
		Beta:                htlc.NewTerms(ledger.NewEtherQuantity(tenETH), "1337", now.Add(12*time.Hour)),
		SecretHash:          p.Alice.Secret().Hash(),
		AlphaRefundIdentity: ledger.BitcoinIdentityFromPubKey(p.Alice.RefundKey().PubKey()).String(),
		BetaRedeemIdentity:  ledger.EthereumIdentityFromPubKey(p.Alice.RedeemKey().PubKey()).Hex(),
	}
	accept := Accept{
		AlphaRedeemIdentity: ledger.BitcoinIdentityFromPubKey(p.Bob.RedeemKey().PubKey()).String(),
		BetaRefundIdentity:  ledger.EthereumIdentityFromPubKey(p.Bob.RefundKey().PubKey()).Hex(),
	}
	return req, accept, p
}
