package swap

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/secret"
)

var (
	oneBTC  = ledger.NewBitcoinQuantity(100_000_000)
	halfBTC = ledger.NewBitcoinQuantity(50_000_000)
	tenETH  = ledger.NewEtherQuantity(new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)))

	btcLocation = ledger.NewBitcoinLocation(chainhash.Hash{0x01}, 0)
	ethLocation = ledger.EthereumLocation{Address: common.HexToAddress("0x00a329c0648769A73afAc7F9381E08FB43dBEA72")}
)

type fixture struct {
	id     uuid.UUID
	alice  secret.Source
	bob    secret.Source
	req    Request
	accept Accept

	alphaExpiry time.Time
	betaExpiry  time.Time
}

// newFixture is alice selling 1 BTC (alpha, 24h) for 10 ETH (beta, 12h).
func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		id:          uuid.New(),
		alphaExpiry: time.Unix(now.Add(24*time.Hour).Unix(), 0),
		betaExpiry:  time.Unix(now.Add(12*time.Hour).Unix(), 0),
	}
	f.alice = secret.NewRandomSeed().SwapSource(f.id)
	f.bob = secret.NewRandomSeed().SwapSource(f.id)

	f.req = Request{
		ID:                  f.id,
		Alpha:               htlc.NewTerms(oneBTC, string(ledger.BitcoinRegtest), f.alphaExpiry),
		Beta:                htlc.NewTerms(tenETH, "1337", f.betaExpiry),
		SecretHash:          f.alice.Secret().Hash(),
		AlphaRefundIdentity: ledger.BitcoinIdentityFromPubKey(f.alice.RefundKey().PubKey()).String(),
		BetaRedeemIdentity:  ledger.EthereumIdentityFromPubKey(f.alice.RedeemKey().PubKey()).Hex(),
	}
	f.accept = Accept{
		AlphaRedeemIdentity: ledger.BitcoinIdentityFromPubKey(f.bob.RedeemKey().PubKey()).String(),
		BetaRefundIdentity:  ledger.EthereumIdentityFromPubKey(f.bob.RefundKey().PubKey()).Hex(),
	}
	return f
}

func (f *fixture) accepted(t *testing.T, role Role) *Swap {
	t.Helper()
	peer := "bob:9939"
	if role == RoleBob {
		peer = "alice:9939"
	}
	s, err := NewRequest(role, peer, f.req, DefaultPolicy())
	require.NoError(t, err)
	require.NoError(t, s.Accept(f.accept))
	return s
}

func fundedBTC(amount ledger.BitcoinQuantity) htlc.Funding {
	return htlc.Funding{Location: btcLocation, Amount: amount}
}

func fundedETH(amount ledger.EtherQuantity) htlc.Funding {
	return htlc.Funding{Location: ethLocation, Amount: amount}
}

// memStore keeps histories in memory, the way statestore does in sqlite.
type memStore struct {
	mu      sync.Mutex
	history map[uuid.UUID][]Event
	saved   chan []Event
}

func newMemStore() *memStore {
	return &memStore{history: map[uuid.UUID][]Event{}, saved: make(chan []Event, 64)}
}

func (m *memStore) Save(_ context.Context, s *Swap) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	changes := s.Changes()
	base := s.Version() - len(changes)
	if len(m.history[s.ID]) != base {
		return ErrVersionConflict
	}
	m.history[s.ID] = append(m.history[s.ID], changes...)
	s.ClearChanges()
	select {
	case m.saved <- changes:
	default:
	}
	return nil
}

func (m *memStore) Load(_ context.Context, id uuid.UUID) (*Swap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events, ok := m.history[id]
	if !ok {
		return nil, ErrSwapNotFound
	}
	return NewFromEvents(events)
}
