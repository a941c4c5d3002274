package btcsync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/swap-go/action"
	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/ledgerevents"
	"github.com/TEENet-io/swap-go/secret"
	"github.com/TEENet-io/swap-go/swap"
)

var genesisTime = time.Unix(1_700_000_000, 0)

// fakeChain is an in-memory block source. Every mined block gets a fresh
// nonce, so a block replaced by a reorg never shares its hash.
type fakeChain struct {
	mu     sync.Mutex
	blocks []*wire.MsgBlock
	nonce  uint32

	// onBlock runs when the block at the given height is fetched
	onBlock func(height int64)
}

func newFakeChain() *fakeChain {
	c := &fakeChain{}
	c.mine()
	return c
}

func (c *fakeChain) mine(txs ...*wire.MsgTx) *wire.MsgBlock {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nonce++
	height := len(c.blocks)
	header := wire.BlockHeader{
		Timestamp: genesisTime.Add(time.Duration(height) * 10 * time.Minute),
		Nonce:     c.nonce,
	}
	if height > 0 {
		header.PrevBlock = c.blocks[height-1].BlockHash()
	}
	block := wire.NewMsgBlock(&header)
	for _, tx := range txs {
		_ = block.AddTransaction(tx)
	}
	c.blocks = append(c.blocks, block)
	return block
}

// reorg drops every block above height.
func (c *fakeChain) reorg(height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = c.blocks[:height+1]
}

func (c *fakeChain) GetLatestBlockHeight() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.blocks) - 1), nil
}

func (c *fakeChain) GetBlockHash(height int64) (*chainhash.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if height < 0 || height >= int64(len(c.blocks)) {
		return nil, fmt.Errorf("no block at %d", height)
	}
	h := c.blocks[height].BlockHash()
	return &h, nil
}

func (c *fakeChain) GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	c.mu.Lock()
	for i, b := range c.blocks {
		if b.BlockHash() == *hash {
			hook := c.onBlock
			c.mu.Unlock()
			if hook != nil {
				hook(int64(i))
			}
			return b, nil
		}
	}
	c.mu.Unlock()
	return nil, fmt.Errorf("unknown block %s", hash)
}

func (c *fakeChain) MedianTime() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[len(c.blocks)-1].Header.Timestamp, nil
}

type fixture struct {
	chain   *fakeChain
	monitor *BTCMonitor
	params  *htlc.BitcoinParams
	parties swap.SimulatedParties
	dest    btcutil.Address
}

func newFixture(t *testing.T, confirmations int64) *fixture {
	req, accept, parties := swap.RandRequest(time.Now())
	alpha, _, err := req.Params(&accept)
	require.NoError(t, err)

	destKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	dest, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(destKey.PubKey().SerializeCompressed()), &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	chain := newFakeChain()
	return &fixture{
		chain: chain,
		monitor: NewBTCMonitor(&Config{
			ChainConfig:   &chaincfg.RegressionNetParams,
			Confirmations: confirmations,
		}, chain),
		params:  alpha.(*htlc.BitcoinParams),
		parties: parties,
		dest:    dest,
	}
}

func (f *fixture) fundingTx(t *testing.T, sat int64) *wire.MsgTx {
	pkScript, err := f.params.Representation()
	require.NoError(t, err)
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{byte(f.chain.nonce)}, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	tx.AddTxOut(wire.NewTxOut(sat, pkScript))
	return tx
}

func (f *fixture) spendTx(t *testing.T, a action.Action) *wire.MsgTx {
	payload, ok := a.Payload.(action.SpendOutput)
	require.True(t, ok)
	tx, err := payload.Spend.BuildTx(f.dest, 2)
	require.NoError(t, err)
	return tx
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func silent[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected event %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFundingRespectsConfirmations(t *testing.T) {
	f := newFixture(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	funded, err := f.monitor.SubscribeFunded(ctx, f.params)
	require.NoError(t, err)

	tx := f.fundingTx(t, 100_000_000)
	block := f.chain.mine(tx)
	require.NoError(t, f.monitor.Scan())
	silent(t, funded)

	f.chain.mine()
	require.NoError(t, f.monitor.Scan())
	ev := recv(t, funded)
	assert.Equal(t, ledger.NewBitcoinLocation(tx.TxHash(), 1), ev.Funding.Location)
	assert.Equal(t, ledger.NewBitcoinQuantity(100_000_000), ev.Funding.Amount)
	assert.Equal(t, tx.TxHash().String(), ev.TxID)
	assert.Equal(t, block.BlockHash().String(), ev.BlockHash)
	assert.False(t, ev.Retracted)

	// nothing is reported twice
	f.chain.mine()
	require.NoError(t, f.monitor.Scan())
	silent(t, funded)
}

func TestLateSubscriberGetsBacklog(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := f.monitor.SubscribeFunded(ctx, f.params)
	require.NoError(t, err)
	f.chain.mine(f.fundingTx(t, 100_000_000))
	require.NoError(t, f.monitor.Scan())
	recv(t, first)

	second, err := f.monitor.SubscribeFunded(ctx, f.params)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), recv(t, second).Funding.Location.(ledger.BitcoinLocation).Index)
}

func TestSubscribeAfterFundingConfirmed(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tx := f.fundingTx(t, 100_000_000)
	f.chain.mine(tx)
	f.chain.mine()
	require.NoError(t, f.monitor.Scan())

	funded, err := f.monitor.SubscribeFunded(ctx, f.params)
	require.NoError(t, err)
	require.NoError(t, f.monitor.Scan())
	assert.Equal(t, tx.TxHash().String(), recv(t, funded).TxID)
}

func TestSubscribeDuringScan(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// another swap's watch keeps the monitor scanning
	req, accept, _ := swap.RandRequest(time.Now())
	other, _, err := req.Params(&accept)
	require.NoError(t, err)
	_, err = f.monitor.SubscribeFunded(ctx, other)
	require.NoError(t, err)

	tx := f.fundingTx(t, 100_000_000)
	f.chain.mine(tx)
	f.chain.mine()
	f.chain.mine()

	var funded <-chan ledgerevents.Funded
	f.chain.onBlock = func(height int64) {
		if height != 3 || funded != nil {
			return
		}
		ch, err := f.monitor.SubscribeFunded(ctx, f.params)
		require.NoError(t, err)
		funded = ch
	}
	require.NoError(t, f.monitor.Scan())
	require.NotNil(t, funded)
	silent(t, funded)

	require.NoError(t, f.monitor.Scan())
	ev := recv(t, funded)
	assert.Equal(t, tx.TxHash().String(), ev.TxID)
	assert.False(t, ev.Retracted)
}

func TestRedeemRevealsSecret(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	funded, err := f.monitor.SubscribeFunded(ctx, f.params)
	require.NoError(t, err)
	f.chain.mine(f.fundingTx(t, 100_000_000))
	require.NoError(t, f.monitor.Scan())
	ev := recv(t, funded)

	redeemed, err := f.monitor.SubscribeRedeemed(ctx, f.params, ev.Funding.Location)
	require.NoError(t, err)
	refunded, err := f.monitor.SubscribeRefunded(ctx, f.params, ev.Funding.Location)
	require.NoError(t, err)

	redeem, err := f.params.RedeemAction(ev.Funding, secret.WithSecret(f.parties.Bob, f.parties.Alice.Secret()))
	require.NoError(t, err)
	tx := f.spendTx(t, redeem)
	block := f.chain.mine(tx)
	require.NoError(t, f.monitor.Scan())

	r := recv(t, redeemed)
	assert.Equal(t, f.parties.Alice.Secret(), r.Secret)
	assert.Equal(t, tx.TxHash().String(), r.TxID)
	assert.True(t, block.Header.Timestamp.Equal(r.BlockTime))
	silent(t, refunded)
}

func TestRefundDetected(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	funded, err := f.monitor.SubscribeFunded(ctx, f.params)
	require.NoError(t, err)
	f.chain.mine(f.fundingTx(t, 100_000_000))
	require.NoError(t, f.monitor.Scan())
	ev := recv(t, funded)

	redeemed, err := f.monitor.SubscribeRedeemed(ctx, f.params, ev.Funding.Location)
	require.NoError(t, err)
	refunded, err := f.monitor.SubscribeRefunded(ctx, f.params, ev.Funding.Location)
	require.NoError(t, err)

	refund, err := f.params.RefundAction(ev.Funding, f.parties.Alice)
	require.NoError(t, err)
	tx := f.spendTx(t, refund)
	f.chain.mine(tx)
	require.NoError(t, f.monitor.Scan())

	r := recv(t, refunded)
	assert.Equal(t, tx.TxHash().String(), r.TxID)
	silent(t, redeemed)
}

func TestReorgRetractsFunding(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	funded, err := f.monitor.SubscribeFunded(ctx, f.params)
	require.NoError(t, err)

	tx := f.fundingTx(t, 100_000_000)
	f.chain.mine(tx)
	require.NoError(t, f.monitor.Scan())
	first := recv(t, funded)

	f.chain.reorg(0)
	f.chain.mine()
	f.chain.mine()
	require.NoError(t, f.monitor.Scan())
	retracted := recv(t, funded)
	assert.True(t, retracted.Retracted)
	assert.Equal(t, first.TxID, retracted.TxID)
	silent(t, funded)

	// the same transaction confirmed again in the new branch
	block := f.chain.mine(tx)
	require.NoError(t, f.monitor.Scan())
	again := recv(t, funded)
	assert.False(t, again.Retracted)
	assert.Equal(t, block.BlockHash().String(), again.BlockHash)
}

func TestUnsubscribedWatchesArePruned(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := f.monitor.SubscribeFunded(ctx, f.params)
	require.NoError(t, err)
	require.NoError(t, f.monitor.Scan())
	assert.Len(t, f.monitor.fundings, 1)

	cancel()
	assert.Eventually(t, func() bool { return f.monitor.Publisher.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
	require.NoError(t, f.monitor.Scan())
	assert.Empty(t, f.monitor.fundings)
}

func TestRejectsForeignParams(t *testing.T) {
	f := newFixture(t, 1)
	mainnet := NewBTCMonitor(&Config{ChainConfig: &chaincfg.MainNetParams}, f.chain)

	_, err := mainnet.SubscribeFunded(context.Background(), f.params)
	assert.ErrorIs(t, err, ErrNetworkMismatch)

	req, accept, _ := swap.RandRequest(time.Now())
	_, beta, err := req.Params(&accept)
	require.NoError(t, err)
	_, err = f.monitor.SubscribeFunded(context.Background(), beta)
	assert.ErrorIs(t, err, ErrNotBitcoin)
}

func TestLedgerTimeIsMedianTime(t *testing.T) {
	f := newFixture(t, 1)
	f.chain.mine()
	now, err := f.monitor.LedgerTime(context.Background())
	require.NoError(t, err)
	assert.True(t, now.Equal(genesisTime.Add(10*time.Minute)))
}

var _ ledgerevents.Watcher = (*BTCMonitor)(nil)
