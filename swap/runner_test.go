package swap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/swap-go/ledgerevents"
)

type runnerFixture struct {
	*fixture
	swap    *Swap
	store   *memStore
	watcher *ledgerevents.ManualWatcher
	cfg     RunnerConfig
}

func newRunnerFixture(t *testing.T, role Role, now time.Time, p Policy) *runnerFixture {
	f := newFixture(t, now)
	s := f.accepted(t, role)
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), s))

	w := ledgerevents.NewManualWatcher(time.Now())
	return &runnerFixture{
		fixture: f,
		swap:    s,
		store:   store,
		watcher: w,
		cfg: RunnerConfig{
			Watchers:      &ledgerevents.Set{Bitcoin: w, Ethereum: w},
			Store:         store,
			Policy:        p,
			ClockRecheck:  20 * time.Millisecond,
			RetryInterval: 20 * time.Millisecond,
		},
	}
}

func (rf *runnerFixture) start(t *testing.T) (context.CancelFunc, <-chan error) {
	r, err := NewRunner(rf.swap, rf.cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return cancel, done
}

func (rf *runnerFixture) waitFor(t *testing.T, typ EventType) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case events := <-rf.store.saved:
			for _, ev := range events {
				if ev.Type() == typ {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("runner did not stop")
	}
	return nil
}

func TestRunnerDrivesSwapToCompletion(t *testing.T) {
	rf := newRunnerFixture(t, RoleBob, time.Now(), DefaultPolicy())
	alpha, beta := rf.swap.Alpha.Params, rf.swap.Beta.Params
	cancel, done := rf.start(t)
	defer cancel()

	require.NoError(t, rf.watcher.Fund(alpha, ledgerevents.Funded{Funding: fundedBTC(oneBTC), TxID: "alpha-fund"}))
	rf.waitFor(t, EventLegFunded)

	require.NoError(t, rf.watcher.Fund(beta, ledgerevents.Funded{Funding: fundedETH(tenETH), TxID: "beta-deploy"}))
	rf.waitFor(t, EventLegFunded)

	rf.watcher.Redeem(ethLocation, ledgerevents.Redeemed{Secret: rf.alice.Secret(), TxID: "beta-redeem"})
	rf.waitFor(t, EventLegRedeemed)

	rf.watcher.Redeem(btcLocation, ledgerevents.Redeemed{Secret: rf.alice.Secret(), TxID: "alpha-redeem"})
	require.NoError(t, waitDone(t, done))

	s, err := rf.store.Load(context.Background(), rf.id)
	require.NoError(t, err)
	assert.Equal(t, StatusSwapped, s.Status())
	assert.Equal(t, "beta-redeem", s.Beta.RedeemTxID)
	assert.Eventually(t, func() bool { return rf.watcher.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRunnerRetractsFunding(t *testing.T) {
	rf := newRunnerFixture(t, RoleAlice, time.Now(), DefaultPolicy())
	alpha := rf.swap.Alpha.Params
	cancel, done := rf.start(t)

	funded := ledgerevents.Funded{Funding: fundedBTC(oneBTC), TxID: "fund", BlockHash: "aa"}
	require.NoError(t, rf.watcher.Fund(alpha, funded))
	rf.waitFor(t, EventLegFunded)

	funded.Retracted = true
	require.NoError(t, rf.watcher.Fund(alpha, funded))
	rf.waitFor(t, EventLegFundingRetracted)

	cancel()
	assert.ErrorIs(t, waitDone(t, done), context.Canceled)

	s, err := rf.store.Load(context.Background(), rf.id)
	require.NoError(t, err)
	assert.Equal(t, StateCreated, s.Alpha.State)
	assert.Nil(t, s.Alpha.Funding)
}

func TestRunnerExpiresOnLedgerClock(t *testing.T) {
	// both expiries are in the past
	rf := newRunnerFixture(t, RoleAlice, time.Now().Add(-48*time.Hour), DefaultPolicy())
	rf.watcher.SetTime(rf.betaExpiry.Add(-time.Minute))
	cancel, done := rf.start(t)
	defer cancel()

	// the local clock is past both expiries, the ledger clock is not
	time.Sleep(100 * time.Millisecond)
	s, err := rf.store.Load(context.Background(), rf.id)
	require.NoError(t, err)
	assert.Equal(t, StateCreated, s.Beta.State)

	rf.watcher.SetTime(time.Now())
	require.NoError(t, waitDone(t, done))

	s, err = rf.store.Load(context.Background(), rf.id)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, s.Alpha.State)
	assert.Equal(t, StateExpired, s.Beta.State)
	assert.Equal(t, StatusNotSwapped, s.Status())
}

func TestRunnerReportsStalledLegs(t *testing.T) {
	p := DefaultPolicy()
	p.LivenessBound = 50 * time.Millisecond
	rf := newRunnerFixture(t, RoleAlice, time.Now(), p)
	cancel, done := rf.start(t)

	rf.waitFor(t, EventLegStalled)
	cancel()
	assert.ErrorIs(t, waitDone(t, done), context.Canceled)

	s, err := rf.store.Load(context.Background(), rf.id)
	require.NoError(t, err)
	assert.True(t, s.Alpha.Stalled)
	assert.True(t, s.Beta.Stalled)
	assert.Equal(t, StatusInProgress, s.Status())
}

func TestRunnerLivenessCountsFromAcceptance(t *testing.T) {
	p := DefaultPolicy()
	p.LivenessBound = time.Hour
	rf := newRunnerFixture(t, RoleAlice, time.Now(), p)

	// accepted two hours before this runner started
	acceptedAt := time.Unix(time.Now().Add(-2*time.Hour).Unix(), 0)
	history := []Event{
		SwapRequested{Role: RoleAlice, Peer: "bob:9939", Request: rf.req},
		SwapAccepted{Accept: rf.accept, At: acceptedAt.Unix()},
	}
	s, err := NewFromEvents(history)
	require.NoError(t, err)
	assert.True(t, acceptedAt.Equal(s.AcceptedAt))
	rf.swap = s
	rf.store.mu.Lock()
	rf.store.history[rf.id] = history
	rf.store.mu.Unlock()

	cancel, done := rf.start(t)
	rf.waitFor(t, EventLegStalled)
	cancel()
	assert.ErrorIs(t, waitDone(t, done), context.Canceled)

	loaded, err := rf.store.Load(context.Background(), rf.id)
	require.NoError(t, err)
	assert.True(t, loaded.Alpha.Stalled)
	assert.True(t, loaded.Beta.Stalled)
}

func TestRunnerFlagsEarlyRefund(t *testing.T) {
	rf := newRunnerFixture(t, RoleAlice, time.Now(), DefaultPolicy())
	alpha := rf.swap.Alpha.Params
	cancel, done := rf.start(t)

	require.NoError(t, rf.watcher.Fund(alpha, ledgerevents.Funded{Funding: fundedBTC(oneBTC), TxID: "fund"}))
	rf.waitFor(t, EventLegFunded)
	rf.watcher.Refund(btcLocation, ledgerevents.Refunded{TxID: "refund", BlockTime: time.Now()})
	rf.waitFor(t, EventViolationFlagged)

	cancel()
	assert.ErrorIs(t, waitDone(t, done), context.Canceled)
	s, err := rf.store.Load(context.Background(), rf.id)
	require.NoError(t, err)
	assert.Equal(t, StateFunded, s.Alpha.State)
	require.Len(t, s.Violations, 1)
	assert.Equal(t, ViolationEarlyRefund, s.Violations[0].Kind)
}

func TestRunnerAbandon(t *testing.T) {
	rf := newRunnerFixture(t, RoleAlice, time.Now(), DefaultPolicy())
	alpha := rf.swap.Alpha.Params
	r, err := NewRunner(rf.swap, rf.cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	funded := ledgerevents.Funded{Funding: fundedBTC(oneBTC), TxID: "fund", BlockHash: "aa"}
	require.NoError(t, rf.watcher.Fund(alpha, funded))
	rf.waitFor(t, EventLegFunded)
	assert.ErrorIs(t, r.Abandon(ctx), ErrFundsAtStake)

	funded.Retracted = true
	require.NoError(t, rf.watcher.Fund(alpha, funded))
	rf.waitFor(t, EventLegFundingRetracted)

	require.NoError(t, r.Abandon(ctx))
	assert.ErrorIs(t, waitDone(t, done), ErrAbandoned)
	assert.ErrorIs(t, r.Abandon(ctx), ErrRunnerStopped)
}

func TestNewRunnerNeedsAcceptedSwap(t *testing.T) {
	f := newFixture(t, time.Now())
	s, err := NewRequest(RoleAlice, "bob", f.req, DefaultPolicy())
	require.NoError(t, err)
	_, err = NewRunner(s, RunnerConfig{})
	assert.ErrorIs(t, err, ErrInvalidPhase)
}
