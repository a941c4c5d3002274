package ledgerevents

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
)

// ManualWatcher is a Watcher driven by hand. Tests and the simulated demo
// use it in place of a chain.
type ManualWatcher struct {
	*Publisher

	mu  sync.Mutex
	now time.Time
}

func NewManualWatcher(now time.Time) *ManualWatcher {
	return &ManualWatcher{Publisher: NewPublisher(), now: now}
}

func FundedKey(p htlc.Params) (string, error) {
	rep, err := p.Representation()
	if err != nil {
		return "", err
	}
	return p.Ledger().String() + ":" + hex.EncodeToString(rep), nil
}

func SpendKey(loc ledger.HtlcLocation) string {
	return loc.Ledger().String() + ":" + loc.String()
}

func (w *ManualWatcher) SubscribeFunded(ctx context.Context, p htlc.Params) (<-chan Funded, error) {
	key, err := FundedKey(p)
	if err != nil {
		return nil, err
	}
	return w.Publisher.SubscribeFunded(ctx, key), nil
}

func (w *ManualWatcher) SubscribeRedeemed(ctx context.Context, _ htlc.Params, loc ledger.HtlcLocation) (<-chan Redeemed, error) {
	return w.Publisher.SubscribeRedeemed(ctx, SpendKey(loc)), nil
}

func (w *ManualWatcher) SubscribeRefunded(ctx context.Context, _ htlc.Params, loc ledger.HtlcLocation) (<-chan Refunded, error) {
	return w.Publisher.SubscribeRefunded(ctx, SpendKey(loc)), nil
}

func (w *ManualWatcher) LedgerTime(context.Context) (time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now, nil
}

func (w *ManualWatcher) SetTime(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = t
}

// Fund reports f for the htlc described by p.
func (w *ManualWatcher) Fund(p htlc.Params, f Funded) error {
	key, err := FundedKey(p)
	if err != nil {
		return err
	}
	w.NotifyFunded(key, f)
	return nil
}

func (w *ManualWatcher) Redeem(loc ledger.HtlcLocation, r Redeemed) {
	w.NotifyRedeemed(SpendKey(loc), r)
}

func (w *ManualWatcher) Refund(loc ledger.HtlcLocation, r Refunded) {
	w.NotifyRefunded(SpendKey(loc), r)
}
