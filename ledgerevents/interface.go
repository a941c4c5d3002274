/*
Package ledgerevents is the contract between the swap state machine and the
ledger watchers: subscriptions to htlc funding, redeem and refund, and the
ledger clock timelocks are evaluated against.

Streams may stay silent forever. A stream is closed when the subscription
context is cancelled or the watcher gives up on it, in which case the
subscriber is expected to subscribe again.
*/
package ledgerevents

import (
	"context"
	"errors"
	"time"

	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/secret"
)

var ErrNoWatcher = errors.New("no watcher configured for ledger")

// Funded reports an htlc holding funds, at or below the finality depth.
// Retracted is set when a reorg removed a previously reported funding.
type Funded struct {
	Funding   htlc.Funding
	TxID      string
	BlockHash string
	Retracted bool
}

type Redeemed struct {
	Secret    secret.Secret
	TxID      string
	BlockTime time.Time
}

type Refunded struct {
	TxID      string
	BlockTime time.Time
}

type Watcher interface {
	SubscribeFunded(ctx context.Context, p htlc.Params) (<-chan Funded, error)
	SubscribeRedeemed(ctx context.Context, p htlc.Params, loc ledger.HtlcLocation) (<-chan Redeemed, error)
	SubscribeRefunded(ctx context.Context, p htlc.Params, loc ledger.HtlcLocation) (<-chan Refunded, error)
	// LedgerTime is the time the ledger checks timelocks against.
	LedgerTime(ctx context.Context) (time.Time, error)
}

// Set holds one watcher per supported ledger, shared by every swap.
type Set struct {
	Bitcoin  Watcher
	Ethereum Watcher
}

func (s *Set) For(kind ledger.Kind) (Watcher, error) {
	var w Watcher
	switch kind {
	case ledger.Bitcoin:
		w = s.Bitcoin
	case ledger.Ethereum:
		w = s.Ethereum
	default:
		return nil, ledger.ErrUnsupportedLedger
	}
	if w == nil {
		return nil, ErrNoWatcher
	}
	return w, nil
}
