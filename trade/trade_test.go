package trade

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/swap-go/database"
	"github.com/TEENet-io/swap-go/secret"
)

func newLog(t *testing.T) *Log {
	db, err := database.OpenSQLite(database.MemoryPath)
	require.NoError(t, err)
	l, err := NewLog(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		l.Close()
		db.Close()
	})
	return l
}

func chain(uid uuid.UUID) []Event {
	s, _ := secret.NewRandom()
	return []Event{
		OfferCreated{
			UID:        uid,
			Symbol:     "ETH-BTC",
			Rate:       decimal.RequireFromString("0.1"),
			BuyAmount:  decimal.RequireFromString("10"),
			SellAmount: decimal.RequireFromString("1"),
		},
		OrderCreated{
			UID:                  uid,
			ClientSuccessAddress: "0x00a329c0648769A73afAc7F9381E08FB43dBEA72",
			ClientRefundAddress:  "bcrt1qrefund",
			SecretHash:           s.Hash(),
			LongRelativeTimelock: 86400,
		},
		OrderTaken{
			UID:                    uid,
			ExchangeRefundAddress:  "0x00a329c0648769A73afAc7F9381E08FB43dBEA72",
			ExchangeSuccessAddress: "bcrt1qsuccess",
			ShortRelativeTimelock:  43200,
		},
		ContractDeployed{UID: uid, Ledger: "ethereum", Address: "0x00a329c0648769A73afAc7F9381E08FB43dBEA72"},
		SwapCompleted{UID: uid, Outcome: "swapped"},
	}
}

func TestAppendInOrder(t *testing.T) {
	l := newLog(t)
	ctx := context.Background()
	uid := uuid.New()

	events := chain(uid)
	for _, ev := range events {
		require.NoError(t, l.Append(ctx, ev))
	}

	stored, err := l.Events(ctx, uid)
	require.NoError(t, err)
	require.Len(t, stored, len(events))
	for i := range events {
		assert.Equal(t, events[i].Type(), stored[i].Type())
	}
	offer := stored[0].(OfferCreated)
	assert.True(t, offer.Rate.Equal(decimal.RequireFromString("0.1")))
	// order taken is persisted like every other event
	taken := stored[2].(OrderTaken)
	assert.Equal(t, int64(43200), taken.ShortRelativeTimelock)
	assert.Equal(t, events[1].(OrderCreated).SecretHash, stored[1].(OrderCreated).SecretHash)

	last, err := l.Last(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, EventSwapCompleted, last.Type())
}

func TestAppendRejectsOutOfOrder(t *testing.T) {
	l := newLog(t)
	ctx := context.Background()
	uid := uuid.New()
	events := chain(uid)

	assert.ErrorIs(t, l.Append(ctx, events[1]), ErrUnexpectedPredecessor)
	require.NoError(t, l.Append(ctx, events[0]))
	assert.ErrorIs(t, l.Append(ctx, events[0]), ErrUnexpectedPredecessor)
	assert.ErrorIs(t, l.Append(ctx, events[2]), ErrUnexpectedPredecessor)
	require.NoError(t, l.Append(ctx, events[1]))

	// chains of other swaps are independent
	require.NoError(t, l.Append(ctx, chain(uuid.New())[0]))

	stored, err := l.Events(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	_, err = l.Events(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentAppendsKeepOrder(t *testing.T) {
	l := newLog(t)
	ctx := context.Background()
	uid := uuid.New()
	events := chain(uid)
	require.NoError(t, l.Append(ctx, events[0]))

	// racing writers of the same successor: exactly one wins
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Append(ctx, events[1]) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestPredecessor(t *testing.T) {
	p, ok := Predecessor(EventContractDeployed)
	assert.True(t, ok)
	assert.Equal(t, EventOrderTaken, p)
	p, ok = Predecessor(EventOfferCreated)
	assert.True(t, ok)
	assert.Empty(t, p)
	_, ok = Predecessor("bogus")
	assert.False(t, ok)
}
