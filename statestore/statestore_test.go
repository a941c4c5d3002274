package statestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/swap-go/database"
	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/swap"
)

func newStore(t *testing.T) *StateStore {
	db, err := database.OpenSQLite(database.MemoryPath)
	require.NoError(t, err)
	st, err := New(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		st.Close()
		db.Close()
	})
	return st
}

func newAccepted(t *testing.T, role swap.Role) *swap.Swap {
	req, accept, _ := swap.RandRequest(time.Now())
	s, err := swap.NewRequest(role, "peer:9939", req, swap.DefaultPolicy())
	require.NoError(t, err)
	require.NoError(t, s.Accept(accept))
	return s
}

var funding = htlc.Funding{
	Location: ledger.NewBitcoinLocation(chainhash.Hash{0x02}, 1),
	Amount:   ledger.NewBitcoinQuantity(100_000_000),
}

func TestSaveAndLoad(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	s := newAccepted(t, swap.RoleAlice)

	require.NoError(t, st.Save(ctx, s))
	assert.Empty(t, s.Changes())
	require.NoError(t, s.ObserveFunded(swap.Alpha, funding, "fund", swap.DefaultPolicy()))
	require.NoError(t, st.Save(ctx, s))

	loaded, err := st.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Version())
	assert.Equal(t, swap.StateFunded, loaded.Alpha.State)
	assert.Equal(t, funding.Location.String(), loaded.Alpha.Funding.Location.String())

	sum, err := st.Summary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, swap.RoleAlice, sum.Role)
	assert.Equal(t, swap.StatusInProgress, sum.Status)
	assert.Equal(t, "bitcoin", sum.AlphaLedger)
	assert.Equal(t, "funded", sum.AlphaState)
	assert.Equal(t, 3, sum.Version)

	records, err := st.Records(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, swap.EventLegFunded, records[2].Type)

	_, err = st.Load(ctx, uuid.New())
	assert.ErrorIs(t, err, swap.ErrSwapNotFound)
	_, err = st.Summary(ctx, uuid.New())
	assert.ErrorIs(t, err, swap.ErrSwapNotFound)
}

func TestSaveRejectsStaleVersion(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	s := newAccepted(t, swap.RoleAlice)
	require.NoError(t, st.Save(ctx, s))

	a, err := st.Load(ctx, s.ID)
	require.NoError(t, err)
	b, err := st.Load(ctx, s.ID)
	require.NoError(t, err)

	require.NoError(t, a.ObserveFunded(swap.Alpha, funding, "fund", swap.DefaultPolicy()))
	require.NoError(t, st.Save(ctx, a))

	require.NoError(t, b.ObserveExpired(swap.Beta, time.Now().Add(48*time.Hour)))
	assert.ErrorIs(t, st.Save(ctx, b), swap.ErrVersionConflict)
	assert.NotEmpty(t, b.Changes())
}

func TestSaveRejectsForeignHistory(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	req, accept, _ := swap.RandRequest(time.Now())
	stored, err := swap.NewRequest(swap.RoleBob, "peer", req, swap.DefaultPolicy())
	require.NoError(t, err)
	require.NoError(t, stored.Decline("rate"))
	require.NoError(t, st.Save(ctx, stored))

	// same id and version, but accepted instead of declined
	foreign, err := swap.NewRequest(swap.RoleBob, "peer", req, swap.DefaultPolicy())
	require.NoError(t, err)
	require.NoError(t, foreign.Accept(accept))
	foreign.ClearChanges()
	require.NoError(t, foreign.ObserveFunded(swap.Alpha, funding, "fund", swap.DefaultPolicy()))
	assert.ErrorIs(t, st.Save(ctx, foreign), ErrInvalidHistory)

	loaded, err := st.Load(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Version())
	assert.Equal(t, swap.StatusDeclined, loaded.Status())
}

func TestListAndActive(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	active := newAccepted(t, swap.RoleAlice)
	require.NoError(t, st.Save(ctx, active))

	req, _, _ := swap.RandRequest(time.Now())
	declined, err := swap.NewRequest(swap.RoleBob, "peer", req, swap.DefaultPolicy())
	require.NoError(t, err)
	require.NoError(t, declined.Decline("no"))
	require.NoError(t, st.Save(ctx, declined))

	all, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ids, err := st.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{active.ID}, ids)
}

func TestConcurrentSwapsDoNotContend(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, accept, _ := swap.RandRequest(time.Now())
			s, err := swap.NewRequest(swap.RoleAlice, "peer", req, swap.DefaultPolicy())
			if err != nil {
				errs <- err
				return
			}
			if err := s.Accept(accept); err != nil {
				errs <- err
				return
			}
			errs <- st.Save(ctx, s)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	all, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 8)
}
