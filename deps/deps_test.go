package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/swap-go/database"
	"github.com/TEENet-io/swap-go/ledgerevents"
	"github.com/TEENet-io/swap-go/peer"
	"github.com/TEENet-io/swap-go/secret"
	"github.com/TEENet-io/swap-go/statestore"
	"github.com/TEENet-io/swap-go/swap"
	"github.com/TEENet-io/swap-go/trade"
)

func TestDependencies(t *testing.T) {
	db, err := database.OpenSQLite(database.MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	st, err := statestore.New(db)
	require.NoError(t, err)
	defer st.Close()
	trades, err := trade.NewLog(db)
	require.NoError(t, err)
	defer trades.Close()

	d := Dependencies{
		LedgerEvents: &ledgerevents.Set{},
		Policy:       swap.DefaultPolicy(),
	}
	assert.ErrorIs(t, d.Validate(), ErrMissingDependency)

	d = FromStore(st, d)
	d.ConnectionPool = peer.NewPool("127.0.0.1:9939")
	d.Trades = trades
	assert.ErrorIs(t, d.Validate(), ErrMissingDependency)

	d.Seed = secret.NewRandomSeed()
	require.NoError(t, d.Validate())

	// copies share every handle
	c := d
	c.Policy.AcceptOverfunding = true
	assert.Same(t, d.LedgerEvents, c.LedgerEvents)
	assert.Same(t, d.Trades, c.Trades)
	assert.Equal(t, d.StateStore, c.StateStore)
	assert.False(t, d.Policy.AcceptOverfunding)
}
