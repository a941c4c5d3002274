/*
Package deps bundles the long lived handles every swap operation needs.
Dependencies is passed by value: copies share the same stores, watchers and
connections.
*/
package deps

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/TEENet-io/swap-go/ledgerevents"
	"github.com/TEENet-io/swap-go/peer"
	"github.com/TEENet-io/swap-go/secret"
	"github.com/TEENet-io/swap-go/statestore"
	"github.com/TEENet-io/swap-go/swap"
	"github.com/TEENet-io/swap-go/trade"
)

var ErrMissingDependency = errors.New("missing dependency")

// MetadataStore answers listing queries without replaying histories.
type MetadataStore interface {
	Summary(ctx context.Context, id uuid.UUID) (*statestore.Summary, error)
	List(ctx context.Context) ([]*statestore.Summary, error)
	ListActive(ctx context.Context) ([]uuid.UUID, error)
}

type ConnectionPool interface {
	Self() string
	Send(ctx context.Context, addr string, msg *peer.Message) error
	Peers() []string
}

type Dependencies struct {
	LedgerEvents   *ledgerevents.Set
	MetadataStore  MetadataStore
	StateStore     swap.Store
	ConnectionPool ConnectionPool
	Trades         *trade.Log
	Seed           secret.Seed
	Policy         swap.Policy
}

// FromStore fills both stores from one statestore.
func FromStore(st *statestore.StateStore, d Dependencies) Dependencies {
	d.MetadataStore = st
	d.StateStore = st
	return d
}

func (d Dependencies) Validate() error {
	switch {
	case d.LedgerEvents == nil:
		return fmt.Errorf("%w: ledger events", ErrMissingDependency)
	case d.MetadataStore == nil:
		return fmt.Errorf("%w: metadata store", ErrMissingDependency)
	case d.StateStore == nil:
		return fmt.Errorf("%w: state store", ErrMissingDependency)
	case d.ConnectionPool == nil:
		return fmt.Errorf("%w: connection pool", ErrMissingDependency)
	case d.Trades == nil:
		return fmt.Errorf("%w: trade log", ErrMissingDependency)
	case d.Seed == (secret.Seed{}):
		return fmt.Errorf("%w: seed", ErrMissingDependency)
	}
	return nil
}
