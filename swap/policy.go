package swap

import (
	"time"

	"github.com/TEENet-io/swap-go/ledger"
)

const (
	DefaultMinTimelockGap = time.Hour
	DefaultLivenessBound  = 2 * time.Hour
)

// Policy holds the operator decisions the protocol leaves open.
type Policy struct {
	// AcceptOverfunding lets a leg holding more than agreed count as funded.
	AcceptOverfunding bool
	MinTimelockGap    time.Duration
	// LivenessBound is how long a leg may wait for funding before it is
	// reported stalled. Zero disables the report.
	LivenessBound time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MinTimelockGap: DefaultMinTimelockGap,
		LivenessBound:  DefaultLivenessBound,
	}
}

// FundingAcceptable is an exact match unless overfunding is accepted.
func (p Policy) FundingAcceptable(expected, observed ledger.Asset) bool {
	if observed == nil || expected.Ledger() != observed.Ledger() {
		return false
	}
	c := observed.Cmp(expected)
	return c == 0 || (c > 0 && p.AcceptOverfunding)
}
