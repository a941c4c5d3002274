package swap

import (
	"fmt"
	"time"

	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/secret"
)

type Phase string

const (
	PhaseRequested Phase = "requested" // request sent or received, no answer yet
	PhaseAccepted  Phase = "accepted"
	PhaseDeclined  Phase = "declined"
)

type LegState string

const (
	StateCreated        LegState = "created"         // params agreed, nothing seen on chain
	StateDeployed       LegState = "deployed"        // contract seen, amount not checked yet
	StateFunded         LegState = "funded"          // holds exactly the agreed asset
	StateFundingInvalid LegState = "funding_invalid" // holds something else, waits for an operator
	StateRedeemed       LegState = "redeemed"
	StateRefunded       LegState = "refunded"
	StateExpired        LegState = "expired" // timelock elapsed without a redeem
)

// legTransitions lists the permitted successors of every leg state.
// Redeemed and Refunded have none.
var legTransitions = map[LegState][]LegState{
	StateCreated:        {StateDeployed, StateFunded, StateFundingInvalid, StateExpired},
	StateDeployed:       {StateFunded, StateFundingInvalid, StateCreated, StateExpired},
	StateFunded:         {StateRedeemed, StateRefunded, StateExpired, StateCreated},
	StateFundingInvalid: {StateRedeemed, StateRefunded, StateCreated},
	StateExpired:        {StateDeployed, StateFunded, StateFundingInvalid, StateRedeemed, StateRefunded, StateCreated},
	StateRedeemed:       {},
	StateRefunded:       {},
}

func CanTransition(from, to LegState) bool {
	for _, s := range legTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ErrInvalidTransition(leg LegID, from, to LegState) error {
	return fmt.Errorf("%w: %s leg %s -> %s", ErrIllegalTransition, leg, from, to)
}

type ViolationKind string

const (
	ViolationSecretMismatch     ViolationKind = "secret_mismatch"     // redeem with a secret not matching the hash
	ViolationEarlyRefund        ViolationKind = "early_refund"        // refund confirmed before the expiry
	ViolationConflictingOutcome ViolationKind = "conflicting_outcome" // redeem and refund both reported
)

type Violation struct {
	Leg    LegID         `json:"leg"`
	Kind   ViolationKind `json:"kind"`
	TxID   string        `json:"txid"`
	Detail string        `json:"detail,omitempty"`
}

// Leg is one htlc of the swap as the observations so far describe it.
type Leg struct {
	ID      LegID
	Params  htlc.Params
	State   LegState
	Funding *htlc.Funding // location known from Deployed on, amount from Funded on

	FundTxID   string
	RedeemTxID string
	RefundTxID string
	Secret     *secret.Secret // learned from the redeem

	Stalled   bool
	ExpiredAt time.Time
}

// Funded reports whether the leg holds an observed amount.
func (l *Leg) Funded() bool {
	return l.Funding != nil && l.Funding.Amount != nil
}

// IsFinal reports whether nothing more can happen on the leg.
func (l *Leg) IsFinal() bool {
	switch l.State {
	case StateRedeemed, StateRefunded:
		return true
	case StateExpired:
		return l.Funding == nil
	}
	return false
}

// AtStake reports whether the leg holds funds not yet claimed by anybody.
func (l *Leg) AtStake() bool {
	return l.Funding != nil && l.State != StateRedeemed && l.State != StateRefunded
}
