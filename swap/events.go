package swap

import (
	"encoding/json"
	"fmt"

	"github.com/TEENet-io/swap-go/secret"
)

type EventType string

const (
	EventSwapRequested       EventType = "swap_requested"
	EventSwapAccepted        EventType = "swap_accepted"
	EventSwapDeclined        EventType = "swap_declined"
	EventLegDeployed         EventType = "leg_deployed"
	EventLegFunded           EventType = "leg_funded"
	EventLegFundingInvalid   EventType = "leg_funding_invalid"
	EventLegFundingRetracted EventType = "leg_funding_retracted"
	EventLegRedeemed         EventType = "leg_redeemed"
	EventLegRefunded         EventType = "leg_refunded"
	EventLegExpired          EventType = "leg_expired"
	EventViolationFlagged    EventType = "violation_flagged"
	EventLegStalled          EventType = "leg_stalled"
)

type Event interface {
	Type() EventType
}

type SwapRequested struct {
	Role    Role    `json:"role"`
	Peer    string  `json:"peer"`
	Request Request `json:"request"`
}

// SwapAccepted records when the swap was accepted, unix seconds of the
// local clock. The liveness bound counts from it.
type SwapAccepted struct {
	Accept Accept `json:"accept"`
	At     int64  `json:"at,omitempty"`
}

type SwapDeclined struct {
	Reason string `json:"reason,omitempty"`
}

type LegDeployed struct {
	Leg      LegID  `json:"leg"`
	Location string `json:"location"`
	TxID     string `json:"txid"`
}

// LegFunded and LegFundingInvalid carry the amount in base units.
type LegFunded struct {
	Leg      LegID  `json:"leg"`
	Location string `json:"location"`
	Amount   string `json:"amount"`
	TxID     string `json:"txid"`
}

type LegFundingInvalid struct {
	Leg      LegID  `json:"leg"`
	Location string `json:"location"`
	Amount   string `json:"amount"`
	TxID     string `json:"txid"`
}

type LegFundingRetracted struct {
	Leg  LegID  `json:"leg"`
	TxID string `json:"txid"`
}

type LegRedeemed struct {
	Leg    LegID         `json:"leg"`
	Secret secret.Secret `json:"secret"`
	TxID   string        `json:"txid"`
}

type LegRefunded struct {
	Leg  LegID  `json:"leg"`
	TxID string `json:"txid"`
}

// LegExpired records the ledger time the expiry was observed at, unix seconds.
type LegExpired struct {
	Leg LegID `json:"leg"`
	At  int64 `json:"at"`
}

type ViolationFlagged struct {
	Violation Violation `json:"violation"`
}

type LegStalled struct {
	Leg   LegID `json:"leg"`
	Since int64 `json:"since"`
}

func (SwapRequested) Type() EventType       { return EventSwapRequested }
func (SwapAccepted) Type() EventType        { return EventSwapAccepted }
func (SwapDeclined) Type() EventType        { return EventSwapDeclined }
func (LegDeployed) Type() EventType         { return EventLegDeployed }
func (LegFunded) Type() EventType           { return EventLegFunded }
func (LegFundingInvalid) Type() EventType   { return EventLegFundingInvalid }
func (LegFundingRetracted) Type() EventType { return EventLegFundingRetracted }
func (LegRedeemed) Type() EventType         { return EventLegRedeemed }
func (LegRefunded) Type() EventType         { return EventLegRefunded }
func (LegExpired) Type() EventType          { return EventLegExpired }
func (ViolationFlagged) Type() EventType    { return EventViolationFlagged }
func (LegStalled) Type() EventType          { return EventLegStalled }

func MarshalEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

func UnmarshalEvent(typ EventType, b []byte) (Event, error) {
	var ev Event
	switch typ {
	case EventSwapRequested:
		ev = &SwapRequested{}
	case EventSwapAccepted:
		ev = &SwapAccepted{}
	case EventSwapDeclined:
		ev = &SwapDeclined{}
	case EventLegDeployed:
		ev = &LegDeployed{}
	case EventLegFunded:
		ev = &LegFunded{}
	case EventLegFundingInvalid:
		ev = &LegFundingInvalid{}
	case EventLegFundingRetracted:
		ev = &LegFundingRetracted{}
	case EventLegRedeemed:
		ev = &LegRedeemed{}
	case EventLegRefunded:
		ev = &LegRefunded{}
	case EventLegExpired:
		ev = &LegExpired{}
	case EventViolationFlagged:
		ev = &ViolationFlagged{}
	case EventLegStalled:
		ev = &LegStalled{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, typ)
	}
	if err := json.Unmarshal(b, ev); err != nil {
		return nil, err
	}
	return deref(ev), nil
}

// deref hands out events as values, the way commands raise them.
func deref(ev Event) Event {
	switch e := ev.(type) {
	case *SwapRequested:
		return *e
	case *SwapAccepted:
		return *e
	case *SwapDeclined:
		return *e
	case *LegDeployed:
		return *e
	case *LegFunded:
		return *e
	case *LegFundingInvalid:
		return *e
	case *LegFundingRetracted:
		return *e
	case *LegRedeemed:
		return *e
	case *LegRefunded:
		return *e
	case *LegExpired:
		return *e
	case *ViolationFlagged:
		return *e
	case *LegStalled:
		return *e
	}
	return ev
}
