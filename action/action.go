/*
Package action describes the ledger transactions a party is told to submit.
Actions are derived from htlc parameters on demand and never stored.
*/
package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TEENet-io/swap-go/ledger"
)

type Kind uint8

const (
	KindDeploy Kind = iota + 1
	KindFund
	KindRedeem
	KindRefund
)

var (
	ErrTimelockNotElapsed = errors.New("action is not valid before its timelock")
	ErrUnknownKind        = errors.New("unknown action kind")
)

func (k Kind) String() string {
	switch k {
	case KindDeploy:
		return "deploy"
	case KindFund:
		return "fund"
	case KindRedeem:
		return "redeem"
	case KindRefund:
		return "refund"
	}
	return "unknown"
}

func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindDeploy, KindFund, KindRedeem, KindRefund} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Payload is the ledger specific transaction intent.
type Payload interface {
	Ledger() ledger.Kind
	isPayload()
}

type Action struct {
	Kind   Kind
	Ledger ledger.Kind
	// InvalidUntil, when set, is the earliest time the action may be
	// submitted.
	InvalidUntil *time.Time
	Payload      Payload
}

// CheckSubmittable is the gate a submitter must pass before broadcasting.
func (a *Action) CheckSubmittable(now time.Time) error {
	if a.InvalidUntil != nil && now.Before(*a.InvalidUntil) {
		return fmt.Errorf("%w: %s %s valid from %s", ErrTimelockNotElapsed,
			a.Ledger, a.Kind, a.InvalidUntil.UTC().Format(time.RFC3339))
	}
	return nil
}

func (a Action) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind         Kind        `json:"type"`
		Ledger       ledger.Kind `json:"ledger"`
		InvalidUntil *int64      `json:"invalid_until,omitempty"`
		Payload      Payload     `json:"payload"`
	}{Kind: a.Kind, Ledger: a.Ledger, Payload: a.Payload}
	if a.InvalidUntil != nil {
		ts := a.InvalidUntil.Unix()
		out.InvalidUntil = &ts
	}
	return json.Marshal(out)
}
