/*
Package swap is the event sourced state machine of one atomic swap.

A Swap is only ever changed by raising events; every event is validated
against the leg transition table before it is applied, and the same
validation runs when a swap is rebuilt from its history. Commands never
perform I/O: observations come in through the Observe methods, actions are
derived on demand.
*/
package swap

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/secret"
)

type Status string

const (
	StatusRequested  Status = "requested"
	StatusDeclined   Status = "declined"
	StatusInProgress Status = "in_progress"
	StatusSwapped    Status = "swapped"
	StatusNotSwapped Status = "not_swapped"
)

type Swap struct {
	ID            uuid.UUID
	Role          Role
	Peer          string
	Request       Request
	Acceptance    *Accept
	AcceptedAt    time.Time // zero for swaps accepted before it was recorded
	Phase         Phase
	DeclineReason string

	Alpha      *Leg
	Beta       *Leg
	Violations []Violation

	version int
	changes []Event
}

// NewRequest starts a swap from a request, sent by Alice or received by Bob.
func NewRequest(role Role, peer string, req Request, p Policy) (*Swap, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if err := req.Validate(p); err != nil {
		return nil, err
	}
	s := &Swap{}
	if err := s.raise(SwapRequested{Role: role, Peer: peer, Request: req}); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFromEvents rebuilds a swap from its history.
func NewFromEvents(events []Event) (*Swap, error) {
	if len(events) == 0 {
		return nil, ErrEmptyHistory
	}
	s := &Swap{}
	for _, ev := range events {
		if err := s.apply(ev); err != nil {
			return nil, fmt.Errorf("replaying %s at version %d: %w", ev.Type(), s.version+1, err)
		}
	}
	return s, nil
}

// Version counts every applied event, pending changes included.
func (s *Swap) Version() int { return s.version }

// Changes are the events raised since the last ClearChanges.
func (s *Swap) Changes() []Event { return s.changes }

func (s *Swap) ClearChanges() { s.changes = nil }

func (s *Swap) Leg(id LegID) *Leg {
	switch id {
	case Alpha:
		return s.Alpha
	case Beta:
		return s.Beta
	}
	return nil
}

// Legs is empty until the swap is accepted.
func (s *Swap) Legs() []*Leg {
	if s.Alpha == nil {
		return nil
	}
	return []*Leg{s.Alpha, s.Beta}
}

func (s *Swap) IsFinal() bool {
	switch s.Phase {
	case PhaseDeclined:
		return true
	case PhaseAccepted:
		return s.Alpha.IsFinal() && s.Beta.IsFinal()
	}
	return false
}

func (s *Swap) FundsAtStake() bool {
	for _, l := range s.Legs() {
		if l.AtStake() {
			return true
		}
	}
	return false
}

// CanAbandon refuses while any leg holds funds: only a redeem or a refund
// releases them, so the swap has to stay monitored.
func (s *Swap) CanAbandon() error {
	if s.FundsAtStake() {
		return ErrFundsAtStake
	}
	return nil
}

func (s *Swap) Status() Status {
	switch s.Phase {
	case PhaseRequested:
		return StatusRequested
	case PhaseDeclined:
		return StatusDeclined
	}
	if s.Alpha.State == StateRedeemed && s.Beta.State == StateRedeemed {
		return StatusSwapped
	}
	if s.IsFinal() {
		return StatusNotSwapped
	}
	return StatusInProgress
}

// LearnedSecret is the secret revealed by a redeem on either leg.
func (s *Swap) LearnedSecret() *secret.Secret {
	for _, l := range s.Legs() {
		if l.Secret != nil {
			return l.Secret
		}
	}
	return nil
}

func (s *Swap) Accept(a Accept) error {
	if s.Phase != PhaseRequested {
		return ErrInvalidPhase
	}
	return s.raise(SwapAccepted{Accept: a, At: time.Now().Unix()})
}

func (s *Swap) Decline(reason string) error {
	if s.Phase != PhaseRequested {
		return ErrInvalidPhase
	}
	return s.raise(SwapDeclined{Reason: reason})
}

// ObserveFunded records an htlc found holding f. The amount is checked
// against the agreed asset; a mismatch is recorded as invalid funding, which
// halts the leg. Ethereum htlcs pass through Deployed first.
func (s *Swap) ObserveFunded(id LegID, f htlc.Funding, txID string, p Policy) error {
	leg, err := s.acceptedLeg(id)
	if err != nil {
		return err
	}
	if leg.State == StateRedeemed || leg.State == StateRefunded || leg.Funded() {
		return nil
	}
	kind := leg.Params.Ledger()
	if f.Location == nil || f.Location.Ledger() != kind {
		return htlc.ErrLocationMismatch
	}
	if f.Amount == nil || f.Amount.Ledger() != kind {
		return htlc.ErrAmountMismatch
	}

	loc := f.Location.String()
	if kind == ledger.Ethereum && leg.State != StateDeployed {
		if err := s.raise(LegDeployed{Leg: id, Location: loc, TxID: txID}); err != nil {
			return err
		}
	}
	amount := ledger.BaseUnits(f.Amount)
	if p.FundingAcceptable(leg.Params.Asset(), f.Amount) {
		return s.raise(LegFunded{Leg: id, Location: loc, Amount: amount, TxID: txID})
	}
	return s.raise(LegFundingInvalid{Leg: id, Location: loc, Amount: amount, TxID: txID})
}

// ObserveFundingRetracted undoes a funding removed by a reorg; the leg goes
// back to Created.
func (s *Swap) ObserveFundingRetracted(id LegID, loc ledger.HtlcLocation, txID string) error {
	leg, err := s.acceptedLeg(id)
	if err != nil {
		return err
	}
	if leg.Funding == nil || loc == nil || leg.Funding.Location.String() != loc.String() {
		return nil
	}
	if leg.State == StateRedeemed || leg.State == StateRefunded {
		return nil
	}
	return s.raise(LegFundingRetracted{Leg: id, TxID: txID})
}

func (s *Swap) ObserveRedeemed(id LegID, sec secret.Secret, txID string) error {
	leg, err := s.acceptedLeg(id)
	if err != nil {
		return err
	}
	if !leg.Params.SecretHash().Matches(sec) {
		return s.flag(Violation{Leg: id, Kind: ViolationSecretMismatch, TxID: txID, Detail: sec.String()}, ErrSecretMismatch)
	}
	switch leg.State {
	case StateRedeemed:
		return nil
	case StateRefunded:
		return s.flag(Violation{Leg: id, Kind: ViolationConflictingOutcome, TxID: txID}, ErrConflictingOutcome)
	}
	return s.raise(LegRedeemed{Leg: id, Secret: sec, TxID: txID})
}

// ObserveRefunded records a refund. A refund confirmed in a block older
// than the expiry cannot come from a correct htlc and is only flagged.
func (s *Swap) ObserveRefunded(id LegID, txID string, blockTime time.Time) error {
	leg, err := s.acceptedLeg(id)
	if err != nil {
		return err
	}
	if blockTime.Before(leg.Params.Expiry()) {
		return s.flag(Violation{Leg: id, Kind: ViolationEarlyRefund, TxID: txID,
			Detail: fmt.Sprintf("block time %d before expiry %d", blockTime.Unix(), leg.Params.Expiry().Unix())}, ErrEarlyRefund)
	}
	switch leg.State {
	case StateRefunded:
		return nil
	case StateRedeemed:
		return s.flag(Violation{Leg: id, Kind: ViolationConflictingOutcome, TxID: txID}, ErrConflictingOutcome)
	}
	return s.raise(LegRefunded{Leg: id, TxID: txID})
}

// ObserveExpired moves the leg to Expired once the ledger clock passed the
// expiry. Earlier clocks are ignored.
func (s *Swap) ObserveExpired(id LegID, ledgerTime time.Time) error {
	leg, err := s.acceptedLeg(id)
	if err != nil {
		return err
	}
	if ledgerTime.Before(leg.Params.Expiry()) {
		return nil
	}
	switch leg.State {
	case StateCreated, StateDeployed, StateFunded:
		return s.raise(LegExpired{Leg: id, At: ledgerTime.Unix()})
	}
	return nil
}

// ReportStalled marks a leg still waiting for funding. It is a report for
// the operator, the leg state does not change.
func (s *Swap) ReportStalled(id LegID, since time.Time) error {
	leg, err := s.acceptedLeg(id)
	if err != nil {
		return err
	}
	if leg.Stalled || (leg.State != StateCreated && leg.State != StateDeployed) {
		return nil
	}
	return s.raise(LegStalled{Leg: id, Since: since.Unix()})
}

func (s *Swap) acceptedLeg(id LegID) (*Leg, error) {
	if s.Phase != PhaseAccepted {
		return nil, ErrInvalidPhase
	}
	leg := s.Leg(id)
	if leg == nil {
		return nil, fmt.Errorf("unknown leg %q", id)
	}
	return leg, nil
}

// flag records v once and returns cause.
func (s *Swap) flag(v Violation, cause error) error {
	for _, seen := range s.Violations {
		if seen == v {
			return cause
		}
	}
	if err := s.raise(ViolationFlagged{Violation: v}); err != nil {
		return err
	}
	return cause
}

func (s *Swap) raise(ev Event) error {
	if err := s.apply(ev); err != nil {
		return err
	}
	s.changes = append(s.changes, ev)
	return nil
}

func (s *Swap) apply(ev Event) error {
	if s.version == 0 {
		if _, ok := ev.(SwapRequested); !ok {
			return fmt.Errorf("%w: history must start with %s", ErrInvalidPhase, EventSwapRequested)
		}
	}

	switch e := ev.(type) {
	case SwapRequested:
		if s.version != 0 {
			return ErrInvalidPhase
		}
		s.ID = e.Request.ID
		s.Role = e.Role
		s.Peer = e.Peer
		s.Request = e.Request
		s.Phase = PhaseRequested

	case SwapAccepted:
		if s.Phase != PhaseRequested {
			return ErrInvalidPhase
		}
		alpha, beta, err := s.Request.Params(&e.Accept)
		if err != nil {
			return err
		}
		a := e.Accept
		s.Acceptance = &a
		if e.At != 0 {
			s.AcceptedAt = time.Unix(e.At, 0)
		}
		s.Phase = PhaseAccepted
		s.Alpha = &Leg{ID: Alpha, Params: alpha, State: StateCreated}
		s.Beta = &Leg{ID: Beta, Params: beta, State: StateCreated}

	case SwapDeclined:
		if s.Phase != PhaseRequested {
			return ErrInvalidPhase
		}
		s.Phase = PhaseDeclined
		s.DeclineReason = e.Reason

	case LegDeployed:
		leg, err := s.acceptedLeg(e.Leg)
		if err != nil {
			return err
		}
		loc, err := ledger.ParseLocation(leg.Params.Ledger(), e.Location)
		if err != nil {
			return err
		}
		if err := leg.transition(StateDeployed); err != nil {
			return err
		}
		leg.Funding = &htlc.Funding{Location: loc}
		leg.FundTxID = e.TxID
		leg.Stalled = false

	case LegFunded:
		if err := s.applyFunding(e.Leg, StateFunded, e.Location, e.Amount, e.TxID); err != nil {
			return err
		}

	case LegFundingInvalid:
		if err := s.applyFunding(e.Leg, StateFundingInvalid, e.Location, e.Amount, e.TxID); err != nil {
			return err
		}

	case LegFundingRetracted:
		leg, err := s.acceptedLeg(e.Leg)
		if err != nil {
			return err
		}
		if err := leg.transition(StateCreated); err != nil {
			return err
		}
		leg.Funding = nil
		leg.FundTxID = ""
		leg.ExpiredAt = time.Time{}

	case LegRedeemed:
		leg, err := s.acceptedLeg(e.Leg)
		if err != nil {
			return err
		}
		if !leg.Params.SecretHash().Matches(e.Secret) {
			return ErrSecretMismatch
		}
		if err := leg.transition(StateRedeemed); err != nil {
			return err
		}
		sec := e.Secret
		leg.Secret = &sec
		leg.RedeemTxID = e.TxID

	case LegRefunded:
		leg, err := s.acceptedLeg(e.Leg)
		if err != nil {
			return err
		}
		if err := leg.transition(StateRefunded); err != nil {
			return err
		}
		leg.RefundTxID = e.TxID

	case LegExpired:
		leg, err := s.acceptedLeg(e.Leg)
		if err != nil {
			return err
		}
		if err := leg.transition(StateExpired); err != nil {
			return err
		}
		leg.ExpiredAt = time.Unix(e.At, 0)

	case ViolationFlagged:
		if _, err := s.acceptedLeg(e.Violation.Leg); err != nil {
			return err
		}
		s.Violations = append(s.Violations, e.Violation)

	case LegStalled:
		leg, err := s.acceptedLeg(e.Leg)
		if err != nil {
			return err
		}
		leg.Stalled = true

	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}

	s.version++
	return nil
}

func (s *Swap) applyFunding(id LegID, to LegState, location, amount, txID string) error {
	leg, err := s.acceptedLeg(id)
	if err != nil {
		return err
	}
	kind := leg.Params.Ledger()
	loc, err := ledger.ParseLocation(kind, location)
	if err != nil {
		return err
	}
	asset, err := ledger.ParseBaseUnits(kind, amount)
	if err != nil {
		return err
	}
	if err := leg.transition(to); err != nil {
		return err
	}
	leg.Funding = &htlc.Funding{Location: loc, Amount: asset}
	leg.FundTxID = txID
	leg.Stalled = false
	return nil
}

func (l *Leg) transition(to LegState) error {
	if !CanTransition(l.State, to) {
		return ErrInvalidTransition(l.ID, l.State, to)
	}
	l.State = to
	return nil
}
