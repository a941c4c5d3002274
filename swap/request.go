package swap

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/secret"
)

// Request is what Alice proposes: both legs, the secret hash and the
// identities only she can supply.
type Request struct {
	ID                  uuid.UUID   `json:"id"`
	Alpha               htlc.Terms  `json:"alpha"`
	Beta                htlc.Terms  `json:"beta"`
	SecretHash          secret.Hash `json:"secret_hash"`
	AlphaRefundIdentity string      `json:"alpha_ledger_refund_identity"`
	BetaRedeemIdentity  string      `json:"beta_ledger_redeem_identity"`
}

// Accept is Bob's answer, completing the identities of both legs.
type Accept struct {
	AlphaRedeemIdentity string `json:"alpha_ledger_redeem_identity"`
	BetaRefundIdentity  string `json:"beta_ledger_refund_identity"`
}

// Validate checks the request is a supported pair of legs with a safe
// timelock asymmetry: alpha must outlive beta by at least the policy gap, so
// whoever redeems alpha after seeing the secret on beta has time left.
func (r *Request) Validate(p Policy) error {
	if r.ID == uuid.Nil {
		return ErrMissingID
	}
	if !r.Alpha.Ledger.Valid() || !r.Beta.Ledger.Valid() || r.Alpha.Ledger == r.Beta.Ledger {
		return fmt.Errorf("%w: %s for %s", ErrSwapNotSupported, r.Alpha.Ledger, r.Beta.Ledger)
	}
	if err := r.Alpha.Validate(); err != nil {
		return fmt.Errorf("alpha: %w", err)
	}
	if err := r.Beta.Validate(); err != nil {
		return fmt.Errorf("beta: %w", err)
	}
	if r.Alpha.ExpiryTime().Before(r.Beta.ExpiryTime().Add(p.MinTimelockGap)) ||
		!r.Alpha.ExpiryTime().After(r.Beta.ExpiryTime()) {
		return ErrTimelockGap
	}
	if err := ledger.ParseIdentity(r.Alpha.Ledger, r.AlphaRefundIdentity); err != nil {
		return fmt.Errorf("alpha refund identity: %w", err)
	}
	if err := ledger.ParseIdentity(r.Beta.Ledger, r.BetaRedeemIdentity); err != nil {
		return fmt.Errorf("beta redeem identity: %w", err)
	}
	return nil
}

// Params builds the params of both legs once the answer is known.
func (r *Request) Params(a *Accept) (alpha, beta htlc.Params, err error) {
	alpha, err = htlc.Build(r.Alpha, r.AlphaRefundIdentity, a.AlphaRedeemIdentity, r.SecretHash)
	if err != nil {
		return nil, nil, fmt.Errorf("alpha: %w", err)
	}
	beta, err = htlc.Build(r.Beta, a.BetaRefundIdentity, r.BetaRedeemIdentity, r.SecretHash)
	if err != nil {
		return nil, nil, fmt.Errorf("beta: %w", err)
	}
	return alpha, beta, nil
}
