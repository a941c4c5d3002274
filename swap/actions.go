package swap

import (
	"errors"
	"time"

	"github.com/TEENet-io/swap-go/action"
	"github.com/TEENet-io/swap-go/secret"
)

var actionOrder = []action.Kind{action.KindDeploy, action.KindFund, action.KindRedeem, action.KindRefund}

// NextActions lists what this party can submit at now, in a fixed order.
// A refund is listed only once its expiry has passed.
func (s *Swap) NextActions(now time.Time, src secret.Source) ([]action.Action, error) {
	if s.Phase != PhaseAccepted {
		return nil, nil
	}
	var out []action.Action
	for _, kind := range actionOrder {
		a, err := s.Action(kind, now, src)
		switch {
		case err == nil:
			out = append(out, a)
		case errors.Is(err, ErrActionNotAvailable), errors.Is(err, action.ErrTimelockNotElapsed):
		default:
			return nil, err
		}
	}
	return out, nil
}

// Action derives one action by kind. The leg follows from the role: the own
// leg is funded and refunded, the other one redeemed.
func (s *Swap) Action(kind action.Kind, now time.Time, src secret.Source) (action.Action, error) {
	if s.Phase != PhaseAccepted {
		return action.Action{}, ErrActionNotAvailable
	}
	if learned := s.LearnedSecret(); learned != nil {
		src = secret.WithSecret(src, *learned)
	}
	own := s.Leg(s.Role.Funds())
	other := s.Leg(s.Role.Redeems())

	switch kind {
	case action.KindDeploy, action.KindFund:
		if own.State != StateCreated || !now.Before(own.Params.Expiry()) {
			return action.Action{}, ErrActionNotAvailable
		}
		// bob locks nothing before alice's asset is locked
		if s.Role == RoleBob && s.Alpha.State != StateFunded {
			return action.Action{}, ErrActionNotAvailable
		}
		a, err := own.Params.FundAction()
		if err != nil {
			return action.Action{}, err
		}
		if a.Kind != kind {
			return action.Action{}, ErrActionNotAvailable
		}
		return a, nil

	case action.KindRedeem:
		if other.State != StateFunded || !now.Before(other.Params.Expiry()) {
			return action.Action{}, ErrActionNotAvailable
		}
		if !other.Params.SecretHash().Matches(src.Secret()) {
			return action.Action{}, ErrActionNotAvailable
		}
		return other.Params.RedeemAction(*other.Funding, src)

	case action.KindRefund:
		if !own.Funded() || (own.State != StateFunded && own.State != StateExpired) {
			return action.Action{}, ErrActionNotAvailable
		}
		if now.Before(own.Params.Expiry()) {
			return action.Action{}, action.ErrTimelockNotElapsed
		}
		return own.Params.RefundAction(*own.Funding, src)
	}
	return action.Action{}, action.ErrUnknownKind
}
