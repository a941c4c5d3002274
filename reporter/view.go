package reporter

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"

	"github.com/TEENet-io/swap-go/action"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/swap"
)

type legView struct {
	State      swap.LegState `json:"state"`
	Ledger     ledger.Kind   `json:"ledger"`
	Expiry     int64         `json:"expiry"`
	Location   string        `json:"htlc_location,omitempty"`
	Amount     string        `json:"funded_amount,omitempty"`
	FundTxID   string        `json:"fund_txid,omitempty"`
	RedeemTxID string        `json:"redeem_txid,omitempty"`
	RefundTxID string        `json:"refund_txid,omitempty"`
	Stalled    bool          `json:"stalled,omitempty"`
}

type swapView struct {
	ID            uuid.UUID        `json:"id"`
	Role          swap.Role        `json:"role"`
	Counterparty  string           `json:"counterparty"`
	Status        swap.Status      `json:"status"`
	Phase         swap.Phase       `json:"phase"`
	Request       swap.Request     `json:"request"`
	Accept        *swap.Accept     `json:"accept,omitempty"`
	DeclineReason string           `json:"decline_reason,omitempty"`
	Alpha         *legView         `json:"alpha_ledger,omitempty"`
	Beta          *legView         `json:"beta_ledger,omitempty"`
	Violations    []swap.Violation `json:"violations,omitempty"`
	Actions       []string         `json:"actions"`
}

func newLegView(l *swap.Leg) *legView {
	if l == nil {
		return nil
	}
	v := &legView{
		State:      l.State,
		Ledger:     l.Params.Ledger(),
		Expiry:     l.Params.Expiry().Unix(),
		FundTxID:   l.FundTxID,
		RedeemTxID: l.RedeemTxID,
		RefundTxID: l.RefundTxID,
		Stalled:    l.Stalled,
	}
	if l.Funding != nil {
		if l.Funding.Location != nil {
			v.Location = l.Funding.Location.String()
		}
		if l.Funding.Amount != nil {
			v.Amount = ledger.BaseUnits(l.Funding.Amount)
		}
	}
	return v
}

// newSwapView lists actions as the routes that fetch them.
func newSwapView(sw *swap.Swap, actions []action.Action) swapView {
	links := make([]string, 0, len(actions))
	for _, a := range actions {
		links = append(links, ROUTE_RFC003+"/"+sw.ID.String()+"/"+a.Kind.String())
	}
	return swapView{
		ID:            sw.ID,
		Role:          sw.Role,
		Counterparty:  sw.Peer,
		Status:        sw.Status(),
		Phase:         sw.Phase,
		Request:       sw.Request,
		Accept:        sw.Acceptance,
		DeclineReason: sw.DeclineReason,
		Alpha:         newLegView(sw.Alpha),
		Beta:          newLegView(sw.Beta),
		Violations:    sw.Violations,
		Actions:       links,
	}
}

func serializeTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
