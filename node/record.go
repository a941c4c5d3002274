package node

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/swap"
	"github.com/TEENet-io/swap-go/trade"
)

const recordTimeout = 5 * time.Second

// The trade log follows a swap from both sides: the offer and the order when
// the request exists, the taker's answer, the first htlc on chain and the
// outcome. Failing to record never fails the swap.

func (s *Service) record(ctx context.Context, ev trade.Event) {
	err := s.deps.Trades.Append(ctx, ev)
	switch {
	case err == nil:
	case errors.Is(err, trade.ErrUnexpectedPredecessor):
		logger.WithField("swap", ev.SwapID()).WithError(err).Debug("trade event skipped")
	default:
		logger.WithField("swap", ev.SwapID()).WithError(err).Warn("failed to record trade event")
	}
}

func displayAmount(t htlc.Terms) decimal.Decimal {
	asset, err := t.Asset()
	if err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(asset.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (s *Service) recordRequest(ctx context.Context, sw *swap.Swap) {
	req := sw.Request
	sell := displayAmount(req.Alpha)
	buy := displayAmount(req.Beta)
	rate := decimal.Zero
	if !sell.IsZero() {
		rate = buy.Div(sell)
	}
	now := s.now().Unix()

	s.record(ctx, trade.OfferCreated{
		UID:        sw.ID,
		Symbol:     req.Alpha.Ledger.String() + "-" + req.Beta.Ledger.String(),
		Rate:       rate,
		BuyAmount:  buy,
		SellAmount: sell,
	})
	s.record(ctx, trade.OrderCreated{
		UID:                  sw.ID,
		ClientSuccessAddress: req.BetaRedeemIdentity,
		ClientRefundAddress:  req.AlphaRefundIdentity,
		SecretHash:           req.SecretHash,
		LongRelativeTimelock: req.Alpha.Expiry - now,
	})
}

func (s *Service) recordAccept(ctx context.Context, sw *swap.Swap) {
	s.record(ctx, trade.OrderTaken{
		UID:                    sw.ID,
		ExchangeRefundAddress:  sw.Acceptance.BetaRefundIdentity,
		ExchangeSuccessAddress: sw.Acceptance.AlphaRedeemIdentity,
		ShortRelativeTimelock:  sw.Request.Beta.Expiry - s.now().Unix(),
	})
}

// onChange runs on the runner goroutine after each persisted change.
func (s *Service) onChange(sw *swap.Swap, changes []swap.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	for _, ev := range changes {
		var leg swap.LegID
		var location string
		switch e := ev.(type) {
		case swap.LegDeployed:
			leg, location = e.Leg, e.Location
		case swap.LegFunded:
			leg, location = e.Leg, e.Location
		default:
			continue
		}
		s.record(ctx, trade.ContractDeployed{
			UID:     sw.ID,
			Ledger:  sw.Leg(leg).Params.Ledger().String(),
			Address: location,
		})
	}

	if sw.IsFinal() {
		s.record(ctx, trade.SwapCompleted{UID: sw.ID, Outcome: string(sw.Status())})
	}
}
