package trade

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/TEENet-io/swap-go/secret"
)

type EventType string

const (
	EventOfferCreated     EventType = "offer_created"
	EventOrderCreated     EventType = "order_created"
	EventOrderTaken       EventType = "order_taken"
	EventContractDeployed EventType = "contract_deployed"
	EventSwapCompleted    EventType = "swap_completed"
)

// predecessors fixes the event each type must directly follow. The empty
// type starts a chain.
var predecessors = map[EventType]EventType{
	EventOfferCreated:     "",
	EventOrderCreated:     EventOfferCreated,
	EventOrderTaken:       EventOrderCreated,
	EventContractDeployed: EventOrderTaken,
	EventSwapCompleted:    EventContractDeployed,
}

func Predecessor(t EventType) (EventType, bool) {
	p, ok := predecessors[t]
	return p, ok
}

type Event interface {
	Type() EventType
	SwapID() uuid.UUID
}

// OfferCreated records the terms a swap was offered at. Rate is the price of
// one sell unit in buy units.
type OfferCreated struct {
	UID        uuid.UUID       `json:"uid"`
	Symbol     string          `json:"symbol"`
	Rate       decimal.Decimal `json:"rate"`
	BuyAmount  decimal.Decimal `json:"buy_amount"`
	SellAmount decimal.Decimal `json:"sell_amount"`
}

// OrderCreated keeps the secret hash, never the secret.
type OrderCreated struct {
	UID                  uuid.UUID   `json:"uid"`
	ClientSuccessAddress string      `json:"client_success_address"`
	ClientRefundAddress  string      `json:"client_refund_address"`
	SecretHash           secret.Hash `json:"secret_hash"`
	LongRelativeTimelock int64       `json:"long_relative_timelock"`
}

type OrderTaken struct {
	UID                    uuid.UUID `json:"uid"`
	ExchangeRefundAddress  string    `json:"exchange_refund_address"`
	ExchangeSuccessAddress string    `json:"exchange_success_address"`
	ShortRelativeTimelock  int64     `json:"short_relative_timelock"`
}

type ContractDeployed struct {
	UID     uuid.UUID `json:"uid"`
	Ledger  string    `json:"ledger"`
	Address string    `json:"address"`
}

type SwapCompleted struct {
	UID     uuid.UUID `json:"uid"`
	Outcome string    `json:"outcome"`
}

func (OfferCreated) Type() EventType     { return EventOfferCreated }
func (OrderCreated) Type() EventType     { return EventOrderCreated }
func (OrderTaken) Type() EventType       { return EventOrderTaken }
func (ContractDeployed) Type() EventType { return EventContractDeployed }
func (SwapCompleted) Type() EventType    { return EventSwapCompleted }

func (e OfferCreated) SwapID() uuid.UUID     { return e.UID }
func (e OrderCreated) SwapID() uuid.UUID     { return e.UID }
func (e OrderTaken) SwapID() uuid.UUID       { return e.UID }
func (e ContractDeployed) SwapID() uuid.UUID { return e.UID }
func (e SwapCompleted) SwapID() uuid.UUID    { return e.UID }

func decode(typ EventType, b []byte) (Event, error) {
	var ev Event
	switch typ {
	case EventOfferCreated:
		var e OfferCreated
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, err
		}
		ev = e
	case EventOrderCreated:
		var e OrderCreated
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, err
		}
		ev = e
	case EventOrderTaken:
		var e OrderTaken
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, err
		}
		ev = e
	case EventContractDeployed:
		var e ContractDeployed
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, err
		}
		ev = e
	case EventSwapCompleted:
		var e SwapCompleted
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, err
		}
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, typ)
	}
	return ev, nil
}
