/*
Package peer carries swap negotiation messages between nodes over grpc.

The wire envelope is rpc.Message, generated from rpc/peer.proto. Its body
holds the json encoded request, accept or decline.
*/
package peer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/TEENet-io/swap-go/rpc"
)

var ErrUnknownMessage = errors.New("unknown peer message type")

type MessageType string

const (
	TypeSwapRequest MessageType = "swap_request"
	TypeSwapAccept  MessageType = "swap_accept"
	TypeSwapDecline MessageType = "swap_decline"
)

// Message is the envelope of every peer exchange. From is the address the
// sender listens on, so the receiver knows where to answer.
type Message struct {
	Type   MessageType     `json:"type"`
	SwapID uuid.UUID       `json:"swap_id"`
	From   string          `json:"from"`
	Body   json.RawMessage `json:"body"`
}

func NewMessage(typ MessageType, swapID uuid.UUID, body any) (*Message, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &Message{Type: typ, SwapID: swapID, Body: b}, nil
}

// Decode unmarshals the body into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Body, v)
}

func (m *Message) toProto(from string) *rpc.Message {
	return &rpc.Message{
		Type:   string(m.Type),
		SwapId: m.SwapID.String(),
		From:   from,
		Body:   m.Body,
	}
}

func fromProto(in *rpc.Message) (*Message, error) {
	id, err := uuid.Parse(in.GetSwapId())
	if err != nil {
		return nil, fmt.Errorf("invalid swap id %q: %w", in.GetSwapId(), err)
	}
	return &Message{
		Type:   MessageType(in.GetType()),
		SwapID: id,
		From:   in.GetFrom(),
		Body:   in.GetBody(),
	}, nil
}
