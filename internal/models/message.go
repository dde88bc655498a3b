package models

import "encoding/json"

// Message kinds understood by the subcontrollers.
const (
	KindGetActiveBlackjackGame = "getActiveBlackjackGame"
	KindStartBlackjackGame     = "startBlackjackGame"
	KindTakeBlackjackAction    = "takeBlackjackAction"

	KindGetActiveRouletteGame = "getActiveRouletteGame"
	KindPlaceRouletteBet      = "placeRouletteBet"
	KindRouletteResult        = "rouletteResult"

	KindListChatrooms        = "listChatrooms"
	KindJoinChatroom         = "joinChatroom"
	KindSendChatMessage      = "sendChatMessage"
	KindListChatroomMessages = "listChatroomMessages"
	KindNewChatMessage       = "newChatMessage"
)

// Bus channels.
const (
	ChannelClientMessage   = "client-message"
	ChannelSuccessResponse = "success-response"
	ChannelErrorResponse   = "error-response"
)

// Envelope is the inbound client message. From is never read off the wire;
// the gateway stamps it before publishing.
type Envelope struct {
	Kind string          `json:"kind"`
	Args json.RawMessage `json:"args,omitempty"`
	From *ClientIdentity `json:"from,omitempty"`
}

// Outbound is what a client receives. Exactly one of Data or Error is set.
type Outbound struct {
	Kind  string `json:"kind"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Response is published by subcontrollers on the success/error channels and
// consumed by the gateway.
type Response struct {
	To    int64           `json:"to"`
	Kind  string          `json:"kind"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

func (r Response) Outbound() Outbound {
	if r.Error != "" {
		return Outbound{Kind: r.Kind, Error: r.Error}
	}
	out := Outbound{Kind: r.Kind}
	if len(r.Data) > 0 {
		out.Data = r.Data
	}
	return out
}
