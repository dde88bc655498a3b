package models

// Args structs for every message kind. Tags are read by the router's
// validator; the gateway never looks inside Args.

type StartBlackjackArgs struct {
	Wager int64 `json:"wager" validate:"required,gt=0"`
}

type BlackjackActionArgs struct {
	Action string `json:"action" validate:"required,oneof=hit stay double-down buy-insurance"`
}

type PlaceRouletteBetArgs struct {
	Kind  string `json:"kind" validate:"required,oneof=straight-up line column dozen even-odd red-black high-low"`
	Which Target `json:"which" validate:"required"`
	Wager int64  `json:"wager" validate:"required,gt=0"`
}

type RoomArgs struct {
	Room string `json:"room" validate:"required,max=64"`
}

type SendChatMessageArgs struct {
	Room    string `json:"room" validate:"required,max=64"`
	Message string `json:"message" validate:"required,max=500"`
}
