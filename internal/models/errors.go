package models

import "errors"

// Failure reasons shared by the engines, services and the dispatch layer.
// Callers match them with errors.Is.
var (
	ErrTicketNotFound         = errors.New("ticket not found")
	ErrTicketLocationMismatch = errors.New("ticket location mismatch")
	ErrClientNotFound         = errors.New("client not found")

	ErrInvalidArguments   = errors.New("invalid arguments")
	ErrNotPermitted       = errors.New("not permitted")
	ErrUnknownMessageKind = errors.New("unknown message kind")

	ErrGameInProgress     = errors.New("game in progress")
	ErrNoGameInProgress   = errors.New("no game in progress")
	ErrCannotTakeAction   = errors.New("cannot take action")
	ErrCannotAffordWager  = errors.New("cannot afford wager")
	ErrCannotPayout       = errors.New("cannot payout")
	ErrNotTakingBets      = errors.New("not taking bets")
	ErrCannotStartRound   = errors.New("cannot start taking bets")
	ErrCannotSpin         = errors.New("cannot spin")
	ErrAlreadySpun        = errors.New("already spun")
	ErrAlreadyPaidOut     = errors.New("already paid out")
	ErrDifferentClient    = errors.New("bet placed for a different client")
	ErrNonexistentRoom    = errors.New("chatroom does not exist")
	ErrNotAllowedInRoom   = errors.New("not allowed in chatroom")
	ErrInsufficientChips  = errors.New("insufficient chips")
	ErrInvalidTicketInput = errors.New("invalid ticket input")
)
