package models

import "time"

type TransactionType string

const (
	TransactionTypeWager  TransactionType = "wager"
	TransactionTypePayout TransactionType = "payout"
	TransactionTypeRefund TransactionType = "refund"
)

// Transaction is one line of the chip ledger. Amount is always positive; Type
// says which direction it moved.
type Transaction struct {
	ID           string          `json:"id"`
	ClientID     int64           `json:"clientId"`
	Type         TransactionType `json:"type"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balanceAfter"`
	Reason       string          `json:"reason"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type BalanceResponse struct {
	ClientID int64 `json:"clientId"`
	Chips    int64 `json:"chips"`
}
