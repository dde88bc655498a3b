package services

import (
	"context"

	"chatsino/internal/store"
)

// Ledger takes wagers and hands them back. Charge fails with
// models.ErrInsufficientChips when the balance cannot cover amount. Payouts
// go through the repositories' Settle methods instead, together with the
// game row.
type Ledger interface {
	Charge(ctx context.Context, clientID, amount int64, reason string) (int64, error)
	Refund(ctx context.Context, clientID, amount int64, reason string) (int64, error)
}

type BlackjackRepository interface {
	ActiveBlackjack(ctx context.Context, clientID int64) (store.BlackjackRow, error)
	InsertBlackjack(ctx context.Context, row *store.BlackjackRow) error
	UpdateBlackjack(ctx context.Context, row *store.BlackjackRow) error
	// SettleBlackjack closes the hand and credits payout atomically.
	SettleBlackjack(ctx context.Context, row *store.BlackjackRow, payout int64) error
}

type RouletteRepository interface {
	ActiveRoulette(ctx context.Context) (store.RouletteRow, error)
	InsertRoulette(ctx context.Context, row *store.RouletteRow) error
	UpdateRoulette(ctx context.Context, row *store.RouletteRow) error
	SettleRoulette(ctx context.Context, row *store.RouletteRow, winners map[int64]int64) error
}
