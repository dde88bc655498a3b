package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"chatsino/internal/games/blackjack"
	"chatsino/internal/games/roulette"
	"chatsino/internal/models"

	"github.com/segmentio/encoding/json"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type BlackjackRow struct {
	ID        int64           `json:"id"`
	ClientID  int64           `json:"clientId"`
	Active    bool            `json:"active"`
	State     blackjack.State `json:"state"`
	Wager     int64           `json:"wager"`
	Winnings  int64           `json:"winnings"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type RouletteRow struct {
	ID        int64          `json:"id"`
	Active    bool           `json:"active"`
	State     roulette.State `json:"state"`
	PaidOut   bool           `json:"paidOut"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ActiveBlackjack returns the client's active hand, or ErrNoGameInProgress.
func (s *Store) ActiveBlackjack(ctx context.Context, clientID int64) (BlackjackRow, error) {
	var row BlackjackRow
	var state string
	err := s.db.QueryRowContext(ctx, `
SELECT id, client_id, active, state, wager, winnings, created_at, updated_at
FROM blackjack_games
WHERE client_id = ? AND active = 1`, clientID).Scan(
		&row.ID, &row.ClientID, &row.Active, &state, &row.Wager, &row.Winnings, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return BlackjackRow{}, models.ErrNoGameInProgress
	}
	if err != nil {
		return BlackjackRow{}, err
	}
	if err := json.Unmarshal([]byte(state), &row.State); err != nil {
		return BlackjackRow{}, fmt.Errorf("decode blackjack state %d: %w", row.ID, err)
	}
	return row, nil
}

// InsertBlackjack stores a new hand. A second active hand for the same client
// trips the partial unique index and comes back as ErrGameInProgress.
func (s *Store) InsertBlackjack(ctx context.Context, row *BlackjackRow) error {
	return insertBlackjack(ctx, s.db, row)
}

func insertBlackjack(ctx context.Context, ex execer, row *BlackjackRow) error {
	state, err := json.Marshal(row.State)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := ex.ExecContext(ctx, `
INSERT INTO blackjack_games (client_id, active, state, wager, winnings, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`, row.ClientID, row.Active, string(state), row.Wager, row.Winnings, now, now)
	if isUniqueViolation(err) {
		return models.ErrGameInProgress
	}
	if err != nil {
		return fmt.Errorf("insert blackjack game: %w", err)
	}
	row.ID, err = res.LastInsertId()
	row.CreatedAt, row.UpdatedAt = now, now
	return err
}

func (s *Store) UpdateBlackjack(ctx context.Context, row *BlackjackRow) error {
	state, err := json.Marshal(row.State)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
UPDATE blackjack_games SET active = ?, state = ?, winnings = ?, updated_at = ? WHERE id = ?`,
		row.Active, string(state), row.Winnings, now, row.ID)
	if err != nil {
		return fmt.Errorf("update blackjack game %d: %w", row.ID, err)
	}
	row.UpdatedAt = now
	return nil
}

// SettleBlackjack stores a finished hand and credits its payout in one
// transaction, so the row is never closed without the chips arriving. A row
// without an ID is inserted; otherwise the still active row is closed, and
// ErrNoGameInProgress means it already was.
func (s *Store) SettleBlackjack(ctx context.Context, row *BlackjackRow, payout int64) error {
	state, err := json.Marshal(row.State)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	settled := *row
	settled.Active = false
	if settled.ID == 0 {
		if err := insertBlackjack(ctx, tx, &settled); err != nil {
			return err
		}
	} else {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
UPDATE blackjack_games SET active = 0, state = ?, winnings = ?, updated_at = ? WHERE id = ? AND active = 1`,
			string(state), settled.Winnings, now, settled.ID)
		if err != nil {
			return fmt.Errorf("settle blackjack game %d: %w", settled.ID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return models.ErrNoGameInProgress
		}
		settled.UpdatedAt = now
	}

	if payout > 0 {
		if err := payTx(ctx, tx, settled.ClientID, payout, "blackjack payout"); err != nil {
			return fmt.Errorf("settle blackjack game: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	*row = settled
	return nil
}

// ActiveRoulette returns the current round, or ErrNoGameInProgress.
func (s *Store) ActiveRoulette(ctx context.Context) (RouletteRow, error) {
	var row RouletteRow
	var state string
	err := s.db.QueryRowContext(ctx, `
SELECT id, active, state, paid_out, created_at, updated_at
FROM roulette_games
WHERE active = 1`).Scan(&row.ID, &row.Active, &state, &row.PaidOut, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RouletteRow{}, models.ErrNoGameInProgress
	}
	if err != nil {
		return RouletteRow{}, err
	}
	if err := json.Unmarshal([]byte(state), &row.State); err != nil {
		return RouletteRow{}, fmt.Errorf("decode roulette state %d: %w", row.ID, err)
	}
	return row, nil
}

func (s *Store) InsertRoulette(ctx context.Context, row *RouletteRow) error {
	state, err := json.Marshal(row.State)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO roulette_games (active, state, paid_out, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`, row.Active, string(state), row.PaidOut, now, now)
	if isUniqueViolation(err) {
		return models.ErrGameInProgress
	}
	if err != nil {
		return fmt.Errorf("insert roulette game: %w", err)
	}
	row.ID, err = res.LastInsertId()
	row.CreatedAt, row.UpdatedAt = now, now
	return err
}

func (s *Store) UpdateRoulette(ctx context.Context, row *RouletteRow) error {
	state, err := json.Marshal(row.State)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
UPDATE roulette_games SET active = ?, state = ?, paid_out = ?, updated_at = ? WHERE id = ?`,
		row.Active, string(state), row.PaidOut, now, row.ID)
	if err != nil {
		return fmt.Errorf("update roulette game %d: %w", row.ID, err)
	}
	row.UpdatedAt = now
	return nil
}

// SettleRoulette closes a spun round and pays every winner in one
// transaction. ErrAlreadyPaidOut means another caller settled it first.
func (s *Store) SettleRoulette(ctx context.Context, row *RouletteRow, winners map[int64]int64) error {
	state, err := json.Marshal(row.State)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
UPDATE roulette_games SET active = 0, state = ?, paid_out = 1, updated_at = ? WHERE id = ? AND paid_out = 0`,
		string(state), now, row.ID)
	if err != nil {
		return fmt.Errorf("settle roulette game %d: %w", row.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return models.ErrAlreadyPaidOut
	}

	for _, clientID := range slices.Sorted(maps.Keys(winners)) {
		if amount := winners[clientID]; amount > 0 {
			if err := payTx(ctx, tx, clientID, amount, "roulette payout"); err != nil {
				return fmt.Errorf("settle roulette game %d: %w", row.ID, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	row.Active = false
	row.PaidOut = true
	row.UpdatedAt = now
	return nil
}
