package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chatsino/internal/models"
)

func (s *Store) Balance(ctx context.Context, clientID int64) (int64, error) {
	var chips int64
	err := s.db.QueryRowContext(ctx, `SELECT chips FROM clients WHERE id = ?`, clientID).Scan(&chips)
	if err == sql.ErrNoRows {
		return 0, models.ErrClientNotFound
	}
	return chips, err
}

// Charge takes amount chips from a client. The balance check and the
// decrement are one conditional UPDATE so two concurrent charges cannot both
// spend the same chips.
func (s *Store) Charge(ctx context.Context, clientID, amount int64, reason string) (int64, error) {
	return s.move(ctx, clientID, amount, models.TransactionTypeWager, reason,
		`UPDATE clients SET chips = chips - ? WHERE id = ? AND chips >= ?`, amount, clientID, amount)
}

const creditSQL = `UPDATE clients SET chips = chips + ? WHERE id = ?`

func (s *Store) Pay(ctx context.Context, clientID, amount int64, reason string) (int64, error) {
	return s.move(ctx, clientID, amount, models.TransactionTypePayout, reason, creditSQL, amount, clientID)
}

// Refund is Pay recorded as a refund in the ledger.
func (s *Store) Refund(ctx context.Context, clientID, amount int64, reason string) (int64, error) {
	return s.move(ctx, clientID, amount, models.TransactionTypeRefund, reason, creditSQL, amount, clientID)
}

func (s *Store) move(ctx context.Context, clientID, amount int64, kind models.TransactionType, reason, update string, args ...any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer rollback(tx)

	balance, err := moveTx(ctx, tx, clientID, amount, kind, reason, update, args...)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

// payTx credits a payout inside a transaction the caller commits.
func payTx(ctx context.Context, tx *sql.Tx, clientID, amount int64, reason string) error {
	_, err := moveTx(ctx, tx, clientID, amount, models.TransactionTypePayout, reason, creditSQL, amount, clientID)
	return err
}

func moveTx(ctx context.Context, tx *sql.Tx, clientID, amount int64, kind models.TransactionType, reason, update string, args ...any) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%s: amount must be positive, got %d", kind, amount)
	}

	res, err := tx.ExecContext(ctx, update, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM clients WHERE id = ?`, clientID).Scan(&exists); err == sql.ErrNoRows {
			return 0, models.ErrClientNotFound
		}
		return 0, models.ErrInsufficientChips
	}

	var balance int64
	if err := tx.QueryRowContext(ctx, `SELECT chips FROM clients WHERE id = ?`, clientID).Scan(&balance); err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO chip_transactions (id, client_id, type, amount, balance_after, reason, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		models.GenerateTransactionID(), clientID, string(kind), amount, balance, reason, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: record transaction: %w", kind, err)
	}
	return balance, nil
}

// Transactions lists a client's ledger, newest first.
func (s *Store) Transactions(ctx context.Context, clientID int64, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, client_id, type, amount, balance_after, reason, created_at
FROM chip_transactions
WHERE client_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?`, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var kind string
		if err := rows.Scan(&tx.ID, &tx.ClientID, &kind, &tx.Amount, &tx.BalanceAfter, &tx.Reason, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.Type = models.TransactionType(kind)
		out = append(out, tx)
	}
	return out, rows.Err()
}
