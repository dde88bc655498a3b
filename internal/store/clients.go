package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatsino/internal/models"
)

func (s *Store) CreateClient(ctx context.Context, username string, level models.PermissionLevel, chips int64) (models.ClientIdentity, error) {
	if !level.Valid() {
		return models.ClientIdentity{}, fmt.Errorf("create client: unknown permission level %q", level)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (username, permission_level, chips, created_at) VALUES (?, ?, ?, ?)`,
		username, string(level), chips, time.Now().UTC())
	if err != nil {
		return models.ClientIdentity{}, fmt.Errorf("create client: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.ClientIdentity{}, err
	}
	return models.ClientIdentity{ID: id, Username: username, PermissionLevel: level, Chips: chips}, nil
}

// EnsureClient returns the client with username, creating it when missing.
func (s *Store) EnsureClient(ctx context.Context, username string, level models.PermissionLevel, chips int64) (models.ClientIdentity, error) {
	client, err := s.FindClientByUsername(ctx, username)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, models.ErrClientNotFound) {
		return models.ClientIdentity{}, err
	}
	return s.CreateClient(ctx, username, level, chips)
}

func (s *Store) FindClientByUsername(ctx context.Context, username string) (models.ClientIdentity, error) {
	return s.scanClient(s.db.QueryRowContext(ctx,
		`SELECT id, username, permission_level, chips FROM clients WHERE username = ?`, username))
}

func (s *Store) FindClientByID(ctx context.Context, id int64) (models.ClientIdentity, error) {
	return s.scanClient(s.db.QueryRowContext(ctx,
		`SELECT id, username, permission_level, chips FROM clients WHERE id = ?`, id))
}

func (s *Store) scanClient(row *sql.Row) (models.ClientIdentity, error) {
	var c models.ClientIdentity
	var level string
	if err := row.Scan(&c.ID, &c.Username, &level, &c.Chips); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ClientIdentity{}, models.ErrClientNotFound
		}
		return models.ClientIdentity{}, err
	}
	c.PermissionLevel = models.PermissionLevel(level)
	return c, nil
}
