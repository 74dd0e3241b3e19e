// ABOUTME: Account and bind persistence methods on the SQLite store
// ABOUTME: Implements the AccountStore interface with identity-to-account resolution

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateAccount creates an account with one initial bind in a single transaction.
func (s *SQLiteStore) CreateAccount(ctx context.Context, name string, bind Bind) (*Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT account_id FROM binds WHERE bind_type = ? AND bind_id = ?`,
		bind.Type, bind.ID).Scan(&existing)
	if err == nil {
		return nil, ErrAccountExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking bind: %w", err)
	}

	now := time.Now().UTC()
	account := &Account{
		ID:        NewID(),
		Name:      name,
		Binds:     []Bind{bind},
		CreatedAt: now,
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (id, name, created_at) VALUES (?, ?, ?)`,
		account.ID, account.Name, now.Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("inserting account: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO binds (bind_type, bind_id, account_id) VALUES (?, ?, ?)`,
		bind.Type, bind.ID, account.ID); err != nil {
		return nil, fmt.Errorf("inserting bind: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}

	s.logger.Info("account created", "account_id", account.ID, "bind_type", bind.Type)
	return account, nil
}

// GetAccount returns the account with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	var account Account
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM accounts WHERE id = ?`, id).
		Scan(&account.ID, &account.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	account.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	if account.Binds, err = s.accountBinds(ctx, account.ID); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccountByBind resolves an external identity to its account, or ErrNotFound.
func (s *SQLiteStore) GetAccountByBind(ctx context.Context, bind Bind) (*Account, error) {
	var accountID string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id FROM binds WHERE bind_type = ? AND bind_id = ?`,
		bind.Type, bind.ID).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying bind: %w", err)
	}
	return s.GetAccount(ctx, accountID)
}

// AddBind attaches another identity to an existing account.
func (s *SQLiteStore) AddBind(ctx context.Context, accountID string, bind Bind) (*Account, error) {
	var existing string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id FROM binds WHERE bind_type = ? AND bind_id = ?`,
		bind.Type, bind.ID).Scan(&existing)
	if err == nil {
		return nil, ErrBindExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking bind: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO binds (bind_type, bind_id, account_id)
		 SELECT ?, ?, id FROM accounts WHERE id = ?`,
		bind.Type, bind.ID, accountID)
	if err != nil {
		return nil, fmt.Errorf("inserting bind: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking insert: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	return s.GetAccount(ctx, accountID)
}

// DeleteAccount removes an account; its binds go with it via cascade.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// accountBinds loads all binds attached to an account.
func (s *SQLiteStore) accountBinds(ctx context.Context, accountID string) ([]Bind, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bind_type, bind_id FROM binds WHERE account_id = ? ORDER BY bind_type, bind_id`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("querying binds: %w", err)
	}
	defer rows.Close()

	var binds []Bind
	for rows.Next() {
		var b Bind
		if err := rows.Scan(&b.Type, &b.ID); err != nil {
			return nil, fmt.Errorf("scanning bind: %w", err)
		}
		binds = append(binds, b)
	}
	return binds, rows.Err()
}
