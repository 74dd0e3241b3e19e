// ABOUTME: Account manager handling registration and identity binding
// ABOUTME: Owns the in-memory single-use bind token vault with TTL expiry

package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tonehoard/tonehoard/internal/store"
)

// ErrTokenNotFound is returned when consuming a token that does not exist,
// was already used, or has expired.
var ErrTokenNotFound = errors.New("token not found")

// TokenTTL is how long an issued bind token stays valid.
const TokenTTL = time.Hour

// tokenEntry holds the account awaiting a new bind, stamped for expiry.
type tokenEntry struct {
	accountID string
	issuedAt  time.Time
}

// Manager resolves platform identities to accounts and manages bind tokens.
// Tokens are process-local and single-use: consumption is an atomic
// get-then-delete, so the same token is never honored twice.
type Manager struct {
	accounts store.AccountStore
	logger   *slog.Logger

	mu     sync.Mutex
	tokens map[string]tokenEntry
	ttl    time.Duration
	done   chan struct{}
	closed bool
}

// NewManager creates a Manager over the given account store. Pass nil logger
// for default. A background goroutine sweeps expired tokens.
func NewManager(accounts store.AccountStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		accounts: accounts,
		logger:   logger.With("component", "account"),
		tokens:   make(map[string]tokenEntry),
		ttl:      TokenTTL,
		done:     make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Resolve returns the account bound to the given identity, or store.ErrNotFound.
func (m *Manager) Resolve(ctx context.Context, bind store.Bind) (*store.Account, error) {
	return m.accounts.GetAccountByBind(ctx, bind)
}

// Register creates a new account with the given display name and identity.
func (m *Manager) Register(ctx context.Context, name string, bind store.Bind) (*store.Account, error) {
	return m.accounts.CreateAccount(ctx, name, bind)
}

// CreateBindToken issues a single-use token that lets another identity
// attach itself to the account.
func (m *Manager) CreateBindToken(accountID string) string {
	var b [20]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("account: reading random bytes: " + err.Error())
	}
	token := hex.EncodeToString(b[:])

	m.mu.Lock()
	m.tokens[token] = tokenEntry{accountID: accountID, issuedAt: time.Now()}
	m.mu.Unlock()

	m.logger.Debug("bind token issued", "account_id", accountID)
	return token
}

// ConsumeBindToken redeems a token, attaching the given identity to the
// account the token was issued for. The token is removed before the bind is
// attempted, so it can never be observed twice.
func (m *Manager) ConsumeBindToken(ctx context.Context, token string, bind store.Bind) (*store.Account, error) {
	m.mu.Lock()
	entry, ok := m.tokens[token]
	delete(m.tokens, token)
	m.mu.Unlock()

	if !ok || time.Since(entry.issuedAt) > m.ttl {
		return nil, ErrTokenNotFound
	}

	acct, err := m.accounts.AddBind(ctx, entry.accountID, bind)
	if err != nil {
		return nil, fmt.Errorf("binding account: %w", err)
	}
	m.logger.Info("bind token consumed", "account_id", entry.accountID, "bind_type", bind.Type)
	return acct, nil
}

// sweep drops expired tokens in the background.
func (m *Manager) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for token, entry := range m.tokens {
				if now.Sub(entry.issuedAt) > m.ttl {
					delete(m.tokens, token)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

// Close stops the token sweeper. Safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		close(m.done)
		m.closed = true
	}
}
