// Package account manages the single locally persisted account key.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/genmarket/internal/crypto"
	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/metrics"
)

// StorageKey is the slot holding the account private key.
const StorageKey = "accountPrivateKey"

// Config controls how the manager persists and provisions accounts.
type Config struct {
	// Password, when set, encrypts the persisted key (AES-256-GCM, PBKDF2).
	Password string
	// AutoProvision makes Resolve create an account when none is stored.
	AutoProvision bool
}

// Manager loads, creates and removes the persisted account. It does not
// serialize concurrent writers; the last Create wins.
type Manager struct {
	store  domain.KeyValueStore
	cfg    Config
	logger *slog.Logger
}

// NewManager creates a Manager on top of store.
func NewManager(store domain.KeyValueStore, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "account")),
	}
}

// GetOrNull returns the persisted account, or nil when none is stored.
func (m *Manager) GetOrNull(ctx context.Context) (*crypto.Signer, error) {
	raw, err := m.store.GetItem(ctx, StorageKey)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account: load: %w", err)
	}

	key := raw
	if crypto.IsEncrypted([]byte(raw)) {
		key, err = crypto.DecryptKey([]byte(raw), m.cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("account: %w", err)
		}
	}

	signer, err := crypto.NewSigner(key)
	if err != nil {
		return nil, fmt.Errorf("account: stored key: %w", err)
	}
	return signer, nil
}

// Create generates a new key, persists it over any existing one and returns
// the account.
func (m *Manager) Create(ctx context.Context) (*crypto.Signer, error) {
	signer, err := crypto.GenerateSigner()
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}

	if err := m.persist(ctx, signer); err != nil {
		return nil, err
	}

	metrics.AccountsCreated.Inc()
	m.logger.InfoContext(ctx, "account created",
		slog.String("address", signer.Address().Hex()),
		slog.Bool("encrypted", m.cfg.Password != ""),
	)
	return signer, nil
}

// Import persists an existing private key, replacing any stored account.
func (m *Manager) Import(ctx context.Context, privateKeyHex string) (*crypto.Signer, error) {
	signer, err := crypto.NewSigner(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}

	if err := m.persist(ctx, signer); err != nil {
		return nil, err
	}
	return signer, nil
}

func (m *Manager) persist(ctx context.Context, signer *crypto.Signer) error {
	value := signer.PrivateKeyHex()
	if m.cfg.Password != "" {
		enc, err := crypto.EncryptKey(value, m.cfg.Password)
		if err != nil {
			return fmt.Errorf("account: %w", err)
		}
		value = string(enc)
	}
	if err := m.store.SetItem(ctx, StorageKey, value); err != nil {
		return fmt.Errorf("account: persist: %w", err)
	}
	return nil
}

// Remove clears the persisted account. Removing when none is stored is not
// an error.
func (m *Manager) Remove(ctx context.Context) error {
	if err := m.store.RemoveItem(ctx, StorageKey); err != nil {
		return fmt.Errorf("account: remove: %w", err)
	}
	m.logger.InfoContext(ctx, "account removed")
	return nil
}

// Resolve returns the account to act as: the persisted one, or a freshly
// created one when AutoProvision is set. Otherwise it returns
// domain.ErrNoAccount.
func (m *Manager) Resolve(ctx context.Context) (*crypto.Signer, error) {
	signer, err := m.GetOrNull(ctx)
	if err != nil {
		return nil, err
	}
	if signer != nil {
		return signer, nil
	}
	if !m.cfg.AutoProvision {
		return nil, fmt.Errorf("account: %w", domain.ErrNoAccount)
	}
	return m.Create(ctx)
}
