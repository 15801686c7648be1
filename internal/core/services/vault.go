package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
)

// CredentialVault holds exchanged credentials for a short time and hands
// them out exactly once.
type CredentialVault struct {
	store  driven.KVStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewCredentialVault creates a CredentialVault. A zero ttl uses domain.DefaultHandoffTTL.
func NewCredentialVault(store driven.KVStore, ttl time.Duration, logger *slog.Logger) *CredentialVault {
	if ttl <= 0 {
		ttl = domain.DefaultHandoffTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialVault{store: store, ttl: ttl, logger: logger}
}

// Store saves record for (provider, org, user) and clears the pending state.
func (v *CredentialVault) Store(ctx context.Context, provider domain.ProviderType, orgID, userID string, record domain.CredentialRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	if err := v.store.Set(ctx, domain.CredentialKey(provider, orgID, userID), data, v.ttl); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	// The state entry expires on its own; a failed delete is not fatal.
	if err := v.store.Delete(ctx, domain.StateKey(provider, orgID, userID)); err != nil {
		v.logger.Warn("failed to clear oauth state",
			"provider", provider, "org_id", orgID, "user_id", userID, "error", err)
	}
	return nil
}

// Take returns the stored credentials for (provider, org, user) and removes
// them. Returns domain.ErrNoCredentials if none are stored.
func (v *CredentialVault) Take(ctx context.Context, provider domain.ProviderType, orgID, userID string) (domain.CredentialRecord, error) {
	key := domain.CredentialKey(provider, orgID, userID)

	data, err := v.getAndDelete(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoCredentials
	}
	if err != nil {
		return nil, err
	}

	record, err := domain.DecodeCredentialRecord(data)
	if err != nil {
		return nil, fmt.Errorf("decode stored credentials: %w", err)
	}
	return record, nil
}

func (v *CredentialVault) getAndDelete(ctx context.Context, key string) ([]byte, error) {
	if gd, ok := v.store.(driven.GetDeleter); ok {
		data, err := gd.GetDel(ctx, key)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("take credentials: %w", err)
		}
		return data, err
	}

	data, err := v.store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if err := v.store.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("delete credentials: %w", err)
	}
	return data, nil
}
