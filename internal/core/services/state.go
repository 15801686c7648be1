package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
)

const (
	// stateEntropyBytes is the random input size of a state token.
	stateEntropyBytes = 32

	// verifierEntropyBytes yields a 64 character PKCE verifier.
	verifierEntropyBytes = 48
)

// stateBundle is the part of a StateRecord carried in the redirect URL.
type stateBundle struct {
	State  string `json:"state"`
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
}

// StateManager mints and verifies the anti-forgery state of an OAuth
// authorization request. Pending state lives in the KVStore only.
type StateManager struct {
	store  driven.KVStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewStateManager creates a StateManager. A zero ttl uses domain.DefaultHandoffTTL.
func NewStateManager(store driven.KVStore, ttl time.Duration, logger *slog.Logger) *StateManager {
	if ttl <= 0 {
		ttl = domain.DefaultHandoffTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StateManager{store: store, ttl: ttl, logger: logger}
}

// Begin generates a state for (userID, orgID), persists it under the
// provider's state key and returns the provider authorization URL.
// A previous pending state for the same key is replaced.
func (m *StateManager) Begin(ctx context.Context, handler driven.OAuthHandler, cfg domain.ProviderConfig, userID, orgID string) (string, error) {
	if err := domain.ValidateIdentity(userID, orgID); err != nil {
		return "", err
	}

	random, err := randomToken(stateEntropyBytes)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	record := domain.StateRecord{
		State:  random,
		UserID: userID,
		OrgID:  orgID,
	}

	var codeChallenge string
	if handler.DefaultConfig().SupportsPKCE {
		verifier, err := randomToken(verifierEntropyBytes)
		if err != nil {
			return "", fmt.Errorf("generate code verifier: %w", err)
		}
		record.CodeVerifier = verifier
		codeChallenge = codeChallengeS256(verifier)
	}

	encoded, err := encodeState(record)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	if err := m.store.Set(ctx, domain.StateKey(cfg.Type, orgID, userID), data, m.ttl); err != nil {
		return "", fmt.Errorf("save state: %w", err)
	}

	m.logger.Debug("oauth state issued", "provider", cfg.Type, "org_id", orgID, "user_id", userID)

	return handler.BuildAuthURL(cfg, encoded, codeChallenge), nil
}

// Verify checks the callback query against the pending state and consumes
// it. Failures leave the pending state untouched so the user can retry
// within its lifetime.
func (m *StateManager) Verify(ctx context.Context, provider domain.ProviderType, query url.Values) (*domain.CallbackResult, error) {
	if code := query.Get("error"); code != "" {
		return nil, &domain.ProviderError{
			Code:        code,
			Description: query.Get("error_description"),
		}
	}

	encoded := query.Get("state")
	if encoded == "" {
		return nil, domain.ErrMissingState
	}

	bundle, err := decodeState(encoded)
	if err != nil {
		return nil, err
	}

	key := domain.StateKey(provider, bundle.OrgID, bundle.UserID)
	data, err := m.store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrStateMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	var saved domain.StateRecord
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("decode stored state: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(saved.State), []byte(bundle.State)) != 1 ||
		saved.UserID != bundle.UserID || saved.OrgID != bundle.OrgID {
		return nil, domain.ErrStateMismatch
	}

	code := query.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", domain.ErrInvalidInput)
	}

	if err := m.store.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("delete state: %w", err)
	}

	return &domain.CallbackResult{
		UserID:       bundle.UserID,
		OrgID:        bundle.OrgID,
		Code:         code,
		CodeVerifier: saved.CodeVerifier,
	}, nil
}

// encodeState serializes the transported part of record as padded base64url.
func encodeState(record domain.StateRecord) (string, error) {
	data, err := json.Marshal(stateBundle{
		State:  record.State,
		UserID: record.UserID,
		OrgID:  record.OrgID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal state bundle: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// decodeState accepts padded or unpadded base64url. Decoding is strict so
// every encoded character is significant.
func decodeState(encoded string) (*stateBundle, error) {
	enc := base64.RawURLEncoding.Strict()
	if strings.HasSuffix(encoded, "=") {
		enc = base64.URLEncoding.Strict()
	}
	data, err := enc.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedState, err)
	}

	var bundle stateBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedState, err)
	}
	if bundle.State == "" {
		return nil, fmt.Errorf("%w: incomplete state", domain.ErrMalformedState)
	}
	if err := domain.ValidateIdentity(bundle.UserID, bundle.OrgID); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedState, err)
	}
	return &bundle, nil
}

// randomToken returns n random bytes as unpadded base64url.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// codeChallengeS256 creates a PKCE code challenge from a verifier.
func codeChallengeS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
