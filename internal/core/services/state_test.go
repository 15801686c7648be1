package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProviderConfig() domain.ProviderConfig {
	return domain.ProviderConfig{
		Type:         domain.ProviderTypeHubSpot,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8000/integrations/hubspot/oauth2callback",
		Scopes:       []string{"contacts", "content"},
	}
}

// beginState runs Begin and returns the encoded state from the auth URL.
func beginState(t *testing.T, m *StateManager, handler driven.OAuthHandler, userID, orgID string) string {
	t.Helper()

	authURL, err := m.Begin(context.Background(), handler, testProviderConfig(), userID, orgID)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func callbackQuery(state, code string) url.Values {
	q := url.Values{}
	if state != "" {
		q.Set("state", state)
	}
	if code != "" {
		q.Set("code", code)
	}
	return q
}

func TestStateManager_Begin_PersistsState(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	encoded := beginState(t, m, mocks.NewMockConnector(), "user-1", "org-1")

	key := domain.StateKey(domain.ProviderTypeHubSpot, "org-1", "user-1")
	require.True(t, store.Has(key))
	assert.Equal(t, 600*time.Second, store.TTL(key))

	data, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	var saved domain.StateRecord
	require.NoError(t, json.Unmarshal(data, &saved))

	bundle, err := decodeState(encoded)
	require.NoError(t, err)
	assert.Equal(t, saved.State, bundle.State)
	assert.Equal(t, "user-1", bundle.UserID)
	assert.Equal(t, "org-1", bundle.OrgID)

	raw, err := base64.RawURLEncoding.DecodeString(saved.State)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestStateManager_Begin_AuthURL(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	authURL, err := m.Begin(context.Background(), mocks.NewMockConnector(), testProviderConfig(), "user-1", "org-1")
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, testProviderConfig().RedirectURI, q.Get("redirect_uri"))
	assert.Empty(t, q.Get("code_challenge"))
}

func TestStateManager_Begin_PKCE(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	connector := mocks.NewMockConnector()
	connector.DefaultConfigFn = func() driven.OAuthDefaults {
		return driven.OAuthDefaults{SupportsPKCE: true}
	}

	var challenge string
	connector.BuildAuthURLFn = func(cfg domain.ProviderConfig, state, codeChallenge string) string {
		challenge = codeChallenge
		return "https://provider.test/authorize?state=" + url.QueryEscape(state)
	}

	encoded := beginState(t, m, connector, "user-1", "org-1")
	require.NotEmpty(t, challenge)

	result, err := m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(encoded, "code-1"))
	require.NoError(t, err)
	require.NotEmpty(t, result.CodeVerifier)
	assert.Equal(t, challenge, codeChallengeS256(result.CodeVerifier))

	// The verifier never travels in the redirect.
	bundleJSON, err := base64.URLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.NotContains(t, string(bundleJSON), result.CodeVerifier)
}

func TestStateManager_Begin_RequiresIDs(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	_, err := m.Begin(context.Background(), mocks.NewMockConnector(), testProviderConfig(), "", "org-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, store.Calls["set"])
}

func TestStateManager_Begin_RejectsKeySeparator(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	// ("eng:alice", "acme") and ("alice", "acme:eng") would share a key.
	for _, ids := range [][2]string{{"eng:alice", "acme"}, {"alice", "acme:eng"}} {
		_, err := m.Begin(context.Background(), mocks.NewMockConnector(), testProviderConfig(), ids[0], ids[1])
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "user %q org %q", ids[0], ids[1])
	}
	assert.Equal(t, 0, store.Calls["set"])
}

func TestStateManager_Begin_OverwritesPrevious(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)
	connector := mocks.NewMockConnector()

	first := beginState(t, m, connector, "user-1", "org-1")
	second := beginState(t, m, connector, "user-1", "org-1")

	_, err := m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(first, "code"))
	assert.ErrorIs(t, err, domain.ErrStateMismatch)

	_, err = m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(second, "code"))
	assert.NoError(t, err)
}

func TestStateManager_Verify_RoundTrip(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	encoded := beginState(t, m, mocks.NewMockConnector(), "user-1", "org-1")

	result, err := m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(encoded, "auth-code"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", result.UserID)
	assert.Equal(t, "org-1", result.OrgID)
	assert.Equal(t, "auth-code", result.Code)

	assert.False(t, store.Has(domain.StateKey(domain.ProviderTypeHubSpot, "org-1", "user-1")))

	// Second use of the same state fails.
	_, err = m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(encoded, "auth-code"))
	assert.ErrorIs(t, err, domain.ErrStateMismatch)
}

func TestStateManager_Verify_UnpaddedState(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	encoded := beginState(t, m, mocks.NewMockConnector(), "user-1", "org-1")
	unpadded := base64.RawURLEncoding.EncodeToString(mustDecode(t, encoded))

	_, err := m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(unpadded, "code"))
	assert.NoError(t, err)
}

func TestStateManager_Verify_AlteredState(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	encoded := beginState(t, m, mocks.NewMockConnector(), "user-1", "org-1")
	bundle, err := decodeState(encoded)
	require.NoError(t, err)

	random, err := base64.RawURLEncoding.DecodeString(bundle.State)
	require.NoError(t, err)

	for _, bit := range []int{0, 7, 100, len(random)*8 - 1} {
		flipped := make([]byte, len(random))
		copy(flipped, random)
		flipped[bit/8] ^= 1 << (bit % 8)

		tampered, err := encodeState(domain.StateRecord{
			State:  base64.RawURLEncoding.EncodeToString(flipped),
			UserID: bundle.UserID,
			OrgID:  bundle.OrgID,
		})
		require.NoError(t, err)

		_, err = m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(tampered, "code"))
		assert.ErrorIs(t, err, domain.ErrStateMismatch, "bit %d", bit)
	}

	// Failed attempts leave the pending state usable.
	_, err = m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(encoded, "code"))
	assert.NoError(t, err)
}

func TestStateManager_Verify_OtherUser(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	encoded := beginState(t, m, mocks.NewMockConnector(), "user-1", "org-1")
	bundle, err := decodeState(encoded)
	require.NoError(t, err)

	forged, err := encodeState(domain.StateRecord{State: bundle.State, UserID: "user-2", OrgID: "org-1"})
	require.NoError(t, err)

	_, err = m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(forged, "code"))
	assert.ErrorIs(t, err, domain.ErrStateMismatch)
}

func TestStateManager_Verify_WrongProvider(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	encoded := beginState(t, m, mocks.NewMockConnector(), "user-1", "org-1")

	_, err := m.Verify(context.Background(), domain.ProviderTypeNotion, callbackQuery(encoded, "code"))
	assert.ErrorIs(t, err, domain.ErrStateMismatch)
}

func TestStateManager_Verify_TamperedEncoding(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	encoded := beginState(t, m, mocks.NewMockConnector(), "user-1", "org-1")
	unpadded := base64.RawURLEncoding.EncodeToString(mustDecode(t, encoded))

	for _, original := range []string{encoded, unpadded} {
		trimmed := strings.TrimRight(original, "=")
		positions := []int{len(original) - 1, len(trimmed) - 1}

		for _, pos := range positions {
			for bit := 0; bit < 8; bit++ {
				tampered := []byte(original)
				tampered[pos] ^= 1 << bit

				_, err := m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(string(tampered), "code"))
				assert.Error(t, err, "state %q position %d bit %d", original, pos, bit)
			}
		}
	}

	// Failed attempts leave the pending state usable.
	_, err := m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(encoded, "code"))
	assert.NoError(t, err)
}

func TestStateManager_Verify_IdentityMustMatchStored(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	encoded := beginState(t, m, mocks.NewMockConnector(), "user-1", "org-1")
	bundle, err := decodeState(encoded)
	require.NoError(t, err)

	// Same key and random value, but the record belongs to someone else.
	data, err := json.Marshal(domain.StateRecord{State: bundle.State, UserID: "user-2", OrgID: "org-1"})
	require.NoError(t, err)
	key := domain.StateKey(domain.ProviderTypeHubSpot, "org-1", "user-1")
	require.NoError(t, store.Set(context.Background(), key, data, time.Minute))

	_, err = m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(encoded, "code"))
	assert.ErrorIs(t, err, domain.ErrStateMismatch)
	assert.True(t, store.Has(key))
}

func TestStateManager_Verify_RejectsKeySeparatorInBundle(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)

	forged := base64.URLEncoding.EncodeToString([]byte(`{"state":"x","user_id":"eng:alice","org_id":"acme"}`))

	_, err := m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(forged, "code"))
	assert.ErrorIs(t, err, domain.ErrMalformedState)
	assert.Equal(t, 0, store.Calls["get"])
}

func TestStateManager_Verify_Errors(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)
	encoded := beginState(t, m, mocks.NewMockConnector(), "user-1", "org-1")

	tests := []struct {
		name    string
		query   url.Values
		wantErr error
	}{
		{"missing state", url.Values{"code": {"c"}}, domain.ErrMissingState},
		{"empty query", url.Values{}, domain.ErrMissingState},
		{"not base64", callbackQuery("%%%not-base64%%%", "c"), domain.ErrMalformedState},
		{"not json", callbackQuery(base64.URLEncoding.EncodeToString([]byte("plain")), "c"), domain.ErrMalformedState},
		{"incomplete bundle", callbackQuery(base64.URLEncoding.EncodeToString([]byte(`{"state":"x"}`)), "c"), domain.ErrMalformedState},
		{"missing code", callbackQuery(encoded, ""), domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(context.Background(), domain.ProviderTypeHubSpot, tt.query)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// None of the failures consumed the pending state.
	assert.True(t, store.Has(domain.StateKey(domain.ProviderTypeHubSpot, "org-1", "user-1")))
}

func TestStateManager_Verify_ProviderError(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)
	encoded := beginState(t, m, mocks.NewMockConnector(), "user-1", "org-1")

	q := callbackQuery(encoded, "code")
	q.Set("error", "access_denied")
	q.Set("error_description", "The user denied access")

	_, err := m.Verify(context.Background(), domain.ProviderTypeHubSpot, q)

	var providerErr *domain.ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, "access_denied", providerErr.Code)
	assert.Equal(t, "The user denied access", providerErr.Description)

	// Error alone, without state, is still a provider error.
	_, err = m.Verify(context.Background(), domain.ProviderTypeHubSpot, url.Values{"error": {"server_error"}})
	assert.True(t, errors.As(err, &providerErr))
}

func TestStateManager_Verify_Expired(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)
	encoded := beginState(t, m, mocks.NewMockConnector(), "user-1", "org-1")

	store.Advance(599 * time.Second)
	require.True(t, store.Has(domain.StateKey(domain.ProviderTypeHubSpot, "org-1", "user-1")))

	store.Advance(2 * time.Second)
	_, err := m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(encoded, "code"))
	assert.ErrorIs(t, err, domain.ErrStateMismatch)
}

func TestStateManager_Verify_StoreFailure(t *testing.T) {
	store := mocks.NewMockKVStore()
	m := NewStateManager(store, 0, nil)
	encoded := beginState(t, m, mocks.NewMockConnector(), "user-1", "org-1")

	store.GetFn = func(key string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}

	_, err := m.Verify(context.Background(), domain.ProviderTypeHubSpot, callbackQuery(encoded, "code"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStateMismatch)
	assert.Contains(t, err.Error(), "connection refused")
}

func mustDecode(t *testing.T, encoded string) []byte {
	t.Helper()
	data, err := base64.URLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	return data
}
