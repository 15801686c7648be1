package services

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driving"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProviderConnector is a testify mock of driven.Connector
type MockProviderConnector struct {
	mock.Mock
}

func (m *MockProviderConnector) Type() domain.ProviderType {
	return domain.ProviderTypeHubSpot
}

func (m *MockProviderConnector) BuildAuthURL(cfg domain.ProviderConfig, state, codeChallenge string) string {
	return "https://app.hubspot.test/oauth/authorize?" + url.Values{"state": {state}}.Encode()
}

func (m *MockProviderConnector) ExchangeCode(ctx context.Context, cfg domain.ProviderConfig, code, codeVerifier string) (domain.CredentialRecord, error) {
	args := m.Called(ctx, cfg, code, codeVerifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.CredentialRecord), args.Error(1)
}

func (m *MockProviderConnector) ListItems(ctx context.Context, accessToken string) ([]domain.IntegrationItem, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.IntegrationItem), args.Error(1)
}

func (m *MockProviderConnector) DefaultConfig() driven.OAuthDefaults {
	return driven.OAuthDefaults{Scopes: []string{"contacts", "content"}}
}

func newTestIntegrationService(store *mocks.MockKVStore, connector driven.Connector) driving.IntegrationService {
	return NewIntegrationService(IntegrationServiceConfig{
		Store:      store,
		Connectors: mocks.NewMockConnectorRegistry(connector),
		Providers: map[domain.ProviderType]domain.ProviderConfig{
			domain.ProviderTypeHubSpot: {
				ClientID:     "client-id",
				ClientSecret: "client-secret",
				RedirectURI:  "http://localhost:8000/integrations/hubspot/oauth2callback",
			},
			// Configured without a registered connector.
			domain.ProviderTypeAirtable: {ClientID: "id", ClientSecret: "secret"},
			// Registered nowhere and not configured.
			domain.ProviderTypeNotion: {},
		},
	})
}

func authorizeState(t *testing.T, svc driving.IntegrationService, userID, orgID string) string {
	t.Helper()
	resp, err := svc.Authorize(context.Background(), domain.ProviderTypeHubSpot, userID, orgID)
	require.NoError(t, err)
	u, err := url.Parse(resp.AuthURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestIntegrationService_FullRoundTrip(t *testing.T) {
	store := mocks.NewMockKVStore()
	connector := new(MockProviderConnector)
	svc := newTestIntegrationService(store, connector)
	ctx := context.Background()

	connector.On("ExchangeCode", mock.Anything, mock.MatchedBy(func(cfg domain.ProviderConfig) bool {
		return cfg.ClientID == "client-id" && cfg.Type == domain.ProviderTypeHubSpot &&
			assert.ObjectsAreEqual([]string{"contacts", "content"}, cfg.Scopes)
	}), "auth-code", "").Return(domain.CredentialRecord{"access_token": "T", "refresh_token": "R"}, nil).Once()

	connector.On("ListItems", mock.Anything, "T").Return([]domain.IntegrationItem{
		{ID: "1", Name: "A B", Type: domain.ItemTypeContact},
	}, nil).Once()

	state := authorizeState(t, svc, "user-1", "org-1")

	err := svc.Callback(ctx, domain.ProviderTypeHubSpot, url.Values{"state": {state}, "code": {"auth-code"}})
	require.NoError(t, err)
	assert.False(t, store.Has(domain.StateKey(domain.ProviderTypeHubSpot, "org-1", "user-1")))
	assert.True(t, store.Has(domain.CredentialKey(domain.ProviderTypeHubSpot, "org-1", "user-1")))

	items, err := svc.Load(ctx, domain.ProviderTypeHubSpot, driving.LoadRequest{UserID: "user-1", OrgID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, []domain.IntegrationItem{{ID: "1", Name: "A B", Type: "contact"}}, items)

	// Load consumed the credentials.
	_, err = svc.Credentials(ctx, domain.ProviderTypeHubSpot, "user-1", "org-1")
	assert.ErrorIs(t, err, domain.ErrNoCredentials)

	connector.AssertExpectations(t)
}

func TestIntegrationService_CredentialsThenInlineLoad(t *testing.T) {
	store := mocks.NewMockKVStore()
	connector := new(MockProviderConnector)
	svc := newTestIntegrationService(store, connector)
	ctx := context.Background()

	connector.On("ExchangeCode", mock.Anything, mock.Anything, "code", "").
		Return(domain.CredentialRecord{"access_token": "T"}, nil)
	connector.On("ListItems", mock.Anything, "T").Return([]domain.IntegrationItem{}, nil)

	state := authorizeState(t, svc, "user-1", "org-1")
	require.NoError(t, svc.Callback(ctx, domain.ProviderTypeHubSpot, url.Values{"state": {state}, "code": {"code"}}))

	creds, err := svc.Credentials(ctx, domain.ProviderTypeHubSpot, "user-1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, "T", creds.AccessToken())

	raw, err := json.Marshal(creds)
	require.NoError(t, err)

	items, err := svc.Load(ctx, domain.ProviderTypeHubSpot, driving.LoadRequest{Credentials: raw})
	require.NoError(t, err)
	assert.Empty(t, items)

	connector.AssertExpectations(t)
}

func TestIntegrationService_ExchangeFailure(t *testing.T) {
	store := mocks.NewMockKVStore()
	connector := new(MockProviderConnector)
	svc := newTestIntegrationService(store, connector)
	ctx := context.Background()

	connector.On("ExchangeCode", mock.Anything, mock.Anything, "bad", "").Return(nil, &domain.UpstreamError{
		Kind: domain.ErrTokenExchange, Provider: domain.ProviderTypeHubSpot, StatusCode: 400, Body: `{"status":"BAD_AUTH_CODE"}`,
	})

	state := authorizeState(t, svc, "user-1", "org-1")
	err := svc.Callback(ctx, domain.ProviderTypeHubSpot, url.Values{"state": {state}, "code": {"bad"}})
	assert.ErrorIs(t, err, domain.ErrTokenExchange)

	assert.False(t, store.Has(domain.CredentialKey(domain.ProviderTypeHubSpot, "org-1", "user-1")))
	// Verified state is consumed even though the exchange failed.
	assert.False(t, store.Has(domain.StateKey(domain.ProviderTypeHubSpot, "org-1", "user-1")))
}

func TestIntegrationService_CallbackVerificationFailureSkipsExchange(t *testing.T) {
	store := mocks.NewMockKVStore()
	connector := new(MockProviderConnector)
	svc := newTestIntegrationService(store, connector)

	err := svc.Callback(context.Background(), domain.ProviderTypeHubSpot, url.Values{"code": {"c"}})
	assert.ErrorIs(t, err, domain.ErrMissingState)

	connector.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIntegrationService_UnknownProvider(t *testing.T) {
	svc := newTestIntegrationService(mocks.NewMockKVStore(), new(MockProviderConnector))
	ctx := context.Background()

	for _, pt := range []domain.ProviderType{domain.ProviderTypeAirtable, domain.ProviderTypeNotion, "github"} {
		_, err := svc.Authorize(ctx, pt, "user-1", "org-1")
		assert.ErrorIs(t, err, domain.ErrProviderNotFound, pt)

		_, err = svc.Credentials(ctx, pt, "user-1", "org-1")
		assert.ErrorIs(t, err, domain.ErrProviderNotFound, pt)

		_, err = svc.Load(ctx, pt, driving.LoadRequest{UserID: "user-1", OrgID: "org-1"})
		assert.ErrorIs(t, err, domain.ErrProviderNotFound, pt)

		err = svc.Callback(ctx, pt, url.Values{})
		assert.ErrorIs(t, err, domain.ErrProviderNotFound, pt)
	}
}

func TestIntegrationService_Providers(t *testing.T) {
	svc := newTestIntegrationService(mocks.NewMockKVStore(), new(MockProviderConnector))
	assert.Equal(t, []domain.ProviderType{domain.ProviderTypeHubSpot}, svc.Providers())
}

func TestIntegrationService_LoadValidation(t *testing.T) {
	connector := new(MockProviderConnector)
	svc := newTestIntegrationService(mocks.NewMockKVStore(), connector)
	ctx := context.Background()

	_, err := svc.Load(ctx, domain.ProviderTypeHubSpot, driving.LoadRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Load(ctx, domain.ProviderTypeHubSpot, driving.LoadRequest{UserID: "u", OrgID: "o"})
	assert.ErrorIs(t, err, domain.ErrNoCredentials)

	_, err = svc.Load(ctx, domain.ProviderTypeHubSpot, driving.LoadRequest{Credentials: json.RawMessage(`{"scope":"x"}`)})
	assert.ErrorIs(t, err, domain.ErrMissingAccessToken)

	_, err = svc.Credentials(ctx, domain.ProviderTypeHubSpot, "", "org")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	connector.AssertNotCalled(t, "ListItems", mock.Anything, mock.Anything)
}

func TestIntegrationService_IdentitiesCannotShareKeys(t *testing.T) {
	store := mocks.NewMockKVStore()
	connector := new(MockProviderConnector)
	svc := newTestIntegrationService(store, connector)
	ctx := context.Background()

	connector.On("ExchangeCode", mock.Anything, mock.Anything, "victim-code", "").
		Return(domain.CredentialRecord{"access_token": "victim-token"}, nil).Once()
	connector.On("ListItems", mock.Anything, "victim-token").
		Return([]domain.IntegrationItem{{ID: "1", Name: "A B", Type: domain.ItemTypeContact}}, nil).Once()

	_, err := svc.Authorize(ctx, domain.ProviderTypeHubSpot, "alice", "acme:eng")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	state := authorizeState(t, svc, "alice", "acme")
	require.NoError(t, svc.Callback(ctx, domain.ProviderTypeHubSpot, url.Values{"state": {state}, "code": {"victim-code"}}))

	_, err = svc.Credentials(ctx, domain.ProviderTypeHubSpot, "eng:alice", "acme")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.Load(ctx, domain.ProviderTypeHubSpot, driving.LoadRequest{UserID: "alice:x", OrgID: "acme"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// The rightful owner still gets the credentials.
	items, err := svc.Load(ctx, domain.ProviderTypeHubSpot, driving.LoadRequest{UserID: "alice", OrgID: "acme"})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	connector.AssertExpectations(t)
}
