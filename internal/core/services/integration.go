package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driving"
)

// Ensure integrationService implements IntegrationService
var _ driving.IntegrationService = (*integrationService)(nil)

// IntegrationServiceConfig holds configuration for the integration service.
type IntegrationServiceConfig struct {
	// Store holds pending state and exchanged credentials.
	Store driven.KVStore

	// Connectors provides OAuth and listing operations per provider.
	Connectors driven.ConnectorRegistry

	// Providers holds the OAuth app settings of each enabled provider.
	Providers map[domain.ProviderType]domain.ProviderConfig

	// StateTTL is the lifetime of a pending authorization (default 600s).
	StateTTL time.Duration

	// CredentialTTL is the lifetime of exchanged credentials (default 600s).
	CredentialTTL time.Duration

	Logger *slog.Logger
}

// integrationService implements the IntegrationService interface.
type integrationService struct {
	connectors driven.ConnectorRegistry
	providers  map[domain.ProviderType]domain.ProviderConfig
	state      *StateManager
	vault      *CredentialVault
	fetcher    *ItemFetcher
	logger     *slog.Logger
}

// NewIntegrationService creates a new integration service.
func NewIntegrationService(cfg IntegrationServiceConfig) driving.IntegrationService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	providers := make(map[domain.ProviderType]domain.ProviderConfig, len(cfg.Providers))
	for pt, pc := range cfg.Providers {
		if pc.Type == "" {
			pc.Type = pt
		}
		providers[pt] = pc
	}

	return &integrationService{
		connectors: cfg.Connectors,
		providers:  providers,
		state:      NewStateManager(cfg.Store, cfg.StateTTL, logger),
		vault:      NewCredentialVault(cfg.Store, cfg.CredentialTTL, logger),
		fetcher:    NewItemFetcher(logger),
		logger:     logger,
	}
}

// Authorize starts an OAuth authorization flow for (user, org).
func (s *integrationService) Authorize(ctx context.Context, provider domain.ProviderType, userID, orgID string) (*driving.AuthorizeResponse, error) {
	connector, cfg, err := s.resolve(provider)
	if err != nil {
		return nil, err
	}

	authURL, err := s.state.Begin(ctx, connector, cfg, userID, orgID)
	if err != nil {
		return nil, err
	}

	return &driving.AuthorizeResponse{AuthURL: authURL}, nil
}

// Callback validates state, exchanges the code and stores the credentials.
// The pending state is consumed once verification succeeds, so a failed
// exchange requires a new Authorize.
func (s *integrationService) Callback(ctx context.Context, provider domain.ProviderType, query url.Values) error {
	connector, cfg, err := s.resolve(provider)
	if err != nil {
		return err
	}

	result, err := s.state.Verify(ctx, provider, query)
	if err != nil {
		return err
	}

	record, err := connector.ExchangeCode(ctx, cfg, result.Code, result.CodeVerifier)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	if err := s.vault.Store(ctx, provider, result.OrgID, result.UserID, record); err != nil {
		return err
	}

	s.logger.Info("oauth callback completed",
		"provider", provider, "org_id", result.OrgID, "user_id", result.UserID)
	return nil
}

// Credentials hands out the stored credentials once.
func (s *integrationService) Credentials(ctx context.Context, provider domain.ProviderType, userID, orgID string) (domain.CredentialRecord, error) {
	if _, _, err := s.resolve(provider); err != nil {
		return nil, err
	}
	if err := domain.ValidateIdentity(userID, orgID); err != nil {
		return nil, err
	}
	return s.vault.Take(ctx, provider, orgID, userID)
}

// Load lists the provider's items.
func (s *integrationService) Load(ctx context.Context, provider domain.ProviderType, req driving.LoadRequest) ([]domain.IntegrationItem, error) {
	connector, _, err := s.resolve(provider)
	if err != nil {
		return nil, err
	}

	if req.HasCredentials() {
		return s.fetcher.ListItems(ctx, connector, req.Credentials)
	}

	if err := domain.ValidateIdentity(req.UserID, req.OrgID); err != nil {
		return nil, err
	}

	record, err := s.vault.Take(ctx, provider, req.OrgID, req.UserID)
	if err != nil {
		return nil, err
	}
	return s.fetcher.ListItems(ctx, connector, record)
}

// Providers returns the configured providers in name order.
func (s *integrationService) Providers() []domain.ProviderType {
	var out []domain.ProviderType
	for pt := range s.providers {
		if _, _, err := s.resolve(pt); err == nil {
			out = append(out, pt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// resolve returns the connector and effective config for provider.
func (s *integrationService) resolve(provider domain.ProviderType) (driven.Connector, domain.ProviderConfig, error) {
	cfg, ok := s.providers[provider]
	if !ok || !cfg.IsConfigured() {
		return nil, domain.ProviderConfig{}, domain.ErrProviderNotFound
	}

	connector, ok := s.connectors.Get(provider)
	if !ok {
		return nil, domain.ProviderConfig{}, domain.ErrProviderNotFound
	}

	if len(cfg.Scopes) == 0 {
		cfg.Scopes = connector.DefaultConfig().Scopes
	}
	return connector, cfg, nil
}
