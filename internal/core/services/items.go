package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
)

// ItemFetcher turns a credential record into the provider's normalized items.
type ItemFetcher struct {
	logger *slog.Logger
}

// NewItemFetcher creates an ItemFetcher.
func NewItemFetcher(logger *slog.Logger) *ItemFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemFetcher{logger: logger}
}

// ListItems accepts a parsed CredentialRecord or its serialized form.
// A record without access_token fails before any network call.
func (f *ItemFetcher) ListItems(ctx context.Context, lister driven.ItemLister, credentials any) ([]domain.IntegrationItem, error) {
	record, err := domain.CoerceCredentialRecord(credentials)
	if err != nil {
		return nil, err
	}

	token := record.AccessToken()
	if token == "" {
		return nil, domain.ErrMissingAccessToken
	}

	items, err := lister.ListItems(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if items == nil {
		items = []domain.IntegrationItem{}
	}

	f.logger.Debug("items listed", "count", len(items))
	return items, nil
}
