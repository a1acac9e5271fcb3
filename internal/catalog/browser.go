package catalog

import (
	"context"
	"strings"

	"github.com/shopworks/storefront-gateway/internal/querycache"
	"github.com/shopworks/storefront-gateway/pkg/models"
	"github.com/sirupsen/logrus"
)

// StoreSource is the subset of the upstream client the browser needs.
type StoreSource interface {
	GetStores() ([]models.Store, error)
}

// Browser serves the public storefront listings out of the read cache.
type Browser struct {
	cache  *querycache.Cache
	source StoreSource
	logger *logrus.Logger
}

func NewBrowser(cache *querycache.Cache, source StoreSource, logger *logrus.Logger) *Browser {
	return &Browser{
		cache:  cache,
		source: source,
		logger: logger,
	}
}

func (b *Browser) stores(ctx context.Context) ([]models.Store, querycache.Result, error) {
	res, err := b.cache.Get(ctx, querycache.DescStores, func(ctx context.Context) (interface{}, error) {
		return b.source.GetStores()
	})
	if res.Data == nil {
		return nil, res, err
	}
	stores, ok := res.Data.([]models.Store)
	if !ok {
		return nil, res, err
	}
	if res.Stale {
		b.logger.WithError(err).Warn("Serving stale store listing")
		return stores, res, nil
	}
	return stores, res, err
}

// Stores returns the full store listing.
func (b *Browser) Stores(ctx context.Context) ([]models.Store, error) {
	stores, _, err := b.stores(ctx)
	return stores, err
}

// SearchStores filters the listing by a case-insensitive substring match over
// name, description, and address. An empty query returns the full listing.
func (b *Browser) SearchStores(ctx context.Context, query string) ([]models.Store, error) {
	stores, _, err := b.stores(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return stores, nil
	}

	needle := strings.ToLower(query)
	matched := make([]models.Store, 0)
	for _, store := range stores {
		if strings.Contains(strings.ToLower(store.Name), needle) ||
			strings.Contains(strings.ToLower(store.Description), needle) ||
			strings.Contains(strings.ToLower(store.Address), needle) {
			matched = append(matched, store)
		}
	}

	b.logger.WithFields(logrus.Fields{
		"query":   query,
		"matched": len(matched),
		"total":   len(stores),
	}).Debug("Store search completed")

	return matched, nil
}

// StoreOwnedBy finds the store belonging to an owner by filtering the full
// listing. The upstream exposes no owner-scoped endpoint, so this is the one
// place the gateway filters client-side; first match wins.
func (b *Browser) StoreOwnedBy(ctx context.Context, ownerID string) (*models.Store, error) {
	stores, _, err := b.stores(ctx)
	if err != nil {
		return nil, err
	}

	for i := range stores {
		if stores[i].OwnerID == ownerID {
			return &stores[i], nil
		}
	}
	return nil, nil
}
