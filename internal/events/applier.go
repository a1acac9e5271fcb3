package events

import (
	"fmt"

	"github.com/shopworks/storefront-gateway/internal/invalidation"
	"github.com/shopworks/storefront-gateway/internal/querycache"
	"github.com/sirupsen/logrus"
)

// CacheInvalidator is the slice of the query cache the applier needs.
type CacheInvalidator interface {
	Invalidate(descs ...querycache.Descriptor)
}

type Broadcaster interface {
	Broadcast(messageType string, data interface{}, source string)
}

// CacheApplier turns peer invalidation events into local cache invalidations.
// Events this instance published itself are skipped; the mutation handler
// already invalidated locally before publishing.
type CacheApplier struct {
	cache  CacheInvalidator
	origin string
	hub    Broadcaster
	logger *logrus.Logger
}

func NewCacheApplier(cache CacheInvalidator, origin string, logger *logrus.Logger) *CacheApplier {
	return &CacheApplier{
		cache:  cache,
		origin: origin,
		logger: logger,
	}
}

func (a *CacheApplier) SetBroadcaster(hub Broadcaster) {
	a.hub = hub
}

func (a *CacheApplier) HandleInvalidation(event InvalidationEvent) error {
	if event.Origin == a.origin {
		a.logger.WithField("event_id", event.EventID).Debug("Skipping own invalidation event")
		return nil
	}

	descs := invalidation.DescriptorsFor(invalidation.Mutation(event.Mutation), event.StoreID)
	if len(descs) == 0 {
		return fmt.Errorf("unknown mutation type: %s", event.Mutation)
	}

	a.cache.Invalidate(descs...)

	a.logger.WithFields(logrus.Fields{
		"event_id":    event.EventID,
		"mutation":    event.Mutation,
		"store_id":    event.StoreID,
		"origin":      event.Origin,
		"descriptors": len(descs),
	}).Info("Applied peer invalidation to local cache")

	if a.hub != nil {
		a.hub.Broadcast("invalidation", map[string]interface{}{
			"mutation": event.Mutation,
			"store_id": event.StoreID,
		}, "peer")
	}

	return nil
}

// IsRetryable: applying to the local cache cannot fail transiently, so every
// error here is permanent and goes to the DLQ.
func (a *CacheApplier) IsRetryable(err error) bool {
	return false
}
