package events

import (
	"testing"
	"time"

	"github.com/shopworks/storefront-gateway/internal/querycache"
	"github.com/sirupsen/logrus"
)

type fakeCache struct {
	invalidated []querycache.Descriptor
}

func (f *fakeCache) Invalidate(descs ...querycache.Descriptor) {
	f.invalidated = append(f.invalidated, descs...)
}

type fakeHub struct {
	messages []string
}

func (f *fakeHub) Broadcast(messageType string, data interface{}, source string) {
	f.messages = append(f.messages, messageType)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestApplierInvalidatesPeerEvent(t *testing.T) {
	cache := &fakeCache{}
	hub := &fakeHub{}
	applier := NewCacheApplier(cache, "gateway-a", testLogger())
	applier.SetBroadcaster(hub)

	err := applier.HandleInvalidation(InvalidationEvent{
		EventID:   "e1",
		Mutation:  "product.create",
		StoreID:   "s1",
		Origin:    "gateway-b",
		EventTime: time.Now(),
	})
	if err != nil {
		t.Fatalf("HandleInvalidation failed: %v", err)
	}

	keys := make(map[string]bool)
	for _, d := range cache.invalidated {
		keys[d.Key()] = true
	}
	if !keys[querycache.DescProducts.Key()] || !keys[querycache.DescProductsByStore("s1").Key()] {
		t.Errorf("Expected both product descriptors invalidated, got %v", cache.invalidated)
	}
	if len(hub.messages) != 1 || hub.messages[0] != "invalidation" {
		t.Errorf("Expected one invalidation broadcast, got %v", hub.messages)
	}
}

func TestApplierSkipsOwnEvents(t *testing.T) {
	cache := &fakeCache{}
	applier := NewCacheApplier(cache, "gateway-a", testLogger())

	err := applier.HandleInvalidation(InvalidationEvent{
		EventID:  "e2",
		Mutation: "product.delete",
		StoreID:  "s1",
		Origin:   "gateway-a",
	})
	if err != nil {
		t.Fatalf("HandleInvalidation failed: %v", err)
	}
	if len(cache.invalidated) != 0 {
		t.Errorf("Own events must not re-invalidate, got %v", cache.invalidated)
	}
}

func TestApplierRejectsUnknownMutation(t *testing.T) {
	cache := &fakeCache{}
	applier := NewCacheApplier(cache, "gateway-a", testLogger())

	err := applier.HandleInvalidation(InvalidationEvent{
		EventID:  "e3",
		Mutation: "bogus.mutation",
		StoreID:  "s1",
		Origin:   "gateway-b",
	})
	if err == nil {
		t.Fatal("Expected error for unknown mutation type")
	}
	if applier.IsRetryable(err) {
		t.Error("Unknown mutation types must not be retried")
	}
	if len(cache.invalidated) != 0 {
		t.Errorf("Unknown mutation must not invalidate anything, got %v", cache.invalidated)
	}
}
