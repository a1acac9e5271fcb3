package invalidation

import (
	"testing"

	"github.com/shopworks/storefront-gateway/internal/querycache"
)

func TestEveryMutationHasDescriptors(t *testing.T) {
	for _, m := range Mutations {
		descs := DescriptorsFor(m, "store-1")
		if len(descs) == 0 {
			t.Errorf("Mutation %s maps to no descriptors", m)
		}
	}
}

func TestUnknownMutationMapsToNothing(t *testing.T) {
	if descs := DescriptorsFor(Mutation("bogus"), "store-1"); descs != nil {
		t.Errorf("Unknown mutation should map to nil, got %v", descs)
	}
}

func TestProductMutationsInvalidateBothScopes(t *testing.T) {
	for _, m := range []Mutation{ProductCreate, ProductUpdate, ProductDelete} {
		descs := DescriptorsFor(m, "store-7")

		keys := make(map[string]bool)
		for _, d := range descs {
			keys[d.Key()] = true
		}
		if !keys[querycache.DescProducts.Key()] {
			t.Errorf("%s should invalidate the global product listing", m)
		}
		if !keys[querycache.DescProductsByStore("store-7").Key()] {
			t.Errorf("%s should invalidate the store-scoped product listing", m)
		}
	}
}

func TestOrderStatusUpdateScopedToStore(t *testing.T) {
	descs := DescriptorsFor(OrderStatusUpdate, "store-3")
	if len(descs) != 1 {
		t.Fatalf("Expected exactly 1 descriptor, got %d", len(descs))
	}
	if descs[0].Key() != querycache.DescOrdersByStore("store-3").Key() {
		t.Errorf("Order status update should invalidate the store's orders, got %s", descs[0].Key())
	}
}
