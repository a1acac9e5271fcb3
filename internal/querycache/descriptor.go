package querycache

// Descriptor identifies one cached query result: an upstream endpoint path
// plus an optional scoping parameter (owner id, store id). Consumers treat it
// as an opaque key.
type Descriptor struct {
	Path  string
	Scope string
}

func (d Descriptor) Key() string {
	if d.Scope == "" {
		return d.Path
	}
	return d.Path + "|" + d.Scope
}

// Well-known descriptors used across the gateway. Scoped variants are built
// with the helper functions so every call site produces the same key.
var (
	DescStores     = Descriptor{Path: "/api/stores"}
	DescProducts   = Descriptor{Path: "/api/products"}
	DescCategories = Descriptor{Path: "/api/categories"}
)

func DescProductsByStore(storeID string) Descriptor {
	return Descriptor{Path: "/api/products/store", Scope: storeID}
}

func DescOrdersByStore(storeID string) Descriptor {
	return Descriptor{Path: "/api/orders/store", Scope: storeID}
}
