package invalidation

import (
	"github.com/shopworks/storefront-gateway/internal/querycache"
)

// Mutation names every write the gateway performs against the upstream.
type Mutation string

const (
	ProductCreate     Mutation = "product.create"
	ProductUpdate     Mutation = "product.update"
	ProductDelete     Mutation = "product.delete"
	OrderStatusUpdate Mutation = "order.status.update"
	CategoryCreate    Mutation = "category.create"
	StoreUpdate       Mutation = "store.update"
)

// Mutations lists every known mutation, in a stable order.
var Mutations = []Mutation{
	ProductCreate,
	ProductUpdate,
	ProductDelete,
	OrderStatusUpdate,
	CategoryCreate,
	StoreUpdate,
}

// DescriptorsFor returns the cache descriptors a successful mutation makes
// stale. The mapping is the single source of truth for the
// mutation/invalidation contract: handlers never invalidate ad hoc, and a
// failed mutation invalidates nothing.
//
// storeID scopes the per-store collections; mutations that touch no scoped
// collection ignore it.
func DescriptorsFor(m Mutation, storeID string) []querycache.Descriptor {
	switch m {
	case ProductCreate, ProductUpdate, ProductDelete:
		return []querycache.Descriptor{
			querycache.DescProducts,
			querycache.DescProductsByStore(storeID),
		}
	case OrderStatusUpdate:
		return []querycache.Descriptor{
			querycache.DescOrdersByStore(storeID),
		}
	case CategoryCreate:
		return []querycache.Descriptor{
			querycache.DescCategories,
		}
	case StoreUpdate:
		return []querycache.Descriptor{
			querycache.DescStores,
		}
	}
	return nil
}
