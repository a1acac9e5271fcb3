package dashboard

import (
	"strconv"
	"time"

	"github.com/shopworks/storefront-gateway/pkg/models"
)

// Summary holds the derived figures the dashboard header shows. Everything
// here is computed from cached snapshots; nothing is stored.
type Summary struct {
	TotalProducts int     `json:"total_products"`
	TotalOrders   int     `json:"total_orders"`
	PendingOrders int     `json:"pending_orders"`
	TotalRevenue  float64 `json:"total_revenue"`
	ActiveOffers  int     `json:"active_offers"`
}

// TotalRevenue sums the authoritative order totals. Totals arrive as decimal
// strings; a value that does not parse is skipped rather than treated as
// zero-by-accident or failing the whole summary.
func TotalRevenue(orders []models.Order) float64 {
	var total float64
	for _, order := range orders {
		amount, err := strconv.ParseFloat(order.TotalAmount, 64)
		if err != nil {
			continue
		}
		total += amount
	}
	return total
}

// CountByStatus returns how many orders carry the given status.
func CountByStatus(orders []models.Order, status string) int {
	count := 0
	for _, order := range orders {
		if order.Status == status {
			count++
		}
	}
	return count
}

// CountActiveOffers counts products whose offer is live at the given instant.
func CountActiveOffers(products []models.Product, now time.Time) int {
	count := 0
	for i := range products {
		if products[i].OfferActive(now) {
			count++
		}
	}
	return count
}

// BuildSummary derives the full dashboard summary from the store's cached
// product and order snapshots.
func BuildSummary(products []models.Product, orders []models.Order, now time.Time) Summary {
	return Summary{
		TotalProducts: len(products),
		TotalOrders:   len(orders),
		PendingOrders: CountByStatus(orders, models.OrderStatusPending),
		TotalRevenue:  TotalRevenue(orders),
		ActiveOffers:  CountActiveOffers(products, now),
	}
}
