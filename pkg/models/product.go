package models

import (
	"time"
)

type Product struct {
	ID          string `json:"id"`
	StoreID     string `json:"store_id"`
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Prices travel as decimal strings to avoid floating-point rounding in transit.
	Price           string          `json:"price"`
	OriginalPrice   string          `json:"original_price,omitempty"`
	Stock           int             `json:"stock"`
	Images          []string        `json:"images"`
	IsFastSell      bool            `json:"is_fast_sell"`
	IsOnOffer       bool            `json:"is_on_offer"`
	OfferPercentage int             `json:"offer_percentage,omitempty"`
	OfferEndDate    *time.Time      `json:"offer_end_date,omitempty"`
	Specifications  []Specification `json:"specifications,omitempty"`
	Features        []string        `json:"features,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty"`
}

type Specification struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// OfferActive reports whether offer pricing should be rendered for the product
// at the given instant. A product stays in listings either way; only the offer
// presentation is gated on the end date.
func (p *Product) OfferActive(now time.Time) bool {
	if !p.IsOnOffer {
		return false
	}
	if p.OfferEndDate == nil {
		return true
	}
	return p.OfferEndDate.After(now)
}

type ProductResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Product *Product `json:"product,omitempty"`
}
