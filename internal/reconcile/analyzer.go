package reconcile

import (
	"fmt"
	"math"
	"time"

	"github.com/shopworks/storefront-gateway/pkg/models"
	"github.com/sirupsen/logrus"
)

// Analyzer cross-checks the two ways the gateway can obtain a store's
// products: the scoped endpoint and client-side filtering of the broad
// listing. The two must agree; drift means one of the cached snapshots is
// stale or the upstream's scoped query is wrong.
type Analyzer struct {
	logger *logrus.Logger
}

type Report struct {
	StoreID           string          `json:"store_id"`
	ScopedCount       int             `json:"scoped_count"`
	FilteredCount     int             `json:"filtered_count"`
	PerfectMatches    int             `json:"perfect_matches"`
	MissingInScoped   []string        `json:"missing_in_scoped"`
	MissingInFiltered []string        `json:"missing_in_filtered"`
	FieldMismatches   []FieldMismatch `json:"field_mismatches"`
	ConsistencyScore  float64         `json:"consistency_score"`
	OverallStatus     string          `json:"overall_status"`
	Recommendations   []string        `json:"recommendations"`
	Timestamp         time.Time       `json:"timestamp"`
}

type FieldMismatch struct {
	ProductID     string      `json:"product_id"`
	Field         string      `json:"field"`
	ScopedValue   interface{} `json:"scoped_value"`
	FilteredValue interface{} `json:"filtered_value"`
}

func NewAnalyzer(logger *logrus.Logger) *Analyzer {
	return &Analyzer{
		logger: logger,
	}
}

// Compare builds a consistency report for one store. scoped is the result of
// the store-scoped fetch; broad is the full product listing, which gets
// filtered to the store client-side before comparison.
func (a *Analyzer) Compare(storeID string, scoped, broad []models.Product) *Report {
	report := &Report{
		StoreID:           storeID,
		MissingInScoped:   []string{},
		MissingInFiltered: []string{},
		FieldMismatches:   []FieldMismatch{},
		Timestamp:         time.Now(),
	}

	scopedMap := make(map[string]*models.Product)
	for i := range scoped {
		scopedMap[scoped[i].ID] = &scoped[i]
	}

	filteredMap := make(map[string]*models.Product)
	for i := range broad {
		if broad[i].StoreID == storeID {
			filteredMap[broad[i].ID] = &broad[i]
		}
	}

	report.ScopedCount = len(scopedMap)
	report.FilteredCount = len(filteredMap)

	allIDs := make(map[string]bool)
	for id := range scopedMap {
		allIDs[id] = true
	}
	for id := range filteredMap {
		allIDs[id] = true
	}

	for id := range allIDs {
		scopedProduct, inScoped := scopedMap[id]
		filteredProduct, inFiltered := filteredMap[id]

		if !inScoped {
			report.MissingInScoped = append(report.MissingInScoped, id)
			continue
		}
		if !inFiltered {
			report.MissingInFiltered = append(report.MissingInFiltered, id)
			continue
		}

		mismatches := compareProducts(scopedProduct, filteredProduct)
		if len(mismatches) == 0 {
			report.PerfectMatches++
		} else {
			report.FieldMismatches = append(report.FieldMismatches, mismatches...)
		}
	}

	if len(allIDs) > 0 {
		report.ConsistencyScore = math.Max(0, float64(report.PerfectMatches)/float64(len(allIDs))*100)
	} else {
		report.ConsistencyScore = 100
	}

	switch {
	case report.ConsistencyScore >= 95:
		report.OverallStatus = "excellent"
	case report.ConsistencyScore >= 85:
		report.OverallStatus = "good"
	case report.ConsistencyScore >= 70:
		report.OverallStatus = "fair"
	default:
		report.OverallStatus = "poor"
	}

	report.Recommendations = a.recommendations(report)

	a.logger.WithFields(logrus.Fields{
		"store_id":          storeID,
		"scoped_count":      report.ScopedCount,
		"filtered_count":    report.FilteredCount,
		"consistency_score": report.ConsistencyScore,
		"status":            report.OverallStatus,
	}).Info("Product consistency comparison completed")

	return report
}

func compareProducts(scoped, filtered *models.Product) []FieldMismatch {
	var mismatches []FieldMismatch

	check := func(field string, scopedValue, filteredValue interface{}) {
		if scopedValue != filteredValue {
			mismatches = append(mismatches, FieldMismatch{
				ProductID:     scoped.ID,
				Field:         field,
				ScopedValue:   scopedValue,
				FilteredValue: filteredValue,
			})
		}
	}

	check("name", scoped.Name, filtered.Name)
	check("price", scoped.Price, filtered.Price)
	check("stock", scoped.Stock, filtered.Stock)
	check("category_id", scoped.CategoryID, filtered.CategoryID)
	check("is_active", scoped.IsActive, filtered.IsActive)
	check("is_on_offer", scoped.IsOnOffer, filtered.IsOnOffer)

	return mismatches
}

func (a *Analyzer) recommendations(report *Report) []string {
	var recommendations []string

	if len(report.MissingInScoped) > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("%d products appear only in the broad listing - invalidate the scoped snapshot", len(report.MissingInScoped)))
	}
	if len(report.MissingInFiltered) > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("%d products appear only in the scoped fetch - invalidate the broad listing", len(report.MissingInFiltered)))
	}
	if len(report.FieldMismatches) > 0 {
		recommendations = append(recommendations,
			"Field values drifted between snapshots - refetch both and compare again")
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Snapshots are consistent - no action required")
	}

	return recommendations
}
