package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// BookingSortFields contains allowed sort fields for bookings
var BookingSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"booking_number":   true,
	"client_name":      true,
	"start_date":       true,
	"end_date":         true,
	"status":           true,
	"quote_status":     true,
	"quote_expires_at": true,
	"grand_total":      true,
	"payment_due_date": true,
	"days_past_due":    true,
	"aging_bucket":     true,
}

// RentalAssetSortFields contains allowed sort fields for rental assets
var RentalAssetSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"name":       true,
	"sku":        true,
	"quantity":   true,
}

// TaxRateSortFields contains allowed sort fields for tax rates
var TaxRateSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"name":           true,
	"rate":           true,
	"component_type": true,
}
