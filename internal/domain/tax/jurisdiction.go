package tax

import "strings"

// Jurisdiction identifies where a booking's venue (or a company's home base)
// sits for tax purposes. Matching is hierarchical: city > state > country.
type Jurisdiction struct {
	Country string `json:"country"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
}

// IsZero reports whether no location information is present
func (j Jurisdiction) IsZero() bool {
	return j.Country == "" && j.State == "" && j.City == ""
}

// SameCountry reports whether both jurisdictions share a country,
// case-insensitively. Cross-border reverse charge keys off this.
func (j Jurisdiction) SameCountry(other Jurisdiction) bool {
	return strings.EqualFold(j.Country, other.Country)
}

// Specificity scores how precisely a rate's scope pins down a location:
// a city-scoped rate beats a state-scoped one, which beats country-scoped.
func (j Jurisdiction) Specificity() int {
	score := 0
	if j.Country != "" {
		score = 1
	}
	if j.State != "" {
		score = 2
	}
	if j.City != "" {
		score = 3
	}
	return score
}

// Covers reports whether a rate scoped to j applies to the venue location.
// Empty fields on the scope are wildcards; set fields must match.
func (j Jurisdiction) Covers(venue Jurisdiction) bool {
	if j.Country != "" && !strings.EqualFold(j.Country, venue.Country) {
		return false
	}
	if j.State != "" && !strings.EqualFold(j.State, venue.State) {
		return false
	}
	if j.City != "" && !strings.EqualFold(j.City, venue.City) {
		return false
	}
	return true
}
