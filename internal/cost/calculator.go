// Package cost estimates spend for people-search API usage.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	RocketReach RocketReachRate `yaml:"rocketreach" mapstructure:"rocketreach"`
}

// RocketReachRate holds per-call pricing. Lookups consume credits; searches
// are free on most plans.
type RocketReachRate struct {
	PerLookup float64 `yaml:"per_lookup" mapstructure:"per_lookup"`
	PerSearch float64 `yaml:"per_search" mapstructure:"per_search"`
}

// Usage is the call volume to price.
type Usage struct {
	Searches  int64
	Lookups   int64
	CacheHits int64
}

// Breakdown itemises an estimate.
type Breakdown struct {
	Searches float64 `json:"searches"`
	Lookups  float64 `json:"lookups"`
	Total    float64 `json:"total"`
	// Saved is what cache hits would have cost as live lookups.
	Saved float64 `json:"saved"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Lookups returns the cost of n person lookups.
func (c *Calculator) Lookups(n int64) float64 {
	return float64(n) * c.rates.RocketReach.PerLookup
}

// Searches returns the cost of n person searches.
func (c *Calculator) Searches(n int64) float64 {
	return float64(n) * c.rates.RocketReach.PerSearch
}

// Estimate prices u.
func (c *Calculator) Estimate(u Usage) Breakdown {
	b := Breakdown{
		Searches: c.Searches(u.Searches),
		Lookups:  c.Lookups(u.Lookups),
		Saved:    c.Lookups(u.CacheHits),
	}
	b.Total = b.Searches + b.Lookups
	return b
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		RocketReach: RocketReachRate{PerLookup: 0.30, PerSearch: 0},
	}
}
