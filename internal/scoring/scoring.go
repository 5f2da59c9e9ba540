// Package scoring derives investment metrics from a listing's
// normalized attributes.
package scoring

import (
	"math"
	"strings"

	"bam_sniper/internal/model"
)

// Strategy classifications.
const (
	StrategyCashFlow = "Cash Flow"
	StrategyBigFlip  = "Big Flip"
)

// defaultCashFlowRatio is the annual rent-to-price ratio above which a
// listing is classified as a cash-flow play.
const defaultCashFlowRatio = 0.05

// fallbackMonthlyRentRate estimates monthly rent as a fraction of price
// when the locale lookup has no rent data for the area.
const fallbackMonthlyRentRate = 0.004

// LocaleScores are the externally supplied per-area ratings and rent
// rate used as scoring inputs.
type LocaleScores struct {
	Safety     int     // 0-100
	Transport  int     // 0-100
	Food       int     // 0-100
	RentPerSqm float64 // monthly rent per square meter, 0 if unknown
}

// Lookup resolves locale scores for a listing's area. Implementations
// are external collaborators; the engine only requires determinism.
type Lookup interface {
	Locale(location string, lat, lon float64) (LocaleScores, bool)
}

// StaticLookup resolves locale scores by substring match on the
// location text. Useful as a deterministic default and in tests.
type StaticLookup map[string]LocaleScores

// Locale implements Lookup.
func (m StaticLookup) Locale(location string, _, _ float64) (LocaleScores, bool) {
	for key, scores := range m {
		if strings.Contains(location, key) {
			return scores, true
		}
	}
	return LocaleScores{}, false
}

// DefaultLookup returns a curated locale table for the major Thai
// metro areas. Areas not listed fall back to neutral sub-scores.
func DefaultLookup() StaticLookup {
	return StaticLookup{
		"กรุงเทพมหานคร": {Safety: 70, Transport: 90, Food: 95, RentPerSqm: 300},
		"นนทบุรี":       {Safety: 70, Transport: 75, Food: 85, RentPerSqm: 220},
		"ปทุมธานี":      {Safety: 65, Transport: 70, Food: 80, RentPerSqm: 180},
		"สมุทรปราการ":   {Safety: 60, Transport: 75, Food: 80, RentPerSqm: 200},
		"ชลบุรี":        {Safety: 65, Transport: 65, Food: 85, RentPerSqm: 250},
		"เชียงใหม่":     {Safety: 75, Transport: 55, Food: 90, RentPerSqm: 180},
		"ภูเก็ต":        {Safety: 70, Transport: 50, Food: 90, RentPerSqm: 350},
	}
}

// Scores is the result of scoring one listing. Valid is false when a
// required attribute was missing; all other fields are then zero.
type Scores struct {
	Strategy     string
	TotalRating  float64
	Safety       int
	Transport    int
	Food         int
	RentEstimate float64
	Valid        bool
}

// Engine computes scores from listing attributes and locale lookups.
type Engine struct {
	lookup        Lookup
	cashFlowRatio float64
}

// NewEngine creates an Engine with the default strategy threshold.
func NewEngine(lookup Lookup) *Engine {
	return &Engine{lookup: lookup, cashFlowRatio: defaultCashFlowRatio}
}

// NewEngineWithRatio creates an Engine with a custom annual
// rent-to-price threshold for the Cash Flow classification.
func NewEngineWithRatio(lookup Lookup, ratio float64) *Engine {
	return &Engine{lookup: lookup, cashFlowRatio: ratio}
}

// Score computes metrics for a listing. Pure: same inputs always yield
// the same output.
func (e *Engine) Score(l *model.Listing) Scores {
	if l.Price <= 0 || l.SizeSqm <= 0 {
		return Scores{}
	}

	locale, ok := e.lookup.Locale(l.Location, l.Lat, l.Lon)
	if !ok {
		// Unknown area: neutral sub-scores, rent from the price heuristic.
		locale = LocaleScores{Safety: 50, Transport: 50, Food: 50}
	}

	rent := locale.RentPerSqm * l.SizeSqm
	if rent <= 0 {
		rent = l.Price * fallbackMonthlyRentRate
	}

	strategy := StrategyBigFlip
	if rent*12/l.Price >= e.cashFlowRatio {
		strategy = StrategyCashFlow
	}

	base := 5.0
	pricePerSqm := l.Price / l.SizeSqm
	switch {
	case pricePerSqm < 40000:
		base += 2
	case pricePerSqm < 80000:
		base += 1
	}

	safety := clampScore(locale.Safety)
	transport := clampScore(locale.Transport)
	food := clampScore(locale.Food)

	rating := base + float64(safety)/100 + float64(transport)/100 + float64(food)/100
	rating = math.Round(math.Min(10, math.Max(0, rating))*10) / 10

	return Scores{
		Strategy:     strategy,
		TotalRating:  rating,
		Safety:       safety,
		Transport:    transport,
		Food:         food,
		RentEstimate: math.Round(rent),
		Valid:        true,
	}
}

// InputChanged reports whether a listing update touches an attribute
// that feeds the score. Cosmetic text changes never trigger a rescore.
func InputChanged(old *model.Listing, raw *model.RawListing) bool {
	return old.Price != raw.Price ||
		old.SizeSqm != raw.SizeSqm ||
		old.Location != raw.Location ||
		old.Lat != raw.Lat ||
		old.Lon != raw.Lon
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
