// Package nutrition resolves per-portion nutrient amounts from a food item's
// reporting basis. All functions are pure; the zero-vs-unknown distinction of
// NutritionValues is preserved end to end.
package nutrition

import "github.com/glucobite/glucobite-api/internal/models"

// Resolve computes the nutrient amounts for a concrete portion. For a per-100
// basis the portion is grams/ml; for a per-serving basis it is the serving
// multiplier. Nil source values stay nil. Zero or negative portions are passed
// through arithmetically; input validation belongs to the caller.
func Resolve(basis models.NutritionBasis, portion float64) models.NutritionValues {
	switch b := basis.(type) {
	case models.Per100:
		// Multiply before dividing so round-number inputs resolve without
		// float residue (14 per 100g at 150g is exactly 21).
		return mapValues(b.Values, func(v float64) float64 { return v * portion / 100 })
	case models.PerServing:
		return mapValues(b.Values, func(v float64) float64 { return v * portion })
	default:
		// Unreachable for the sealed union.
		return models.NutritionValues{}
	}
}

// ResolveValue resolves a single raw nutrient value for a portion under the
// given basis. Nil in, nil out.
func ResolveValue(basis models.NutritionBasis, raw *float64, portion float64) *float64 {
	if raw == nil {
		return nil
	}
	var v float64
	switch basis.(type) {
	case models.PerServing:
		v = *raw * portion
	default:
		v = *raw * portion / 100
	}
	return &v
}

func mapValues(in models.NutritionValues, f func(float64) float64) models.NutritionValues {
	apply := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		v := f(*p)
		return &v
	}
	return models.NutritionValues{
		Calories: apply(in.Calories),
		Carbs:    apply(in.Carbs),
		Protein:  apply(in.Protein),
		Fat:      apply(in.Fat),
		Fiber:    apply(in.Fiber),
		Sugars:   apply(in.Sugars),
	}
}

// Totals is the aggregate of resolved nutrient amounts over a set of items.
// Unknown values count as zero in the sums only; the per-item values keep
// their nil-ness.
type Totals struct {
	Calories float64 `json:"calories"`
	Carbs    float64 `json:"carbs"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
	Sugars   float64 `json:"sugars"`
}

// Add accumulates a set of resolved values into the totals.
func (t *Totals) Add(v models.NutritionValues) {
	t.Calories += orZero(v.Calories)
	t.Carbs += orZero(v.Carbs)
	t.Protein += orZero(v.Protein)
	t.Fat += orZero(v.Fat)
	t.Fiber += orZero(v.Fiber)
	t.Sugars += orZero(v.Sugars)
}

func orZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
