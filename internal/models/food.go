package models

import (
	"encoding/json"
	"fmt"
)

// FoodSource is the type for the FoodSource enum.
type FoodSource string

// FoodSource enum values.
const (
	SourceAIPhoto  FoodSource = "ai_photo"
	SourceAIMenu   FoodSource = "ai_menu"
	SourceAIRecipe FoodSource = "ai_recipe"
	SourceAIText   FoodSource = "ai_text"
	SourceSearch   FoodSource = "search"
	SourceBarcode  FoodSource = "barcode"
	SourceManual   FoodSource = "manual"
	SourceDatabase FoodSource = "database"
)

// IsAI reports whether the source is one of the AI analysis channels.
func (s FoodSource) IsAI() bool {
	switch s {
	case SourceAIPhoto, SourceAIMenu, SourceAIRecipe, SourceAIText:
		return true
	default:
		return false
	}
}

// Confidence is the qualitative confidence level attached to AI-derived items.
type Confidence string

// Confidence enum values. Empty means "not applicable" (non-AI items).
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TagFavorite is the reserved tag marking a food as a favorite.
const TagFavorite = "favorite"

// NutritionValues holds nutrient amounts. A nil field means "unknown", which
// is distinct from an explicit zero.
type NutritionValues struct {
	Calories *float64 `json:"calories,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
	Fiber    *float64 `json:"fiber,omitempty"`
	Sugars   *float64 `json:"sugars,omitempty"`
}

// NutritionBasis is the tagged union over the two supported nutrient-reporting
// bases. The two variants are Per100 and PerServing; the interface is sealed so
// a type switch over both variants is exhaustive.
type NutritionBasis interface {
	// BaseValues returns the raw nutrient amounts in the variant's basis.
	BaseValues() NutritionValues

	sealedBasis()
}

// Per100 reports nutrient amounts per 100 grams/ml.
type Per100 struct {
	Values NutritionValues `json:"values"`
}

// PerServing reports nutrient amounts per one standard serving.
type PerServing struct {
	Values NutritionValues `json:"values"`
}

func (b Per100) BaseValues() NutritionValues     { return b.Values }
func (b PerServing) BaseValues() NutritionValues { return b.Values }

func (Per100) sealedBasis()     {}
func (PerServing) sealedBasis() {}

// FoodItem is one candidate food entry produced by a search channel.
// FoodItems are immutable once handed to a meal draft; user overrides live in
// the draft's overlay maps keyed by ID, never on the item itself.
type FoodItem struct {
	ID      string `json:"id"`
	GroupID string `json:"group_id"`
	Name    string `json:"name"`

	Nutrition NutritionBasis `json:"nutrition"`

	// Confidence is set only for AI-derived items.
	Confidence Confidence `json:"confidence,omitempty"`

	// Authored portion defaults. PortionGrams and StandardServingGrams apply
	// to the per-100 basis; ServingsMultiplier applies to per-serving.
	PortionGrams         *float64 `json:"portion_grams,omitempty"`
	StandardServingGrams *float64 `json:"standard_serving_grams,omitempty"`
	ServingsMultiplier   *float64 `json:"servings_multiplier,omitempty"`

	Tags     []string   `json:"tags,omitempty"`
	Source   FoodSource `json:"source"`
	ImageURL string     `json:"image_url,omitempty"`
}

// nutritionJSON is the wire form of NutritionBasis. The basis discriminator
// keeps the tagged union explicit on the JSON surface so clients can tell a
// per-100 item from a per-serving one.
type nutritionJSON struct {
	Basis  string          `json:"basis"`
	Values NutritionValues `json:"values"`
}

// MarshalJSON emits the nutrition union as {"basis":...,"values":{...}}.
func (f FoodItem) MarshalJSON() ([]byte, error) {
	type alias FoodItem
	aux := struct {
		alias
		Nutrition *nutritionJSON `json:"nutrition,omitempty"`
	}{alias: alias(f)}

	switch b := f.Nutrition.(type) {
	case Per100:
		aux.Nutrition = &nutritionJSON{Basis: BasisPer100, Values: b.Values}
	case PerServing:
		aux.Nutrition = &nutritionJSON{Basis: BasisPerServing, Values: b.Values}
	}
	return json.Marshal(aux)
}

// UnmarshalJSON restores the concrete basis variant from the discriminator.
// A missing basis defaults to per-100; an unknown one is an error.
func (f *FoodItem) UnmarshalJSON(data []byte) error {
	type alias FoodItem
	aux := struct {
		*alias
		Nutrition *nutritionJSON `json:"nutrition"`
	}{alias: (*alias)(f)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Nutrition == nil {
		f.Nutrition = nil
		return nil
	}
	switch aux.Nutrition.Basis {
	case BasisPerServing:
		f.Nutrition = PerServing{Values: aux.Nutrition.Values}
	case BasisPer100, "":
		f.Nutrition = Per100{Values: aux.Nutrition.Values}
	default:
		return fmt.Errorf("unknown nutrition basis %q", aux.Nutrition.Basis)
	}
	return nil
}

// IsFavorite reports whether the item carries the reserved favorite tag.
func (f *FoodItem) IsFavorite() bool {
	for _, t := range f.Tags {
		if t == TagFavorite {
			return true
		}
	}
	return false
}

// HasTag reports whether the item carries the given tag.
func (f *FoodItem) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
