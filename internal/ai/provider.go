package ai

import (
	"context"

	"github.com/glucobite/glucobite-api/internal/models"
	"github.com/google/uuid"
)

// VisionProvider handles image-based food analysis (Claude).
type VisionProvider interface {
	// AnalyzeFoodPhoto identifies the foods on a photo of a plate/meal.
	AnalyzeFoodPhoto(ctx context.Context, imageData []byte, hint string) (*models.FoodGroup, error)
	// AnalyzeMenuPhoto identifies the foods described on a photographed menu.
	AnalyzeMenuPhoto(ctx context.Context, imageData []byte, hint string) (*models.FoodGroup, error)
	// AnalyzeRecipePhoto identifies the foods in a photographed recipe.
	AnalyzeRecipePhoto(ctx context.Context, imageData []byte, hint string) (*models.FoodGroup, error)
}

// TextProvider handles free-text food analysis.
type TextProvider interface {
	AnalyzeFoodText(ctx context.Context, text string) (*models.FoodGroup, error)
}

// foodReport is the JSON structure returned by the report_food_items tool.
type foodReport struct {
	BriefDescription       string           `json:"brief_description"`
	OverallDescription     string           `json:"overall_description"`
	DiabetesConsiderations string           `json:"diabetes_considerations"`
	Items                  []foodReportItem `json:"items"`
}

type foodReportItem struct {
	Name               string   `json:"name"`
	Basis              string   `json:"nutrition_basis"` // "per_100" or "per_serving"
	Calories           *float64 `json:"calories"`
	Carbs              *float64 `json:"carbs"`
	Protein            *float64 `json:"protein"`
	Fat                *float64 `json:"fat"`
	Fiber              *float64 `json:"fiber"`
	Sugars             *float64 `json:"sugars"`
	PortionGrams       *float64 `json:"portion_grams"`
	ServingsMultiplier *float64 `json:"servings_multiplier"`
	Confidence         string   `json:"confidence"`
	Tags               []string `json:"tags"`
}

// reportToFoodGroup converts a tool report into an engine food group with
// fresh ids and the given provenance stamped on every item.
func reportToFoodGroup(r *foodReport, source models.FoodSource, textQuery, imageURL string) *models.FoodGroup {
	group := &models.FoodGroup{
		ID:                     uuid.New().String(),
		Source:                 source,
		TextQuery:              textQuery,
		BriefDescription:       r.BriefDescription,
		OverallDescription:     r.OverallDescription,
		DiabetesConsiderations: r.DiabetesConsiderations,
	}

	for _, it := range r.Items {
		values := models.NutritionValues{
			Calories: it.Calories,
			Carbs:    it.Carbs,
			Protein:  it.Protein,
			Fat:      it.Fat,
			Fiber:    it.Fiber,
			Sugars:   it.Sugars,
		}

		var basis models.NutritionBasis
		if it.Basis == "per_serving" {
			basis = models.PerServing{Values: values}
		} else {
			basis = models.Per100{Values: values}
		}

		item := models.FoodItem{
			ID:                 uuid.New().String(),
			Name:               it.Name,
			Nutrition:          basis,
			Confidence:         parseConfidence(it.Confidence),
			PortionGrams:       it.PortionGrams,
			ServingsMultiplier: it.ServingsMultiplier,
			Tags:               it.Tags,
			Source:             source,
			ImageURL:           imageURL,
		}
		group.Items = append(group.Items, item)
	}

	return group
}

func parseConfidence(s string) models.Confidence {
	switch models.Confidence(s) {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
		return models.Confidence(s)
	default:
		return models.ConfidenceLow
	}
}
