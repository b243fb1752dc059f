package testutil

import (
	"github.com/glucobite/glucobite-api/internal/models"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// F returns a pointer to the given float. Nutrient fields distinguish nil
// (unknown) from zero, so fixtures need explicit pointers.
func F(v float64) *float64 {
	return &v
}

// TestUser creates a test user with all associated records populated.
func TestUser() *models.User {
	return &models.User{
		Model:     gorm.Model{ID: 1},
		Username:  "testuser",
		FirstName: "Test",
		Email:     "test@example.com",
		Auth: &models.UserAuth{
			Model:          gorm.Model{ID: 1},
			UserID:         1,
			HashedPassword: "$2a$10$abcdefghijklmnopqrstuuABCDEFGHIJKLMNOPQRSTUVWXYZ012",
			AuthType:       models.Standard,
		},
		Settings: &models.UserSettings{
			Model:                gorm.Model{ID: 1},
			UserID:               1,
			DailyCarbTargetGrams: 200,
			KeepScreenAwake:      true,
		},
	}
}

// FruitGroup creates a food group with an apple and a banana, both reported
// per 100 g.
func FruitGroup() models.FoodGroup {
	return models.FoodGroup{
		ID:     "group-fruit",
		Source: models.SourceAIPhoto,
		Items: []models.FoodItem{
			{
				ID:   "item-apple",
				Name: "Apple",
				Nutrition: models.Per100{Values: models.NutritionValues{
					Calories: F(52),
					Carbs:    F(14),
					Protein:  F(0.3),
					Fat:      F(0.2),
					Fiber:    F(2.4),
					Sugars:   F(10.4),
				}},
				Confidence: models.ConfidenceHigh,
				Source:     models.SourceAIPhoto,
			},
			{
				ID:   "item-banana",
				Name: "Banana",
				Nutrition: models.Per100{Values: models.NutritionValues{
					Calories: F(89),
					Carbs:    F(23),
					Protein:  F(1.1),
					Fat:      F(0.3),
					Fiber:    F(2.6),
					Sugars:   F(12.2),
				}},
				Confidence: models.ConfidenceHigh,
				Source:     models.SourceAIPhoto,
			},
		},
	}
}

// TestSavedFood creates a saved food row for the test user.
func TestSavedFood() *models.SavedFood {
	return &models.SavedFood{
		Model:        gorm.Model{ID: 1},
		UserID:       1,
		UID:          "saved-oatmeal",
		Name:         "Overnight Oats",
		Basis:        models.BasisPerServing,
		Calories:     F(310),
		Carbs:        F(54),
		Protein:      F(12),
		Fat:          F(6),
		Fiber:        F(8),
		Sugars:       F(14),
		ServingsMultiplier: F(1),
		Tags:         pq.StringArray{models.TagFavorite},
	}
}
