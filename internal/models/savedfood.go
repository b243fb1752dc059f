package models

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// SavedFood is the model for a food the user has saved for reuse. Saved foods
// back the "database" search channel and the favorites list.
type SavedFood struct {
	gorm.Model
	UserID uint   `gorm:"index;not null"`
	UID    string `gorm:"uniqueIndex;not null"` // stable item id reused across sessions
	Name   string `gorm:"not null"`

	// Basis is "per_100" or "per_serving".
	Basis string `gorm:"type:text;default:'per_100'"`

	Calories *float64
	Carbs    *float64
	Protein  *float64
	Fat      *float64
	Fiber    *float64
	Sugars   *float64

	PortionGrams       *float64
	ServingsMultiplier *float64

	Tags     pq.StringArray `gorm:"type:text[]"`
	ImageURL string
}

// BasisPer100 and BasisPerServing are the persisted Basis values.
const (
	BasisPer100     = "per_100"
	BasisPerServing = "per_serving"
)

// ToFoodItem converts the saved row into an engine food item with database
// provenance.
func (sf *SavedFood) ToFoodItem() FoodItem {
	values := NutritionValues{
		Calories: sf.Calories,
		Carbs:    sf.Carbs,
		Protein:  sf.Protein,
		Fat:      sf.Fat,
		Fiber:    sf.Fiber,
		Sugars:   sf.Sugars,
	}

	var basis NutritionBasis
	if sf.Basis == BasisPerServing {
		basis = PerServing{Values: values}
	} else {
		basis = Per100{Values: values}
	}

	return FoodItem{
		ID:                 sf.UID,
		Name:               sf.Name,
		Nutrition:          basis,
		PortionGrams:       sf.PortionGrams,
		ServingsMultiplier: sf.ServingsMultiplier,
		Tags:               append([]string(nil), sf.Tags...),
		Source:             SourceDatabase,
		ImageURL:           sf.ImageURL,
	}
}

// IsFavorite reports whether the saved food carries the reserved favorite tag.
func (sf *SavedFood) IsFavorite() bool {
	for _, t := range sf.Tags {
		if t == TagFavorite {
			return true
		}
	}
	return false
}
