package models

import (
	"time"

	"gorm.io/gorm"
)

// MealLog is the model for a committed meal. A meal draft session produces
// exactly one MealLog when committed; the draft itself is never persisted.
type MealLog struct {
	gorm.Model
	UserID   uint      `gorm:"index;not null"`
	LoggedAt time.Time `gorm:"index"`

	Description string

	TotalCalories float64
	TotalCarbs    float64
	TotalProtein  float64
	TotalFat      float64
	TotalFiber    float64
	TotalSugars   float64

	Entries []MealLogEntry `gorm:"foreignKey:MealLogID"`
}

// MealLogEntry is one resolved food line inside a committed meal. Nutrient
// amounts are stored already resolved for the logged portion.
type MealLogEntry struct {
	gorm.Model
	MealLogID uint       `gorm:"index;not null"`
	Name      string     `gorm:"not null"`
	Source    FoodSource `gorm:"type:text"`

	// Portion is grams for per-100 items, serving multiplier for per-serving.
	Portion float64

	Calories *float64
	Carbs    *float64
	Protein  *float64
	Fat      *float64
	Fiber    *float64
	Sugars   *float64

	ImageURL string
}
