package repository

import "github.com/glucobite/glucobite-api/internal/models"

// SavedFoodRepo is the interface for saved-food repository operations.
type SavedFoodRepo interface {
	ListByUser(userID uint) ([]models.SavedFood, error)
	ListFavoritesByUser(userID uint) ([]models.SavedFood, error)
	GetByUID(uid string) (*models.SavedFood, error)
	Create(food *models.SavedFood) error
	UpdateTags(uid string, tags []string) error
	DeleteByUID(uid string) error
}

// MealLogRepo is the interface for committed-meal repository operations.
type MealLogRepo interface {
	Create(log *models.MealLog) error
	GetByID(logID uint) (*models.MealLog, error)
	ListByUser(userID uint, page, pageSize int) ([]models.MealLog, int64, error)
}

// UserRepo is the interface for user repository operations.
type UserRepo interface {
	CreateUser(user *models.User) (*models.User, error)
	GetUserByID(userID uint) (*models.User, error)
	GetUserAuthByUsername(username string) (*models.User, error)
	UpdateUserSettings(userID uint, settings *models.UserSettings) error
	UsernameExists(username string) (bool, error)
}
