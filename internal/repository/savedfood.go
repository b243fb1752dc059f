package repository

import (
	"errors"

	"github.com/glucobite/glucobite-api/internal/logger"
	"github.com/glucobite/glucobite-api/internal/models"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SavedFoodRepository is a repository for the user's saved foods.
type SavedFoodRepository struct {
	DB *gorm.DB
}

// NewSavedFoodRepository creates a new SavedFoodRepository.
func NewSavedFoodRepository(db *gorm.DB) *SavedFoodRepository {
	return &SavedFoodRepository{DB: db}
}

// ListByUser returns all saved foods for a user, oldest first.
func (r *SavedFoodRepository) ListByUser(userID uint) ([]models.SavedFood, error) {
	var foods []models.SavedFood
	if err := r.DB.Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&foods).Error; err != nil {
		return nil, err
	}
	return foods, nil
}

// ListFavoritesByUser returns the saved foods carrying the favorite tag.
func (r *SavedFoodRepository) ListFavoritesByUser(userID uint) ([]models.SavedFood, error) {
	var foods []models.SavedFood
	if err := r.DB.Where("user_id = ? AND ? = ANY(tags)", userID, models.TagFavorite).
		Order("created_at ASC").
		Find(&foods).Error; err != nil {
		return nil, err
	}
	return foods, nil
}

// GetByUID retrieves one saved food by its stable item id.
func (r *SavedFoodRepository) GetByUID(uid string) (*models.SavedFood, error) {
	var food models.SavedFood
	if err := r.DB.Where("uid = ?", uid).First(&food).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("saved food not found")
		}
		return nil, err
	}
	return &food, nil
}

// Create persists a new saved food.
func (r *SavedFoodRepository) Create(food *models.SavedFood) error {
	err := r.DB.Create(food).Error
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return errors.New("food is already saved")
		}
		logger.Get().Error("failed to create saved food",
			zap.Uint("user_id", food.UserID),
			zap.Error(err),
		)
	}
	return err
}

// UpdateTags replaces the tag list of a saved food.
func (r *SavedFoodRepository) UpdateTags(uid string, tags []string) error {
	res := r.DB.Model(&models.SavedFood{}).
		Where("uid = ?", uid).
		Update("tags", pq.StringArray(tags))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NewNotFoundError("saved food not found")
	}
	return nil
}

// DeleteByUID permanently removes a saved food. This is the persistence side
// of a hard delete; there is no undo.
func (r *SavedFoodRepository) DeleteByUID(uid string) error {
	res := r.DB.Where("uid = ?", uid).Delete(&models.SavedFood{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NewNotFoundError("saved food not found")
	}
	return nil
}
