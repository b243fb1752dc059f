package repository

import (
	"errors"

	"github.com/glucobite/glucobite-api/internal/logger"
	"github.com/glucobite/glucobite-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MealLogRepository is a repository for committed meal logs.
type MealLogRepository struct {
	DB *gorm.DB
}

// NewMealLogRepository creates a new MealLogRepository.
func NewMealLogRepository(db *gorm.DB) *MealLogRepository {
	return &MealLogRepository{DB: db}
}

// Create persists a meal log together with its entries.
func (r *MealLogRepository) Create(log *models.MealLog) error {
	tx := r.DB.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(log).Error; err != nil {
		tx.Rollback()
		logger.Get().Error("failed to create meal log",
			zap.Uint("user_id", log.UserID),
			zap.Error(err),
		)
		return err
	}

	return tx.Commit().Error
}

// GetByID retrieves a meal log with its entries preloaded.
func (r *MealLogRepository) GetByID(id uint) (*models.MealLog, error) {
	var log models.MealLog
	if err := r.DB.Preload("Entries").First(&log, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("meal log not found")
		}
		return nil, err
	}
	return &log, nil
}

// ListByUser returns a page of meal logs for a user, newest first.
func (r *MealLogRepository) ListByUser(userID uint, page, perPage int) ([]models.MealLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var total int64
	if err := r.DB.Model(&models.MealLog{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.MealLog
	if err := r.DB.Preload("Entries").
		Where("user_id = ?", userID).
		Order("logged_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
