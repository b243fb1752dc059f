package repository

import (
	"errors"

	"github.com/glucobite/glucobite-api/internal/logger"
	"github.com/glucobite/glucobite-api/internal/models"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserRepository is a repository for users.
type UserRepository struct {
	DB *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// CreateUser creates a user together with its nested auth record and default
// settings in one transaction.
func (r *UserRepository) CreateUser(user *models.User) (*models.User, error) {
	tx := r.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(user).Error; err != nil {
		tx.Rollback()
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return nil, errors.New("username or email already taken")
		}
		logger.Get().Error("failed to create user", zap.Error(err))
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID with settings preloaded.
func (r *UserRepository) GetUserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := r.DB.Preload("Settings").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// GetUserAuthByUsername retrieves a user with its auth record by username.
func (r *UserRepository) GetUserAuthByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.DB.Preload("Auth").Preload("Settings").
		Where("username = ?", username).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUserSettings persists changed logging settings.
func (r *UserRepository) UpdateUserSettings(userID uint, settings *models.UserSettings) error {
	res := r.DB.Model(&models.UserSettings{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"daily_carb_target_grams": settings.DailyCarbTargetGrams,
			"insulin_to_carb_ratio":   settings.InsulinToCarbRatio,
			"keep_screen_awake":       settings.KeepScreenAwake,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NewNotFoundError("user settings not found")
	}
	return nil
}

// UsernameExists reports whether a username is already taken.
func (r *UserRepository) UsernameExists(username string) (bool, error) {
	var count int64
	if err := r.DB.Model(&models.User{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
