package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/glucobite/glucobite-api/internal/models"
	"github.com/glucobite/glucobite-api/internal/repository"
)

// --- MockVisionProvider ---

// MockVisionProvider is a mock implementation of ai.VisionProvider.
type MockVisionProvider struct {
	AnalyzeFoodPhotoFunc   func(ctx context.Context, imageData []byte, hint string) (*models.FoodGroup, error)
	AnalyzeMenuPhotoFunc   func(ctx context.Context, imageData []byte, hint string) (*models.FoodGroup, error)
	AnalyzeRecipePhotoFunc func(ctx context.Context, imageData []byte, hint string) (*models.FoodGroup, error)
}

func (m *MockVisionProvider) AnalyzeFoodPhoto(ctx context.Context, imageData []byte, hint string) (*models.FoodGroup, error) {
	if m.AnalyzeFoodPhotoFunc != nil {
		return m.AnalyzeFoodPhotoFunc(ctx, imageData, hint)
	}
	return nil, fmt.Errorf("AnalyzeFoodPhoto not configured")
}

func (m *MockVisionProvider) AnalyzeMenuPhoto(ctx context.Context, imageData []byte, hint string) (*models.FoodGroup, error) {
	if m.AnalyzeMenuPhotoFunc != nil {
		return m.AnalyzeMenuPhotoFunc(ctx, imageData, hint)
	}
	return nil, fmt.Errorf("AnalyzeMenuPhoto not configured")
}

func (m *MockVisionProvider) AnalyzeRecipePhoto(ctx context.Context, imageData []byte, hint string) (*models.FoodGroup, error) {
	if m.AnalyzeRecipePhotoFunc != nil {
		return m.AnalyzeRecipePhotoFunc(ctx, imageData, hint)
	}
	return nil, fmt.Errorf("AnalyzeRecipePhoto not configured")
}

// --- MockTextProvider ---

// MockTextProvider is a mock implementation of ai.TextProvider.
type MockTextProvider struct {
	AnalyzeFoodTextFunc func(ctx context.Context, text string) (*models.FoodGroup, error)
}

func (m *MockTextProvider) AnalyzeFoodText(ctx context.Context, text string) (*models.FoodGroup, error) {
	if m.AnalyzeFoodTextFunc != nil {
		return m.AnalyzeFoodTextFunc(ctx, text)
	}
	return nil, fmt.Errorf("AnalyzeFoodText not configured")
}

// --- MockBarcodeClient / MockFoodSearchClient ---

// MockBarcodeClient is a mock implementation of foodfacts.BarcodeClient.
type MockBarcodeClient struct {
	LookupBarcodeFunc func(ctx context.Context, barcode string) (*models.FoodGroup, error)
}

func (m *MockBarcodeClient) LookupBarcode(ctx context.Context, barcode string) (*models.FoodGroup, error) {
	if m.LookupBarcodeFunc != nil {
		return m.LookupBarcodeFunc(ctx, barcode)
	}
	return nil, fmt.Errorf("LookupBarcode not configured")
}

// MockFoodSearchClient is a mock implementation of foodfacts.FoodSearchClient.
type MockFoodSearchClient struct {
	SearchFoodsFunc func(ctx context.Context, query string, count int) (*models.FoodGroup, error)
}

func (m *MockFoodSearchClient) SearchFoods(ctx context.Context, query string, count int) (*models.FoodGroup, error) {
	if m.SearchFoodsFunc != nil {
		return m.SearchFoodsFunc(ctx, query, count)
	}
	return nil, fmt.Errorf("SearchFoods not configured")
}

// --- MockSavedFoodRepo ---

// MockSavedFoodRepo is an in-memory implementation of repository.SavedFoodRepo.
type MockSavedFoodRepo struct {
	mu    sync.Mutex
	Foods map[string]*models.SavedFood // keyed by UID
}

// NewMockSavedFoodRepo creates an empty mock saved-food repo.
func NewMockSavedFoodRepo() *MockSavedFoodRepo {
	return &MockSavedFoodRepo{Foods: make(map[string]*models.SavedFood)}
}

func (m *MockSavedFoodRepo) ListByUser(userID uint) ([]models.SavedFood, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SavedFood
	for _, f := range m.Foods {
		if f.UserID == userID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *MockSavedFoodRepo) ListFavoritesByUser(userID uint) ([]models.SavedFood, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SavedFood
	for _, f := range m.Foods {
		if f.UserID == userID && f.IsFavorite() {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *MockSavedFoodRepo) GetByUID(uid string) (*models.SavedFood, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.Foods[uid]
	if !ok {
		return nil, repository.NewNotFoundError("saved food not found")
	}
	cp := *f
	return &cp, nil
}

func (m *MockSavedFoodRepo) Create(food *models.SavedFood) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Foods[food.UID]; exists {
		return fmt.Errorf("food is already saved")
	}
	cp := *food
	m.Foods[food.UID] = &cp
	return nil
}

func (m *MockSavedFoodRepo) UpdateTags(uid string, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.Foods[uid]
	if !ok {
		return repository.NewNotFoundError("saved food not found")
	}
	f.Tags = append(f.Tags[:0:0], tags...)
	return nil
}

func (m *MockSavedFoodRepo) DeleteByUID(uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Foods[uid]; !ok {
		return repository.NewNotFoundError("saved food not found")
	}
	delete(m.Foods, uid)
	return nil
}

// --- MockMealLogRepo ---

// MockMealLogRepo is an in-memory implementation of repository.MealLogRepo.
type MockMealLogRepo struct {
	mu     sync.Mutex
	Logs   map[uint]*models.MealLog
	NextID uint

	// CreateErr, when set, is returned by Create.
	CreateErr error
}

// NewMockMealLogRepo creates an empty mock meal-log repo.
func NewMockMealLogRepo() *MockMealLogRepo {
	return &MockMealLogRepo{Logs: make(map[uint]*models.MealLog), NextID: 1}
}

func (m *MockMealLogRepo) Create(log *models.MealLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	log.ID = m.NextID
	m.NextID++
	cp := *log
	m.Logs[log.ID] = &cp
	return nil
}

func (m *MockMealLogRepo) GetByID(logID uint) (*models.MealLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.Logs[logID]
	if !ok {
		return nil, repository.NewNotFoundError("meal log not found")
	}
	cp := *log
	return &cp, nil
}

func (m *MockMealLogRepo) ListByUser(userID uint, page, pageSize int) ([]models.MealLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MealLog
	for _, log := range m.Logs {
		if log.UserID == userID {
			out = append(out, *log)
		}
	}
	return out, int64(len(out)), nil
}

// --- MockUserRepo ---

// MockUserRepo is an in-memory implementation of repository.UserRepo.
type MockUserRepo struct {
	mu     sync.Mutex
	Users  map[uint]*models.User
	NextID uint

	// CreateUserErr, when set, is returned by CreateUser.
	CreateUserErr error
}

// NewMockUserRepo creates an empty mock user repo.
func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{Users: make(map[uint]*models.User), NextID: 1}
}

func (m *MockUserRepo) CreateUser(user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateUserErr != nil {
		return nil, m.CreateUserErr
	}
	for _, u := range m.Users {
		if u.Username == user.Username {
			return nil, fmt.Errorf("username or email already taken")
		}
	}
	user.ID = m.NextID
	m.NextID++
	if user.Auth != nil {
		user.Auth.UserID = user.ID
	}
	if user.Settings != nil {
		user.Settings.UserID = user.ID
	}
	m.Users[user.ID] = user
	return user, nil
}

func (m *MockUserRepo) GetUserByID(userID uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[userID]
	if !ok {
		return nil, repository.NewNotFoundError("user not found")
	}
	return u, nil
}

func (m *MockUserRepo) GetUserAuthByUsername(username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.NewNotFoundError("user not found")
}

func (m *MockUserRepo) UpdateUserSettings(userID uint, settings *models.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[userID]
	if !ok || u.Settings == nil {
		return repository.NewNotFoundError("user settings not found")
	}
	u.Settings.DailyCarbTargetGrams = settings.DailyCarbTargetGrams
	u.Settings.InsulinToCarbRatio = settings.InsulinToCarbRatio
	u.Settings.KeepScreenAwake = settings.KeepScreenAwake
	return nil
}

func (m *MockUserRepo) UsernameExists(username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}
