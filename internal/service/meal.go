package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/glucobite/glucobite-api/internal/ai"
	"github.com/glucobite/glucobite-api/internal/config"
	"github.com/glucobite/glucobite-api/internal/foodfacts"
	"github.com/glucobite/glucobite-api/internal/logger"
	"github.com/glucobite/glucobite-api/internal/meal"
	"github.com/glucobite/glucobite-api/internal/models"
	"github.com/glucobite/glucobite-api/internal/nutrition"
	"github.com/glucobite/glucobite-api/internal/repository"
	"github.com/glucobite/glucobite-api/internal/s3"
	"github.com/glucobite/glucobite-api/internal/search"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// savedFoodSearchLimit caps how many results a food-database text search adds
// to the draft at once.
const savedFoodSearchLimit = 8

// MealSession is one live meal-assembly session: a draft plus the search
// orchestrator feeding it. Sessions live in memory only; committing a meal
// is what persists anything.
type MealSession struct {
	ID        string
	UserID    uint
	Draft     *meal.Draft
	Orch      *search.Orchestrator
	CreatedAt time.Time

	mu     sync.Mutex
	lastFn map[search.Channel]search.SearchFunc
}

// rememberSearch records the search function last run on a channel so Retry
// can replay it.
func (ms *MealSession) rememberSearch(ch search.Channel, fn search.SearchFunc) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.lastFn[ch] = fn
}

func (ms *MealSession) lastSearch(ch search.Channel) (search.SearchFunc, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	fn, ok := ms.lastFn[ch]
	return fn, ok
}

// MealService is the business logic layer for meal-assembly sessions.
type MealService struct {
	Cfg           *config.Config
	SavedFoodRepo repository.SavedFoodRepo
	MealLogRepo   repository.MealLogRepo

	Vision       ai.VisionProvider
	Text         ai.TextProvider
	FallbackText ai.TextProvider

	Barcode    foodfacts.BarcodeClient
	FoodSearch foodfacts.FoodSearchClient

	mu       sync.Mutex
	sessions map[string]*MealSession
}

// NewMealService is the constructor function for initializing a new MealService.
func NewMealService(
	cfg *config.Config,
	savedFoodRepo repository.SavedFoodRepo,
	mealLogRepo repository.MealLogRepo,
	vision ai.VisionProvider,
	text ai.TextProvider,
	fallbackText ai.TextProvider,
	barcode foodfacts.BarcodeClient,
	foodSearch foodfacts.FoodSearchClient,
) *MealService {
	return &MealService{
		Cfg:           cfg,
		SavedFoodRepo: savedFoodRepo,
		MealLogRepo:   mealLogRepo,
		Vision:        vision,
		Text:          text,
		FallbackText:  fallbackText,
		Barcode:       barcode,
		FoodSearch:    foodSearch,
		sessions:      make(map[string]*MealSession),
	}
}

// StartSession opens a new meal-assembly session for the user. The listener
// receives search completion and failure events (normally the session's
// websocket).
func (s *MealService) StartSession(userID uint, listener search.Listener) *MealSession {
	draft := meal.NewDraft()
	session := &MealSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Draft:     draft,
		Orch:      search.NewOrchestrator(draft, listener),
		CreatedAt: time.Now(),
		lastFn:    make(map[search.Channel]search.SearchFunc),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	logger.Get().Info("meal session started",
		zap.String("session_id", session.ID),
		zap.Uint("user_id", userID),
	)
	return session
}

// GetSession returns a live session owned by the given user.
func (s *MealService) GetSession(sessionID string, userID uint) (*MealSession, error) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	s.mu.Unlock()

	if !ok || session.UserID != userID {
		return nil, repository.NewNotFoundError("meal session not found")
	}
	return session, nil
}

// EndSession cancels all in-flight searches and drops the session.
func (s *MealService) EndSession(sessionID string, userID uint) error {
	session, err := s.GetSession(sessionID, userID)
	if err != nil {
		return err
	}

	session.Orch.CancelAll()

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	logger.Get().Info("meal session ended", zap.String("session_id", sessionID))
	return nil
}

// uploadPhoto stores the analyzed photo in S3 and returns its URL. Upload
// failure is logged but never blocks the analysis itself.
func (s *MealService) uploadPhoto(ctx context.Context, userID uint, imageData []byte) string {
	if s.Cfg.EnvVars.S3Bucket == "" {
		return ""
	}
	key := s3.GenerateS3Key(userID, uuid.NewString())
	url, err := s3.UploadFoodImageToS3(ctx, s.Cfg, imageData, key)
	if err != nil {
		logger.Get().Warn("failed to upload food photo",
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
		return ""
	}
	return url
}

// stampImageURL fills the image URL on items that do not carry one of their
// own (e.g. barcode products keep the product image).
func stampImageURL(group *models.FoodGroup, url string) {
	if url == "" {
		return
	}
	for i := range group.Items {
		if group.Items[i].ImageURL == "" {
			group.Items[i].ImageURL = url
		}
	}
}

// runSearch starts fn on the channel and remembers it for Retry. The search
// outlives the HTTP request that started it, so the request context is
// detached; cancellation happens through the orchestrator instead.
func (s *MealService) runSearch(ctx context.Context, session *MealSession, ch search.Channel, fn search.SearchFunc) {
	session.rememberSearch(ch, fn)
	session.Orch.Search(context.WithoutCancel(ctx), ch, fn)
}

// AnalyzePhoto runs AI analysis of a meal photo on the photo channel.
func (s *MealService) AnalyzePhoto(ctx context.Context, session *MealSession, imageData []byte, hint string) {
	imageURL := s.uploadPhoto(ctx, session.UserID, imageData)
	s.runSearch(ctx, session, search.ChannelPhoto, func(ctx context.Context) (*models.FoodGroup, error) {
		group, err := s.Vision.AnalyzeFoodPhoto(ctx, imageData, hint)
		if err != nil {
			return nil, err
		}
		stampImageURL(group, imageURL)
		return group, nil
	})
}

// AnalyzeMenuPhoto runs AI analysis of a photographed menu on the photo channel.
func (s *MealService) AnalyzeMenuPhoto(ctx context.Context, session *MealSession, imageData []byte, hint string) {
	imageURL := s.uploadPhoto(ctx, session.UserID, imageData)
	s.runSearch(ctx, session, search.ChannelPhoto, func(ctx context.Context) (*models.FoodGroup, error) {
		group, err := s.Vision.AnalyzeMenuPhoto(ctx, imageData, hint)
		if err != nil {
			return nil, err
		}
		stampImageURL(group, imageURL)
		return group, nil
	})
}

// AnalyzeRecipePhoto runs AI analysis of a photographed recipe on the photo channel.
func (s *MealService) AnalyzeRecipePhoto(ctx context.Context, session *MealSession, imageData []byte, hint string) {
	imageURL := s.uploadPhoto(ctx, session.UserID, imageData)
	s.runSearch(ctx, session, search.ChannelPhoto, func(ctx context.Context) (*models.FoodGroup, error) {
		group, err := s.Vision.AnalyzeRecipePhoto(ctx, imageData, hint)
		if err != nil {
			return nil, err
		}
		stampImageURL(group, imageURL)
		return group, nil
	})
}

// AnalyzeText runs AI analysis of a free-text food description on the text
// channel. When the primary provider is out of quota or rate limited, the
// fallback provider takes over within the same search.
func (s *MealService) AnalyzeText(ctx context.Context, session *MealSession, text string) {
	s.runSearch(ctx, session, search.ChannelText, func(ctx context.Context) (*models.FoodGroup, error) {
		group, err := s.Text.AnalyzeFoodText(ctx, text)
		if err == nil || s.FallbackText == nil {
			return group, err
		}

		classified := search.Classify(err)
		if classified == nil || classified.Kind == search.KindTransient {
			return nil, err
		}

		logger.Get().Warn("primary text provider unavailable, using fallback",
			zap.String("session_id", session.ID),
			zap.String("kind", string(classified.Kind)),
		)
		return s.FallbackText.AnalyzeFoodText(ctx, text)
	})
}

// ScanBarcode looks up a packaged product on the barcode channel.
func (s *MealService) ScanBarcode(ctx context.Context, session *MealSession, barcode string) {
	s.runSearch(ctx, session, search.ChannelBarcode, func(ctx context.Context) (*models.FoodGroup, error) {
		return s.Barcode.LookupBarcode(ctx, barcode)
	})
}

// SearchFoodDatabase runs a generic food-name search on the database channel.
func (s *MealService) SearchFoodDatabase(ctx context.Context, session *MealSession, query string) {
	s.runSearch(ctx, session, search.ChannelDatabase, func(ctx context.Context) (*models.FoodGroup, error) {
		return s.FoodSearch.SearchFoods(ctx, query, savedFoodSearchLimit)
	})
}

// LoadSavedFoods loads the user's saved foods (optionally favorites only)
// into the draft via the database channel.
func (s *MealService) LoadSavedFoods(ctx context.Context, session *MealSession, favoritesOnly bool) {
	userID := session.UserID
	s.runSearch(ctx, session, search.ChannelDatabase, func(ctx context.Context) (*models.FoodGroup, error) {
		var (
			foods []models.SavedFood
			err   error
		)
		if favoritesOnly {
			foods, err = s.SavedFoodRepo.ListFavoritesByUser(userID)
		} else {
			foods, err = s.SavedFoodRepo.ListByUser(userID)
		}
		if err != nil {
			return nil, err
		}

		group := &models.FoodGroup{
			ID:     uuid.NewString(),
			Source: models.SourceDatabase,
			Items:  make([]models.FoodItem, 0, len(foods)),
		}
		for i := range foods {
			group.Items = append(group.Items, foods[i].ToFoodItem())
		}
		return group, nil
	})
}

// RetrySearch replays the last search run on the channel after the retry
// backoff. It fails when the channel never ran a search.
func (s *MealService) RetrySearch(ctx context.Context, session *MealSession, ch search.Channel) error {
	fn, ok := session.lastSearch(ch)
	if !ok {
		return fmt.Errorf("no search to retry on channel %q", ch)
	}
	session.Orch.Retry(context.WithoutCancel(ctx), ch, fn)
	return nil
}

// CancelSearch cancels the in-flight search on the channel, if any.
func (s *MealService) CancelSearch(session *MealSession, ch search.Channel) {
	session.Orch.Cancel(ch)
}

// AddManualItem adds a single hand-entered food to the draft as its own
// group. The name goes through the same profanity filter as usernames since
// manual names end up persisted on saved foods and meal logs.
func (s *MealService) AddManualItem(session *MealSession, name, basis string, values models.NutritionValues, portionGrams, servingsMultiplier *float64) (*models.FoodItem, error) {
	if name == "" {
		return nil, errors.New("food name is required")
	}
	if goaway.IsProfane(name) {
		return nil, errors.New("food name contains inappropriate language")
	}

	var nutritionBasis models.NutritionBasis
	switch basis {
	case models.BasisPerServing:
		nutritionBasis = models.PerServing{Values: values}
	case models.BasisPer100, "":
		nutritionBasis = models.Per100{Values: values}
	default:
		return nil, fmt.Errorf("unknown nutrition basis %q", basis)
	}

	item := models.FoodItem{
		ID:                 uuid.NewString(),
		Name:               name,
		Nutrition:          nutritionBasis,
		PortionGrams:       portionGrams,
		ServingsMultiplier: servingsMultiplier,
		Source:             models.SourceManual,
	}
	group := models.FoodGroup{
		ID:     uuid.NewString(),
		Source: models.SourceManual,
		Items:  []models.FoodItem{item},
	}

	session.Draft.AddGroup(group)

	added, _ := session.Draft.Item(group.ID, item.ID)
	return &added, nil
}

// findItem resolves a group/item id pair against the session draft.
func findItem(session *MealSession, groupID, itemID string) (models.FoodItem, error) {
	item, ok := session.Draft.Item(groupID, itemID)
	if !ok {
		return models.FoodItem{}, repository.NewNotFoundError("food item not found")
	}
	return item, nil
}

// UpdatePortion sets a portion override on an item.
func (s *MealService) UpdatePortion(session *MealSession, groupID, itemID string, portion float64) error {
	if portion <= 0 {
		return errors.New("portion must be positive")
	}
	item, err := findItem(session, groupID, itemID)
	if err != nil {
		return err
	}
	session.Draft.UpdatePortion(item, portion)
	return nil
}

// ResetPortion removes the portion override from an item.
func (s *MealService) ResetPortion(session *MealSession, groupID, itemID string) error {
	item, err := findItem(session, groupID, itemID)
	if err != nil {
		return err
	}
	session.Draft.ResetPortion(item)
	return nil
}

// DeleteItem soft-deletes an item; UndeleteItem restores it.
func (s *MealService) DeleteItem(session *MealSession, groupID, itemID string) error {
	item, err := findItem(session, groupID, itemID)
	if err != nil {
		return err
	}
	session.Draft.DeleteItem(item)
	return nil
}

// UndeleteItem restores a soft-deleted item.
func (s *MealService) UndeleteItem(session *MealSession, groupID, itemID string) error {
	item, err := findItem(session, groupID, itemID)
	if err != nil {
		return err
	}
	session.Draft.UndeleteItem(item)
	return nil
}

// HardDeleteItem permanently removes an item from the draft. When the item is
// a database-backed saved food, the saved row is removed too.
func (s *MealService) HardDeleteItem(session *MealSession, groupID, itemID string) error {
	item, err := findItem(session, groupID, itemID)
	if err != nil {
		return err
	}

	session.Draft.HardDeleteItem(item)

	if item.Source == models.SourceDatabase {
		if err := s.SavedFoodRepo.DeleteByUID(item.ID); err != nil {
			var notFound repository.NotFoundError
			if !errors.As(err, &notFound) {
				return err
			}
		}
	}
	return nil
}

// DeleteSection removes an entire group from the draft.
func (s *MealService) DeleteSection(session *MealSession, groupID string) {
	session.Draft.DeleteSection(groupID)
}

// ToggleSectionCollapsed flips a section's collapsed flag.
func (s *MealService) ToggleSectionCollapsed(session *MealSession, groupID string) {
	session.Draft.ToggleSectionCollapsed(groupID)
}

// ClearDraft snapshots the draft and empties it. The snapshot backs a single
// undo.
func (s *MealService) ClearDraft(session *MealSession) {
	session.Orch.CancelAll()
	session.Draft.Snapshot()
	session.Draft.Clear()
}

// Undo restores the draft from the pending snapshot, if one exists.
func (s *MealService) Undo(session *MealSession) bool {
	return session.Draft.Undo()
}

// ToggleFavorite flips the favorite state of an item. Favoriting an item that
// is not yet a saved food saves it first. Returns the new favorite state.
func (s *MealService) ToggleFavorite(session *MealSession, groupID, itemID string) (bool, error) {
	item, err := findItem(session, groupID, itemID)
	if err != nil {
		return false, err
	}

	saved, err := s.SavedFoodRepo.GetByUID(item.ID)
	if err != nil {
		var notFound repository.NotFoundError
		if !errors.As(err, &notFound) {
			return false, err
		}
		food := savedFoodFromItem(session.UserID, item)
		food.Tags = append(food.Tags, models.TagFavorite)
		if err := s.SavedFoodRepo.Create(food); err != nil {
			return false, err
		}
		return true, nil
	}

	var tags []string
	nowFavorite := !saved.IsFavorite()
	for _, t := range saved.Tags {
		if t != models.TagFavorite {
			tags = append(tags, t)
		}
	}
	if nowFavorite {
		tags = append(tags, models.TagFavorite)
	}
	if err := s.SavedFoodRepo.UpdateTags(item.ID, tags); err != nil {
		return false, err
	}
	return nowFavorite, nil
}

// savedFoodFromItem converts a draft item into a saved-food row.
func savedFoodFromItem(userID uint, item models.FoodItem) *models.SavedFood {
	food := &models.SavedFood{
		UserID:             userID,
		UID:                item.ID,
		Name:               item.Name,
		PortionGrams:       item.PortionGrams,
		ServingsMultiplier: item.ServingsMultiplier,
		Tags:               append([]string(nil), item.Tags...),
		ImageURL:           item.ImageURL,
	}

	switch basis := item.Nutrition.(type) {
	case models.PerServing:
		food.Basis = models.BasisPerServing
		fillNutrients(food, basis.Values)
	case models.Per100:
		food.Basis = models.BasisPer100
		fillNutrients(food, basis.Values)
	}
	return food
}

func fillNutrients(food *models.SavedFood, v models.NutritionValues) {
	food.Calories = v.Calories
	food.Carbs = v.Carbs
	food.Protein = v.Protein
	food.Fat = v.Fat
	food.Fiber = v.Fiber
	food.Sugars = v.Sugars
}

// CommitMeal turns the draft's visible content into a persisted meal log,
// then clears the draft behind a snapshot so the commit can be undone
// locally.
func (s *MealService) CommitMeal(session *MealSession, description string) (*models.MealLog, error) {
	draft := session.Draft
	if !draft.HasVisibleContent() {
		return nil, errors.New("meal draft is empty")
	}

	totals := draft.Totals()
	log := &models.MealLog{
		UserID:        session.UserID,
		LoggedAt:      time.Now(),
		Description:   description,
		TotalCalories: totals.Calories,
		TotalCarbs:    totals.Carbs,
		TotalProtein:  totals.Protein,
		TotalFat:      totals.Fat,
		TotalFiber:    totals.Fiber,
		TotalSugars:   totals.Sugars,
	}

	for _, item := range draft.NonDeletedItems() {
		portion := draft.PortionSize(item)
		resolved := nutrition.Resolve(item.Nutrition, portion)
		log.Entries = append(log.Entries, models.MealLogEntry{
			Name:     item.Name,
			Source:   item.Source,
			Portion:  portion,
			Calories: resolved.Calories,
			Carbs:    resolved.Carbs,
			Protein:  resolved.Protein,
			Fat:      resolved.Fat,
			Fiber:    resolved.Fiber,
			Sugars:   resolved.Sugars,
			ImageURL: item.ImageURL,
		})
	}

	if err := s.MealLogRepo.Create(log); err != nil {
		return nil, err
	}

	logger.Get().Info("meal committed",
		zap.String("session_id", session.ID),
		zap.Uint("user_id", session.UserID),
		zap.Int("entries", len(log.Entries)),
	)

	session.Orch.CancelAll()
	draft.Snapshot()
	draft.Clear()
	return log, nil
}

// GetMealLog returns one of the user's committed meals.
func (s *MealService) GetMealLog(userID, logID uint) (*models.MealLog, error) {
	log, err := s.MealLogRepo.GetByID(logID)
	if err != nil {
		return nil, err
	}
	if log.UserID != userID {
		return nil, repository.NewNotFoundError("meal log not found")
	}
	return log, nil
}

// ListMealLogs returns a page of the user's committed meals, newest first.
func (s *MealService) ListMealLogs(userID uint, page, perPage int) ([]models.MealLog, int64, error) {
	return s.MealLogRepo.ListByUser(userID, page, perPage)
}
