package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/glucobite/glucobite-api/internal/logger"
	"github.com/glucobite/glucobite-api/internal/models"
	"github.com/glucobite/glucobite-api/internal/repository"
	"github.com/glucobite/glucobite-api/internal/search"
	"github.com/glucobite/glucobite-api/internal/service"
	"github.com/glucobite/glucobite-api/internal/util"
	"github.com/glucobite/glucobite-api/internal/ws"
	"go.uber.org/zap"
)

// MealHandler is the handler for meal-session requests.
type MealHandler struct {
	Service *service.MealService
	Hub     *ws.Hub
}

// NewMealHandler is the constructor function for initializing a new MealHandler.
func NewMealHandler(mealService *service.MealService, hub *ws.Hub) *MealHandler {
	return &MealHandler{Service: mealService, Hub: hub}
}

// allowedImageTypes is the set of accepted image file extensions.
var allowedImageTypes = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// session resolves the authenticated user's session from the URL, writing the
// error response itself on failure.
func (h *MealHandler) session(c *gin.Context) (*service.MealSession, bool) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}

	session, err := h.Service.GetSession(c.Param("session_id"), user.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meal session not found"})
		return nil, false
	}
	return session, true
}

// StartSession opens a new meal-assembly session.
func (h *MealHandler) StartSession(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	listener := ws.NewMealListener(h.Hub)
	session := h.Service.StartSession(user.ID, listener)
	listener.Bind(session.ID, session.Draft)

	c.JSON(http.StatusOK, gin.H{"session_id": session.ID})
}

// EndSession cancels searches and drops the session.
func (h *MealHandler) EndSession(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.Service.EndSession(c.Param("session_id"), user.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meal session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session ended"})
}

// GetDraft returns the session's current sections, totals, and undo state.
func (h *MealHandler) GetDraft(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	draft := session.Draft
	groups := draft.VisibleSections()
	sections := make([]gin.H, 0, len(groups))
	for _, g := range groups {
		sections = append(sections, gin.H{
			"group":     g,
			"collapsed": draft.IsSectionCollapsed(g.ID),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sections":   sections,
		"totals":     draft.Totals(),
		"can_undo":   draft.CanUndo(),
		"item_count": draft.NonDeletedItemCount(),
	})
}

// readImage extracts and validates the uploaded image file.
func readImage(c *gin.Context) ([]byte, bool) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required"})
		return nil, false
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageTypes[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported image type. Allowed: jpg, png, webp"})
		return nil, false
	}

	const maxSize = 10 << 20
	if header.Size > maxSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image exceeds maximum size of 10MB"})
		return nil, false
	}

	imgBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read image"})
		return nil, false
	}
	return imgBytes, true
}

// AnalyzePhoto starts AI analysis of an uploaded photo. The "kind" form field
// selects between a plate photo, a menu, and a recipe.
func (h *MealHandler) AnalyzePhoto(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	imgBytes, ok := readImage(c)
	if !ok {
		return
	}
	hint := c.PostForm("hint")

	switch kind := c.PostForm("kind"); kind {
	case "", "meal":
		h.Service.AnalyzePhoto(c.Request.Context(), session, imgBytes, hint)
	case "menu":
		h.Service.AnalyzeMenuPhoto(c.Request.Context(), session, imgBytes, hint)
	case "recipe":
		h.Service.AnalyzeRecipePhoto(c.Request.Context(), session, imgBytes, hint)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be one of: meal, menu, recipe"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Photo analysis started"})
}

// AnalyzeText starts AI analysis of a free-text food description.
func (h *MealHandler) AnalyzeText(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var request struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	h.Service.AnalyzeText(c.Request.Context(), session, request.Text)
	c.JSON(http.StatusAccepted, gin.H{"message": "Text analysis started"})
}

// ScanBarcode starts a barcode lookup.
func (h *MealHandler) ScanBarcode(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var request struct {
		Barcode string `json:"barcode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "barcode is required"})
		return
	}

	h.Service.ScanBarcode(c.Request.Context(), session, request.Barcode)
	c.JSON(http.StatusAccepted, gin.H{"message": "Barcode lookup started"})
}

// SearchDatabase starts a generic food-name search.
func (h *MealHandler) SearchDatabase(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var request struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	h.Service.SearchFoodDatabase(c.Request.Context(), session, request.Query)
	c.JSON(http.StatusAccepted, gin.H{"message": "Food search started"})
}

// LoadSavedFoods loads the user's saved foods into the draft.
func (h *MealHandler) LoadSavedFoods(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	favoritesOnly := c.Query("favorites") == "true"
	h.Service.LoadSavedFoods(c.Request.Context(), session, favoritesOnly)
	c.JSON(http.StatusAccepted, gin.H{"message": "Saved foods loading"})
}

// RetrySearch replays the last search on a channel.
func (h *MealHandler) RetrySearch(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var request struct {
		Channel string `json:"channel" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel is required"})
		return
	}

	if err := h.Service.RetrySearch(c.Request.Context(), session, search.Channel(request.Channel)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Retry scheduled"})
}

// CancelSearch cancels the in-flight search on a channel.
func (h *MealHandler) CancelSearch(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var request struct {
		Channel string `json:"channel" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel is required"})
		return
	}

	h.Service.CancelSearch(session, search.Channel(request.Channel))
	c.JSON(http.StatusOK, gin.H{"message": "Search cancelled"})
}

// AddManualItem adds a hand-entered food to the draft.
func (h *MealHandler) AddManualItem(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var request struct {
		Name               string                 `json:"name" binding:"required"`
		Basis              string                 `json:"basis"`
		Nutrition          models.NutritionValues `json:"nutrition"`
		PortionGrams       *float64               `json:"portion_grams"`
		ServingsMultiplier *float64               `json:"servings_multiplier"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	item, err := h.Service.AddManualItem(session, request.Name, request.Basis, request.Nutrition, request.PortionGrams, request.ServingsMultiplier)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// itemError writes the appropriate response for a draft item operation error.
func itemError(c *gin.Context, err error) {
	switch e := err.(type) {
	case repository.NotFoundError:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": e.Error()})
	}
}

// UpdatePortion sets an item's portion override.
func (h *MealHandler) UpdatePortion(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var request struct {
		Portion float64 `json:"portion" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "portion is required"})
		return
	}

	if err := h.Service.UpdatePortion(session, c.Param("group_id"), c.Param("item_id"), request.Portion); err != nil {
		itemError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totals": session.Draft.Totals()})
}

// ResetPortion removes an item's portion override.
func (h *MealHandler) ResetPortion(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	if err := h.Service.ResetPortion(session, c.Param("group_id"), c.Param("item_id")); err != nil {
		itemError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totals": session.Draft.Totals()})
}

// DeleteItem soft-deletes an item; with ?hard=true the removal is permanent.
func (h *MealHandler) DeleteItem(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	groupID, itemID := c.Param("group_id"), c.Param("item_id")
	var err error
	if c.Query("hard") == "true" {
		err = h.Service.HardDeleteItem(session, groupID, itemID)
	} else {
		err = h.Service.DeleteItem(session, groupID, itemID)
	}
	if err != nil {
		itemError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totals": session.Draft.Totals()})
}

// RestoreItem undoes a soft delete.
func (h *MealHandler) RestoreItem(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	if err := h.Service.UndeleteItem(session, c.Param("group_id"), c.Param("item_id")); err != nil {
		itemError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totals": session.Draft.Totals()})
}

// ToggleFavorite flips an item's favorite state.
func (h *MealHandler) ToggleFavorite(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	favorite, err := h.Service.ToggleFavorite(session, c.Param("group_id"), c.Param("item_id"))
	if err != nil {
		itemError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorite": favorite})
}

// DeleteSection removes an entire group from the draft.
func (h *MealHandler) DeleteSection(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	h.Service.DeleteSection(session, c.Param("group_id"))
	c.JSON(http.StatusOK, gin.H{"totals": session.Draft.Totals()})
}

// ToggleCollapsed flips a section's collapsed flag.
func (h *MealHandler) ToggleCollapsed(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	groupID := c.Param("group_id")
	h.Service.ToggleSectionCollapsed(session, groupID)
	c.JSON(http.StatusOK, gin.H{"collapsed": session.Draft.IsSectionCollapsed(groupID)})
}

// ClearDraft empties the draft behind an undo snapshot.
func (h *MealHandler) ClearDraft(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	h.Service.ClearDraft(session)
	c.JSON(http.StatusOK, gin.H{"message": "Draft cleared", "can_undo": session.Draft.CanUndo()})
}

// Undo restores the draft from the pending snapshot.
func (h *MealHandler) Undo(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	if !h.Service.Undo(session) {
		c.JSON(http.StatusConflict, gin.H{"error": "Nothing to undo"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totals": session.Draft.Totals()})
}

// CommitMeal logs the draft as a meal.
func (h *MealHandler) CommitMeal(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var request struct {
		Description string `json:"description"`
	}
	// Body is optional; ignore bind errors for an empty body.
	_ = c.ShouldBindJSON(&request)

	log, err := h.Service.CommitMeal(session, request.Description)
	if err != nil {
		logger.Get().Error("failed to commit meal",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meal_log_id": log.ID, "message": "Meal logged"})
}

// GetMealLog fetches one committed meal.
func (h *MealHandler) GetMealLog(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logID, err := parseUintParam(c.Param("log_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid meal log ID"})
		return
	}

	log, err := h.Service.GetMealLog(user.ID, logID)
	if err != nil {
		switch e := err.(type) {
		case repository.NotFoundError:
			c.JSON(http.StatusNotFound, gin.H{"error": e.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": e.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"meal_log": log})
}

// ListMealLogs returns a page of the user's committed meals.
func (h *MealHandler) ListMealLogs(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	page, _ := parseUintParam(c.DefaultQuery("page", "1"))
	perPage, _ := parseUintParam(c.DefaultQuery("per_page", "20"))

	logs, total, err := h.Service.ListMealLogs(user.ID, int(page), int(perPage))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meal_logs": logs, "total": total})
}
