package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/glucobite/glucobite-api/internal/logger"
	"github.com/glucobite/glucobite-api/internal/meal"
	"github.com/glucobite/glucobite-api/internal/models"
	"github.com/glucobite/glucobite-api/internal/nutrition"
	"github.com/glucobite/glucobite-api/internal/search"
	"github.com/glucobite/glucobite-api/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket message types for the meal session protocol.
const (
	MsgTypeConnected       = "connected"        // Connection confirmed
	MsgTypeDraftState      = "draft_state"      // Full draft snapshot: sections + totals
	MsgTypeSearchCompleted = "search_completed" // A search channel delivered a result
	MsgTypeSearchFailed    = "search_failed"    // A search channel failed
	MsgTypeRefresh         = "refresh"          // Client asks for a fresh draft snapshot
	MsgTypeError           = "error"            // Error message
)

// WSMessage is the envelope for all messages sent over the meal WebSocket.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ConnectedPayload confirms a successful connection.
type ConnectedPayload struct {
	SessionID string `json:"session_id"`
	UserID    uint   `json:"user_id"`
}

// DraftStatePayload is the full render state of a meal draft.
type DraftStatePayload struct {
	Sections  []SectionPayload `json:"sections"`
	Totals    nutrition.Totals `json:"totals"`
	CanUndo   bool             `json:"can_undo"`
	ItemCount int              `json:"item_count"`
}

// SectionPayload is one draft section with its collapsed flag.
type SectionPayload struct {
	Group     models.FoodGroup `json:"group"`
	Collapsed bool             `json:"collapsed"`
}

// SearchCompletedPayload announces a committed search result.
type SearchCompletedPayload struct {
	Channel search.Channel   `json:"channel"`
	Group   models.FoodGroup `json:"group"`
}

// SearchFailedPayload announces a failed search with its classification.
type SearchFailedPayload struct {
	Channel   search.Channel   `json:"channel"`
	Kind      search.ErrorKind `json:"kind"`
	Message   string           `json:"message"`
	Retryable bool             `json:"retryable"`
}

// ErrorPayload carries an error message to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}

// draftState builds the full render state of a draft.
func draftState(d *meal.Draft) DraftStatePayload {
	groups := d.VisibleSections()
	sections := make([]SectionPayload, 0, len(groups))
	for _, g := range groups {
		sections = append(sections, SectionPayload{
			Group:     g,
			Collapsed: d.IsSectionCollapsed(g.ID),
		})
	}
	return DraftStatePayload{
		Sections:  sections,
		Totals:    d.Totals(),
		CanUndo:   d.CanUndo(),
		ItemCount: d.NonDeletedItemCount(),
	}
}

// envelope marshals a typed payload into a WSMessage frame.
func envelope(msgType string, payload interface{}) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Get().Error("failed to marshal ws payload", zap.String("type", msgType), zap.Error(err))
		return nil
	}
	frame, err := json.Marshal(WSMessage{Type: msgType, Payload: raw})
	if err != nil {
		return nil
	}
	return frame
}

// MealListener bridges orchestrator outcomes onto the session's websocket.
// It must be bound to a session before any search starts.
type MealListener struct {
	hub *Hub

	mu        sync.Mutex
	sessionID string
	draft     *meal.Draft
}

// NewMealListener returns an unbound listener for the hub.
func NewMealListener(hub *Hub) *MealListener {
	return &MealListener{hub: hub}
}

// Bind attaches the listener to a session and its draft.
func (l *MealListener) Bind(sessionID string, draft *meal.Draft) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = sessionID
	l.draft = draft
}

func (l *MealListener) bound() (string, *meal.Draft, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionID, l.draft, l.sessionID != ""
}

// SearchCompleted pushes the committed group plus a fresh draft snapshot.
func (l *MealListener) SearchCompleted(ch search.Channel, group models.FoodGroup) {
	sessionID, draft, ok := l.bound()
	if !ok {
		return
	}
	if frame := envelope(MsgTypeSearchCompleted, SearchCompletedPayload{Channel: ch, Group: group}); frame != nil {
		l.hub.Broadcast <- &SessionMessage{SessionID: sessionID, Message: frame}
	}
	if frame := envelope(MsgTypeDraftState, draftState(draft)); frame != nil {
		l.hub.Broadcast <- &SessionMessage{SessionID: sessionID, Message: frame}
	}
}

// SearchFailed pushes the failure with its classification so the client can
// decide between a retry affordance and an upgrade/quota notice.
func (l *MealListener) SearchFailed(ch search.Channel, cerr *search.ClassifiedError) {
	sessionID, _, ok := l.bound()
	if !ok {
		return
	}
	frame := envelope(MsgTypeSearchFailed, SearchFailedPayload{
		Channel:   ch,
		Kind:      cerr.Kind,
		Message:   cerr.Message,
		Retryable: cerr.Retryable(),
	})
	if frame != nil {
		l.hub.Broadcast <- &SessionMessage{SessionID: sessionID, Message: frame}
	}
}

// MealSocketHandler manages WebSocket connections for live meal sessions.
type MealSocketHandler struct {
	Hub         *Hub
	JwtSecret   string
	MealService *service.MealService
}

// NewMealSocketHandler returns a new MealSocketHandler.
func NewMealSocketHandler(hub *Hub, jwtSecret string, mealService *service.MealService) *MealSocketHandler {
	return &MealSocketHandler{
		Hub:         hub,
		JwtSecret:   jwtSecret,
		MealService: mealService,
	}
}

// upgrader is configured for meal session WebSocket upgrades.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		switch origin {
		case "https://glucobite.app",
			"https://www.glucobite.app",
			"https://api.glucobite.app":
			return true
		}
		// Allow localhost for development
		if strings.HasPrefix(origin, "http://localhost:") || origin == "http://localhost" {
			return true
		}
		return false
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HandleMealSession upgrades an HTTP request to a WebSocket connection for a
// live meal session. Authentication is done via a "token" query parameter
// because WebSocket connections cannot easily use Authorization headers.
func (mh *MealSocketHandler) HandleMealSession(c *gin.Context) {
	log := logger.Get()

	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "session_id is required"})
		return
	}

	// Authenticate via query param token
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "token query parameter is required"})
		return
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(mh.JwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid or expired token"})
		return
	}

	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token type"})
		return
	}

	idFloat, ok := claims["user_id"].(float64)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid user_id in token"})
		return
	}
	userID := uint(idFloat)

	// The session must exist and belong to the authenticated user.
	session, err := mh.MealService.GetSession(sessionID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "meal session not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed",
			zap.String("session_id", sessionID),
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
		return
	}

	client := &Client{
		Hub:       mh.Hub,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		SessionID: sessionID,
		UserID:    userID,
	}
	mh.Hub.Register <- client

	// Send connected confirmation plus the current draft state so a device
	// joining mid-session renders immediately.
	if frame := envelope(MsgTypeConnected, ConnectedPayload{SessionID: sessionID, UserID: userID}); frame != nil {
		client.Send <- frame
	}
	if frame := envelope(MsgTypeDraftState, draftState(session.Draft)); frame != nil {
		client.Send <- frame
	}

	log.Info("meal socket attached",
		zap.String("session_id", sessionID),
		zap.Uint("user_id", userID),
	)

	go client.WritePump()
	go client.ReadPump(func(cl *Client, data []byte) {
		mh.handleMessage(cl, session, data)
	})
}

// handleMessage parses an incoming WebSocket message and routes it.
func (mh *MealSocketHandler) handleMessage(client *Client, session *service.MealSession, data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		mh.sendError(client, "invalid message format")
		return
	}

	switch msg.Type {
	case MsgTypeRefresh:
		if frame := envelope(MsgTypeDraftState, draftState(session.Draft)); frame != nil {
			client.Send <- frame
		}

	default:
		mh.sendError(client, "unknown message type: "+msg.Type)
	}
}

// sendError delivers an error frame to a single client.
func (mh *MealSocketHandler) sendError(client *Client, message string) {
	if frame := envelope(MsgTypeError, ErrorPayload{Message: message}); frame != nil {
		client.Send <- frame
	}
}
