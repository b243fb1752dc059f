package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/glucobite/glucobite-api/internal/config"
	"github.com/glucobite/glucobite-api/internal/meal"
	"github.com/glucobite/glucobite-api/internal/search"
	"github.com/glucobite/glucobite-api/internal/service"
	"github.com/glucobite/glucobite-api/internal/testutil"
)

// newTestClient creates a Client with a buffered Send channel and no real
// websocket.Conn. This works because the listener and handler methods write
// to client.Send rather than Conn directly.
func newTestClient(hub *Hub, sessionID string, userID uint) *Client {
	return &Client{
		Hub:       hub,
		Send:      make(chan []byte, 256),
		SessionID: sessionID,
		UserID:    userID,
	}
}

// recvFrame reads one frame from the client with a timeout.
func recvFrame(t *testing.T, client *Client) WSMessage {
	t.Helper()
	select {
	case data := <-client.Send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid frame: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return WSMessage{}
	}
}

func registerTestClient(t *testing.T, hub *Hub, sessionID string) *Client {
	t.Helper()
	client := newTestClient(hub, sessionID, 1)
	hub.Register <- client
	// Wait until the hub has processed the registration.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		_, ok := hub.Sessions[sessionID][client]
		hub.mu.RUnlock()
		if ok {
			return client
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("client never registered")
	return nil
}

func TestMealListenerSearchCompleted(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	draft := meal.NewDraft()
	listener := NewMealListener(hub)
	listener.Bind("session-1", draft)

	client := registerTestClient(t, hub, "session-1")

	group := testutil.FruitGroup()
	draft.AddGroup(group)
	listener.SearchCompleted(search.ChannelText, group)

	msg := recvFrame(t, client)
	if msg.Type != MsgTypeSearchCompleted {
		t.Fatalf("first frame type = %q, want search_completed", msg.Type)
	}
	var completed SearchCompletedPayload
	if err := json.Unmarshal(msg.Payload, &completed); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if completed.Channel != search.ChannelText {
		t.Errorf("Channel = %q", completed.Channel)
	}
	if len(completed.Group.Items) != 2 {
		t.Errorf("items = %d, want 2", len(completed.Group.Items))
	}

	msg = recvFrame(t, client)
	if msg.Type != MsgTypeDraftState {
		t.Fatalf("second frame type = %q, want draft_state", msg.Type)
	}
	var state DraftStatePayload
	if err := json.Unmarshal(msg.Payload, &state); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if state.Totals.Carbs != 37 {
		t.Errorf("Carbs = %v, want 37", state.Totals.Carbs)
	}
	if state.ItemCount != 2 {
		t.Errorf("ItemCount = %d, want 2", state.ItemCount)
	}
}

func TestMealListenerSearchFailed(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	listener := NewMealListener(hub)
	listener.Bind("session-2", meal.NewDraft())

	client := registerTestClient(t, hub, "session-2")

	listener.SearchFailed(search.ChannelBarcode, &search.ClassifiedError{
		Kind:    search.KindRateLimited,
		Message: "too many requests",
	})

	msg := recvFrame(t, client)
	if msg.Type != MsgTypeSearchFailed {
		t.Fatalf("frame type = %q, want search_failed", msg.Type)
	}
	var failed SearchFailedPayload
	if err := json.Unmarshal(msg.Payload, &failed); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if failed.Kind != search.KindRateLimited {
		t.Errorf("Kind = %q", failed.Kind)
	}
	if !failed.Retryable {
		t.Error("rate-limited failures should be retryable")
	}
}

func TestMealListenerUnboundIsNoop(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	listener := NewMealListener(hub)
	// Must not panic or block.
	listener.SearchCompleted(search.ChannelText, testutil.FruitGroup())
	listener.SearchFailed(search.ChannelText, &search.ClassifiedError{Kind: search.KindTransient})
}

func TestHandleMessageRefresh(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	svc := service.NewMealService(&config.Config{},
		testutil.NewMockSavedFoodRepo(),
		testutil.NewMockMealLogRepo(),
		nil, nil, nil, nil, nil,
	)
	session := svc.StartSession(1, nil)
	session.Draft.AddGroup(testutil.FruitGroup())

	mh := NewMealSocketHandler(hub, "test-secret", svc)
	client := newTestClient(hub, session.ID, 1)

	mh.handleMessage(client, session, []byte(`{"type":"refresh"}`))

	msg := recvFrame(t, client)
	if msg.Type != MsgTypeDraftState {
		t.Fatalf("frame type = %q, want draft_state", msg.Type)
	}
	var state DraftStatePayload
	if err := json.Unmarshal(msg.Payload, &state); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(state.Sections) != 1 {
		t.Errorf("sections = %d, want 1", len(state.Sections))
	}
}

func TestHandleMessageUnknownType(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	svc := service.NewMealService(&config.Config{},
		testutil.NewMockSavedFoodRepo(),
		testutil.NewMockMealLogRepo(),
		nil, nil, nil, nil, nil,
	)
	session := svc.StartSession(1, nil)

	mh := NewMealSocketHandler(hub, "test-secret", svc)
	client := newTestClient(hub, session.ID, 1)

	mh.handleMessage(client, session, []byte(`{"type":"bogus"}`))

	msg := recvFrame(t, client)
	if msg.Type != MsgTypeError {
		t.Fatalf("frame type = %q, want error", msg.Type)
	}
}
