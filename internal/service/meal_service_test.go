package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glucobite/glucobite-api/internal/config"
	"github.com/glucobite/glucobite-api/internal/models"
	"github.com/glucobite/glucobite-api/internal/search"
	"github.com/glucobite/glucobite-api/internal/testutil"
)

// waitListener records orchestrator outcomes and signals each one.
type waitListener struct {
	mu        sync.Mutex
	completed []models.FoodGroup
	failed    []*search.ClassifiedError
	done      chan struct{}
}

func newWaitListener() *waitListener {
	return &waitListener{done: make(chan struct{}, 16)}
}

func (l *waitListener) SearchCompleted(ch search.Channel, group models.FoodGroup) {
	l.mu.Lock()
	l.completed = append(l.completed, group)
	l.mu.Unlock()
	l.done <- struct{}{}
}

func (l *waitListener) SearchFailed(ch search.Channel, cerr *search.ClassifiedError) {
	l.mu.Lock()
	l.failed = append(l.failed, cerr)
	l.mu.Unlock()
	l.done <- struct{}{}
}

func (l *waitListener) wait(t *testing.T) {
	t.Helper()
	select {
	case <-l.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for search outcome")
	}
}

type mealFixture struct {
	svc      *MealService
	session  *MealSession
	listener *waitListener
	saved    *testutil.MockSavedFoodRepo
	logs     *testutil.MockMealLogRepo
	vision   *testutil.MockVisionProvider
	text     *testutil.MockTextProvider
	fallback *testutil.MockTextProvider
	barcode  *testutil.MockBarcodeClient
}

func newMealFixture(t *testing.T) *mealFixture {
	t.Helper()
	f := &mealFixture{
		saved:    testutil.NewMockSavedFoodRepo(),
		logs:     testutil.NewMockMealLogRepo(),
		vision:   &testutil.MockVisionProvider{},
		text:     &testutil.MockTextProvider{},
		fallback: &testutil.MockTextProvider{},
		barcode:  &testutil.MockBarcodeClient{},
		listener: newWaitListener(),
	}
	f.svc = NewMealService(
		&config.Config{},
		f.saved,
		f.logs,
		f.vision,
		f.text,
		f.fallback,
		f.barcode,
		&testutil.MockFoodSearchClient{},
	)
	f.session = f.svc.StartSession(1, f.listener)
	return f
}

// addFruit puts the apple+banana group into the session draft synchronously.
func (f *mealFixture) addFruit(t *testing.T) {
	t.Helper()
	f.text.AnalyzeFoodTextFunc = func(ctx context.Context, text string) (*models.FoodGroup, error) {
		g := testutil.FruitGroup()
		return &g, nil
	}
	f.svc.AnalyzeText(context.Background(), f.session, "apple and banana")
	f.listener.wait(t)
}

func TestSessionLifecycle(t *testing.T) {
	f := newMealFixture(t)

	got, err := f.svc.GetSession(f.session.ID, 1)
	if err != nil {
		t.Fatalf("GetSession error: %v", err)
	}
	if got.ID != f.session.ID {
		t.Errorf("session ID = %q", got.ID)
	}

	// Another user must not see the session.
	if _, err := f.svc.GetSession(f.session.ID, 2); err == nil {
		t.Error("GetSession should fail for a different user")
	}

	if err := f.svc.EndSession(f.session.ID, 1); err != nil {
		t.Fatalf("EndSession error: %v", err)
	}
	if _, err := f.svc.GetSession(f.session.ID, 1); err == nil {
		t.Error("GetSession should fail after EndSession")
	}
}

func TestAnalyzeTextCommitsResult(t *testing.T) {
	f := newMealFixture(t)
	f.addFruit(t)

	totals := f.session.Draft.Totals()
	if totals.Carbs != 37 {
		t.Errorf("Carbs = %v, want 37", totals.Carbs)
	}
	if f.session.Draft.NonDeletedItemCount() != 2 {
		t.Errorf("item count = %d, want 2", f.session.Draft.NonDeletedItemCount())
	}
}

func TestAnalyzeTextFallsBackOnQuota(t *testing.T) {
	f := newMealFixture(t)

	f.text.AnalyzeFoodTextFunc = func(ctx context.Context, text string) (*models.FoodGroup, error) {
		return nil, errors.New("insufficient quota for this request")
	}
	f.fallback.AnalyzeFoodTextFunc = func(ctx context.Context, text string) (*models.FoodGroup, error) {
		g := testutil.FruitGroup()
		return &g, nil
	}

	f.svc.AnalyzeText(context.Background(), f.session, "apple and banana")
	f.listener.wait(t)

	if len(f.listener.failed) != 0 {
		t.Fatalf("search failed: %v", f.listener.failed[0])
	}
	if f.session.Draft.NonDeletedItemCount() != 2 {
		t.Errorf("fallback result should be committed, item count = %d", f.session.Draft.NonDeletedItemCount())
	}
}

func TestAnalyzeTextTransientErrorDoesNotFallBack(t *testing.T) {
	f := newMealFixture(t)

	f.text.AnalyzeFoodTextFunc = func(ctx context.Context, text string) (*models.FoodGroup, error) {
		return nil, errors.New("connection reset")
	}
	fallbackCalled := false
	f.fallback.AnalyzeFoodTextFunc = func(ctx context.Context, text string) (*models.FoodGroup, error) {
		fallbackCalled = true
		g := testutil.FruitGroup()
		return &g, nil
	}

	f.svc.AnalyzeText(context.Background(), f.session, "apple")
	f.listener.wait(t)

	if fallbackCalled {
		t.Error("transient errors should not trigger the fallback provider")
	}
	if len(f.listener.failed) != 1 {
		t.Fatalf("failed = %d, want 1", len(f.listener.failed))
	}
	if f.listener.failed[0].Kind != search.KindTransient {
		t.Errorf("Kind = %q, want transient", f.listener.failed[0].Kind)
	}
}

func TestScanBarcode(t *testing.T) {
	f := newMealFixture(t)

	f.barcode.LookupBarcodeFunc = func(ctx context.Context, barcode string) (*models.FoodGroup, error) {
		return &models.FoodGroup{
			ID:     "group-barcode",
			Source: models.SourceBarcode,
			Items: []models.FoodItem{{
				ID:        "item-bar",
				Name:      "Granola Bar",
				Nutrition: models.PerServing{Values: models.NutritionValues{Carbs: testutil.F(18)}},
				Source:    models.SourceBarcode,
			}},
		}, nil
	}

	f.svc.ScanBarcode(context.Background(), f.session, "0123456789012")
	f.listener.wait(t)

	totals := f.session.Draft.Totals()
	if totals.Carbs != 18 {
		t.Errorf("Carbs = %v, want 18", totals.Carbs)
	}
}

func TestLoadSavedFoods(t *testing.T) {
	f := newMealFixture(t)

	if err := f.saved.Create(testutil.TestSavedFood()); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	f.svc.LoadSavedFoods(context.Background(), f.session, true)
	f.listener.wait(t)

	items := f.session.Draft.NonDeletedItems()
	if len(items) != 1 {
		t.Fatalf("item count = %d, want 1", len(items))
	}
	if items[0].Source != models.SourceDatabase {
		t.Errorf("Source = %q, want database", items[0].Source)
	}
	if items[0].Name != "Overnight Oats" {
		t.Errorf("Name = %q", items[0].Name)
	}
}

func TestAddManualItem(t *testing.T) {
	f := newMealFixture(t)

	item, err := f.svc.AddManualItem(f.session, "Oat Milk", models.BasisPer100,
		models.NutritionValues{Carbs: testutil.F(6.6)}, nil, nil)
	if err != nil {
		t.Fatalf("AddManualItem error: %v", err)
	}
	if item.Source != models.SourceManual {
		t.Errorf("Source = %q, want manual", item.Source)
	}
	if item.GroupID == "" {
		t.Error("GroupID should be stamped")
	}

	// Default per-100 portion is 100 g.
	totals := f.session.Draft.Totals()
	if totals.Carbs != 6.6 {
		t.Errorf("Carbs = %v, want 6.6", totals.Carbs)
	}

	if _, err := f.svc.AddManualItem(f.session, "", models.BasisPer100, models.NutritionValues{}, nil, nil); err == nil {
		t.Error("empty name should be rejected")
	}
	if _, err := f.svc.AddManualItem(f.session, "Toast", "per_ounce", models.NutritionValues{}, nil, nil); err == nil {
		t.Error("unknown basis should be rejected")
	}
}

func TestUpdatePortion(t *testing.T) {
	f := newMealFixture(t)
	f.addFruit(t)

	if err := f.svc.UpdatePortion(f.session, "group-fruit", "item-banana", 50); err != nil {
		t.Fatalf("UpdatePortion error: %v", err)
	}
	totals := f.session.Draft.Totals()
	if totals.Carbs != 25.5 {
		t.Errorf("Carbs = %v, want 25.5", totals.Carbs)
	}

	if err := f.svc.UpdatePortion(f.session, "group-fruit", "item-banana", 0); err == nil {
		t.Error("zero portion should be rejected")
	}
	if err := f.svc.UpdatePortion(f.session, "group-fruit", "no-such-item", 50); err == nil {
		t.Error("unknown item should be rejected")
	}

	if err := f.svc.ResetPortion(f.session, "group-fruit", "item-banana"); err != nil {
		t.Fatalf("ResetPortion error: %v", err)
	}
	if got := f.session.Draft.Totals().Carbs; got != 37 {
		t.Errorf("Carbs after reset = %v, want 37", got)
	}
}

func TestDeleteUndeleteItem(t *testing.T) {
	f := newMealFixture(t)
	f.addFruit(t)

	if err := f.svc.DeleteItem(f.session, "group-fruit", "item-apple"); err != nil {
		t.Fatalf("DeleteItem error: %v", err)
	}
	if got := f.session.Draft.Totals().Carbs; got != 23 {
		t.Errorf("Carbs = %v, want 23", got)
	}

	if err := f.svc.UndeleteItem(f.session, "group-fruit", "item-apple"); err != nil {
		t.Fatalf("UndeleteItem error: %v", err)
	}
	if got := f.session.Draft.Totals().Carbs; got != 37 {
		t.Errorf("Carbs = %v, want 37", got)
	}
}

func TestHardDeleteDatabaseItemRemovesSavedRow(t *testing.T) {
	f := newMealFixture(t)

	if err := f.saved.Create(testutil.TestSavedFood()); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	f.svc.LoadSavedFoods(context.Background(), f.session, false)
	f.listener.wait(t)

	items := f.session.Draft.NonDeletedItems()
	if len(items) != 1 {
		t.Fatalf("item count = %d, want 1", len(items))
	}

	if err := f.svc.HardDeleteItem(f.session, items[0].GroupID, items[0].ID); err != nil {
		t.Fatalf("HardDeleteItem error: %v", err)
	}
	if f.session.Draft.NonDeletedItemCount() != 0 {
		t.Error("item should be gone from the draft")
	}
	if _, err := f.saved.GetByUID("saved-oatmeal"); err == nil {
		t.Error("saved row should be deleted too")
	}
}

func TestToggleFavorite(t *testing.T) {
	f := newMealFixture(t)
	f.addFruit(t)

	// First toggle saves the item as a favorite.
	fav, err := f.svc.ToggleFavorite(f.session, "group-fruit", "item-apple")
	if err != nil {
		t.Fatalf("ToggleFavorite error: %v", err)
	}
	if !fav {
		t.Error("first toggle should favorite the item")
	}
	saved, err := f.saved.GetByUID("item-apple")
	if err != nil {
		t.Fatalf("GetByUID error: %v", err)
	}
	if !saved.IsFavorite() {
		t.Error("saved row should carry the favorite tag")
	}
	if saved.Basis != models.BasisPer100 {
		t.Errorf("Basis = %q, want per_100", saved.Basis)
	}

	// Second toggle unfavorites but keeps the saved row.
	fav, err = f.svc.ToggleFavorite(f.session, "group-fruit", "item-apple")
	if err != nil {
		t.Fatalf("ToggleFavorite error: %v", err)
	}
	if fav {
		t.Error("second toggle should unfavorite the item")
	}
	saved, err = f.saved.GetByUID("item-apple")
	if err != nil {
		t.Fatalf("GetByUID error: %v", err)
	}
	if saved.IsFavorite() {
		t.Error("favorite tag should be removed")
	}
}

func TestCommitMeal(t *testing.T) {
	f := newMealFixture(t)
	f.addFruit(t)

	if err := f.svc.UpdatePortion(f.session, "group-fruit", "item-banana", 50); err != nil {
		t.Fatalf("UpdatePortion error: %v", err)
	}

	log, err := f.svc.CommitMeal(f.session, "lunch")
	if err != nil {
		t.Fatalf("CommitMeal error: %v", err)
	}
	if log.TotalCarbs != 25.5 {
		t.Errorf("TotalCarbs = %v, want 25.5", log.TotalCarbs)
	}
	if len(log.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(log.Entries))
	}

	var banana *models.MealLogEntry
	for i := range log.Entries {
		if log.Entries[i].Name == "Banana" {
			banana = &log.Entries[i]
		}
	}
	if banana == nil {
		t.Fatal("banana entry missing")
	}
	if banana.Portion != 50 {
		t.Errorf("Portion = %v, want 50", banana.Portion)
	}
	if banana.Carbs == nil || *banana.Carbs != 11.5 {
		t.Errorf("Carbs = %v, want 11.5", banana.Carbs)
	}

	// Draft is cleared behind a snapshot; undo brings the meal back with the
	// portion override intact.
	if f.session.Draft.HasVisibleContent() {
		t.Error("draft should be empty after commit")
	}
	if !f.svc.Undo(f.session) {
		t.Fatal("Undo should succeed after commit")
	}
	if got := f.session.Draft.Totals().Carbs; got != 25.5 {
		t.Errorf("Carbs after undo = %v, want 25.5", got)
	}
}

func TestCommitMealEmptyDraft(t *testing.T) {
	f := newMealFixture(t)
	if _, err := f.svc.CommitMeal(f.session, "nothing"); err == nil {
		t.Error("committing an empty draft should fail")
	}
}

func TestClearDraftUndo(t *testing.T) {
	f := newMealFixture(t)
	f.addFruit(t)

	f.svc.ClearDraft(f.session)
	if f.session.Draft.HasVisibleContent() {
		t.Error("draft should be empty after clear")
	}
	if !f.svc.Undo(f.session) {
		t.Fatal("Undo should succeed after clear")
	}
	if got := f.session.Draft.Totals().Carbs; got != 37 {
		t.Errorf("Carbs after undo = %v, want 37", got)
	}
	if f.svc.Undo(f.session) {
		t.Error("second undo should fail, snapshot slot is single-use")
	}
}

func TestRetrySearchUnknownChannel(t *testing.T) {
	f := newMealFixture(t)
	if err := f.svc.RetrySearch(context.Background(), f.session, search.ChannelText); err == nil {
		t.Error("retry without a prior search should fail")
	}
}
