package meal

import (
	"testing"

	"github.com/glucobite/glucobite-api/internal/models"
)

func TestSnapshotUndo_RestoresState(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	banana := itemByID(t, d, "banana")
	d.UpdatePortion(banana, 50) // total carbs now 25.5

	d.Snapshot()
	d.Clear()

	if d.HasVisibleContent() {
		t.Fatal("draft should be empty after Clear")
	}
	if got := d.Totals().Carbs; got != 0 {
		t.Fatalf("total carbs after clear = %v, want 0", got)
	}

	if !d.Undo() {
		t.Fatal("Undo should succeed with a pending snapshot")
	}

	if got := d.Totals().Carbs; got != 25.5 {
		t.Errorf("total carbs after undo = %v, want 25.5", got)
	}
	sections := d.VisibleSections()
	if len(sections) != 1 || len(sections[0].Items) != 2 {
		t.Errorf("visible sections after undo = %+v", sections)
	}
	if got := d.PortionSize(banana); got != 50 {
		t.Errorf("portion override after undo = %v, want 50", got)
	}
}

func TestUndo_WithoutSnapshot(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())

	if d.Undo() {
		t.Error("Undo without a snapshot should return false")
	}
	if d.CanUndo() {
		t.Error("CanUndo should be false")
	}
}

func TestSnapshot_SingleSlot(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	apple := itemByID(t, d, "apple")

	d.UpdatePortion(apple, 10)
	d.Snapshot()
	d.UpdatePortion(apple, 20)
	d.Snapshot() // replaces the first slot
	d.Clear()

	if !d.Undo() {
		t.Fatal("Undo should succeed")
	}
	if got := d.PortionSize(apple); got != 20 {
		t.Errorf("restored portion = %v, want 20 (newest snapshot wins)", got)
	}
	if d.Undo() {
		t.Error("second Undo should fail; the slot is not a stack")
	}
}

func TestAddGroup_InvalidatesPendingSnapshot(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	d.Snapshot()
	d.Clear()

	g := models.FoodGroup{
		ID:     "g2",
		Source: models.SourceBarcode,
		Items: []models.FoodItem{
			{ID: "oats", Nutrition: models.Per100{Values: models.NutritionValues{Carbs: f(60)}}},
		},
	}
	d.AddGroup(g)

	if d.CanUndo() {
		t.Error("fresh content should invalidate the pending snapshot")
	}
	if d.Undo() {
		t.Error("Undo after fresh content should fail")
	}
	if got := d.Totals().Carbs; got != 60 {
		t.Errorf("total carbs = %v, want 60", got)
	}
}

func TestSnapshot_IsolatedFromLaterMutation(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	apple := itemByID(t, d, "apple")

	d.Snapshot()
	d.DeleteItem(apple)
	d.UpdatePortion(apple, 5)
	d.Clear()
	d.Undo()

	// The snapshot was taken before the delete and the override.
	if d.IsDeleted(apple) {
		t.Error("restored state should not contain the later soft delete")
	}
	if got := d.PortionSize(apple); got != 100 {
		t.Errorf("restored portion = %v, want authored default 100", got)
	}
}
