package meal

import (
	"testing"

	"github.com/glucobite/glucobite-api/internal/models"
)

func f(v float64) *float64 { return &v }

// fruitGroup returns a group with apple (14g carbs/100g) and banana
// (23g carbs/100g), both defaulting to 100g portions.
func fruitGroup() models.FoodGroup {
	return models.FoodGroup{
		ID:     "g1",
		Source: models.SourceAIPhoto,
		Items: []models.FoodItem{
			{
				ID:         "apple",
				Name:       "Apple",
				Nutrition:  models.Per100{Values: models.NutritionValues{Carbs: f(14)}},
				Confidence: models.ConfidenceHigh,
				Source:     models.SourceAIPhoto,
			},
			{
				ID:         "banana",
				Name:       "Banana",
				Nutrition:  models.Per100{Values: models.NutritionValues{Carbs: f(23)}},
				Confidence: models.ConfidenceMedium,
				Source:     models.SourceAIPhoto,
			},
		},
	}
}

func itemByID(t *testing.T, d *Draft, id string) models.FoodItem {
	t.Helper()
	for _, g := range d.VisibleSections() {
		for _, item := range g.Items {
			if item.ID == id {
				return item
			}
		}
	}
	t.Fatalf("item %q not visible", id)
	return models.FoodItem{}
}

func TestTotals_DefaultPortions(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())

	if got := d.Totals().Carbs; got != 37 {
		t.Errorf("total carbs = %v, want 37", got)
	}
}

func TestDeleteThenUndelete_RestoresTotals(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	apple := itemByID(t, d, "apple")

	d.DeleteItem(apple)
	if got := d.Totals().Carbs; got != 23 {
		t.Errorf("total carbs after delete = %v, want 23", got)
	}
	if !d.IsDeleted(apple) {
		t.Error("IsDeleted(apple) = false after DeleteItem")
	}

	d.UndeleteItem(apple)
	if got := d.Totals().Carbs; got != 37 {
		t.Errorf("total carbs after undelete = %v, want 37", got)
	}
	if d.IsDeleted(apple) {
		t.Error("IsDeleted(apple) = true after UndeleteItem")
	}
}

func TestUpdatePortion_Totals(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	banana := itemByID(t, d, "banana")

	d.UpdatePortion(banana, 50)
	if got := d.Totals().Carbs; got != 25.5 {
		t.Errorf("total carbs = %v, want 25.5", got)
	}
}

func TestUpdatePortion_RoundTrip(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	apple := itemByID(t, d, "apple")

	for _, portion := range []float64{1, 42.5, 150, 0} {
		d.UpdatePortion(apple, portion)
		if got := d.PortionSize(apple); got != portion {
			t.Errorf("PortionSize after UpdatePortion(%v) = %v", portion, got)
		}
	}
}

func TestResetPortion_Idempotent(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	apple := itemByID(t, d, "apple")

	d.UpdatePortion(apple, 250)
	d.ResetPortion(apple)
	first := d.PortionSize(apple)
	d.ResetPortion(apple)
	second := d.PortionSize(apple)

	if first != second {
		t.Errorf("reset not idempotent: %v then %v", first, second)
	}
	if first != 100 {
		t.Errorf("PortionSize after reset = %v, want default 100", first)
	}
}

func TestPortionSize_Defaults(t *testing.T) {
	d := NewDraft()
	authored := 85.0
	mult := 2.0
	d.AddGroup(models.FoodGroup{
		ID:     "g1",
		Source: models.SourceBarcode,
		Items: []models.FoodItem{
			{ID: "a", Nutrition: models.Per100{}, PortionGrams: &authored},
			{ID: "b", Nutrition: models.Per100{}},
			{ID: "c", Nutrition: models.PerServing{}, ServingsMultiplier: &mult},
			{ID: "d", Nutrition: models.PerServing{}},
		},
	})

	want := map[string]float64{"a": 85, "b": 100, "c": 2, "d": 1}
	for _, item := range d.NonDeletedItems() {
		if got := d.PortionSize(item); got != want[item.ID] {
			t.Errorf("PortionSize(%s) = %v, want %v", item.ID, got, want[item.ID])
		}
	}
}

func TestSoftDelete_KeepsPortionOverride(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	apple := itemByID(t, d, "apple")

	d.UpdatePortion(apple, 60)
	d.DeleteItem(apple)
	d.UndeleteItem(apple)

	if got := d.PortionSize(apple); got != 60 {
		t.Errorf("portion override after delete/undelete = %v, want 60", got)
	}
}

func TestVisibleSections_EmptiedGroupStillPresent(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	d.DeleteItem(itemByID(t, d, "apple"))
	d.DeleteItem(itemByID(t, d, "banana"))

	sections := d.VisibleSections()
	if len(sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(sections))
	}
	if len(sections[0].Items) != 0 {
		t.Errorf("items = %d, want 0", len(sections[0].Items))
	}
	if d.HasVisibleContent() {
		t.Error("HasVisibleContent should be false when all items are deleted")
	}
}

func TestHardDeleteItem_RemovesPermanently(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	apple := itemByID(t, d, "apple")
	d.UpdatePortion(apple, 60)

	d.HardDeleteItem(apple)

	if got := d.NonDeletedItemCount(); got != 1 {
		t.Errorf("item count = %d, want 1", got)
	}
	// Undelete must not bring it back.
	d.UndeleteItem(apple)
	if got := d.Totals().Carbs; got != 23 {
		t.Errorf("total carbs = %v, want 23", got)
	}
}

func TestDeleteSection_RemovesGroup(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	d.AddGroup(models.FoodGroup{
		ID:     "g2",
		Source: models.SourceManual,
		Items: []models.FoodItem{
			{ID: "rice", Nutrition: models.Per100{Values: models.NutritionValues{Carbs: f(28)}}},
		},
	})

	d.DeleteSection("g1")

	sections := d.VisibleSections()
	if len(sections) != 1 || sections[0].ID != "g2" {
		t.Fatalf("sections after delete = %+v, want only g2", sections)
	}
	if got := d.Totals().Carbs; got != 28 {
		t.Errorf("total carbs = %v, want 28", got)
	}
}

func TestCollapse_DoesNotAffectTotalsOrMembership(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())

	d.ToggleSectionCollapsed("g1")
	if !d.IsSectionCollapsed("g1") {
		t.Error("section should be collapsed")
	}
	if got := d.Totals().Carbs; got != 37 {
		t.Errorf("total carbs while collapsed = %v, want 37", got)
	}
	if len(d.VisibleSections()[0].Items) != 2 {
		t.Error("collapsed section must keep its visible items")
	}

	d.ToggleSectionCollapsed("g1")
	if d.IsSectionCollapsed("g1") {
		t.Error("toggle twice should uncollapse")
	}
}

func TestStaleIDs_AreNoOps(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())

	ghost := models.FoodItem{ID: "ghost", GroupID: "nope", Nutrition: models.Per100{}}
	d.DeleteItem(ghost)
	d.UndeleteItem(ghost)
	d.HardDeleteItem(ghost)
	d.ResetPortion(ghost)
	d.DeleteSection("nope")

	if got := d.Totals().Carbs; got != 37 {
		t.Errorf("total carbs after stale operations = %v, want 37", got)
	}
}

func TestAddGroup_NoDedup(t *testing.T) {
	d := NewDraft()
	g := fruitGroup()
	d.AddGroup(g)
	g2 := fruitGroup()
	g2.ID = "g2"
	g2.Items[0].ID = "apple2"
	g2.Items[1].ID = "banana2"
	d.AddGroup(g2)

	if got := d.NonDeletedItemCount(); got != 4 {
		t.Errorf("item count = %d, want 4 (no dedup across groups)", got)
	}
}

func TestIsDeleted_MatchesDeletedSet(t *testing.T) {
	d := NewDraft()
	d.AddGroup(fruitGroup())
	apple := itemByID(t, d, "apple")
	banana := itemByID(t, d, "banana")

	d.DeleteItem(apple)

	if !d.IsDeleted(apple) {
		t.Error("apple should be deleted")
	}
	if d.IsDeleted(banana) {
		t.Error("banana should not be deleted")
	}

	var visible []string
	for _, item := range d.NonDeletedItems() {
		visible = append(visible, item.ID)
	}
	if len(visible) != 1 || visible[0] != "banana" {
		t.Errorf("non-deleted items = %v, want [banana]", visible)
	}
}
