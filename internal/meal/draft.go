// Package meal implements the editable meal draft: the session aggregate that
// merges food groups from the search channels into one reviewable collection
// with soft deletes, portion overrides, collapsed sections, a single-slot undo
// snapshot, and live-recomputed nutrition totals.
package meal

import (
	"sync"

	"github.com/glucobite/glucobite-api/internal/models"
	"github.com/glucobite/glucobite-api/internal/nutrition"
)

// Draft holds every food group received in the current editing session plus
// the user-edit overlays. Groups and items are treated as immutable; all
// overlays are keyed by item/group id, never by position. All methods are
// safe for concurrent use; mutations are serialized by an internal mutex.
type Draft struct {
	mu sync.Mutex

	// groups is append-only except for explicit section deletion.
	groups []models.FoodGroup

	// edited maps item id -> portion override (grams for per-100 items,
	// serving multiplier for per-serving items).
	edited map[string]float64

	// deleted maps group id -> set of soft-deleted item ids.
	deleted map[string]map[string]struct{}

	// collapsed is presentation-only; collapsed sections still count toward
	// totals and visible membership.
	collapsed map[string]struct{}

	// pending is the single undo slot. See snapshot.go.
	pending *snapshot
}

// NewDraft creates an empty meal draft for one editing session.
func NewDraft() *Draft {
	return &Draft{
		edited:    make(map[string]float64),
		deleted:   make(map[string]map[string]struct{}),
		collapsed: make(map[string]struct{}),
	}
}

// Default portions when an item carries no authored default.
const (
	defaultPortionGrams       = 100
	defaultServingsMultiplier = 1
)

// AddGroup appends a new group to the draft. Item GroupIDs are stamped so
// overlay lookups can find their section. No dedup is performed: identical
// items from two searches are two distinct entities. Adding fresh content
// invalidates any pending undo snapshot, since the undo slot is meaningless
// once superseded by new visible data.
func (d *Draft) AddGroup(group models.FoodGroup) {
	d.mu.Lock()
	defer d.mu.Unlock()

	g := group.Clone()
	for i := range g.Items {
		g.Items[i].GroupID = g.ID
	}
	d.groups = append(d.groups, g)
	d.pending = nil
}

// PortionSize returns the effective portion for an item: the user override if
// one exists, otherwise the item's authored default, otherwise the basis
// default (100 grams for per-100, 1 serving for per-serving).
func (d *Draft) PortionSize(item models.FoodItem) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.portionSizeLocked(item)
}

func (d *Draft) portionSizeLocked(item models.FoodItem) float64 {
	if v, ok := d.edited[item.ID]; ok {
		return v
	}
	switch item.Nutrition.(type) {
	case models.PerServing:
		if item.ServingsMultiplier != nil {
			return *item.ServingsMultiplier
		}
		return defaultServingsMultiplier
	default:
		if item.PortionGrams != nil {
			return *item.PortionGrams
		}
		if item.StandardServingGrams != nil {
			return *item.StandardServingGrams
		}
		return defaultPortionGrams
	}
}

// UpdatePortion sets the portion override for an item. Idempotent; the stored
// item is never touched.
func (d *Draft) UpdatePortion(item models.FoodItem, portion float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.edited[item.ID] = portion
}

// ResetPortion removes the portion override, reverting to the authored
// default. No-op if no override exists.
func (d *Draft) ResetPortion(item models.FoodItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.edited, item.ID)
}

// DeleteItem soft-deletes an item: it is excluded from visible and aggregate
// computations but its data, including any portion override, is retained.
func (d *Draft) DeleteItem(item models.FoodItem) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := d.deleted[item.GroupID]
	if set == nil {
		set = make(map[string]struct{})
		d.deleted[item.GroupID] = set
	}
	set[item.ID] = struct{}{}
}

// UndeleteItem reverses a soft delete. Stale ids are harmless no-ops.
func (d *Draft) UndeleteItem(item models.FoodItem) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if set, ok := d.deleted[item.GroupID]; ok {
		delete(set, item.ID)
		if len(set) == 0 {
			delete(d.deleted, item.GroupID)
		}
	}
}

// Item looks up an item by group and item id. Soft-deleted items are
// returned too, so callers can act on them (undelete, hard delete).
func (d *Draft) Item(groupID, itemID string) (models.FoodItem, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, g := range d.groups {
		if g.ID != groupID {
			continue
		}
		for _, item := range g.Items {
			if item.ID == itemID {
				return item, true
			}
		}
	}
	return models.FoodItem{}, false
}

// IsDeleted reports whether the item is currently soft-deleted.
func (d *Draft) IsDeleted(item models.FoodItem) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.deleted[item.GroupID]
	if !ok {
		return false
	}
	_, deleted := set[item.ID]
	return deleted
}

// HardDeleteItem permanently removes the item from its group. There is no
// undo path for a hard delete; it is meant for explicitly removing saved or
// database-backed entries rather than transient search results. The portion
// override and soft-delete marker for the id are dropped with it.
func (d *Draft) HardDeleteItem(item models.FoodItem) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for gi := range d.groups {
		if d.groups[gi].ID != item.GroupID {
			continue
		}
		items := d.groups[gi].Items
		for ii := range items {
			if items[ii].ID == item.ID {
				d.groups[gi].Items = append(items[:ii:ii], items[ii+1:]...)
				break
			}
		}
		break
	}

	delete(d.edited, item.ID)
	if set, ok := d.deleted[item.GroupID]; ok {
		delete(set, item.ID)
		if len(set) == 0 {
			delete(d.deleted, item.GroupID)
		}
	}
}

// DeleteSection removes an entire group from the draft, along with its
// overlay entries. Irreversible except via a pending undo snapshot.
func (d *Draft) DeleteSection(groupID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.groups {
		if d.groups[i].ID == groupID {
			for _, item := range d.groups[i].Items {
				delete(d.edited, item.ID)
			}
			d.groups = append(d.groups[:i:i], d.groups[i+1:]...)
			break
		}
	}
	delete(d.deleted, groupID)
	delete(d.collapsed, groupID)
}

// ToggleSectionCollapsed flips the presentation-only collapsed flag for a
// section. Collapsed sections keep their visible membership and keep counting
// toward totals.
func (d *Draft) ToggleSectionCollapsed(groupID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.collapsed[groupID]; ok {
		delete(d.collapsed, groupID)
	} else {
		d.collapsed[groupID] = struct{}{}
	}
}

// IsSectionCollapsed reports the collapsed flag for a section.
func (d *Draft) IsSectionCollapsed(groupID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.collapsed[groupID]
	return ok
}

// Clear empties the draft: groups, portion overrides, soft deletes, and
// collapsed flags. Callers wanting undo must call Snapshot first.
func (d *Draft) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.groups = nil
	d.edited = make(map[string]float64)
	d.deleted = make(map[string]map[string]struct{})
	d.collapsed = make(map[string]struct{})
}

// VisibleSections returns the groups in arrival order with soft-deleted items
// filtered out of each. A group whose items are all soft-deleted is still
// returned (empty) so its section header can render; only hard deletion
// removes it.
func (d *Draft) VisibleSections() []models.FoodGroup {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.FoodGroup, 0, len(d.groups))
	for _, g := range d.groups {
		filtered := g
		filtered.Items = make([]models.FoodItem, 0, len(g.Items))
		set := d.deleted[g.ID]
		for _, item := range g.Items {
			if set != nil {
				if _, gone := set[item.ID]; gone {
					continue
				}
			}
			filtered.Items = append(filtered.Items, item)
		}
		out = append(out, filtered)
	}
	return out
}

// NonDeletedItems returns the flattened list of all non-deleted items across
// all groups, in section order. Used for membership checks like "is this food
// already added".
func (d *Draft) NonDeletedItems() []models.FoodItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nonDeletedItemsLocked()
}

func (d *Draft) nonDeletedItemsLocked() []models.FoodItem {
	var out []models.FoodItem
	for _, g := range d.groups {
		set := d.deleted[g.ID]
		for _, item := range g.Items {
			if set != nil {
				if _, gone := set[item.ID]; gone {
					continue
				}
			}
			out = append(out, item)
		}
	}
	return out
}

// NonDeletedItemCount returns the number of non-deleted items.
func (d *Draft) NonDeletedItemCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.nonDeletedItemsLocked())
}

// HasVisibleContent reports whether any non-deleted item remains.
func (d *Draft) HasVisibleContent() bool {
	return d.NonDeletedItemCount() > 0
}

// Totals computes the aggregate nutrition over all visible, non-deleted items
// at their effective portions. Unknown nutrient values count as zero in the
// sums only. Collapsed sections are included.
func (d *Draft) Totals() nutrition.Totals {
	d.mu.Lock()
	defer d.mu.Unlock()

	var totals nutrition.Totals
	for _, item := range d.nonDeletedItemsLocked() {
		portion := d.portionSizeLocked(item)
		totals.Add(nutrition.Resolve(item.Nutrition, portion))
	}
	return totals
}
