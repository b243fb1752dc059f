package meal

import "github.com/glucobite/glucobite-api/internal/models"

// snapshot is a full value copy of the draft's four mutable fields, taken
// before a destructive clear. A single slot is retained: taking a new
// snapshot, or adding a new group, silently discards the older one.
type snapshot struct {
	groups    []models.FoodGroup
	edited    map[string]float64
	deleted   map[string]map[string]struct{}
	collapsed map[string]struct{}
}

// Snapshot captures the current draft state into the undo slot. Call it
// immediately before Clear when the clear should be undoable.
func (d *Draft) Snapshot() {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := &snapshot{
		groups:    make([]models.FoodGroup, 0, len(d.groups)),
		edited:    make(map[string]float64, len(d.edited)),
		deleted:   make(map[string]map[string]struct{}, len(d.deleted)),
		collapsed: make(map[string]struct{}, len(d.collapsed)),
	}
	for _, g := range d.groups {
		s.groups = append(s.groups, g.Clone())
	}
	for id, v := range d.edited {
		s.edited[id] = v
	}
	for gid, set := range d.deleted {
		cp := make(map[string]struct{}, len(set))
		for id := range set {
			cp[id] = struct{}{}
		}
		s.deleted[gid] = cp
	}
	for gid := range d.collapsed {
		s.collapsed[gid] = struct{}{}
	}

	d.pending = s
}

// CanUndo reports whether an undo snapshot is pending.
func (d *Draft) CanUndo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Undo restores the draft to the pending snapshot and clears the slot. It
// returns false when no snapshot is pending.
func (d *Draft) Undo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil {
		return false
	}
	s := d.pending
	d.groups = s.groups
	d.edited = s.edited
	d.deleted = s.deleted
	d.collapsed = s.collapsed
	d.pending = nil
	return true
}
