package models

// FoodGroup is one batch of food items sharing a single search/provenance
// event: one AI analysis call, one barcode scan, one saved-foods load, or one
// manual entry.
type FoodGroup struct {
	ID     string     `json:"id"`
	Source FoodSource `json:"source"`

	// TextQuery is set when a text search produced this group.
	TextQuery string `json:"text_query,omitempty"`

	BriefDescription       string `json:"brief_description,omitempty"`
	OverallDescription     string `json:"overall_description,omitempty"`
	DiabetesConsiderations string `json:"diabetes_considerations,omitempty"`

	// Items preserve the authored order of the producing channel.
	Items []FoodItem `json:"items"`
}

// Clone returns a copy of the group with its own items slice. Item values are
// shared; they are treated as immutable throughout the engine.
func (g FoodGroup) Clone() FoodGroup {
	out := g
	out.Items = append([]FoodItem(nil), g.Items...)
	return out
}
