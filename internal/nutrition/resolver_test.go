package nutrition

import (
	"testing"

	"github.com/glucobite/glucobite-api/internal/models"
)

func f(v float64) *float64 { return &v }

func TestResolve_Per100(t *testing.T) {
	basis := models.Per100{Values: models.NutritionValues{
		Carbs:    f(14),
		Calories: f(52),
	}}

	got := Resolve(basis, 150)

	if got.Carbs == nil || *got.Carbs != 21 {
		t.Errorf("Carbs = %v, want 21", got.Carbs)
	}
	if got.Calories == nil || *got.Calories != 78 {
		t.Errorf("Calories = %v, want 78", got.Calories)
	}
	if got.Protein != nil {
		t.Errorf("Protein = %v, want nil (unknown stays unknown)", got.Protein)
	}
}

func TestResolve_PerServing(t *testing.T) {
	basis := models.PerServing{Values: models.NutritionValues{
		Carbs: f(30),
		Fat:   f(2.5),
	}}

	got := Resolve(basis, 2)

	if got.Carbs == nil || *got.Carbs != 60 {
		t.Errorf("Carbs = %v, want 60", got.Carbs)
	}
	if got.Fat == nil || *got.Fat != 5 {
		t.Errorf("Fat = %v, want 5", got.Fat)
	}
}

func TestResolve_ZeroIsNotUnknown(t *testing.T) {
	basis := models.Per100{Values: models.NutritionValues{
		Carbs: f(0),
	}}

	got := Resolve(basis, 100)
	if got.Carbs == nil {
		t.Fatal("explicit zero must not be coerced to unknown")
	}
	if *got.Carbs != 0 {
		t.Errorf("Carbs = %v, want 0", *got.Carbs)
	}
}

func TestResolve_NonPositivePortionPassesThrough(t *testing.T) {
	basis := models.Per100{Values: models.NutritionValues{Carbs: f(14)}}

	if got := Resolve(basis, 0); got.Carbs == nil || *got.Carbs != 0 {
		t.Errorf("portion 0: Carbs = %v, want 0", got.Carbs)
	}
	if got := Resolve(basis, -50); got.Carbs == nil || *got.Carbs != -7 {
		t.Errorf("portion -50: Carbs = %v, want -7", got.Carbs)
	}
}

func TestResolve_Per100ExactForRoundInputs(t *testing.T) {
	// These all divide evenly; the result must carry no float residue.
	cases := []struct {
		value   float64
		portion float64
		want    float64
	}{
		{14, 150, 21},
		{28, 100, 28},
		{6.6, 100, 6.6},
		{23, 50, 11.5},
	}
	for _, tc := range cases {
		basis := models.Per100{Values: models.NutritionValues{Carbs: f(tc.value)}}
		got := Resolve(basis, tc.portion)
		if got.Carbs == nil || *got.Carbs != tc.want {
			t.Errorf("%v per 100 at portion %v: Carbs = %v, want exactly %v", tc.value, tc.portion, got.Carbs, tc.want)
		}
	}
}

func TestResolveValue(t *testing.T) {
	per100 := models.Per100{}
	perServing := models.PerServing{}

	if got := ResolveValue(per100, nil, 100); got != nil {
		t.Errorf("nil raw value: got %v, want nil", got)
	}
	if got := ResolveValue(per100, f(23), 50); got == nil || *got != 11.5 {
		t.Errorf("per100 23 x 50g = %v, want 11.5", got)
	}
	if got := ResolveValue(perServing, f(23), 1.5); got == nil || *got != 34.5 {
		t.Errorf("perServing 23 x 1.5 = %v, want 34.5", got)
	}
}

func TestTotals_UnknownCountsAsZeroInSumOnly(t *testing.T) {
	var totals Totals
	totals.Add(models.NutritionValues{Carbs: f(14)})
	totals.Add(models.NutritionValues{Carbs: nil, Protein: f(3)})

	if totals.Carbs != 14 {
		t.Errorf("Carbs total = %v, want 14", totals.Carbs)
	}
	if totals.Protein != 3 {
		t.Errorf("Protein total = %v, want 3", totals.Protein)
	}
}
