package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func rawSets(t *testing.T, js string) []json.RawMessage {
	t.Helper()
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(js), &raw); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return raw
}

// TestSetsFromRawDefaults verifies position-based set numbers and the lbs default.
func TestSetsFromRawDefaults(t *testing.T) {
	sets, err := SetsFromRaw(rawSets(t, `[{"reps":10,"weight":135},{"reps":"8","weight":"140.5","weight_unit":"KG"}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("sets = %d, want 2", len(sets))
	}
	if sets[0].SetNumber != 1 || sets[1].SetNumber != 2 {
		t.Errorf("set numbers = %d,%d, want 1,2", sets[0].SetNumber, sets[1].SetNumber)
	}
	if sets[0].WeightUnit != Pounds {
		t.Errorf("unit = %q, want lbs", sets[0].WeightUnit)
	}
	if sets[1].WeightUnit != Kilograms || sets[1].Weight != 140.5 || sets[1].Reps != 8 {
		t.Errorf("set 2 = %+v", sets[1])
	}
}

// TestSetsFromRawRejectsBadFields verifies each malformed field is reported
// with the set number and field name.
func TestSetsFromRawRejectsBadFields(t *testing.T) {
	tests := []struct {
		name  string
		js    string
		field string
		set   int
	}{
		{"fractional reps", `[{"set_number":1,"reps":8.5,"weight":100}]`, "reps", 1},
		{"missing weight", `[{"set_number":1,"reps":8},{"set_number":2,"reps":8}]`, "weight", 1},
		{"text weight", `[{"set_number":3,"reps":8,"weight":"heavy"}]`, "weight", 3},
		{"bad unit", `[{"set_number":1,"reps":8,"weight":100,"weight_unit":"stone"}]`, "weight_unit", 1},
		{"not an object", `[42]`, "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SetsFromRaw(rawSets(t, tt.js))
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if e.Kind != KindValidation {
				t.Errorf("kind = %q, want validation", e.Kind)
			}
			if e.Field != tt.field {
				t.Errorf("field = %q, want %q", e.Field, tt.field)
			}
			if e.SetNumber != tt.set {
				t.Errorf("set = %d, want %d", e.SetNumber, tt.set)
			}
		})
	}
}

// TestValidateSets covers the ordering and range rules.
func TestValidateSets(t *testing.T) {
	ok := []SetInput{{SetNumber: 1, Reps: 10, Weight: 100}, {SetNumber: 3, Reps: 0, Weight: 0, WeightUnit: Kilograms}}
	if err := ValidateSets(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok[0].WeightUnit != Pounds {
		t.Errorf("unit not defaulted: %q", ok[0].WeightUnit)
	}

	tests := []struct {
		name  string
		sets  []SetInput
		field string
		set   int
	}{
		{"empty", nil, "sets", 0},
		{"zero set number", []SetInput{{SetNumber: 0, Reps: 1, Weight: 1}}, "set_number", 0},
		{"repeated number", []SetInput{{SetNumber: 1, Reps: 1, Weight: 1}, {SetNumber: 1, Reps: 1, Weight: 1}}, "set_number", 1},
		{"decreasing", []SetInput{{SetNumber: 2, Reps: 1, Weight: 1}, {SetNumber: 1, Reps: 1, Weight: 1}}, "set_number", 1},
		{"negative reps", []SetInput{{SetNumber: 1, Reps: -1, Weight: 1}}, "reps", 1},
		{"negative weight", []SetInput{{SetNumber: 1, Reps: 5, Weight: -5}, {SetNumber: 2, Reps: 5, Weight: 5}}, "weight", 1},
		{"bad unit", []SetInput{{SetNumber: 1, Reps: 5, Weight: 5, WeightUnit: "st"}}, "weight_unit", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSets(tt.sets)
			e, ok := AsError(err)
			if !ok {
				t.Fatalf("err = %v, want *Error", err)
			}
			if e.Field != tt.field || e.SetNumber != tt.set {
				t.Errorf("got field=%q set=%d, want field=%q set=%d", e.Field, e.SetNumber, tt.field, tt.set)
			}
		})
	}
}

// TestConvert verifies kg/lbs normalization.
func TestConvert(t *testing.T) {
	if got := Convert(45, Kilograms, Pounds); got < 99.2078 || got > 99.2080 {
		t.Errorf("45kg = %f lbs, want 99.2079", got)
	}
	if got := Convert(100, Pounds, Pounds); got != 100 {
		t.Errorf("identity = %f", got)
	}
	if got := Convert(KgToLbs, Pounds, Kilograms); got != 1 {
		t.Errorf("lbs->kg = %f, want 1", got)
	}
}

// TestKindOf verifies kinds survive wrapping and untyped errors default to persistence.
func TestKindOf(t *testing.T) {
	wrapped := errors.Join(errors.New("ctx"), NewForbiddenError("nope"))
	if got := KindOf(wrapped); got != KindForbidden {
		t.Errorf("KindOf = %q, want forbidden", got)
	}
	if got := KindOf(errors.New("boom")); got != KindPersistence {
		t.Errorf("KindOf(untyped) = %q, want persistence", got)
	}
}
