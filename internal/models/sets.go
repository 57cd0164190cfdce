package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidateSets checks a batch of sets before anything is persisted. Units are
// defaulted in place; the first violation is returned as a set error.
func ValidateSets(sets []SetInput) error {
	if len(sets) == 0 {
		return NewValidationError("sets", "at least one set is required")
	}
	prev := 0
	for i := range sets {
		s := &sets[i]
		if s.SetNumber < 1 {
			return NewSetError(s.SetNumber, "set_number", "set number must be a positive integer")
		}
		if s.SetNumber <= prev {
			return NewSetError(s.SetNumber, "set_number", fmt.Sprintf("set numbers must be strictly increasing (follows set %d)", prev))
		}
		prev = s.SetNumber
		if s.Reps < 0 {
			return NewSetError(s.SetNumber, "reps", "reps must be zero or greater")
		}
		if s.Weight < 0 || math.IsNaN(s.Weight) || math.IsInf(s.Weight, 0) {
			return NewSetError(s.SetNumber, "weight", "weight must be a non-negative number")
		}
		if s.WeightUnit == "" {
			s.WeightUnit = DefaultUnit
		}
		if !s.WeightUnit.Valid() {
			return NewSetError(s.SetNumber, "weight_unit", fmt.Sprintf("weight unit must be lbs or kg, got %q", s.WeightUnit))
		}
	}
	return nil
}

// SetsFromRaw decodes loosely typed set objects, as produced by a model or
// sent by a client, into SetInput values. A missing set_number takes the
// set's 1-based position. Numeric strings are accepted.
func SetsFromRaw(raw []json.RawMessage) ([]SetInput, error) {
	sets := make([]SetInput, 0, len(raw))
	for i, r := range raw {
		position := i + 1
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil || obj == nil {
			return nil, NewSetError(position, "", "set must be a JSON object")
		}

		s := SetInput{SetNumber: position}
		if v, ok := obj["set_number"]; ok && v != nil {
			n, err := intValue(v)
			if err != nil {
				return nil, NewSetError(position, "set_number", "set number must be an integer")
			}
			s.SetNumber = n
		}
		label := s.SetNumber

		v, ok := obj["reps"]
		if !ok || v == nil {
			return nil, NewSetError(label, "reps", "reps is required")
		}
		reps, err := intValue(v)
		if err != nil {
			return nil, NewSetError(label, "reps", "reps must be an integer")
		}
		s.Reps = reps

		v, ok = obj["weight"]
		if !ok || v == nil {
			return nil, NewSetError(label, "weight", "weight is required")
		}
		w, err := floatValue(v)
		if err != nil {
			return nil, NewSetError(label, "weight", "weight must be a number")
		}
		s.Weight = w

		if v, ok := obj["weight_unit"]; ok && v != nil {
			str, isStr := v.(string)
			if !isStr {
				return nil, NewSetError(label, "weight_unit", "weight unit must be a string")
			}
			unit, err := ParseWeightUnit(str)
			if err != nil {
				return nil, NewSetError(label, "weight_unit", err.Error())
			}
			s.WeightUnit = unit
		} else {
			s.WeightUnit = DefaultUnit
		}

		if v, ok := obj["notes"]; ok && v != nil {
			if str, isStr := v.(string); isStr && strings.TrimSpace(str) != "" {
				s.Notes = &str
			}
		}
		sets = append(sets, s)
	}
	return sets, nil
}

func intValue(v any) (int, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), nil
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("not an integer: %v", t)
		}
		return int(f), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	}
	return 0, fmt.Errorf("not an integer: %v", v)
}

func floatValue(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}
