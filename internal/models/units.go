package models

import (
	"fmt"
	"strings"
)

// WeightUnit is the unit a set's weight was recorded in.
type WeightUnit string

const (
	Pounds    WeightUnit = "lbs"
	Kilograms WeightUnit = "kg"
)

// KgToLbs is the conversion factor used for all normalization.
const KgToLbs = 2.20462

// DefaultUnit applies when a set carries no unit.
const DefaultUnit = Pounds

// ParseWeightUnit accepts the canonical values plus common spellings.
// An empty string yields DefaultUnit.
func ParseWeightUnit(s string) (WeightUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultUnit, nil
	case "lbs", "lb", "pound", "pounds":
		return Pounds, nil
	case "kg", "kgs", "kilo", "kilos", "kilogram", "kilograms":
		return Kilograms, nil
	}
	return "", fmt.Errorf("unknown weight unit %q", s)
}

// Valid reports whether u is one of the two stored units.
func (u WeightUnit) Valid() bool {
	return u == Pounds || u == Kilograms
}

// Convert expresses weight w, recorded in unit from, in unit to.
func Convert(w float64, from, to WeightUnit) float64 {
	if from == to {
		return w
	}
	if from == Kilograms && to == Pounds {
		return w * KgToLbs
	}
	return w / KgToLbs
}
