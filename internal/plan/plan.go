// Package plan holds the static plan catalog.
package plan

import (
	"errors"
	"fmt"
)

// ErrInvalidPlan is returned for plan ids not in the catalog.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan identifiers.
const (
	Free    = "free"
	Starter = "starter"
	Growth  = "growth"
	Pro     = "pro"
)

// ThemeCustomization describes how much of the widget theme a plan unlocks.
type ThemeCustomization string

const (
	ThemeNone  ThemeCustomization = "none"
	ThemeBasic ThemeCustomization = "basic"
	ThemeFull  ThemeCustomization = "full"
)

// Plan is an immutable catalog entry.
type Plan struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	MonthlyGenerations int64              `json:"monthlyGenerations"`
	WatermarkRequired  bool               `json:"watermarkRequired"`
	ThemeCustomization ThemeCustomization `json:"themeCustomization"`
}

var catalog = []Plan{
	{ID: Free, Name: "Free", MonthlyGenerations: 10, WatermarkRequired: true, ThemeCustomization: ThemeNone},
	{ID: Starter, Name: "Starter", MonthlyGenerations: 100, WatermarkRequired: false, ThemeCustomization: ThemeBasic},
	{ID: Growth, Name: "Growth", MonthlyGenerations: 500, WatermarkRequired: false, ThemeCustomization: ThemeFull},
	{ID: Pro, Name: "Pro", MonthlyGenerations: 2000, WatermarkRequired: false, ThemeCustomization: ThemeFull},
}

// All returns a copy of the catalog in ascending tier order.
func All() []Plan {
	return append([]Plan(nil), catalog...)
}

// Get returns the plan with the given id.
func Get(id string) (Plan, error) {
	for _, p := range catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrInvalidPlan, id)
}

// IsValid reports whether id names a catalog plan.
func IsValid(id string) bool {
	_, err := Get(id)
	return err == nil
}

// Default returns the plan assigned to clients that never chose one.
func Default() Plan {
	return catalog[0]
}
