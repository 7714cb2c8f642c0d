package engine

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/elonfeng/tennisradar/pkg/tennis"
)

// InvalidFilterError reports a filter parameter outside its domain.
type InvalidFilterError struct {
	Param string
	Value string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter %s: %q", e.Param, e.Value)
}

// Tier is a rank threshold bucket.
type Tier string

const (
	TierAll    Tier = "all"
	TierElite  Tier = "elite"
	TierStrong Tier = "strong"
	TierRising Tier = "rising"
)

// MaxRank returns the highest rank admitted by the tier, 0 for no limit.
func (t Tier) MaxRank() int {
	switch t {
	case TierElite:
		return 10
	case TierStrong:
		return 50
	case TierRising:
		return 100
	}
	return 0
}

func (t Tier) valid() bool {
	switch t {
	case TierAll, TierElite, TierStrong, TierRising:
		return true
	}
	return false
}

// Movement classifies the sign of a ranking movement.
type Movement string

const (
	MovementAll       Movement = "all"
	MovementImproving Movement = "improving"
	MovementDeclining Movement = "declining"
	MovementStable    Movement = "stable"
)

func (m Movement) valid() bool {
	switch m {
	case MovementAll, MovementImproving, MovementDeclining, MovementStable:
		return true
	}
	return false
}

func (m Movement) match(movement int) bool {
	switch m {
	case MovementImproving:
		return movement > 0
	case MovementDeclining:
		return movement < 0
	case MovementStable:
		return movement == 0
	}
	return true
}

// ParseTier accepts "elite" as well as dashboard labels like "Elite (Top 10)"
// and "All Players". An empty string means all.
func ParseTier(s string) (Tier, error) {
	switch leadingWord(s) {
	case "", "all":
		return TierAll, nil
	case "elite":
		return TierElite, nil
	case "strong":
		return TierStrong, nil
	case "rising":
		return TierRising, nil
	}
	return "", &InvalidFilterError{Param: "tier", Value: s}
}

// ParseMovement accepts "improving" as well as labels like "Improving ⬆️".
// An empty string means all.
func ParseMovement(s string) (Movement, error) {
	switch leadingWord(s) {
	case "", "all":
		return MovementAll, nil
	case "improving":
		return MovementImproving, nil
	case "declining":
		return MovementDeclining, nil
	case "stable":
		return MovementStable, nil
	}
	return "", &InvalidFilterError{Param: "movement", Value: s}
}

func leadingWord(s string) string {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if end >= 0 {
		s = s[:end]
	}
	return strings.ToLower(s)
}

// CategorySelection is the category membership filter. The zero value is
// disabled and admits every row. An enabled selection with no names
// admits nothing.
type CategorySelection struct {
	enabled bool
	names   map[string]struct{}
}

// AnyCategory disables category filtering.
func AnyCategory() CategorySelection {
	return CategorySelection{}
}

// OnlyCategories admits rows whose category name is one of names.
// Calling it with no names selects nothing.
func OnlyCategories(names ...string) CategorySelection {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return CategorySelection{enabled: true, names: set}
}

// Enabled reports whether the selection filters anything.
func (c CategorySelection) Enabled() bool {
	return c.enabled
}

// Names returns the selected names sorted, or nil when the filter is disabled.
func (c CategorySelection) Names() []string {
	if !c.enabled {
		return nil
	}
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func (c CategorySelection) match(name *string) bool {
	if !c.enabled {
		return true
	}
	if name == nil || tennis.IsNull(*name) {
		return false
	}
	_, ok := c.names[*name]
	return ok
}

// Filter is the set of predicates applied by ApplyFilters.
type Filter struct {
	Tier       Tier
	Categories CategorySelection
	Movement   Movement
}

// Validate checks every parameter against its domain. Empty tier and
// movement values mean all.
func (f Filter) Validate() error {
	if f.Tier != "" && !f.Tier.valid() {
		return &InvalidFilterError{Param: "tier", Value: string(f.Tier)}
	}
	if f.Movement != "" && !f.Movement.valid() {
		return &InvalidFilterError{Param: "movement", Value: string(f.Movement)}
	}
	return nil
}

// ApplyFilters returns the rows matching every predicate of f, in input
// order. The input slice is not modified.
func ApplyFilters(view []Row, f Filter) ([]Row, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	maxRank := f.Tier.MaxRank()
	out := make([]Row, 0, len(view))
	for _, row := range view {
		if maxRank > 0 && row.Rank > maxRank {
			continue
		}
		if !f.Categories.match(row.CategoryName) {
			continue
		}
		if !f.Movement.match(row.Movement) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}
