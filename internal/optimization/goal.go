package optimization

import (
	"cmp"
	"fmt"
	"strings"
)

// Goal is the direction of optimization.
// The zero value is Maximize.
type Goal uint8

const (
	// Maximize favours organisms with higher fitness.
	Maximize Goal = iota
	// Minimize favours organisms with lower fitness.
	Minimize
)

var (
	goalCompare = [...]func(a, b float64) int{
		Maximize: func(a, b float64) int { return cmp.Compare(a, b) },
		Minimize: func(a, b float64) int { return cmp.Compare(b, a) },
	}
	goalOpposite = [...]Goal{
		Maximize: Minimize,
		Minimize: Maximize,
	}
	goalNames = [...]string{
		Maximize: "maximize",
		Minimize: "minimize",
	}
)

// ParseGoal parses "maximize"/"max" and "minimize"/"min", case-insensitively.
func ParseGoal(s string) (Goal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maximize", "maximise", "max", "maximum":
		return Maximize, nil
	case "minimize", "minimise", "min", "minimum":
		return Minimize, nil
	default:
		return Maximize, fmt.Errorf("unknown goal %q", s)
	}
}

// Valid reports whether g is one of the two defined goals.
func (g Goal) Valid() bool {
	return g == Maximize || g == Minimize
}

// Compare returns a negative number, zero or a positive number when a is
// worse than, equal to, or better than b under g.
func (g Goal) Compare(a, b float64) int {
	return goalCompare[g](a, b)
}

// Opposite returns the antithetical goal.
func (g Goal) Opposite() Goal {
	return goalOpposite[g]
}

// Worst returns a if a is not better than b, otherwise b.
func (g Goal) Worst(a, b float64) float64 {
	if g.Compare(a, b) <= 0 {
		return a
	}
	return b
}

// Best returns a if a is strictly better than b, otherwise b.
func (g Goal) Best(a, b float64) float64 {
	if g.Compare(a, b) > 0 {
		return a
	}
	return b
}

// Better reports whether a is strictly better than b.
func (g Goal) Better(a, b float64) bool { return g.Compare(a, b) > 0 }

// BetterOrEqual reports whether a is at least as good as b.
func (g Goal) BetterOrEqual(a, b float64) bool { return g.Compare(a, b) >= 0 }

// Worse reports whether a is strictly worse than b.
func (g Goal) Worse(a, b float64) bool { return g.Compare(a, b) < 0 }

// WorseOrEqual reports whether a is no better than b.
func (g Goal) WorseOrEqual(a, b float64) bool { return g.Compare(a, b) <= 0 }

// String returns "maximize" or "minimize", or Goal(n) for invalid values.
func (g Goal) String() string {
	if !g.Valid() {
		return fmt.Sprintf("Goal(%d)", uint8(g))
	}
	return goalNames[g]
}

// MarshalText implements encoding.TextMarshaler.
func (g Goal) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid goal %d", uint8(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It is also what lets
// the env config package decode GA_GOAL.
func (g *Goal) UnmarshalText(text []byte) error {
	parsed, err := ParseGoal(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
