// Package formation computes ordered target positions for geometric
// patterns. Positions is a pure function of (pattern, count, center,
// spacing): no state, no clock, no randomness.
package formation

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"formationctl/internal/geometry"
)

// Pattern selects a formation shape.
type Pattern int

const (
	Line Pattern = iota
	Triangle
	Square
	Circle
	Diamond
)

// ErrUnknownPattern is returned by ParsePattern for unrecognized names.
var ErrUnknownPattern = errors.New("unknown formation pattern")

var patternNames = map[Pattern]string{
	Line:     "line",
	Triangle: "triangle",
	Square:   "square",
	Circle:   "circle",
	Diamond:  "diamond",
}

func (p Pattern) String() string {
	if n, ok := patternNames[p]; ok {
		return n
	}
	return fmt.Sprintf("pattern(%d)", int(p))
}

// Patterns lists all selectable patterns in a stable order.
func Patterns() []Pattern {
	return []Pattern{Line, Triangle, Square, Circle, Diamond}
}

// ParsePattern maps a pattern name to its tag, failing fast on unknown
// names.
func ParsePattern(name string) (Pattern, error) {
	for p, n := range patternNames {
		if n == strings.ToLower(name) {
			return p, nil
		}
	}
	return Line, fmt.Errorf("%q: %w", name, ErrUnknownPattern)
}

// stackClimb is the vertical gap between stacked extra slots.
const stackClimb = 2.0

// Positions returns exactly count ordered slot positions for the pattern.
// Patterns with a natural capacity stack extra members rather than erroring;
// count of zero yields an empty slice.
func Positions(p Pattern, count int, center geometry.Vec3, spacing float64) []geometry.Vec3 {
	if count <= 0 {
		return nil
	}
	switch p {
	case Triangle:
		return triangle(count, center, spacing)
	case Square:
		return square(count, center, spacing)
	case Circle:
		return circle(count, center, spacing)
	case Diamond:
		return diamond(count, center, spacing)
	default:
		return line(count, center, spacing)
	}
}

// line centers the row symmetrically; the real-valued count/2 offset gives
// odd counts a deliberate half-slot shift.
func line(count int, c geometry.Vec3, spacing float64) []geometry.Vec3 {
	out := make([]geometry.Vec3, count)
	for i := range out {
		out[i] = geometry.Vec3{
			X: c.X + (float64(i)-float64(count)/2)*spacing,
			Y: c.Y,
			Z: c.Z,
		}
	}
	return out
}

// triangle puts the leader at the point with two wings behind; extra
// members form a second row spread like a half-spacing line.
func triangle(count int, c geometry.Vec3, spacing float64) []geometry.Vec3 {
	out := make([]geometry.Vec3, 0, count)
	wings := []geometry.Vec3{
		c,
		{X: c.X - spacing, Y: c.Y - spacing, Z: c.Z},
		{X: c.X - spacing, Y: c.Y + spacing, Z: c.Z},
	}
	for i := 0; i < count && i < 3; i++ {
		out = append(out, wings[i])
	}
	for i := 3; i < count; i++ {
		out = append(out, geometry.Vec3{
			X: c.X - 2*spacing,
			Y: c.Y + (float64(i-3)-float64(count-4)/2)*spacing/2,
			Z: c.Z,
		})
	}
	return out
}

// square assigns the four corners front-right, back-right, back-left,
// front-left; extras stack above center.
func square(count int, c geometry.Vec3, spacing float64) []geometry.Vec3 {
	corners := [][2]float64{
		{spacing / 2, spacing / 2},
		{-spacing / 2, spacing / 2},
		{-spacing / 2, -spacing / 2},
		{spacing / 2, -spacing / 2},
	}
	out := make([]geometry.Vec3, count)
	for i := range out {
		if i < 4 {
			out[i] = geometry.Vec3{X: c.X + corners[i][0], Y: c.Y + corners[i][1], Z: c.Z}
		} else {
			out[i] = geometry.Vec3{X: c.X, Y: c.Y, Z: c.Z + float64(i-3)*stackClimb}
		}
	}
	return out
}

func circle(count int, c geometry.Vec3, spacing float64) []geometry.Vec3 {
	out := make([]geometry.Vec3, count)
	for i := range out {
		angle := 2 * math.Pi * float64(i) / float64(count)
		out[i] = geometry.Vec3{
			X: c.X + spacing*math.Cos(angle),
			Y: c.Y + spacing*math.Sin(angle),
			Z: c.Z,
		}
	}
	return out
}

// diamond is nose, two flanks, tail; extras stack above center as in
// square.
func diamond(count int, c geometry.Vec3, spacing float64) []geometry.Vec3 {
	points := []geometry.Vec3{
		{X: c.X + spacing, Y: c.Y, Z: c.Z},
		{X: c.X, Y: c.Y - spacing, Z: c.Z},
		{X: c.X, Y: c.Y + spacing, Z: c.Z},
		{X: c.X - spacing, Y: c.Y, Z: c.Z},
	}
	out := make([]geometry.Vec3, 0, count)
	for i := 0; i < count && i < 4; i++ {
		out = append(out, points[i])
	}
	for i := 4; i < count; i++ {
		out = append(out, geometry.Vec3{X: c.X, Y: c.Y, Z: c.Z + float64(i-3)*stackClimb})
	}
	return out
}
