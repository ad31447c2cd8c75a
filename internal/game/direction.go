package game

import "strings"

// Direction is a cardinal facing
type Direction byte

const (
	North Direction = 'N'
	South Direction = 'S'
	East  Direction = 'E'
	West  Direction = 'W'
)

// ParseDirection accepts "n", "north", "N" ... (case-insensitive)
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "north":
		return North, true
	case "s", "south":
		return South, true
	case "e", "east":
		return East, true
	case "w", "west":
		return West, true
	}
	return 0, false
}

// Delta returns the one-step grid offset. North is y decreasing.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case South:
		return 0, 1
	case East:
		return 1, 0
	case West:
		return -1, 0
	}
	return 0, 0
}

// Opposite returns the reverse facing
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	}
	return d
}

// Valid reports whether d is one of the four cardinal facings
func (d Direction) Valid() bool {
	return d == North || d == South || d == East || d == West
}

func (d Direction) String() string {
	if !d.Valid() {
		return "?"
	}
	return string(rune(d))
}

// MarshalText encodes the facing as its letter
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// AllDirections in scan order for safety checks
var AllDirections = [4]Direction{North, South, East, West}
