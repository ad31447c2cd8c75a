package game

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// Terrain is the immutable content of a map cell
type Terrain uint8

const (
	TerrainOpen Terrain = iota
	TerrainWall
	TerrainRespawn
)

// Map glyphs
const (
	GlyphWall  = '#'
	GlyphFloor = ' '
)

// ErrEmptyMap is returned when the map text has no rows
var ErrEmptyMap = errors.New("map has no rows")

// ErrNoRespawnPoints is returned when the map declares no respawn markers
var ErrNoRespawnPoints = errors.New("map has no respawn points")

// ErrTooFewRespawnPoints is returned when a full room could leave a
// spawning player without a free respawn point
var ErrTooFewRespawnPoints = errors.New("map has fewer respawn points than room capacity")

// RespawnPoint is a spawn location with the facing a player receives there
type RespawnPoint struct {
	X      int       `json:"x"`
	Y      int       `json:"y"`
	Facing Direction `json:"facing"`
}

// Map is the shared, read-only arena grid. It is parsed once at startup
// and shared by every room; rooms keep their own occupancy.
type Map struct {
	width    int
	height   int
	cells    []Terrain // row-major
	respawns []RespawnPoint
}

// LoadMap reads and parses a map file
func LoadMap(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map %s: %w", path, err)
	}
	defer f.Close()

	m, err := ParseMap(f)
	if err != nil {
		return nil, fmt.Errorf("parse map %s: %w", path, err)
	}
	return m, nil
}

// ParseMap parses the plain-text map format: '#' is a wall, space is open
// floor and any other glyph is a respawn point facing the glyph uppercased
// (one of N, S, E, W). Short rows are padded with open floor.
func ParseMap(r io.Reader) (*Map, error) {
	var rows [][]rune

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		rows = append(rows, []rune(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Trailing blank lines are not part of the grid
	for len(rows) > 0 && strings.TrimSpace(string(rows[len(rows)-1])) == "" {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil, ErrEmptyMap
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	m := &Map{
		width:  width,
		height: len(rows),
		cells:  make([]Terrain, width*len(rows)),
	}

	for y, row := range rows {
		for x, glyph := range row {
			switch glyph {
			case GlyphWall:
				m.cells[y*width+x] = TerrainWall
			case GlyphFloor:
				m.cells[y*width+x] = TerrainOpen
			default:
				facing, ok := ParseDirection(string(unicode.ToUpper(glyph)))
				if !ok {
					return nil, fmt.Errorf("line %d column %d: invalid respawn glyph %q", y+1, x+1, glyph)
				}
				m.cells[y*width+x] = TerrainRespawn
				m.respawns = append(m.respawns, RespawnPoint{X: x, Y: y, Facing: facing})
			}
		}
	}

	if len(m.respawns) == 0 {
		return nil, ErrNoRespawnPoints
	}

	return m, nil
}

// Width returns the number of columns
func (m *Map) Width() int { return m.width }

// Height returns the number of rows
func (m *Map) Height() int { return m.height }

// InBounds reports whether (x, y) lies inside the grid
func (m *Map) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.width && y < m.height
}

// TerrainAt returns the terrain at (x, y). Cells outside the grid are walls.
func (m *Map) TerrainAt(x, y int) Terrain {
	if !m.InBounds(x, y) {
		return TerrainWall
	}
	return m.cells[y*m.width+x]
}

// IsWall reports whether (x, y) blocks movement and sight
func (m *Map) IsWall(x, y int) bool {
	return m.TerrainAt(x, y) == TerrainWall
}

// RespawnPoints returns the respawn points in row-major order
func (m *Map) RespawnPoints() []RespawnPoint {
	out := make([]RespawnPoint, len(m.respawns))
	copy(out, m.respawns)
	return out
}

// CheckCapacity verifies a room of maxPlayers can always place a spawning
// player: at most maxPlayers-1 others stand on respawn points at that time.
func (m *Map) CheckCapacity(maxPlayers int) error {
	if len(m.respawns) < maxPlayers {
		return fmt.Errorf("%w: %d < %d", ErrTooFewRespawnPoints, len(m.respawns), maxPlayers)
	}
	return nil
}
