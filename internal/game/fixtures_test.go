package game

import (
	"strings"
	"testing"
	"time"

	"powpow/internal/config"
)

var epoch = time.Unix(1700000000, 0)

// corridorMap is a single east-west corridor, seven cells long
var corridorMap = []string{
	"#########",
	"#E      #",
	"#########",
}

// duelMap has two respawn points facing each other
var duelMap = []string{
	"#####",
	"#EW #",
	"#####",
}

// cellsMap has six isolated respawn points that never see each other
var cellsMap = []string{
	"#############",
	"#N#S#E#W#N#S#",
	"#############",
}

func mustParse(t *testing.T, rows []string) *Map {
	t.Helper()
	m, err := ParseMap(strings.NewReader(strings.Join(rows, "\n")))
	if err != nil {
		t.Fatalf("ParseMap failed: %v", err)
	}
	return m
}

func testRoom(t *testing.T, rows []string) *Room {
	t.Helper()
	return newRoom("test", mustParse(t, rows), config.DefaultGame(), 1, epoch)
}

// addAt puts an armed member on (x, y) without running spawn selection
func addAt(r *Room, name string, x, y int, facing Direction) *Player {
	p := NewPlayer(name, name, epoch)
	p.arm(r.rules)
	r.place(p, RespawnPoint{X: x, Y: y, Facing: facing})
	p.room = r
	r.members = append(r.members, p)
	return p
}

func testEngine(t *testing.T, rows []string) *Engine {
	t.Helper()
	return NewEngine(mustParse(t, rows), EngineConfig{
		Rules: config.DefaultGame(),
		Seed:  1,
		Now:   func() time.Time { return epoch },
	})
}

// checkOccupancy verifies one player reference per cell and that every
// alive member sits on exactly the cell that references it.
func checkOccupancy(t *testing.T, r *Room) {
	t.Helper()

	occupied := 0
	for y := 0; y < r.grid.height; y++ {
		for x := 0; x < r.grid.width; x++ {
			p := r.grid.PlayerAt(x, y)
			if p == nil {
				continue
			}
			occupied++
			if px, py, ok := p.Position(); !ok || px != x || py != y {
				t.Errorf("Cell (%d,%d) holds %s whose position is (%d,%d,%v)", x, y, p.Name, px, py, ok)
			}
			if p.Health <= 0 {
				t.Errorf("Cell (%d,%d) holds dead player %s", x, y, p.Name)
			}
		}
	}

	alive := 0
	for _, m := range r.members {
		if m.Health <= 0 {
			if _, _, ok := m.Position(); ok {
				t.Errorf("Dead player %s still has a position", m.Name)
			}
			continue
		}
		alive++
		if r.grid.PlayerAt(m.X, m.Y) != m {
			t.Errorf("Alive player %s at (%d,%d) not found on its cell", m.Name, m.X, m.Y)
		}
	}

	if occupied != alive {
		t.Errorf("Expected %d occupied cells, got %d", alive, occupied)
	}
}
