package game

import (
	"sync/atomic"
	"time"
)

// snapshotSeq orders snapshots across all rooms
var snapshotSeq atomic.Uint64

// PlayerSnapshot is an immutable copy of a member for rendering.
// Uses value types (not pointers) to ensure immutability.
type PlayerSnapshot struct {
	Name   string    `json:"name"`
	X      int       `json:"x"`
	Y      int       `json:"y"`
	Facing Direction `json:"facing,omitempty"`
	Health int       `json:"health"`
	Kills  int       `json:"kills"`
	Deaths int       `json:"deaths"`
	Alive  bool      `json:"alive"`
}

// ItemSnapshot is a ground item
type ItemSnapshot struct {
	X    int      `json:"x"`
	Y    int      `json:"y"`
	Kind ItemKind `json:"kind"`
}

// RoomSnapshot is a complete immutable room state for spectators.
// Arena is the shared read-only map.
type RoomSnapshot struct {
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Arena     *Map      `json:"-"`

	Players []PlayerSnapshot `json:"players"` // join order
	Items   []ItemSnapshot   `json:"items"`   // row-major

	AliveCount int `json:"aliveCount"`
	MaxHealth  int `json:"maxHealth"`
}

// snapshot copies the room state. Caller must hold r.mu.
func (r *Room) snapshot(now time.Time) RoomSnapshot {
	snap := RoomSnapshot{
		Sequence:  snapshotSeq.Add(1),
		Timestamp: now,
		Name:      r.name,
		Arena:     r.arena,
		MaxHealth: r.rules.MaxHealth,
		Players:   make([]PlayerSnapshot, 0, len(r.members)),
		Items:     make([]ItemSnapshot, 0),
	}

	for _, m := range r.members {
		alive := m.Health > 0
		snap.Players = append(snap.Players, PlayerSnapshot{
			Name:   m.Name,
			X:      m.X,
			Y:      m.Y,
			Facing: m.Facing,
			Health: m.Health,
			Kills:  m.Kills,
			Deaths: m.Deaths,
			Alive:  alive,
		})
		if alive {
			snap.AliveCount++
		}
	}

	for y := 0; y < r.grid.height; y++ {
		for x := 0; x < r.grid.width; x++ {
			if c := r.grid.At(x, y); c.Kind == CellItem {
				snap.Items = append(snap.Items, ItemSnapshot{X: x, Y: y, Kind: c.Item})
			}
		}
	}

	return snap
}

// RoomSnapshot returns an immutable copy of the named room
func (e *Engine) RoomSnapshot(name string) (RoomSnapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.rooms[name]
	if !ok {
		return RoomSnapshot{}, ErrUnknownRoom
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(e.now()), nil
}
