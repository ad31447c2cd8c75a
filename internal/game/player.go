package game

import (
	"time"

	"powpow/internal/config"

	"github.com/google/uuid"
)

// PlayerState represents the player's lifecycle state
type PlayerState int

const (
	StateOut   PlayerState = iota // Not in a room (never joined or quit)
	StateAlive                    // In a room, on the grid
	StateDead                     // In a room, off the grid until respawn
)

func (s PlayerState) String() string {
	switch s {
	case StateAlive:
		return "alive"
	case StateDead:
		return "dead"
	default:
		return "out"
	}
}

// Player is one chat identity. Session fields (Identity, Name, LastSeen)
// live for the whole process; game fields are only meaningful while the
// player is a member of a room and are guarded by that room's lock.
type Player struct {
	ID       string    `json:"id"`
	Identity string    `json:"identity"`
	Name     string    `json:"name"`
	LastSeen time.Time `json:"lastSeen"`

	// Game state
	X       int       `json:"x"`
	Y       int       `json:"y"`
	Facing  Direction `json:"facing"`
	Health  int       `json:"health"`
	Ammo    int       `json:"ammo"`    // Rounds in the gun
	Reserve int       `json:"reserve"` // Rounds available for reload
	Kills   int       `json:"kills"`
	Deaths  int       `json:"deaths"`

	onGrid bool
	room   *Room
}

// NewPlayer creates a player for a chat identity
func NewPlayer(identity, name string, now time.Time) *Player {
	return &Player{
		ID:       uuid.NewString(),
		Identity: identity,
		Name:     name,
		LastSeen: now,
		X:        -1,
		Y:        -1,
	}
}

// State returns the lifecycle state
func (p *Player) State() PlayerState {
	switch {
	case p.room == nil:
		return StateOut
	case p.Health > 0:
		return StateAlive
	default:
		return StateDead
	}
}

// IsAlive reports whether the player is in a room with health left
func (p *Player) IsAlive() bool {
	return p.State() == StateAlive
}

// Position returns the grid cell, ok is false when off the grid
func (p *Player) Position() (x, y int, ok bool) {
	return p.X, p.Y, p.onGrid
}

// RoomName returns the current room name or ""
func (p *Player) RoomName() string {
	if p.room == nil {
		return ""
	}
	return p.room.name
}

func (p *Player) setPosition(x, y int) {
	p.X, p.Y = x, y
	p.onGrid = true
}

func (p *Player) clearPosition() {
	p.X, p.Y = -1, -1
	p.onGrid = false
}

// arm restores a fresh loadout (join and respawn)
func (p *Player) arm(rules config.GameConfig) {
	p.Health = rules.MaxHealth
	p.Ammo = rules.MagazineSize
	p.Reserve = rules.ReserveCap
}

// resetStats returns game fields to neutral so a re-join starts fresh
func (p *Player) resetStats() {
	p.clearPosition()
	p.Facing = 0
	p.Health = 0
	p.Ammo = 0
	p.Reserve = 0
	p.Kills = 0
	p.Deaths = 0
}
