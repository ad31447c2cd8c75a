package game

import (
	"math/rand"
	"sync"
	"time"

	"powpow/internal/config"
)

// Room is one independent match on the shared map. All fields are guarded
// by mu; membership changes additionally require the engine's write lock.
type Room struct {
	mu        sync.Mutex
	name      string
	arena     *Map
	rules     config.GameConfig
	grid      *Occupancy
	members   []*Player // join order, used as the score tie-break
	rng       *rand.Rand
	createdAt time.Time
}

func newRoom(name string, arena *Map, rules config.GameConfig, seed int64, now time.Time) *Room {
	return &Room{
		name:      name,
		arena:     arena,
		rules:     rules,
		grid:      newOccupancy(arena.Width(), arena.Height()),
		members:   make([]*Player, 0, rules.MaxRoomPlayers),
		rng:       rand.New(rand.NewSource(seed)),
		createdAt: now,
	}
}

// Name returns the room name
func (r *Room) Name() string { return r.name }

func (r *Room) memberCount() int { return len(r.members) }

func (r *Room) isFull() bool { return len(r.members) >= r.rules.MaxRoomPlayers }

// addMember places p on a spawn point with a fresh loadout.
// degraded is true when no safe spawn point existed.
func (r *Room) addMember(p *Player) (degraded bool, err error) {
	if r.isFull() {
		return false, ErrRoomFull
	}

	pt, safe, err := r.findSpawn()
	if err != nil {
		return false, err
	}

	p.resetStats()
	p.arm(r.rules)
	r.place(p, pt)
	p.room = r
	r.members = append(r.members, p)

	return !safe, nil
}

// removeMember runs the quit path: vacate the cell, drop membership,
// reset stats to neutral.
func (r *Room) removeMember(p *Player) {
	if x, y, ok := p.Position(); ok && r.grid.PlayerAt(x, y) == p {
		r.grid.clear(x, y)
	}

	for i, m := range r.members {
		if m == p {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}

	p.resetStats()
	p.room = nil
}

// respawn brings a dead member back. Alive members are left untouched.
func (r *Room) respawn(p *Player) (degraded bool, err error) {
	if p.Health > 0 {
		return false, ErrAlreadyAlive
	}

	pt, safe, err := r.findSpawn()
	if err != nil {
		return false, err
	}

	p.arm(r.rules)
	r.place(p, pt)
	return !safe, nil
}

// place puts p on pt, replacing any ground item there
func (r *Room) place(p *Player, pt RespawnPoint) {
	r.grid.setPlayer(pt.X, pt.Y, p)
	p.setPosition(pt.X, pt.Y)
	p.Facing = pt.Facing
}

// ReloadResult reports the ammo after a reload
type ReloadResult struct {
	Ammo    int `json:"ammo"`
	Reserve int `json:"reserve"`
	Loaded  int `json:"loaded"`
}

func (r *Room) reload(p *Player) (ReloadResult, error) {
	if p.Ammo <= 0 && p.Reserve <= 0 {
		return ReloadResult{}, ErrOutOfAmmo
	}

	diff := r.rules.MagazineSize - p.Ammo
	if diff < 0 {
		diff = 0
	}
	if diff > p.Reserve {
		diff = p.Reserve
	}

	p.Ammo += diff
	p.Reserve -= diff

	return ReloadResult{Ammo: p.Ammo, Reserve: p.Reserve, Loaded: diff}, nil
}
