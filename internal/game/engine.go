package game

import (
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"powpow/internal/config"
	"powpow/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Notice describes one shot landing on a victim. Delivered to OnHit after
// every engine lock is released.
type Notice struct {
	Room            string `json:"room"`
	ShooterIdentity string `json:"shooterIdentity"`
	ShooterName     string `json:"shooterName"`
	VictimIdentity  string `json:"victimIdentity"`
	VictimName      string `json:"victimName"`
	Damage          int    `json:"damage"`
	Killed          bool   `json:"killed"`
}

// Callbacks are invoked outside every engine lock, so they may call back
// into the engine.
type Callbacks struct {
	OnHit           func(n Notice)
	OnKill          func(room, killer, victim string)
	OnSpawnDegraded func(room, identity string)
	OnRoomClosed    func(room string)
}

// EngineConfig configures a new engine
type EngineConfig struct {
	Rules    config.GameConfig
	Seed     int64            // 0 picks a seed from the clock
	EventLog *EventLog        // optional
	Now      func() time.Time // optional clock, defaults to time.Now
}

// Engine is the process-wide store: the shared map, the room registry and
// the player registry. mu guards both registries and every player's room
// membership; each room's lock guards what happens inside that room.
// Gameplay holds mu for reading plus one room lock, membership changes
// hold mu for writing.
type Engine struct {
	mu      sync.RWMutex
	arena   *Map
	rules   config.GameConfig
	players map[string]*Player // by identity
	rooms   map[string]*Room   // by name

	// Seeds per-room RNGs, only used under the write lock
	rng     *rand.Rand
	rngSeed int64
	now     func() time.Time

	eventLog  *EventLog
	callbacks Callbacks
	log       *logrus.Entry

	// Stats
	shots          atomic.Uint64
	kills          atomic.Uint64
	degradedSpawns atomic.Uint64
	sweptPlayers   atomic.Uint64
}

// NewEngine creates an engine over a parsed map
func NewEngine(arena *Map, cfg EngineConfig) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		arena:    arena,
		rules:    cfg.Rules,
		players:  make(map[string]*Player),
		rooms:    make(map[string]*Room),
		rng:      rand.New(rand.NewSource(seed)),
		rngSeed:  seed,
		now:      now,
		eventLog: cfg.EventLog,
		log:      logger.Component("engine"),
	}
}

// SetCallbacks installs the event callbacks
func (e *Engine) SetCallbacks(cb Callbacks) {
	e.mu.Lock()
	e.callbacks = cb
	e.mu.Unlock()
}

func (e *Engine) getCallbacks() Callbacks {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.callbacks
}

// Rules returns the game rules the engine was built with
func (e *Engine) Rules() config.GameConfig { return e.rules }

// Map returns the shared arena
func (e *Engine) Map() *Map { return e.arena }

// Seed returns the seed of the room RNG source
func (e *Engine) Seed() int64 { return e.rngSeed }

// =============================================================================
// PLAYER REGISTRY
// =============================================================================

// Touch records activity for an identity, creating the player on first
// contact. The display name is fixed at creation. Returns true when the
// player was created.
func (e *Engine) Touch(identity, name string) bool {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.players[identity]; ok {
		p.LastSeen = now
		return false
	}

	e.players[identity] = NewPlayer(identity, name, now)
	return true
}

// PlayerInfo is a copy of a player's state
type PlayerInfo struct {
	ID       string      `json:"id"`
	Identity string      `json:"identity"`
	Name     string      `json:"name"`
	Room     string      `json:"room,omitempty"`
	State    PlayerState `json:"-"`
	Status   string      `json:"state"`
	X        int         `json:"x"`
	Y        int         `json:"y"`
	Facing   Direction   `json:"facing,omitempty"`
	Health   int         `json:"health"`
	Ammo     int         `json:"ammo"`
	Reserve  int         `json:"reserve"`
	Kills    int         `json:"kills"`
	Deaths   int         `json:"deaths"`
	LastSeen time.Time   `json:"lastSeen"`
}

// Lookup returns a copy of the player's state
func (e *Engine) Lookup(identity string) (PlayerInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.players[identity]
	if !ok {
		return PlayerInfo{}, ErrUnknownPlayer
	}

	if r := p.room; r != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	return infoOf(p), nil
}

func infoOf(p *Player) PlayerInfo {
	state := p.State()
	return PlayerInfo{
		ID:       p.ID,
		Identity: p.Identity,
		Name:     p.Name,
		Room:     p.RoomName(),
		State:    state,
		Status:   state.String(),
		X:        p.X,
		Y:        p.Y,
		Facing:   p.Facing,
		Health:   p.Health,
		Ammo:     p.Ammo,
		Reserve:  p.Reserve,
		Kills:    p.Kills,
		Deaths:   p.Deaths,
		LastSeen: p.LastSeen,
	}
}

// =============================================================================
// MEMBERSHIP
// =============================================================================

// JoinResult reports where a player entered
type JoinResult struct {
	Room     string       `json:"room"`
	Spawn    RespawnPoint `json:"spawn"`
	Members  int          `json:"members"`
	Degraded bool         `json:"degraded"`
}

// Join puts the player in the named room, creating it on first use. A
// player already in a room leaves it first, unless the target is full.
// Joining the room the player is already in changes nothing, and is
// rejected like any other join when that room is full.
func (e *Engine) Join(identity, roomName string) (JoinResult, error) {
	// Length counts code points, so a name outside the BMP counts once
	if n := utf8.RuneCountInString(roomName); n < 1 || n > e.rules.MaxRoomNameLen {
		return JoinResult{}, ErrInvalidRoomName
	}

	e.mu.Lock()

	p, ok := e.players[identity]
	if !ok {
		e.mu.Unlock()
		return JoinResult{}, ErrUnknownPlayer
	}

	if target := e.rooms[roomName]; target != nil {
		target.mu.Lock()
		full := target.isFull()
		var current JoinResult
		if target == p.room {
			current = JoinResult{
				Room:    roomName,
				Spawn:   RespawnPoint{X: p.X, Y: p.Y, Facing: p.Facing},
				Members: target.memberCount(),
			}
		}
		target.mu.Unlock()

		if full {
			e.mu.Unlock()
			e.log.WithFields(logrus.Fields{"room": roomName, "identity": identity}).Debug("Join rejected: room full")
			return JoinResult{}, ErrRoomFull
		}

		// Re-joining the current room keeps health, ammo and score
		if target == p.room {
			e.mu.Unlock()
			return current, nil
		}
	}

	var closed []string
	if p.room != nil {
		if name := e.leaveLocked(p, "switch"); name != "" {
			closed = append(closed, name)
		}
	}

	room := e.rooms[roomName]
	if room == nil {
		room = newRoom(roomName, e.arena, e.rules, e.rng.Int63(), e.now())
		e.rooms[roomName] = room
	}

	room.mu.Lock()
	degraded, err := room.addMember(p)
	result := JoinResult{
		Room:     roomName,
		Spawn:    RespawnPoint{X: p.X, Y: p.Y, Facing: p.Facing},
		Members:  room.memberCount(),
		Degraded: degraded,
	}
	empty := room.memberCount() == 0
	room.mu.Unlock()

	if empty {
		delete(e.rooms, roomName)
	}
	cb := e.callbacks
	e.mu.Unlock()

	e.notifyClosed(cb, closed)

	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{"room": roomName, "identity": identity}).Warn("Join failed")
		return JoinResult{}, err
	}

	e.eventLog.EmitSimple(EventTypeJoin, roomName, identity, JoinPayload{
		Name:     p.Name,
		Spawn:    result.Spawn,
		Degraded: degraded,
	})
	e.log.WithFields(logrus.Fields{
		"room":     roomName,
		"identity": identity,
		"name":     p.Name,
		"members":  result.Members,
	}).Info("Player joined room")

	if degraded {
		e.spawnDegraded(cb, roomName, identity)
	}

	return result, nil
}

// Quit removes the player from its room
func (e *Engine) Quit(identity string) error {
	e.mu.Lock()

	p, ok := e.players[identity]
	if !ok {
		e.mu.Unlock()
		return ErrUnknownPlayer
	}
	if p.room == nil {
		e.mu.Unlock()
		return ErrNotInRoom
	}

	room := p.room.name
	closed := e.leaveLocked(p, "quit")
	cb := e.callbacks
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{"room": room, "identity": identity}).Info("Player left room")
	if closed != "" {
		e.notifyClosed(cb, []string{closed})
	}
	return nil
}

// leaveLocked runs the quit path and tears the room down once empty.
// Returns the closed room name or "". Caller must hold e.mu for writing.
func (e *Engine) leaveLocked(p *Player, reason string) string {
	r := p.room

	r.mu.Lock()
	r.removeMember(p)
	empty := r.memberCount() == 0
	r.mu.Unlock()

	if empty {
		delete(e.rooms, r.name)
	}

	e.eventLog.EmitSimple(EventTypeLeave, r.name, p.Identity, LeavePayload{
		Reason:     reason,
		RoomClosed: empty,
	})

	if empty {
		return r.name
	}
	return ""
}

func (e *Engine) notifyClosed(cb Callbacks, rooms []string) {
	for _, name := range rooms {
		e.log.WithField("room", name).Info("Room closed")
		if cb.OnRoomClosed != nil {
			cb.OnRoomClosed(name)
		}
	}
}

func (e *Engine) spawnDegraded(cb Callbacks, room, identity string) {
	e.degradedSpawns.Add(1)
	e.log.WithFields(logrus.Fields{"room": room, "identity": identity}).Warn("No safe spawn point, placed in line of fire")
	if cb.OnSpawnDegraded != nil {
		cb.OnSpawnDegraded(room, identity)
	}
}

// =============================================================================
// GAMEPLAY
// =============================================================================

// withMember runs fn with the player's room locked. A dead player is
// rejected with ErrDead when requireAlive is set.
func (e *Engine) withMember(identity string, requireAlive bool, fn func(r *Room, p *Player) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.players[identity]
	if !ok {
		return ErrUnknownPlayer
	}
	r := p.room
	if r == nil {
		return ErrNotInRoom
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if requireAlive && p.Health <= 0 {
		return ErrDead
	}
	return fn(r, p)
}

// Look renders what the player currently sees
func (e *Engine) Look(identity string) (string, error) {
	var view string
	err := e.withMember(identity, true, func(r *Room, p *Player) error {
		view = r.renderView(p)
		return nil
	})
	return view, err
}

// Move steps one cell and faces dir, even when the step is blocked.
// Returns the refreshed view.
func (e *Engine) Move(identity string, dir Direction) (MoveResult, string, error) {
	if !dir.Valid() {
		return MoveResult{}, "", ErrInvalidDirection
	}

	var (
		result MoveResult
		view   string
	)
	err := e.withMember(identity, true, func(r *Room, p *Player) error {
		result = r.move(p, dir)
		p.Facing = dir

		if result.Pickup != ItemNone {
			e.eventLog.EmitSimple(EventTypePickup, r.name, identity, PickupPayload{
				Item: result.Pickup,
				X:    p.X,
				Y:    p.Y,
			})
		}

		view = r.renderView(p)
		return nil
	})
	return result, view, err
}

// Turn faces dir and returns the refreshed view
func (e *Engine) Turn(identity string, dir Direction) (string, error) {
	if !dir.Valid() {
		return "", ErrInvalidDirection
	}

	var view string
	err := e.withMember(identity, true, func(r *Room, p *Player) error {
		p.Facing = dir
		view = r.renderView(p)
		return nil
	})
	return view, err
}

// TurnAround faces the opposite direction and returns the refreshed view
func (e *Engine) TurnAround(identity string) (string, error) {
	var view string
	err := e.withMember(identity, true, func(r *Room, p *Player) error {
		p.Facing = p.Facing.Opposite()
		view = r.renderView(p)
		return nil
	})
	return view, err
}

// Fire shoots along the player's facing. Victims are notified through
// OnHit once the room is unlocked.
func (e *Engine) Fire(identity string) (FireResult, error) {
	var (
		result  FireResult
		room    string
		shooter string
	)
	err := e.withMember(identity, true, func(r *Room, p *Player) error {
		result = r.fire(p)
		room = r.name
		shooter = p.Name

		if result.Ammo != AmmoOK {
			return nil
		}

		e.eventLog.EmitSimple(EventTypeFire, room, identity, FirePayload{
			Facing:   p.Facing,
			Targets:  len(result.Hits),
			AmmoLeft: p.Ammo,
		})
		for _, hit := range result.Hits {
			e.eventLog.EmitSimple(EventTypeDamage, room, identity, DamagePayload{
				Victim:   hit.Identity,
				Damage:   hit.Damage,
				VictimHP: hit.Health,
				Distance: hit.Distance,
			})
			if hit.Killed {
				e.eventLog.EmitSimple(EventTypeKill, room, identity, KillPayload{
					Victim:       hit.Identity,
					KillerKills:  p.Kills,
					VictimDeaths: r.deathsOf(hit.Identity),
					Drop:         hit.Drop,
				})
			}
		}
		return nil
	})
	if err != nil || result.Ammo != AmmoOK {
		return result, err
	}

	e.shots.Add(1)

	cb := e.getCallbacks()
	for _, hit := range result.Hits {
		if hit.Killed {
			e.kills.Add(1)
			e.log.WithFields(logrus.Fields{
				"room":   room,
				"killer": shooter,
				"victim": hit.Name,
			}).Info("Player killed")
			if cb.OnKill != nil {
				cb.OnKill(room, shooter, hit.Name)
			}
		}
		if cb.OnHit != nil {
			cb.OnHit(Notice{
				Room:            room,
				ShooterIdentity: identity,
				ShooterName:     shooter,
				VictimIdentity:  hit.Identity,
				VictimName:      hit.Name,
				Damage:          hit.Damage,
				Killed:          hit.Killed,
			})
		}
	}

	return result, nil
}

// deathsOf returns a member's death count. Caller must hold r.mu.
func (r *Room) deathsOf(identity string) int {
	for _, m := range r.members {
		if m.Identity == identity {
			return m.Deaths
		}
	}
	return 0
}

// Reload refills the gun from the reserve
func (e *Engine) Reload(identity string) (ReloadResult, error) {
	var result ReloadResult
	err := e.withMember(identity, true, func(r *Room, p *Player) error {
		var err error
		result, err = r.reload(p)
		return err
	})
	return result, err
}

// Ammo reports rounds in the gun and in reserve
func (e *Engine) Ammo(identity string) (ammo, reserve int, err error) {
	err = e.withMember(identity, true, func(r *Room, p *Player) error {
		ammo, reserve = p.Ammo, p.Reserve
		return nil
	})
	return ammo, reserve, err
}

// Health reports the player's health
func (e *Engine) Health(identity string) (int, error) {
	var health int
	err := e.withMember(identity, true, func(r *Room, p *Player) error {
		health = p.Health
		return nil
	})
	return health, err
}

// Respawn brings a dead player back on a safe spawn point. Alive players
// get ErrAlreadyAlive and are left untouched.
func (e *Engine) Respawn(identity string) (RespawnPoint, error) {
	var (
		spawn    RespawnPoint
		room     string
		degraded bool
	)
	err := e.withMember(identity, false, func(r *Room, p *Player) error {
		var err error
		if degraded, err = r.respawn(p); err != nil {
			return err
		}
		room = r.name
		spawn = RespawnPoint{X: p.X, Y: p.Y, Facing: p.Facing}

		e.eventLog.EmitSimple(EventTypeRespawn, room, identity, RespawnPayload{
			Spawn:    spawn,
			Degraded: degraded,
		})
		return nil
	})
	if err != nil {
		return RespawnPoint{}, err
	}

	if degraded {
		e.spawnDegraded(e.getCallbacks(), room, identity)
	}
	return spawn, nil
}

// Score ranks the members of the player's room
func (e *Engine) Score(identity string) ([]ScoreEntry, error) {
	var entries []ScoreEntry
	err := e.withMember(identity, false, func(r *Room, p *Player) error {
		entries = r.ranking()
		return nil
	})
	return entries, err
}

// RoomScore ranks the members of a room by name
func (e *Engine) RoomScore(name string) ([]ScoreEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.rooms[name]
	if !ok {
		return nil, ErrUnknownRoom
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ranking(), nil
}

// =============================================================================
// HOUSEKEEPING
// =============================================================================

// SweepIdle removes players idle longer than the idle timeout. Members run
// the regular quit path first. Returns the removed identities.
func (e *Engine) SweepIdle(now time.Time) []string {
	cutoff := now.Add(-e.rules.IdleTimeout)

	e.mu.Lock()

	var (
		removed []string
		closed  []string
	)
	for identity, p := range e.players {
		if !p.LastSeen.Before(cutoff) {
			continue
		}
		if p.room != nil {
			if name := e.leaveLocked(p, "idle"); name != "" {
				closed = append(closed, name)
			}
		}
		delete(e.players, identity)
		removed = append(removed, identity)
	}
	cb := e.callbacks
	e.mu.Unlock()

	sort.Strings(removed)
	e.notifyClosed(cb, closed)

	if len(removed) > 0 {
		e.sweptPlayers.Add(uint64(len(removed)))
		e.eventLog.EmitSimple(EventTypeSweep, "", "", SweepPayload{Removed: removed})
		e.log.WithField("removed", len(removed)).Info("Idle players removed")
	}
	return removed
}

// RoomInfo summarises a room
type RoomInfo struct {
	Name      string    `json:"name"`
	Members   int       `json:"members"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Rooms lists the open rooms sorted by name
func (e *Engine) Rooms() []RoomInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(e.rooms))
	for _, r := range e.rooms {
		r.mu.Lock()
		infos = append(infos, RoomInfo{
			Name:      r.name,
			Members:   r.memberCount(),
			Capacity:  r.rules.MaxRoomPlayers,
			CreatedAt: r.createdAt,
		})
		r.mu.Unlock()
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// EngineStats is a point-in-time view of engine counters
type EngineStats struct {
	Players        int    `json:"players"`
	Rooms          int    `json:"rooms"`
	Shots          uint64 `json:"shots"`
	Kills          uint64 `json:"kills"`
	DegradedSpawns uint64 `json:"degradedSpawns"`
	SweptPlayers   uint64 `json:"sweptPlayers"`
}

// Stats returns the engine counters
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	players, rooms := len(e.players), len(e.rooms)
	e.mu.RUnlock()

	return EngineStats{
		Players:        players,
		Rooms:          rooms,
		Shots:          e.shots.Load(),
		Kills:          e.kills.Load(),
		DegradedSpawns: e.degradedSpawns.Load(),
		SweptPlayers:   e.sweptPlayers.Load(),
	}
}

// GetEventLogStats returns event log statistics
func (e *Engine) GetEventLogStats() map[string]interface{} {
	if e.eventLog == nil {
		return map[string]interface{}{"running": false}
	}
	return e.eventLog.GetStats()
}
