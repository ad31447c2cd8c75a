package game

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"powpow/internal/config"
)

func TestJoinRoomNameValidation(t *testing.T) {
	e := testEngine(t, cellsMap)
	e.Touch("u1", "alice")

	tests := []struct {
		name    string
		room    string
		wantErr error
	}{
		{"empty", "", ErrInvalidRoomName},
		{"too long", strings.Repeat("x", 40), ErrInvalidRoomName},
		{"max length", strings.Repeat("x", 39), nil},
		{"multibyte", strings.Repeat("é", 39), nil},
		{"astral counts once", strings.Repeat("🎯", 39), nil},
		{"astral too long", strings.Repeat("🎯", 40), ErrInvalidRoomName},
		{"case sensitive", "Lobby", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Join("u1", tt.room)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := e.Join("nobody", "room"); !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("Expected ErrUnknownPlayer, got %v", err)
	}
}

func TestJoinRoomFull(t *testing.T) {
	e := testEngine(t, cellsMap)

	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		e.Touch(id, id)
		if _, err := e.Join(id, "arena"); err != nil {
			t.Fatalf("Join %s failed: %v", id, err)
		}
	}

	e.Touch("late", "late")
	if _, err := e.Join("late", "arena"); !errors.Is(err, ErrRoomFull) {
		t.Errorf("Expected ErrRoomFull, got %v", err)
	}
	if KindOf(ErrRoomFull) != KindPreconditionFailed {
		t.Error("Room full should be a failed precondition")
	}

	// A member in another room keeps its place when the target is full
	e.Join("late", "other")
	if _, err := e.Join("late", "arena"); !errors.Is(err, ErrRoomFull) {
		t.Errorf("Expected ErrRoomFull, got %v", err)
	}
	info, _ := e.Lookup("late")
	if info.Room != "other" {
		t.Errorf("Expected to stay in 'other', got %q", info.Room)
	}
}

func TestFireAlone(t *testing.T) {
	e := testEngine(t, duelMap)
	e.Touch("a", "A")

	if _, err := e.Join("a", "x"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	result, err := e.Fire("a")
	if err != nil {
		t.Fatalf("Fire failed: %v", err)
	}
	if len(result.Killed) != 0 || len(result.Hit) != 0 {
		t.Errorf("Expected no hits, got %+v", result)
	}

	ammo, _, _ := e.Ammo("a")
	if ammo != 7 {
		t.Errorf("Expected ammo 7, got %d", ammo)
	}
}

func TestDuel(t *testing.T) {
	e := testEngine(t, duelMap)

	var (
		mu       sync.Mutex
		notices  []Notice
		degraded int
	)
	e.SetCallbacks(Callbacks{
		OnHit: func(n Notice) {
			mu.Lock()
			notices = append(notices, n)
			mu.Unlock()
		},
		OnSpawnDegraded: func(room, identity string) { degraded++ },
	})

	e.Touch("a", "A")
	e.Touch("b", "B")
	e.Join("a", "x")
	e.Join("b", "x")

	// The only free point for B is in A's line of fire
	if degraded != 1 {
		t.Errorf("Expected 1 degraded spawn, got %d", degraded)
	}

	result, err := e.Fire("a")
	if err != nil {
		t.Fatalf("Fire failed: %v", err)
	}
	if len(result.Hit) != 1 || result.Hit[0] != "B" {
		t.Fatalf("Expected to hit B, got %+v", result)
	}

	health, _ := e.Health("b")
	if health != 70 {
		t.Errorf("Expected health 70, got %d", health)
	}
	if len(notices) != 1 || notices[0].VictimIdentity != "b" || notices[0].Killed {
		t.Errorf("Expected one hit notice for b, got %+v", notices)
	}

	bInfo, _ := e.Lookup("b")
	for i := 0; i < 3; i++ {
		result, _ = e.Fire("a")
	}
	if len(result.Killed) != 1 || result.Killed[0] != "B" {
		t.Fatalf("Expected B killed, got %+v", result)
	}
	if !notices[len(notices)-1].Killed {
		t.Error("Last notice should report the kill")
	}

	a, _ := e.Lookup("a")
	b, _ := e.Lookup("b")
	if a.Kills != 1 || b.Deaths != 1 {
		t.Errorf("Expected 1 kill / 1 death, got %d / %d", a.Kills, b.Deaths)
	}
	if b.State != StateDead {
		t.Errorf("Expected B dead, got %v", b.State)
	}

	snap, err := e.RoomSnapshot("x")
	if err != nil {
		t.Fatalf("RoomSnapshot failed: %v", err)
	}
	if len(snap.Items) != 1 || snap.Items[0].X != bInfo.X || snap.Items[0].Y != bInfo.Y {
		t.Errorf("Expected a drop at B's cell, got %+v", snap.Items)
	}

	// Dead players may only respawn, score or quit
	if _, err := e.Look("b"); !errors.Is(err, ErrDead) {
		t.Errorf("Look: expected ErrDead, got %v", err)
	}
	if _, err := e.Fire("b"); !errors.Is(err, ErrDead) {
		t.Errorf("Fire: expected ErrDead, got %v", err)
	}
	if _, _, err := e.Move("b", North); !errors.Is(err, ErrDead) {
		t.Errorf("Move: expected ErrDead, got %v", err)
	}
	if _, err := e.Score("b"); err != nil {
		t.Errorf("Score should work while dead, got %v", err)
	}

	if _, err := e.Respawn("b"); err != nil {
		t.Fatalf("Respawn failed: %v", err)
	}
	b, _ = e.Lookup("b")
	if b.State != StateAlive || b.Health != 100 || b.Ammo != 8 || b.Reserve != 24 {
		t.Errorf("Expected fresh loadout after respawn, got %+v", b)
	}

	if e.Stats().Kills != 1 || e.Stats().Shots != 4 {
		t.Errorf("Unexpected stats %+v", e.Stats())
	}

	e.mu.RLock()
	checkOccupancy(t, e.rooms["x"])
	e.mu.RUnlock()
}

func TestRespawnWhileAlive(t *testing.T) {
	e := testEngine(t, cellsMap)
	e.Touch("a", "A")
	e.Join("a", "x")

	before, _ := e.Lookup("a")
	for i := 0; i < 2; i++ {
		if _, err := e.Respawn("a"); !errors.Is(err, ErrAlreadyAlive) {
			t.Errorf("Call %d: expected ErrAlreadyAlive, got %v", i, err)
		}
	}
	after, _ := e.Lookup("a")
	if before != after {
		t.Errorf("Respawn on an alive player changed state: %+v -> %+v", before, after)
	}
}

func TestEngineReload(t *testing.T) {
	e := testEngine(t, cellsMap)
	e.Touch("a", "A")
	e.Join("a", "x")

	e.mu.RLock()
	p := e.players["a"]
	p.room.mu.Lock()
	p.Ammo, p.Reserve = 3, 10
	p.room.mu.Unlock()
	e.mu.RUnlock()

	result, err := e.Reload("a")
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if result.Ammo != 8 || result.Reserve != 5 {
		t.Errorf("Expected 8/5, got %d/%d", result.Ammo, result.Reserve)
	}
}

func TestMoveBumpAndFace(t *testing.T) {
	e := testEngine(t, cellsMap)
	e.Touch("a", "A")
	join, _ := e.Join("a", "x")

	// Every cell is boxed in: the move fails but the facing changes
	result, view, err := e.Move("a", West)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if result.Moved || result.Message != MsgBlocked {
		t.Errorf("Expected blocked move, got %+v", result)
	}

	info, _ := e.Lookup("a")
	if info.Facing != West {
		t.Errorf("Expected facing W after bump, got %v", info.Facing)
	}
	if info.X != join.Spawn.X || info.Y != join.Spawn.Y {
		t.Error("Blocked move changed position")
	}
	if !strings.Contains(view, string(SymbolWest)) {
		t.Errorf("View should show the new facing:\n%s", view)
	}

	if _, _, err := e.Move("a", Direction('Q')); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("Expected ErrInvalidDirection, got %v", err)
	}
}

func TestTurnAround(t *testing.T) {
	e := testEngine(t, duelMap)
	e.Touch("a", "A")
	join, _ := e.Join("a", "x")

	if _, err := e.TurnAround("a"); err != nil {
		t.Fatalf("TurnAround failed: %v", err)
	}
	info, _ := e.Lookup("a")
	if info.Facing != join.Spawn.Facing.Opposite() {
		t.Errorf("Expected %v, got %v", join.Spawn.Facing.Opposite(), info.Facing)
	}

	if _, err := e.Turn("a", North); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	info, _ = e.Lookup("a")
	if info.Facing != North {
		t.Errorf("Expected N, got %v", info.Facing)
	}
}

func TestQuitTearsDownRoom(t *testing.T) {
	e := testEngine(t, cellsMap)

	var closed []string
	e.SetCallbacks(Callbacks{OnRoomClosed: func(room string) { closed = append(closed, room) }})

	e.Touch("a", "A")
	e.Touch("b", "B")
	e.Join("a", "x")
	e.Join("b", "x")

	if err := e.Quit("a"); err != nil {
		t.Fatalf("Quit failed: %v", err)
	}
	if len(e.Rooms()) != 1 {
		t.Error("Room should stay open while it has members")
	}

	e.Quit("b")
	if len(e.Rooms()) != 0 {
		t.Errorf("Expected no rooms, got %+v", e.Rooms())
	}
	if len(closed) != 1 || closed[0] != "x" {
		t.Errorf("Expected close of x, got %v", closed)
	}

	if err := e.Quit("a"); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("Expected ErrNotInRoom, got %v", err)
	}

	info, _ := e.Lookup("a")
	if info.State != StateOut || info.Kills != 0 || info.Health != 0 {
		t.Errorf("Expected neutral stats, got %+v", info)
	}
	if _, err := e.Look("a"); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("Expected ErrNotInRoom, got %v", err)
	}
}

func TestJoinSwitchesRoom(t *testing.T) {
	e := testEngine(t, cellsMap)
	e.Touch("a", "A")
	e.Join("a", "one")
	e.Join("a", "two")

	rooms := e.Rooms()
	if len(rooms) != 1 || rooms[0].Name != "two" {
		t.Errorf("Expected only room two, got %+v", rooms)
	}
}

func TestJoinOwnRoom(t *testing.T) {
	e := testEngine(t, cellsMap)
	e.Touch("solo", "solo")
	e.Join("solo", "arena")
	e.players["solo"].Health = 40
	e.players["solo"].Kills = 3

	// Not full: nothing changes
	if _, err := e.Join("solo", "arena"); err != nil {
		t.Fatalf("Join own room failed: %v", err)
	}
	info, _ := e.Lookup("solo")
	if info.Room != "arena" || info.Health != 40 || info.Kills != 3 {
		t.Errorf("Expected arena with health 40 and 3 kills, got %+v", info)
	}

	// Full: rejected like any other join
	for i := 0; i < 4; i++ {
		id := string(rune('a' + i))
		e.Touch(id, id)
		if _, err := e.Join(id, "arena"); err != nil {
			t.Fatalf("Join %s failed: %v", id, err)
		}
	}
	if _, err := e.Join("solo", "arena"); !errors.Is(err, ErrRoomFull) {
		t.Errorf("Expected ErrRoomFull, got %v", err)
	}
	info, _ = e.Lookup("solo")
	if info.Room != "arena" || info.Health != 40 || info.Kills != 3 {
		t.Errorf("Expected stats kept after rejected join, got %+v", info)
	}
	checkOccupancy(t, e.rooms["arena"])
}

func TestSweepIdle(t *testing.T) {
	now := epoch
	e := NewEngine(mustParse(t, cellsMap), EngineConfig{
		Rules: config.DefaultGame(),
		Seed:  1,
		Now:   func() time.Time { return now },
	})

	e.Touch("idle", "idle")
	e.Join("idle", "x")

	now = epoch.Add(4 * time.Minute)
	e.Touch("active", "active")
	e.Join("active", "x")

	removed := e.SweepIdle(epoch.Add(6 * time.Minute))

	if len(removed) != 1 || removed[0] != "idle" {
		t.Fatalf("Expected [idle], got %v", removed)
	}
	if _, err := e.Lookup("idle"); !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("Expected idle player removed, got %v", err)
	}
	if scores, _ := e.RoomScore("x"); len(scores) != 1 {
		t.Errorf("Expected 1 member left, got %d", len(scores))
	}
}

func TestOccupancyInvariantUnderRandomPlay(t *testing.T) {
	e := testEngine(t, []string{
		"##########",
		"#N      S#",
		"#  #  #  #",
		"#E      W#",
		"#  #  #  #",
		"#S      N#",
		"##########",
	})

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		e.Touch(id, id)
		if _, err := e.Join(id, "x"); err != nil {
			t.Fatalf("Join %s failed: %v", id, err)
		}
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		id := ids[rng.Intn(len(ids))]
		dir := AllDirections[rng.Intn(4)]

		switch rng.Intn(5) {
		case 0, 1:
			e.Move(id, dir)
		case 2:
			e.Turn(id, dir)
		case 3:
			if _, err := e.Fire(id); err == nil {
				e.Reload(id)
			}
		case 4:
			e.Respawn(id)
		}

		e.mu.RLock()
		checkOccupancy(t, e.rooms["x"])
		e.mu.RUnlock()
		if t.Failed() {
			t.Fatalf("Invariant broken at step %d", i)
		}
	}
}

func TestConcurrentRooms(t *testing.T) {
	e := testEngine(t, duelMap)

	var wg sync.WaitGroup
	for r := 0; r < 8; r++ {
		room := string(rune('A' + r))
		a, b := room+"-a", room+"-b"
		e.Touch(a, a)
		e.Touch(b, b)
		e.Join(a, room)
		e.Join(b, room)

		wg.Add(2)
		for _, id := range []string{a, b} {
			go func(id string) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					if _, err := e.Fire(id); errors.Is(err, ErrDead) {
						e.Respawn(id)
					}
					e.Reload(id)
					e.Score(id)
				}
			}(id)
		}
	}
	wg.Wait()

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, r := range e.rooms {
		checkOccupancy(t, r)
	}
}
