package game

import (
	"reflect"
	"testing"
)

func TestFireDamageFalloff(t *testing.T) {
	r := testRoom(t, corridorMap)
	shooter := addAt(r, "shooter", 1, 1, East)
	a := addAt(r, "a", 2, 1, West)
	b := addAt(r, "b", 3, 1, West)
	c := addAt(r, "c", 4, 1, West)

	result := r.fire(shooter)

	if result.Ammo != AmmoOK {
		t.Fatalf("Expected AmmoOK, got %v", result.Ammo)
	}
	if shooter.Ammo != r.rules.MagazineSize-1 {
		t.Errorf("Expected ammo %d, got %d", r.rules.MagazineSize-1, shooter.Ammo)
	}

	for i, want := range []int{30, 29, 28} {
		if result.Hits[i].Damage != want {
			t.Errorf("Target %d: expected damage %d, got %d", i, want, result.Hits[i].Damage)
		}
	}
	if a.Health != 70 || b.Health != 71 || c.Health != 72 {
		t.Errorf("Unexpected health: %d %d %d", a.Health, b.Health, c.Health)
	}
	if !reflect.DeepEqual(result.Hit, []string{"a", "b", "c"}) {
		t.Errorf("Expected hit [a b c], got %v", result.Hit)
	}
	if len(result.Killed) != 0 {
		t.Errorf("Expected no kills, got %v", result.Killed)
	}
}

func TestFireDamageFloor(t *testing.T) {
	tests := []struct {
		name   string
		floor  int
		damage []int
	}{
		{"floor one", 1, []int{2, 1, 1, 1}},
		{"floor zero", 0, []int{2, 1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRoom(t, corridorMap)
			r.rules.BaseDamage = 2
			r.rules.DamageFloor = tt.floor

			shooter := addAt(r, "shooter", 1, 1, East)
			for x := 2; x <= 5; x++ {
				addAt(r, string(rune('a'+x)), x, 1, West)
			}

			result := r.fire(shooter)
			if len(result.Hits) != len(tt.damage) {
				t.Fatalf("Expected %d hits, got %d", len(tt.damage), len(result.Hits))
			}

			prev := result.Hits[0].Damage
			for i, want := range tt.damage {
				got := result.Hits[i].Damage
				if got != want {
					t.Errorf("Target %d: expected damage %d, got %d", i, want, got)
				}
				if got > prev {
					t.Errorf("Damage increased from %d to %d", prev, got)
				}
				prev = got
			}
		})
	}
}

func TestFireKill(t *testing.T) {
	r := testRoom(t, corridorMap)
	shooter := addAt(r, "shooter", 1, 1, East)
	victim := addAt(r, "victim", 2, 1, West)
	behind := addAt(r, "behind", 3, 1, West)
	victim.Health = 30

	result := r.fire(shooter)

	if !reflect.DeepEqual(result.Killed, []string{"victim"}) {
		t.Errorf("Expected killed [victim], got %v", result.Killed)
	}
	if !reflect.DeepEqual(result.Hit, []string{"behind"}) {
		t.Errorf("Expected hit [behind], got %v", result.Hit)
	}
	if behind.Health != 71 {
		t.Errorf("Expected second target to take 29, health %d", behind.Health)
	}

	if victim.Deaths != 1 {
		t.Errorf("Expected 1 death, got %d", victim.Deaths)
	}
	if shooter.Kills != 1 {
		t.Errorf("Expected 1 kill, got %d", shooter.Kills)
	}
	if victim.State() != StateDead {
		t.Errorf("Expected victim dead, got %v", victim.State())
	}
	if _, _, ok := victim.Position(); ok {
		t.Error("Dead victim should have no position")
	}
	if victim.RoomName() != "test" {
		t.Error("Dead victim should remain a room member")
	}

	cell := r.grid.At(2, 1)
	if cell.Kind != CellItem || (cell.Item != ItemHealth && cell.Item != ItemAmmo) {
		t.Errorf("Expected a dropped item at (2,1), got %+v", cell)
	}
	if result.Hits[0].Drop != cell.Item {
		t.Errorf("Reported drop %v does not match cell %v", result.Hits[0].Drop, cell.Item)
	}

	checkOccupancy(t, r)
}

func TestFireAtWall(t *testing.T) {
	r := testRoom(t, corridorMap)
	shooter := addAt(r, "shooter", 1, 1, East)

	result := r.fire(shooter)

	if result.Ammo != AmmoOK {
		t.Errorf("Expected AmmoOK, got %v", result.Ammo)
	}
	if len(result.Hit) != 0 || len(result.Killed) != 0 {
		t.Errorf("Expected no hits, got %+v", result)
	}
	if shooter.Ammo != 7 {
		t.Errorf("Expected ammo 7, got %d", shooter.Ammo)
	}
}

func TestFireWithoutAmmo(t *testing.T) {
	tests := []struct {
		name    string
		reserve int
		want    AmmoState
	}{
		{"needs reload", 5, AmmoNeedsReload},
		{"empty", 0, AmmoEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRoom(t, corridorMap)
			shooter := addAt(r, "shooter", 1, 1, East)
			target := addAt(r, "target", 2, 1, West)
			shooter.Ammo = 0
			shooter.Reserve = tt.reserve

			result := r.fire(shooter)

			if result.Ammo != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, result.Ammo)
			}
			if shooter.Ammo != 0 || shooter.Reserve != tt.reserve {
				t.Error("Failed fire should not change ammo")
			}
			if target.Health != 100 {
				t.Errorf("Failed fire should not damage, health %d", target.Health)
			}
		})
	}
}
