package game

// AmmoState is the gun state reported by a fire attempt
type AmmoState int

const (
	AmmoOK          AmmoState = iota // Shot fired
	AmmoNeedsReload                  // Gun empty, reserve left
	AmmoEmpty                        // Gun and reserve empty
)

func (s AmmoState) String() string {
	switch s {
	case AmmoOK:
		return "ok"
	case AmmoNeedsReload:
		return "reload"
	default:
		return "empty"
	}
}

// Hit is the effect of one shot on one target
type Hit struct {
	Identity string   `json:"identity"`
	Name     string   `json:"name"`
	Distance int      `json:"distance"`
	Damage   int      `json:"damage"`
	Health   int      `json:"health"` // Victim health after the hit
	Killed   bool     `json:"killed"`
	Drop     ItemKind `json:"drop,omitempty"`
}

// FireResult aggregates one shot. Killed and Hit hold display names in
// scan order (nearest first).
type FireResult struct {
	Ammo    AmmoState `json:"ammo"`
	Shooter string    `json:"shooter"`
	Hits    []Hit     `json:"hits"`
	Killed  []string  `json:"killed"`
	Hit     []string  `json:"hit"`
}

// damageFor returns the damage dealt to the k-th target (0-indexed).
// Power drops by one per target and never goes below the floor.
func (r *Room) damageFor(k int) int {
	damage := r.rules.BaseDamage - k
	if damage < r.rules.DamageFloor {
		damage = r.rules.DamageFloor
	}
	if damage < 0 {
		damage = 0
	}
	return damage
}

// fire shoots along the attacker's facing. Every living player in the
// line of fire takes damage with per-target falloff. Caller must hold r.mu.
func (r *Room) fire(attacker *Player) FireResult {
	result := FireResult{
		Shooter: attacker.Name,
		Killed:  []string{},
		Hit:     []string{},
	}

	if attacker.Ammo <= 0 {
		if attacker.Reserve > 0 {
			result.Ammo = AmmoNeedsReload
		} else {
			result.Ammo = AmmoEmpty
		}
		return result
	}

	attacker.Ammo--
	result.Ammo = AmmoOK

	targets := r.scan(attacker.X, attacker.Y, attacker.Facing, true)
	for k, target := range targets {
		victim := target.Player
		damage := r.damageFor(k)
		victim.Health -= damage

		hit := Hit{
			Identity: victim.Identity,
			Name:     victim.Name,
			Distance: target.Distance,
			Damage:   damage,
			Health:   victim.Health,
		}

		if victim.Health <= 0 {
			hit.Killed = true
			hit.Drop = r.randomDrop()

			victim.Deaths++
			victim.clearPosition()
			attacker.Kills++
			r.grid.setItem(target.X, target.Y, hit.Drop)

			result.Killed = append(result.Killed, victim.Name)
		} else {
			result.Hit = append(result.Hit, victim.Name)
		}

		result.Hits = append(result.Hits, hit)
	}

	return result
}

func (r *Room) randomDrop() ItemKind {
	if r.rng.Intn(2) == 0 {
		return ItemHealth
	}
	return ItemAmmo
}
