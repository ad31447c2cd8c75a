package game

// findSpawn picks a respawn point with no incoming line of fire. The scan
// starts at a random index and wraps around. When no point is safe the
// last examined point that is not occupied by a player is returned with
// safe=false. Caller must hold r.mu.
func (r *Room) findSpawn() (pt RespawnPoint, safe bool, err error) {
	points := r.arena.respawns
	n := len(points)
	if n == 0 {
		return RespawnPoint{}, false, ErrNoSpawnPoint
	}

	start := r.rng.Intn(n)
	var fallback RespawnPoint
	found := false

	for i := 0; i < n; i++ {
		candidate := points[(start+i)%n]

		if r.isSafe(candidate.X, candidate.Y) {
			return candidate, true, nil
		}
		if r.grid.PlayerAt(candidate.X, candidate.Y) == nil {
			fallback = candidate
			found = true
		}
	}

	if !found {
		return RespawnPoint{}, false, ErrNoSpawnPoint
	}
	return fallback, false, nil
}

// isSafe reports whether no living player stands on (x, y) or on any cell
// reachable from it along the four cardinal rays before a wall. Ground
// items do not make a spot unsafe. Caller must hold r.mu.
func (r *Room) isSafe(x, y int) bool {
	if r.grid.PlayerAt(x, y) != nil {
		return false
	}

	for _, dir := range AllDirections {
		if len(r.scan(x, y, dir, true)) > 0 {
			return false
		}
	}
	return true
}
