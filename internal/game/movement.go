package game

// Movement replies
const (
	MsgBlocked      = "You can't go in that direction"
	MsgHealthPickup = "You've picked a health pack"
	MsgAmmoPickup   = "You've found ammo"
)

// MoveResult reports a single-step move
type MoveResult struct {
	Moved   bool     `json:"moved"`
	Pickup  ItemKind `json:"pickup,omitempty"`
	Message string   `json:"message"`
}

// move steps p one cell in dir. Walls, the grid edge and living players
// block the step with no state change. Picking up an item on the target
// cell consumes it. Facing is not touched here. Caller must hold r.mu.
func (r *Room) move(p *Player, dir Direction) MoveResult {
	if !dir.Valid() {
		return MoveResult{Message: MsgBlocked}
	}

	dx, dy := dir.Delta()
	tx, ty := p.X+dx, p.Y+dy

	if r.arena.IsWall(tx, ty) || r.grid.PlayerAt(tx, ty) != nil {
		return MoveResult{Message: MsgBlocked}
	}

	result := MoveResult{Moved: true}

	if cell := r.grid.At(tx, ty); cell.Kind == CellItem {
		switch cell.Item {
		case ItemHealth:
			p.Health += r.rules.HealthPickup
			if p.Health > r.rules.MaxHealth {
				p.Health = r.rules.MaxHealth
			}
			result.Message = MsgHealthPickup
		case ItemAmmo:
			p.Reserve += r.rules.AmmoPickup
			if p.Reserve > r.rules.ReserveCap {
				p.Reserve = r.rules.ReserveCap
			}
			result.Message = MsgAmmoPickup
		}
		result.Pickup = cell.Item
	}

	r.grid.clear(p.X, p.Y)
	r.grid.setPlayer(tx, ty, p)
	p.setPosition(tx, ty)

	return result
}
