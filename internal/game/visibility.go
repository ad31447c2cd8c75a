package game

// SightKind tags a visibility result
type SightKind uint8

const (
	SightEnemy SightKind = iota
	SightItem
)

// VisibleItem is one interactable cell found along a line of sight
type VisibleItem struct {
	Kind     SightKind
	X, Y     int
	Distance int // cells from the origin, starting at 1

	// SightEnemy
	Player *Player
	Facing Direction

	// SightItem
	Item ItemKind
}

// scan walks a straight ray from (x, y) in the facing direction and
// returns what it sees, nearest first. The walk stops strictly before the
// first wall or the grid edge. Items are skipped when enemiesOnly is set.
// Caller must hold r.mu.
func (r *Room) scan(x, y int, facing Direction, enemiesOnly bool) []VisibleItem {
	if !facing.Valid() {
		return nil
	}

	dx, dy := facing.Delta()
	var found []VisibleItem

	for dist, cx, cy := 1, x+dx, y+dy; !r.arena.IsWall(cx, cy); dist, cx, cy = dist+1, cx+dx, cy+dy {
		cell := r.grid.At(cx, cy)

		switch cell.Kind {
		case CellOccupied:
			found = append(found, VisibleItem{
				Kind:     SightEnemy,
				X:        cx,
				Y:        cy,
				Distance: dist,
				Player:   cell.Player,
				Facing:   cell.Player.Facing,
			})
		case CellItem:
			if enemiesOnly {
				continue
			}
			found = append(found, VisibleItem{
				Kind:     SightItem,
				X:        cx,
				Y:        cy,
				Distance: dist,
				Item:     cell.Item,
			})
		}
	}

	return found
}
