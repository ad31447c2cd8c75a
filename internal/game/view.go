package game

import (
	"fmt"
	"strings"
)

// View symbols
const (
	SymbolNorth  = '▲'
	SymbolSouth  = '▼'
	SymbolEast   = '►'
	SymbolWest   = '◄'
	SymbolHealth = '+'
	SymbolAmmo   = '¶'
)

func facingSymbol(d Direction) rune {
	switch d {
	case North:
		return SymbolNorth
	case South:
		return SymbolSouth
	case East:
		return SymbolEast
	case West:
		return SymbolWest
	}
	return '?'
}

func itemSymbol(k ItemKind) rune {
	if k == ItemAmmo {
		return SymbolAmmo
	}
	return SymbolHealth
}

// renderView draws the whole map with only what p can see overlaid: p
// itself and everything along its line of sight. Every cell is followed
// by a space. Caller must hold r.mu.
func (r *Room) renderView(p *Player) string {
	overlay := make(map[[2]int]rune)

	if x, y, ok := p.Position(); ok {
		for _, v := range r.scan(x, y, p.Facing, false) {
			if v.Kind == SightItem {
				overlay[[2]int{v.X, v.Y}] = itemSymbol(v.Item)
			} else {
				overlay[[2]int{v.X, v.Y}] = facingSymbol(v.Facing)
			}
		}
		overlay[[2]int{x, y}] = facingSymbol(p.Facing)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Players on this room: %d\n", len(r.members))

	for y := 0; y < r.arena.Height(); y++ {
		for x := 0; x < r.arena.Width(); x++ {
			switch sym, ok := overlay[[2]int{x, y}]; {
			case ok:
				sb.WriteRune(sym)
			case r.arena.IsWall(x, y):
				sb.WriteRune(GlyphWall)
			default:
				sb.WriteRune(GlyphFloor)
			}
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}
