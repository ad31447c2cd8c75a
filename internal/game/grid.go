package game

// ItemKind is a ground item dropped where a player died
type ItemKind uint8

const (
	ItemNone ItemKind = iota
	ItemHealth
	ItemAmmo
)

func (k ItemKind) String() string {
	switch k {
	case ItemHealth:
		return "health"
	case ItemAmmo:
		return "ammo"
	default:
		return "none"
	}
}

// MarshalText encodes the item kind by name
func (k ItemKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// CellKind tags the content of an occupancy cell
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellOccupied
	CellItem
)

// Cell is one occupancy slot: empty, a living player, or a ground item
type Cell struct {
	Kind   CellKind
	Player *Player
	Item   ItemKind
}

// Occupancy is a room's mutable layer over the shared map.
// Memory layout is row-major (cells[y*width+x]).
type Occupancy struct {
	width  int
	height int
	cells  []Cell
}

func newOccupancy(width, height int) *Occupancy {
	return &Occupancy{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}
}

func (o *Occupancy) index(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= o.width || y >= o.height {
		return 0, false
	}
	return y*o.width + x, true
}

// At returns the cell at (x, y); out-of-bounds cells read as empty
func (o *Occupancy) At(x, y int) Cell {
	if i, ok := o.index(x, y); ok {
		return o.cells[i]
	}
	return Cell{}
}

// PlayerAt returns the living player at (x, y) or nil
func (o *Occupancy) PlayerAt(x, y int) *Player {
	c := o.At(x, y)
	if c.Kind != CellOccupied {
		return nil
	}
	return c.Player
}

func (o *Occupancy) setPlayer(x, y int, p *Player) {
	if i, ok := o.index(x, y); ok {
		o.cells[i] = Cell{Kind: CellOccupied, Player: p}
	}
}

func (o *Occupancy) setItem(x, y int, item ItemKind) {
	if i, ok := o.index(x, y); ok {
		o.cells[i] = Cell{Kind: CellItem, Item: item}
	}
}

func (o *Occupancy) clear(x, y int) {
	if i, ok := o.index(x, y); ok {
		o.cells[i] = Cell{}
	}
}
