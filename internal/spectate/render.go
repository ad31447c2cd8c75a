// Package spectate draws room snapshots for spectators.
package spectate

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"

	"powpow/internal/game"

	"github.com/cespare/xxhash/v2"
	"github.com/fogleman/gg"
)

// ErrNoArena is returned for a snapshot without its map
var ErrNoArena = errors.New("snapshot has no arena")

// headerHeight is the strip above the grid used for the room caption
const headerHeight = 24

var (
	colorBackground = color.RGBA{12, 12, 28, 255}
	colorFloor      = color.RGBA{30, 30, 45, 255}
	colorWall       = color.RGBA{90, 90, 110, 255}
	colorRespawn    = color.RGBA{45, 45, 70, 255}
	colorHealth     = color.RGBA{83, 255, 69, 255}
	colorAmmo       = color.RGBA{255, 200, 40, 255}
	colorText       = color.RGBA{235, 235, 245, 255}
)

// playerPalette gives each name a stable color
var playerPalette = []color.RGBA{
	{255, 62, 62, 255},
	{62, 160, 255, 255},
	{255, 149, 0, 255},
	{190, 90, 255, 255},
	{0, 220, 200, 255},
	{255, 105, 180, 255},
}

// RenderPNG draws the snapshot as a PNG image, cellSize pixels per map cell.
// Dead members are not drawn.
func RenderPNG(snap game.RoomSnapshot, cellSize int) ([]byte, error) {
	if snap.Arena == nil {
		return nil, ErrNoArena
	}
	if cellSize <= 0 {
		return nil, errors.New("cell size must be positive")
	}

	arena := snap.Arena
	width := arena.Width() * cellSize
	height := arena.Height()*cellSize + headerHeight

	dc := gg.NewContext(width, height)

	dc.SetColor(colorBackground)
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()

	drawCaption(dc, snap, width)

	dc.Push()
	dc.Translate(0, headerHeight)

	drawTerrain(dc, arena, float64(cellSize))
	for _, it := range snap.Items {
		drawItem(dc, it, float64(cellSize))
	}
	for _, p := range snap.Players {
		if p.Alive {
			drawPlayer(dc, p, snap.MaxHealth, float64(cellSize))
		}
	}

	dc.Pop()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawCaption(dc *gg.Context, snap game.RoomSnapshot, width int) {
	path := fontPath()
	if path == "" {
		return
	}
	if err := dc.LoadFontFace(path, 14); err != nil {
		return
	}

	dc.SetColor(colorText)
	caption := fmt.Sprintf("%s  %d/%d alive", snap.Name, snap.AliveCount, len(snap.Players))
	dc.DrawStringAnchored(caption, float64(width)/2, headerHeight/2, 0.5, 0.5)
}

func drawTerrain(dc *gg.Context, arena *game.Map, cell float64) {
	for y := 0; y < arena.Height(); y++ {
		for x := 0; x < arena.Width(); x++ {
			switch arena.TerrainAt(x, y) {
			case game.TerrainWall:
				dc.SetColor(colorWall)
			case game.TerrainRespawn:
				dc.SetColor(colorRespawn)
			default:
				dc.SetColor(colorFloor)
			}
			dc.DrawRectangle(float64(x)*cell, float64(y)*cell, cell, cell)
			dc.Fill()
		}
	}
}

func drawItem(dc *gg.Context, it game.ItemSnapshot, cell float64) {
	cx, cy := center(it.X, it.Y, cell)
	arm := cell * 0.3

	switch it.Kind {
	case game.ItemHealth:
		// Cross
		dc.SetColor(colorHealth)
		dc.SetLineWidth(math.Max(1, cell/8))
		dc.DrawLine(cx-arm, cy, cx+arm, cy)
		dc.Stroke()
		dc.DrawLine(cx, cy-arm, cx, cy+arm)
		dc.Stroke()
	case game.ItemAmmo:
		dc.SetColor(colorAmmo)
		dc.DrawRectangle(cx-arm/2, cy-arm, arm, arm*2)
		dc.Fill()
	}
}

func drawPlayer(dc *gg.Context, p game.PlayerSnapshot, maxHealth int, cell float64) {
	cx, cy := center(p.X, p.Y, cell)
	radius := cell * 0.35

	// Body
	dc.SetColor(colorFor(p.Name))
	dc.DrawCircle(cx, cy, radius)
	dc.Fill()

	// Facing marker
	dx, dy := p.Facing.Delta()
	dc.SetColor(color.White)
	dc.SetLineWidth(math.Max(1, cell/10))
	dc.DrawLine(cx, cy, cx+float64(dx)*cell*0.5, cy+float64(dy)*cell*0.5)
	dc.Stroke()

	// Health bar
	barWidth := cell * 0.8
	barHeight := math.Max(2, cell/10)
	hpPercent := 1.0
	if maxHealth > 0 {
		hpPercent = math.Min(1, float64(p.Health)/float64(maxHealth))
	}
	top := cy - cell/2

	dc.SetColor(color.RGBA{51, 51, 51, 255})
	dc.DrawRectangle(cx-barWidth/2, top, barWidth, barHeight)
	dc.Fill()

	if hpPercent > 0.5 {
		dc.SetColor(color.RGBA{83, 255, 69, 255})
	} else if hpPercent > 0.25 {
		dc.SetColor(color.RGBA{255, 149, 0, 255})
	} else {
		dc.SetColor(color.RGBA{255, 62, 62, 255})
	}
	dc.DrawRectangle(cx-barWidth/2, top, barWidth*hpPercent, barHeight)
	dc.Fill()
}

func center(x, y int, cell float64) (float64, float64) {
	return float64(x)*cell + cell/2, float64(y)*cell + cell/2
}

func colorFor(name string) color.RGBA {
	return playerPalette[xxhash.Sum64String(name)%uint64(len(playerPalette))]
}

func fontPath() string {
	if p := os.Getenv("SPECTATE_FONT"); p != "" {
		return p
	}

	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/System/Library/Fonts/Helvetica.ttc",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
