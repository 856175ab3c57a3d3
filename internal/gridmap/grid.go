// Package gridmap maps displacements and coordinates onto the numbered cells of
// a square recovery map.
//
// Cells are numbered row-major from the north-west corner. North is up the
// map, so a northward displacement lowers the cell number by one row.
package gridmap

import (
	"errors"
	"fmt"
	"math"
)

var ErrNonFinite = errors.New("gridmap: displacement is not finite")

// Planar is a map-plane displacement in feet.
type Planar struct {
	North float64
	East  float64
}

func (p Planar) Add(o Planar) Planar {
	return Planar{North: p.North + o.North, East: p.East + o.East}
}

func (p Planar) Norm() float64 { return math.Hypot(p.North, p.East) }

type Grid struct {
	MapLenFt  float64
	CellLenFt float64
	// Center is the cell number of the map centre.
	Center int
	// PerRow is the number of cells along each side.
	PerRow int
}

func DefaultGrid() Grid {
	g := Grid{MapLenFt: 5000, CellLenFt: 250}
	g.PerRow = int(g.MapLenFt/g.CellLenFt) + 1
	g.Center = (g.PerRow*g.PerRow - 1) / 2
	return g
}

func (g Grid) Total() int { return g.PerRow * g.PerRow }

func (g Grid) Validate() error {
	if g.CellLenFt <= 0 {
		return fmt.Errorf("gridmap: cell length must be > 0")
	}
	if g.PerRow <= 0 {
		return fmt.Errorf("gridmap: cells per row must be > 0")
	}
	if g.Center < 0 || g.Center >= g.Total() {
		return fmt.Errorf("gridmap: center %d outside [0,%d]", g.Center, g.Total()-1)
	}
	return nil
}

// Cell returns the clamped cell number for a displacement from the map centre.
// Each axis is rounded up to whole cells.
func (g Grid) Cell(p Planar) (int, error) {
	if math.IsNaN(p.North) || math.IsNaN(p.East) {
		return 0, ErrNonFinite
	}
	// Bounding each axis to the cell count keeps infinities out of the sum.
	lim := float64(g.Total())
	row := bound(math.Ceil(p.North/g.CellLenFt), lim)
	col := bound(math.Ceil(p.East/g.CellLenFt), lim)
	idx := float64(g.Center) - row*float64(g.PerRow) + col
	hi := float64(g.Total() - 1)
	switch {
	case idx < 0:
		idx = 0
	case idx > hi:
		idx = hi
	}
	return int(idx), nil
}

func bound(v, lim float64) float64 {
	return math.Max(-lim, math.Min(lim, v))
}

// Fix is a located grid cell.
type Fix struct {
	Cell int
	// Position is the displacement from the map centre that produced Cell.
	Position Planar
	// Source is "imu", "imu+gps" or "gps".
	Source string
}

type Locator struct {
	Grid     Grid
	Surveyor Surveyor
}

func DefaultLocator() Locator {
	return Locator{Grid: DefaultGrid(), Surveyor: DefaultSurveyor()}
}

// Locate maps an inertial displacement from the launch point. When the launch
// coordinate is known, the launch point's offset from the surveyed reference
// is added; otherwise the launch point is assumed to be the map centre.
func (l Locator) Locate(imu Planar, launch *GeoCoord) (Fix, error) {
	pos, src := imu, "imu"
	if launch != nil {
		pos = imu.Add(l.Surveyor.Feet(l.Surveyor.Correction(*launch)))
		src = "imu+gps"
	}
	cell, err := l.Grid.Cell(pos)
	if err != nil {
		return Fix{}, err
	}
	return Fix{Cell: cell, Position: pos, Source: src}, nil
}

// LocateGPS maps the landing coordinate alone, for cross-checking Locate.
func (l Locator) LocateGPS(launch, landing GeoCoord) (Fix, error) {
	pos := l.Surveyor.CorrectedDistance(launch, landing)
	cell, err := l.Grid.Cell(pos)
	if err != nil {
		return Fix{}, err
	}
	return Fix{Cell: cell, Position: pos, Source: "gps"}, nil
}
