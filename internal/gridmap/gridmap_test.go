package gridmap

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestCell_Scenario(t *testing.T) {
	g := Grid{MapLenFt: 5000, CellLenFt: 250, Center: 190, PerRow: 21}
	got, err := g.Cell(Planar{North: 625, East: -625})
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	// 190 - ceil(2.5)*21 + ceil(-2.5) = 190 - 63 - 2
	if got != 125 {
		t.Fatalf("cell=%d want 125", got)
	}
}

func TestDefaultGrid(t *testing.T) {
	g := DefaultGrid()
	if g.PerRow != 21 || g.Center != 220 || g.Total() != 441 {
		t.Fatalf("grid=%+v", g)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c, _ := g.Cell(Planar{}); c != 220 {
		t.Fatalf("origin cell=%d want 220", c)
	}
}

func TestCell_Clamped(t *testing.T) {
	g := DefaultGrid()
	extremes := []float64{0, 1, -1, 1e6, -1e6, math.MaxFloat64, -math.MaxFloat64, math.Inf(1), math.Inf(-1)}
	for _, n := range extremes {
		for _, e := range extremes {
			c, err := g.Cell(Planar{North: n, East: e})
			if err != nil {
				t.Fatalf("Cell(%v,%v): %v", n, e, err)
			}
			if c < 0 || c > g.Total()-1 {
				t.Fatalf("Cell(%v,%v)=%d out of range", n, e, c)
			}
		}
	}

	r := rand.New(rand.NewSource(3))
	for i := 0; i < 10000; i++ {
		p := Planar{North: r.NormFloat64() * math.Pow(10, float64(r.Intn(12))), East: r.NormFloat64() * math.Pow(10, float64(r.Intn(12)))}
		c, err := g.Cell(p)
		if err != nil || c < 0 || c > g.Total()-1 {
			t.Fatalf("Cell(%v)=%d err=%v", p, c, err)
		}
	}
}

func TestCell_NaN(t *testing.T) {
	_, err := DefaultGrid().Cell(Planar{North: math.NaN()})
	if !errors.Is(err, ErrNonFinite) {
		t.Fatalf("err=%v want ErrNonFinite", err)
	}
}

func TestGridValidate(t *testing.T) {
	cases := []Grid{
		{CellLenFt: 0, PerRow: 21, Center: 1},
		{CellLenFt: 250, PerRow: 0},
		{CellLenFt: 250, PerRow: 21, Center: 441},
	}
	for _, g := range cases {
		if err := g.Validate(); err == nil {
			t.Fatalf("expected error for %+v", g)
		}
	}
}

func TestSurveyor_CorrectedDistance(t *testing.T) {
	s := DefaultSurveyor()
	launch := CoordFromFloat(38.663484, -90.365707)
	current := CoordFromFloat(38.663568, -90.366002)

	got := s.CorrectedDistance(launch, current)
	if got.North != 30.576 || got.East != -85.019 {
		t.Fatalf("got=%+v want {30.576 -85.019}", got)
	}
}

func TestSurveyor_CorrectionShiftsByLaunchOffset(t *testing.T) {
	s := DefaultSurveyor()
	launch := CoordFromFloat(38.663584, -90.365707)
	current := CoordFromFloat(38.663684, -90.365707)

	raw := s.Distance(launch, current)
	corrected := s.CorrectedDistance(launch, current)
	if raw.North != 36.4 {
		t.Fatalf("raw north=%v want 36.4", raw.North)
	}
	if corrected.North != 72.8 {
		t.Fatalf("corrected north=%v want 72.8", corrected.North)
	}
}

func TestSurveyor_DistanceToReference(t *testing.T) {
	s := DefaultSurveyor()
	got := s.Distance(CoordFromFloat(38.663050, -90.366002), s.Reference)
	if got.North != 157.976 || got.East != 85.019 {
		t.Fatalf("got=%+v want {157.976 85.019}", got)
	}
}

func TestSurveyor_FlatEarthAgreesWithGeodesic(t *testing.T) {
	s := DefaultSurveyor()
	a := s.Reference
	b := CoordFromFloat(38.670000, -90.355000)
	flat := s.Distance(a, b).Norm()
	geo := s.Geodesic(a, b)
	if math.Abs(flat-geo)/geo > 0.02 {
		t.Fatalf("flat=%.1f geodesic=%.1f differ by more than 2%%", flat, geo)
	}
}

func TestSig_KeepsSevenDigits(t *testing.T) {
	a, _ := ParseCoord("38.6634849", "0")
	b, _ := ParseCoord("0", "0")
	d := a.Sub(b)
	if d.Lat.String() != "38.66348" {
		t.Fatalf("lat=%s want 38.66348", d.Lat)
	}
}

func TestParseCoord(t *testing.T) {
	c, err := ParseCoord(" 38.663484", "-90.365707 ")
	if err != nil {
		t.Fatalf("ParseCoord: %v", err)
	}
	if c.String() != "38.663484,-90.365707" {
		t.Fatalf("coord=%s", c)
	}
	if _, err := ParseCoord("91", "0"); err == nil {
		t.Fatalf("expected latitude range error")
	}
	if _, err := ParseCoord("x", "0"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLocate_FallsBackToInertial(t *testing.T) {
	l := DefaultLocator()
	fix, err := l.Locate(Planar{North: 625, East: -625}, nil)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if fix.Source != "imu" || fix.Cell != 220-63-2 {
		t.Fatalf("fix=%+v", fix)
	}
}

func TestLocate_AddsLaunchOffset(t *testing.T) {
	l := DefaultLocator()
	// Launch 0.001° north of the reference: 364 ft, two cells up.
	launch := CoordFromFloat(38.664484, -90.365707)
	fix, err := l.Locate(Planar{}, &launch)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if fix.Source != "imu+gps" {
		t.Fatalf("source=%s", fix.Source)
	}
	if fix.Position.North != 364 || fix.Cell != 220-2*21 {
		t.Fatalf("fix=%+v", fix)
	}
}

func TestLocateGPS(t *testing.T) {
	l := DefaultLocator()
	launch := l.Surveyor.Reference
	landing := CoordFromFloat(38.663484, -90.362707)
	fix, err := l.LocateGPS(launch, landing)
	if err != nil {
		t.Fatalf("LocateGPS: %v", err)
	}
	// 0.003° east = 864.6 ft = 4 cells east.
	if fix.Position.East != 864.6 || fix.Cell != 224 {
		t.Fatalf("fix=%+v", fix)
	}
}
