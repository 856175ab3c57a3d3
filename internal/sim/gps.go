package sim

import (
	"github.com/shopspring/decimal"

	"payloadnav/internal/gridmap"
	"payloadnav/internal/nav"
)

// GPS reports the scripted launch point shifted by the flight's true
// displacement, so the GPS cross-check agrees with a perfect estimate.
type GPS struct {
	flight   *Flight
	surveyor gridmap.Surveyor
	launch   gridmap.GeoCoord
}

func NewGPS(f *Flight, s gridmap.Surveyor) *GPS {
	sc := f.Script()
	return &GPS{
		flight:   f,
		surveyor: s,
		launch:   gridmap.CoordFromFloat(sc.Launch.LatDeg, sc.Launch.LonDeg),
	}
}

func (g *GPS) HasFix() bool {
	after := g.flight.Script().FixAfter
	return after >= 0 && g.flight.Elapsed() >= after
}

func (g *GPS) PollOnce() {}

func (g *GPS) Current() gridmap.GeoCoord {
	d := g.flight.Truth(g.flight.Elapsed()).Scale(nav.MetersToFeet)
	// Receivers report well past seven significant digits, so skip the
	// rounding GeoCoord.Add applies.
	return gridmap.GeoCoord{
		Lat: g.launch.Lat.Add(decimal.NewFromFloat(d.X).Div(g.surveyor.LatFtPerDeg)),
		Lon: g.launch.Lon.Add(decimal.NewFromFloat(d.Y).Div(g.surveyor.LonFtPerDeg)),
	}
}
