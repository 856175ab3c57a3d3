package gridmap

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/shopspring/decimal"
)

// Precision is the number of significant digits kept after every coordinate
// operation.
const Precision = 7

// GeoCoord is a latitude/longitude pair in decimal degrees.
type GeoCoord struct {
	Lat decimal.Decimal
	Lon decimal.Decimal
}

// CoordFromFloat uses the shortest decimal representation of each float, so
// 38.663484 stays exactly 38.663484.
func CoordFromFloat(lat, lon float64) GeoCoord {
	return GeoCoord{Lat: decimal.NewFromFloat(lat), Lon: decimal.NewFromFloat(lon)}
}

func ParseCoord(lat, lon string) (GeoCoord, error) {
	la, err := decimal.NewFromString(strings.TrimSpace(lat))
	if err != nil {
		return GeoCoord{}, fmt.Errorf("gridmap: bad latitude %q: %w", lat, err)
	}
	lo, err := decimal.NewFromString(strings.TrimSpace(lon))
	if err != nil {
		return GeoCoord{}, fmt.Errorf("gridmap: bad longitude %q: %w", lon, err)
	}
	if la.Abs().GreaterThan(decimal.NewFromInt(90)) {
		return GeoCoord{}, fmt.Errorf("gridmap: latitude %s out of range", la)
	}
	if lo.Abs().GreaterThan(decimal.NewFromInt(180)) {
		return GeoCoord{}, fmt.Errorf("gridmap: longitude %s out of range", lo)
	}
	return GeoCoord{Lat: la, Lon: lo}, nil
}

func (c GeoCoord) String() string {
	return c.Lat.String() + "," + c.Lon.String()
}

// Sub returns c-o per component.
func (c GeoCoord) Sub(o GeoCoord) GeoCoord {
	return GeoCoord{Lat: sig(c.Lat.Sub(o.Lat)), Lon: sig(c.Lon.Sub(o.Lon))}
}

func (c GeoCoord) Add(o GeoCoord) GeoCoord {
	return GeoCoord{Lat: sig(c.Lat.Add(o.Lat)), Lon: sig(c.Lon.Add(o.Lon))}
}

func (c GeoCoord) point() orb.Point {
	return orb.Point{c.Lon.InexactFloat64(), c.Lat.InexactFloat64()}
}

// sig rounds d to Precision significant digits, half to even.
func sig(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	intDigits := d.NumDigits() + int(d.Exponent())
	return d.RoundBank(int32(Precision - intDigits))
}

// Surveyor converts coordinate differences to feet with fixed per-degree
// constants. The flat-earth approximation only holds across a few miles.
type Surveyor struct {
	// Reference is the surveyed map-centre coordinate.
	Reference   GeoCoord
	LatFtPerDeg decimal.Decimal
	LonFtPerDeg decimal.Decimal
}

func DefaultSurveyor() Surveyor {
	return Surveyor{
		Reference:   GeoCoord{Lat: decimal.RequireFromString("38.663484"), Lon: decimal.RequireFromString("-90.365707")},
		LatFtPerDeg: decimal.NewFromInt(364000),
		LonFtPerDeg: decimal.NewFromInt(288200),
	}
}

// Feet converts a degree difference into planar feet.
func (s Surveyor) Feet(d GeoCoord) Planar {
	return Planar{
		North: sig(d.Lat.Mul(s.LatFtPerDeg)).InexactFloat64(),
		East:  sig(d.Lon.Mul(s.LonFtPerDeg)).InexactFloat64(),
	}
}

// Distance is the planar displacement from a to b, in feet.
func (s Surveyor) Distance(a, b GeoCoord) Planar {
	return s.Feet(b.Sub(a))
}

// Correction is the offset of launch from the surveyed reference.
func (s Surveyor) Correction(launch GeoCoord) GeoCoord {
	return launch.Sub(s.Reference)
}

// CorrectedDistance is the displacement of current from the reference,
// computed as (current-launch) plus the launch correction.
func (s Surveyor) CorrectedDistance(launch, current GeoCoord) Planar {
	return s.Feet(current.Sub(launch).Add(s.Correction(launch)))
}

// Geodesic returns the great-circle distance from a to b in feet. It is used
// to sanity check the flat-earth constants.
func (s Surveyor) Geodesic(a, b GeoCoord) float64 {
	return geo.Distance(a.point(), b.point()) * metersToFeet
}

const metersToFeet = 3.280839895013123
