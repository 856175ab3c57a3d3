package gps

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type nmeaSentence struct {
	Type string
	// Fields is the comma-split NMEA payload (excluding $ and checksum).
	Fields []string
}

func parseNMEASentence(line string) (nmeaSentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return nmeaSentence{}, fmt.Errorf("nmea: missing '$'")
	}
	star := strings.LastIndexByte(line, '*')
	if star == -1 {
		return nmeaSentence{}, fmt.Errorf("nmea: missing checksum")
	}
	payload := line[1:star]
	ck := strings.TrimSpace(line[star+1:])
	if len(ck) < 2 {
		return nmeaSentence{}, fmt.Errorf("nmea: short checksum")
	}
	want, err := hex.DecodeString(ck[:2])
	if err != nil || len(want) != 1 {
		return nmeaSentence{}, fmt.Errorf("nmea: bad checksum")
	}
	got := byte(0)
	for i := 0; i < len(payload); i++ {
		got ^= payload[i]
	}
	if got != want[0] {
		return nmeaSentence{}, fmt.Errorf("nmea: checksum mismatch")
	}

	parts := strings.Split(payload, ",")
	if len(parts[0]) < 3 {
		return nmeaSentence{}, fmt.Errorf("nmea: short type")
	}
	// GPRMC, GNRMC and friends all map to RMC.
	t := parts[0]
	if len(t) > 3 {
		t = t[len(t)-3:]
	}
	return nmeaSentence{Type: strings.ToUpper(t), Fields: parts}, nil
}

// fixState accumulates position reports from either source.
type fixState struct {
	lat, lon     decimal.Decimal
	latOK, lonOK bool

	altM  float64
	altOK bool

	quality    int
	qualityOK  bool
	satellites int
	satsOK     bool
	hdop       float64
	hdopOK     bool

	lastFix time.Time
	valid   bool
}

func (s *fixState) apply(nowUTC time.Time, sent nmeaSentence) bool {
	switch sent.Type {
	case "RMC":
		return s.applyRMC(nowUTC, sent.Fields)
	case "GGA":
		return s.applyGGA(nowUTC, sent.Fields)
	default:
		return false
	}
}

func (s *fixState) fill(out *Snapshot) {
	out.Valid = s.valid
	if s.latOK && s.lonOK {
		out.Coord.Lat = s.lat
		out.Coord.Lon = s.lon
	}
	if s.altOK {
		v := s.altM
		out.AltM = &v
	}
	if s.qualityOK {
		v := s.quality
		out.Quality = &v
	}
	if s.satsOK {
		v := s.satellites
		out.Satellites = &v
	}
	if s.hdopOK {
		v := s.hdop
		out.HDOP = &v
	}
	out.LastFix = s.lastFix
}

// RMC: Recommended Minimum Specific GNSS Data
//
//	1: time (hhmmss.sss)
//	2: status (A=active, V=void)
//	3,4: latitude ddmm.mmmm, N/S
//	5,6: longitude dddmm.mmmm, E/W
//	7: speed over ground (knots)
//	8: course over ground (deg)
//	9: date (ddmmyy)
func (s *fixState) applyRMC(nowUTC time.Time, f []string) bool {
	if len(f) < 10 {
		return false
	}
	if strings.TrimSpace(f[2]) != "A" {
		// A void fix keeps the last good coordinate.
		return false
	}
	s.setLatLon(f[3], f[4], f[5], f[6])
	if s.latOK && s.lonOK {
		s.lastFix = nowUTC
		s.valid = true
		return true
	}
	return false
}

// GGA: Global Positioning System Fix Data
//
//	2,3: latitude, N/S
//	4,5: longitude, E/W
//	6: fix quality (0=invalid)
//	7: satellites in use
//	8: HDOP
//	9,10: altitude, units (M)
func (s *fixState) applyGGA(nowUTC time.Time, f []string) bool {
	if len(f) < 11 {
		return false
	}
	q := strings.TrimSpace(f[6])
	if q == "" || q == "0" {
		return false
	}
	if v, err := strconv.Atoi(q); err == nil {
		s.quality = v
		s.qualityOK = true
	}
	if v, err := strconv.Atoi(strings.TrimSpace(f[7])); err == nil {
		s.satellites = v
		s.satsOK = true
	}
	if v, ok := parseFloat(f[8]); ok {
		s.hdop = v
		s.hdopOK = true
	}
	if v, ok := parseFloat(f[9]); ok {
		s.altM = v
		s.altOK = true
	}
	s.setLatLon(f[2], f[3], f[4], f[5])
	if s.latOK && s.lonOK {
		s.lastFix = nowUTC
		s.valid = true
		return true
	}
	return false
}

func (s *fixState) setLatLon(lat, ns, lon, ew string) {
	if v, ok := parseNMEACoord(lat, ns); ok {
		s.lat = v
		s.latOK = true
	}
	if v, ok := parseNMEACoord(lon, ew); ok {
		s.lon = v
		s.lonOK = true
	}
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// coordPlaces is the number of decimal places kept when converting
// minutes to degrees, about 0.1 mm.
const coordPlaces = 9

// parseNMEACoord parses ddmm.mmmm (latitude) or dddmm.mmmm (longitude) plus a
// hemisphere letter into signed decimal degrees.
func parseNMEACoord(v, hemi string) (decimal.Decimal, bool) {
	v = strings.TrimSpace(v)
	hemi = strings.TrimSpace(strings.ToUpper(hemi))
	if v == "" || (hemi != "N" && hemi != "S" && hemi != "E" && hemi != "W") {
		return decimal.Decimal{}, false
	}

	// The last two digits of the integer part are whole minutes.
	intPart := v
	if dot := strings.IndexByte(v, '.'); dot != -1 {
		intPart = v[:dot]
	}
	if len(intPart) < 3 {
		return decimal.Decimal{}, false
	}

	deg, err := decimal.NewFromString(intPart[:len(intPart)-2])
	if err != nil {
		return decimal.Decimal{}, false
	}
	mins, err := decimal.NewFromString(v[len(intPart)-2:])
	if err != nil || mins.GreaterThanOrEqual(decimal.NewFromInt(60)) {
		return decimal.Decimal{}, false
	}

	dec := deg.Add(mins.DivRound(decimal.NewFromInt(60), coordPlaces))
	if hemi == "S" || hemi == "W" {
		dec = dec.Neg()
	}
	return dec, true
}
