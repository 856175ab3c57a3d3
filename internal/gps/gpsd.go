package gps

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const gpsdDefaultAddr = "127.0.0.1:2947"

func dialGPSD(ctx context.Context, addr string) (net.Conn, error) {
	if strings.TrimSpace(addr) == "" {
		addr = gpsdDefaultAddr
	}
	d := &net.Dialer{Timeout: 2 * time.Second}
	return d.DialContext(ctx, "tcp", addr)
}

// gpsdWatch enables JSON streaming reports in degrees and meters.
func gpsdWatch(conn net.Conn) error {
	_, err := conn.Write([]byte("?WATCH={\"enable\":true,\"json\":true,\"scaled\":true}\n"))
	return err
}

type gpsdTPV struct {
	Class string `json:"class"`
	Mode  *int   `json:"mode"`
	Time  string `json:"time"`

	// Numbers stay textual so the coordinate is parsed straight to decimal.
	Lat    *json.Number `json:"lat"`
	Lon    *json.Number `json:"lon"`
	Alt    *float64     `json:"alt"`
	AltMSL *float64     `json:"altMSL"`
}

type gpsdSKY struct {
	Class      string   `json:"class"`
	HDOP       *float64 `json:"hdop"`
	Satellites []struct {
		Used bool `json:"used"`
	} `json:"satellites"`
}

// applyGPSDLine folds one gpsd report into s. Classes other than TPV and SKY
// (VERSION, DEVICES, WATCH) are ignored.
func (s *fixState) applyGPSDLine(nowUTC time.Time, line string) (bool, error) {
	var base struct {
		Class string `json:"class"`
	}
	if err := json.Unmarshal([]byte(line), &base); err != nil {
		return false, fmt.Errorf("gpsd: json parse failed: %w", err)
	}

	switch strings.ToUpper(strings.TrimSpace(base.Class)) {
	case "TPV":
		var tpv gpsdTPV
		if err := json.Unmarshal([]byte(line), &tpv); err != nil {
			return false, fmt.Errorf("gpsd: tpv parse failed: %w", err)
		}
		return s.applyTPV(nowUTC, tpv), nil
	case "SKY":
		var sky gpsdSKY
		if err := json.Unmarshal([]byte(line), &sky); err != nil {
			return false, fmt.Errorf("gpsd: sky parse failed: %w", err)
		}
		return s.applySKY(sky), nil
	default:
		return false, nil
	}
}

func (s *fixState) applyTPV(nowUTC time.Time, tpv gpsdTPV) bool {
	updated := false
	mode := 0
	if tpv.Mode != nil {
		mode = *tpv.Mode
		s.quality = mode
		s.qualityOK = true
		updated = true
	}

	fixTime := nowUTC
	if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(tpv.Time)); err == nil {
		fixTime = t.UTC()
	}

	if tpv.Lat != nil {
		if v, err := decimal.NewFromString(tpv.Lat.String()); err == nil {
			s.lat = v
			s.latOK = true
			updated = true
		}
	}
	if tpv.Lon != nil {
		if v, err := decimal.NewFromString(tpv.Lon.String()); err == nil {
			s.lon = v
			s.lonOK = true
			updated = true
		}
	}

	alt := tpv.AltMSL
	if alt == nil {
		alt = tpv.Alt
	}
	if alt != nil {
		s.altM = *alt
		s.altOK = true
		updated = true
	}

	// Mode 2 is a 2D fix, 3 is 3D.
	if mode >= 2 && s.latOK && s.lonOK {
		s.valid = true
		s.lastFix = fixTime
		updated = true
	}
	return updated
}

func (s *fixState) applySKY(sky gpsdSKY) bool {
	updated := false
	if sky.HDOP != nil {
		s.hdop = *sky.HDOP
		s.hdopOK = true
		updated = true
	}
	if len(sky.Satellites) > 0 {
		used := 0
		for _, sat := range sky.Satellites {
			if sat.Used {
				used++
			}
		}
		s.satellites = used
		s.satsOK = true
		updated = true
	}
	return updated
}
