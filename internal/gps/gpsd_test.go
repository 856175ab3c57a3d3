package gps

import (
	"testing"
	"time"
)

func TestFixState_TPVKeepsDecimalCoordinate(t *testing.T) {
	now := time.Date(2025, 12, 22, 12, 0, 0, 0, time.UTC)
	var st fixState

	line := `{"class":"TPV","mode":3,"time":"2025-12-22T12:00:01.000Z","lat":38.663484,"lon":-90.365707,"altMSL":150.0}`
	updated, err := st.applyGPSDLine(now, line)
	if err != nil {
		t.Fatalf("applyGPSDLine err: %v", err)
	}
	if !updated {
		t.Fatalf("expected updated")
	}

	var snap Snapshot
	st.fill(&snap)
	if !snap.Valid {
		t.Fatalf("expected valid")
	}
	if snap.Coord.String() != "38.663484,-90.365707" {
		t.Fatalf("coord=%s", snap.Coord)
	}
	if snap.AltM == nil || *snap.AltM != 150 {
		t.Fatalf("alt=%v", snap.AltM)
	}
	if !snap.LastFix.Equal(now.Add(time.Second)) {
		t.Fatalf("lastFix=%s want report time", snap.LastFix)
	}
}

func TestFixState_TPVNoFixMode(t *testing.T) {
	var st fixState
	line := `{"class":"TPV","mode":1,"lat":38.6,"lon":-90.3}`
	if _, err := st.applyGPSDLine(time.Now(), line); err != nil {
		t.Fatalf("applyGPSDLine err: %v", err)
	}
	if st.valid {
		t.Fatalf("mode 1 must not be a fix")
	}
}

func TestFixState_SKYUpdatesSatsAndHDOP(t *testing.T) {
	var st fixState
	line := `{"class":"SKY","hdop":0.9,"satellites":[{"used":true},{"used":false},{"used":true}]}`
	updated, err := st.applyGPSDLine(time.Now().UTC(), line)
	if err != nil {
		t.Fatalf("applyGPSDLine err: %v", err)
	}
	if !updated {
		t.Fatalf("expected updated")
	}
	if st.satellites != 2 || st.hdop != 0.9 {
		t.Fatalf("sats=%d hdop=%v", st.satellites, st.hdop)
	}
}

func TestFixState_GPSDIgnoresOtherClasses(t *testing.T) {
	var st fixState
	updated, err := st.applyGPSDLine(time.Now(), `{"class":"VERSION","release":"3.25"}`)
	if err != nil || updated {
		t.Fatalf("updated=%v err=%v", updated, err)
	}
	if _, err := st.applyGPSDLine(time.Now(), `{not json`); err == nil {
		t.Fatalf("expected parse error")
	}
}
