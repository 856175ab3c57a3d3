package telemetry

import (
	"fmt"
	"strconv"
	"strings"

	"payloadnav/internal/gridmap"
	"payloadnav/internal/nav"
)

// Status lines, in the order the flight sends them.
const (
	SetupDone    = "SETUP: DONE"
	WaitLaunch   = "WAIT: LAUNCH"
	EventLaunch  = "EVENT: LAUNCH"
	WaitLanding  = "WAIT: LANDING"
	EventLanding = "EVENT: LANDING"

	keyPrefix = "KEY:"
	KeyError  = keyPrefix + "ERROR"
)

// LaunchCoord reports the launch fix, or NONE when there was no fix.
func LaunchCoord(c *gridmap.GeoCoord) string {
	if c == nil {
		return "LAUNCH_COORD: NONE"
	}
	return "LAUNCH_COORD: " + c.String()
}

func Key(cell int) string { return keyPrefix + strconv.Itoa(cell) }

// IsKey reports whether line carries a grid key, valid or not.
func IsKey(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), keyPrefix)
}

// ParseKey returns the cell of a KEY line. ok is false for KEY:ERROR and for
// anything that is not a key.
func ParseKey(line string) (cell int, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, keyPrefix) {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(line[len(keyPrefix):]))
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Sample is the in-flight trace line for one reading.
func Sample(acc, gyro nav.Vec3) string {
	return fmt.Sprintf("ACC_X: %.3f\tACC_Y: %.3f\tACC_Z: %.3f\tGYR_X: %.3f\tGYR_Y: %.3f\tGYR_Z: %.3f",
		acc.X, acc.Y, acc.Z, gyro.X, gyro.Y, gyro.Z)
}

// SendLine sends line with a trailing newline.
func SendLine(s Sink, line string) error {
	return s.Send([]byte(line + "\n"))
}
