package status

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const boardTempPath = "/sys/class/thermal/thermal_zone0/temp"

func parseTempC(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("status: board temp empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("status: parse board temp %q: %w", s, err)
	}
	// Most kernels report millidegrees.
	if n > 1000 || n < -1000 {
		return float64(n) / 1000.0, nil
	}
	return float64(n), nil
}

func readTempCFromPath(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("status: read board temp: %w", err)
	}
	return parseTempC(string(b))
}

// BoardTempC reads the SoC temperature in degrees Celsius.
func BoardTempC() (float64, error) {
	return readTempCFromPath(boardTempPath)
}

// BoardModel returns the device-tree model string, or "" off a single-board
// computer.
func BoardModel() string {
	for _, p := range []string{"/sys/firmware/devicetree/base/model", "/proc/device-tree/model"} {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		return strings.Trim(strings.TrimSpace(string(b)), "\x00")
	}
	return ""
}
