//go:build linux && (arm || arm64)

package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// openLine requests BCM pin as an output through the GPIO character device.
// Header pins are named "GPIO<n>"; which chip carries them varies between
// Pi models, so every chip is searched.
func openLine(pin int) (LED, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("status: invalid gpio pin %d", pin)
	}
	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", e.Name()))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("payloadnav-led"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpiodLED{chip: chip, line: line}, nil
	}
	return nil, fmt.Errorf("status: gpio line %q not found (or busy)", lineName)
}

var openLineFn = openLine

type gpiodLED struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodLED) Set(on bool) error {
	if g == nil || g.line == nil {
		return fmt.Errorf("status: led not initialized")
	}
	v := 0
	if on {
		v = 1
	}
	return g.line.SetValue(v)
}

// Close releases the line. The LED is left in its current state; the kernel
// keeps driving a released output.
func (g *gpiodLED) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
