//go:build !linux || (!arm && !arm64)

package status

import "fmt"

func openLine(pin int) (LED, error) {
	return nil, fmt.Errorf("status: gpio pin %d unsupported on this platform", pin)
}

var openLineFn = openLine
