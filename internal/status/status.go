// Package status drives the single indicator LED on the vehicle and the
// ground station.
package status

import "sync"

// LED is an on/off indicator.
type LED interface {
	Set(on bool) error
	Close() error
}

// Nop is an LED that does nothing, used when no pin is configured.
type Nop struct{}

func (Nop) Set(bool) error { return nil }
func (Nop) Close() error   { return nil }

// Open returns the LED on BCM pin, or Nop when pin is 0.
func Open(pin int) (LED, error) {
	if pin == 0 {
		return Nop{}, nil
	}
	return openLineFn(pin)
}

// Recorder remembers every state it was set to. It stands in for the LED in
// bench runs and tests.
type Recorder struct {
	mu     sync.Mutex
	states []bool
}

func (r *Recorder) Set(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, on)
	return nil
}

func (r *Recorder) Close() error { return nil }

// On reports the most recent state.
func (r *Recorder) On() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states) > 0 && r.states[len(r.states)-1]
}

func (r *Recorder) States() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.states...)
}
