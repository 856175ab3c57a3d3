package telemetry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"strings"
	"time"
)

// Indicator is a single on/off lamp, such as the ground station LED.
type Indicator interface {
	Set(on bool) error
}

type ReceiverConfig struct {
	// Listen is the UDP address to bind, e.g. ":5005".
	Listen string
	// ValidCount is the number of KEY lines to collect before stopping.
	ValidCount int
	// GridPath receives every KEY line; BlackboxPath receives everything else.
	GridPath     string
	BlackboxPath string
	// Poll bounds each read so ctx is observed.
	Poll time.Duration
}

// ReceiverResult summarises the keys collected.
type ReceiverResult struct {
	Keys []string
	// Cell is the most frequent valid cell, -1 when every key was KEY:ERROR.
	Cell int
	// Agree is the number of keys that named Cell.
	Agree int
}

type Receiver struct {
	cfg    ReceiverConfig
	led    Indicator
	logger *slog.Logger
}

func NewReceiver(cfg ReceiverConfig, led Indicator, logger *slog.Logger) (*Receiver, error) {
	if cfg.ValidCount <= 0 {
		return nil, fmt.Errorf("telemetry: receiver valid count must be > 0")
	}
	if cfg.GridPath == "" || cfg.BlackboxPath == "" {
		return nil, fmt.Errorf("telemetry: receiver needs grid and blackbox paths")
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{cfg: cfg, led: led, logger: logger.With("component", "receiver")}, nil
}

// Run listens until ValidCount keys arrived or ctx ends.
func (r *Receiver) Run(ctx context.Context) (ReceiverResult, error) {
	conn, err := net.ListenPacket("udp", r.cfg.Listen)
	if err != nil {
		return ReceiverResult{}, fmt.Errorf("%w: listen %s: %w", ErrSetup, r.cfg.Listen, err)
	}
	defer conn.Close()
	r.logger.Info("receiver listening", "addr", conn.LocalAddr().String(), "valid_count", r.cfg.ValidCount)
	return r.Serve(ctx, conn)
}

// Serve is Run over an existing packet connection.
func (r *Receiver) Serve(ctx context.Context, conn net.PacketConn) (ReceiverResult, error) {
	grid, err := os.Create(r.cfg.GridPath)
	if err != nil {
		return ReceiverResult{}, fmt.Errorf("telemetry: %w", err)
	}
	defer grid.Close()
	box, err := os.Create(r.cfg.BlackboxPath)
	if err != nil {
		return ReceiverResult{}, fmt.Errorf("telemetry: %w", err)
	}
	defer box.Close()
	gw := bufio.NewWriter(grid)
	bw := bufio.NewWriter(box)

	res, err := r.collect(ctx, conn, gw, bw)
	// Whatever arrived is kept, even when collection stopped early.
	if ferr := gw.Flush(); ferr != nil && err == nil {
		err = fmt.Errorf("telemetry: write %s: %w", r.cfg.GridPath, ferr)
	}
	if ferr := bw.Flush(); ferr != nil && err == nil {
		err = fmt.Errorf("telemetry: write %s: %w", r.cfg.BlackboxPath, ferr)
	}
	if err != nil {
		return res, err
	}

	res.Cell, res.Agree = vote(res.Keys)
	if r.led != nil {
		if err := r.led.Set(true); err != nil {
			r.logger.Warn("status led failed", "err", err)
		}
	}
	return res, nil
}

// collect reads datagrams until ValidCount keys arrived. Lines after the last
// wanted key are not recorded.
func (r *Receiver) collect(ctx context.Context, conn net.PacketConn, gw, bw *bufio.Writer) (ReceiverResult, error) {
	var res ReceiverResult
	buf := make([]byte, 2048)
	for len(res.Keys) < r.cfg.ValidCount {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(r.cfg.Poll))
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return res, fmt.Errorf("telemetry: receive: %w", err)
		}

		for _, line := range strings.Split(string(buf[:n]), "\n") {
			line = strings.TrimRight(line, "\r")
			if IsKey(line) {
				key := strings.TrimSpace(line)
				res.Keys = append(res.Keys, key)
				fmt.Fprintln(gw, key)
				r.logger.Info("key received", "key", key, "count", len(res.Keys))
				if len(res.Keys) == r.cfg.ValidCount {
					break
				}
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			fmt.Fprintln(bw, line)
		}
	}
	return res, nil
}

// vote returns the most frequent valid cell; ties go to the lower cell.
func vote(keys []string) (cell, count int) {
	counts := map[int]int{}
	for _, k := range keys {
		if c, ok := ParseKey(k); ok {
			counts[c]++
		}
	}
	if len(counts) == 0 {
		return -1, 0
	}
	cells := make([]int, 0, len(counts))
	for c := range counts {
		cells = append(cells, c)
	}
	sort.Ints(cells)
	cell = cells[0]
	for _, c := range cells[1:] {
		if counts[c] > counts[cell] {
			cell = c
		}
	}
	return cell, counts[cell]
}
