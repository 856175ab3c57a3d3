package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"payloadnav/internal/gridmap"
	"payloadnav/internal/metrics"
)

// ErrNoFix is returned by Coord while no current position is known.
var ErrNoFix = errors.New("gps: no fix")

var now = time.Now

// Config controls the GPS reader.
//
// Device may be empty to auto-detect /dev/ttyACM* and /dev/ttyUSB*.
type Config struct {
	Enable bool

	// Source is "nmea" (direct serial, the default) or "gpsd".
	Source   string
	GPSDAddr string

	Device string
	Baud   int

	// StaleAfter drops the fix when no position arrives for this long.
	// 0 keeps the last fix forever.
	StaleAfter time.Duration
}

type Snapshot struct {
	Source string
	Device string

	Valid bool
	Stale bool

	Coord      gridmap.GeoCoord
	AltM       *float64
	Quality    *int
	Satellites *int
	HDOP       *float64
	LastFix    time.Time

	LastError string
}

type Service struct {
	cfg    Config
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last atomic.Value // Snapshot

	mu     sync.Mutex
	closer io.Closer
}

func New(cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	if cfg.Source == "" {
		cfg.Source = "nmea"
	}
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	s := &Service{cfg: cfg, logger: logger.With("component", "gps")}
	s.last.Store(Snapshot{Source: cfg.Source, Device: cfg.Device})
	return s
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gps: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if s.cfg.Source == "gpsd" {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cancel != nil {
			return nil
		}
		return s.startGPSDLocked(ctx)
	}

	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			s.setError("auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
			return fmt.Errorf("gps: auto-detect failed")
		}
	}
	f, err := openSerial(device, s.cfg.Baud)
	if err != nil {
		s.setError(fmt.Sprintf("open failed device=%s baud=%d: %v", device, s.cfg.Baud, err))
		return fmt.Errorf("gps: open %s: %w", device, err)
	}
	s.logger.Info("gps enabled", "device", device, "baud", s.cfg.Baud)
	s.StartReader(ctx, f, device)
	return nil
}

// StartReader consumes NMEA sentences from r until ctx ends or r fails.
// r is closed by Close.
func (s *Service) StartReader(ctx context.Context, r io.ReadCloser, device string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		_ = r.Close()
		return
	}
	s.closer = r
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	var st fixState
	s.last.Store(Snapshot{Source: "nmea", Device: device})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = r.Close() }()

		// Sentences are at most 82 characters; leave headroom for chatter.
		err := scanLines(childCtx, r, 4096, func(line string) {
			if !strings.HasPrefix(line, "$") {
				return
			}
			sent, perr := parseNMEASentence(line)
			if perr != nil {
				metrics.GPSSentence("invalid")
				s.setError(perr.Error())
				return
			}
			metrics.GPSSentence(sent.Type)
			if st.apply(now().UTC(), sent) {
				s.publish(&st, device)
			}
		})
		if err != nil && childCtx.Err() == nil {
			s.setError(fmt.Sprintf("read stopped: %v", err))
			s.logger.Warn("gps read stopped", "device", device, "err", err)
		}
	}()
}

func (s *Service) startGPSDLocked(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.GPSDAddr)
	if addr == "" {
		addr = gpsdDefaultAddr
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.last.Store(Snapshot{Source: "gpsd", Device: addr})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.logger.Info("gps enabled", "source", "gpsd", "addr", addr)
		var st fixState
		backoff := 250 * time.Millisecond
		const maxBackoff = 10 * time.Second

		for childCtx.Err() == nil {
			conn, err := dialGPSD(childCtx, addr)
			if err != nil {
				s.setError(fmt.Sprintf("gpsd dial failed addr=%s: %v", addr, err))
				select {
				case <-childCtx.Done():
					return
				case <-time.After(backoff):
				}
				if backoff < maxBackoff {
					backoff = min(backoff*2, maxBackoff)
				}
				continue
			}
			backoff = 250 * time.Millisecond

			s.mu.Lock()
			s.closer = conn
			s.mu.Unlock()

			if err := gpsdWatch(conn); err != nil {
				s.setError(fmt.Sprintf("gpsd watch failed: %v", err))
				_ = conn.Close()
				continue
			}
			err = scanLines(childCtx, conn, 256*1024, func(line string) {
				updated, perr := st.applyGPSDLine(now().UTC(), line)
				if perr != nil {
					metrics.GPSSentence("invalid")
					s.setError(perr.Error())
					return
				}
				if updated {
					metrics.GPSSentence("TPV")
					s.publish(&st, addr)
				}
			})
			_ = conn.Close()
			if err != nil && childCtx.Err() == nil {
				s.setError(fmt.Sprintf("gpsd read stopped: %v", err))
			}
		}
	}()
	return nil
}

// scanLines calls fn for every non-empty line of r. It returns nil when ctx
// ends, io.EOF when r is exhausted, or the read error.
func scanLines(ctx context.Context, r io.Reader, maxLen int, fn func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 256), maxLen)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return err
			}
			return io.EOF
		}
		if line := strings.TrimSpace(sc.Text()); line != "" {
			fn(line)
		}
	}
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v, _ := s.last.Load().(Snapshot)
	return v
}

// HasFix reports whether a current, non-stale fix is known.
func (s *Service) HasFix() bool {
	snap := s.Snapshot()
	return snap.Valid && !snap.Stale
}

// PollOnce re-evaluates fix staleness. Sentences are consumed in the
// background, so there is nothing to read here.
func (s *Service) PollOnce() {
	if s == nil {
		return
	}
	s.mu.Lock()
	snap := s.Snapshot()
	snap.Stale = s.stale(snap.LastFix)
	s.last.Store(snap)
	s.mu.Unlock()
	metrics.SetGPSFix(snap.Valid && !snap.Stale)
}

// Current returns the last known coordinate, which is the zero coordinate
// before the first fix.
func (s *Service) Current() gridmap.GeoCoord {
	return s.Snapshot().Coord
}

func (s *Service) Coord() (gridmap.GeoCoord, error) {
	snap := s.Snapshot()
	if !snap.Valid || snap.Stale {
		return gridmap.GeoCoord{}, ErrNoFix
	}
	return snap.Coord, nil
}

func (s *Service) stale(last time.Time) bool {
	if s.cfg.StaleAfter <= 0 || last.IsZero() {
		return false
	}
	return now().Sub(last) > s.cfg.StaleAfter
}

func (s *Service) publish(st *fixState, device string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.Snapshot()
	out := Snapshot{Source: prev.Source, Device: device, LastError: prev.LastError}
	st.fill(&out)
	s.last.Store(out)
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.Snapshot()
	cur.LastError = msg
	// Transient parse errors do not invalidate the fix.
	s.last.Store(cur)
}

func autoDetectDevice() string {
	for _, pattern := range []string{"/dev/ttyACM%d", "/dev/ttyUSB%d", "/dev/serial%d"} {
		for i := 0; i < 10; i++ {
			p := fmt.Sprintf(pattern, i)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}
