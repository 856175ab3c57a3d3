package flightlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"payloadnav/internal/nav"
)

// Log format: line-oriented, tab-separated text.
//
//   - Lines starting with '#' are header comments. "# start <RFC3339>" and
//     "# rate_hz <n>" are parsed; any other comment is ignored.
//   - Blank lines are ignored.
//   - Data lines are: elapsed accX accY accZ gyroX gyroY gyroZ quatW quatX quatY quatZ
//     where elapsed is seconds since launch and a missed read is "nan".
//
// One data line is one sensor tick after launch, whether or not every read
// succeeded. Only complete ticks feed the estimator.

const columns = 11

// Header is the metadata at the top of a log.
type Header struct {
	Start  time.Time
	RateHz float64
}

// Log is a flight log read back.
type Log struct {
	Header
	Samples []nav.Sample
}

// Buffer returns the estimator input: the complete samples in order.
func (l Log) Buffer() nav.Buffer {
	var buf nav.Buffer
	for _, s := range l.Samples {
		if s.Complete() {
			buf.Append(s.Elapsed, s.Acc, s.Quat)
		}
	}
	return buf
}

// Incomplete counts ticks with at least one missed read.
func (l Log) Incomplete() int {
	var n int
	for _, s := range l.Samples {
		if !s.Complete() {
			n++
		}
	}
	return n
}

type Writer struct {
	f      *os.File
	w      *bufio.Writer
	rows   int
	closed bool
}

func Create(path string, h Header) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("flightlog: %w", err)
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	_, err = fmt.Fprintf(bw, "# start %s\n# rate_hz %s\n# elapsed\taccX\taccY\taccZ\tgyroX\tgyroY\tgyroZ\tquatW\tquatX\tquatY\tquatZ\n",
		h.Start.UTC().Format(time.RFC3339Nano), formatFloat(h.RateHz))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flightlog: write header: %w", err)
	}
	return &Writer{f: f, w: bw}, nil
}

// Append writes one tick. s.Elapsed is time since launch.
func (lw *Writer) Append(s nav.Sample) error {
	if lw.closed {
		return errors.New("flightlog: writer is closed")
	}
	fields := make([]string, 0, columns)
	fields = append(fields, formatFloat(s.Elapsed.Seconds()))
	for _, v := range nav.AxesOf(s.Acc) {
		fields = append(fields, formatAxis(v))
	}
	for _, v := range nav.AxesOf(s.Gyro) {
		fields = append(fields, formatAxis(v))
	}
	for _, v := range nav.QuatAxesOf(s.Quat) {
		fields = append(fields, formatAxis(v))
	}
	if _, err := lw.w.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
		return fmt.Errorf("flightlog: %w", err)
	}
	lw.rows++
	return nil
}

func (lw *Writer) Rows() int { return lw.rows }

func (lw *Writer) Path() string { return lw.f.Name() }

// Flush pushes buffered rows to the file so a crash loses at most the rows
// since the last call.
func (lw *Writer) Flush() error {
	if lw.closed {
		return nil
	}
	if err := lw.w.Flush(); err != nil {
		return fmt.Errorf("flightlog: %w", err)
	}
	return nil
}

func (lw *Writer) Close() error {
	if lw.closed {
		return nil
	}
	lw.closed = true
	if err := lw.w.Flush(); err != nil {
		_ = lw.f.Close()
		return fmt.Errorf("flightlog: %w", err)
	}
	return lw.f.Close()
}

// Read parses a log. A vector with any "nan" component reads back as a miss.
func Read(r io.Reader) (Log, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		l    Log
		line int
	)
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			if err := parseHeader(&l.Header, strings.TrimSpace(text[1:])); err != nil {
				return Log{}, fmt.Errorf("flightlog: line %d: %w", line, err)
			}
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != columns {
			return Log{}, fmt.Errorf("flightlog: line %d: %d fields, want %d", line, len(fields), columns)
		}
		t, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || math.IsNaN(t) {
			return Log{}, fmt.Errorf("flightlog: line %d: bad elapsed %q", line, fields[0])
		}
		var v [columns - 1]*float64
		for i := range v {
			if v[i], err = parseAxis(fields[1+i]); err != nil {
				return Log{}, fmt.Errorf("flightlog: line %d: %w", line, err)
			}
		}
		l.Samples = append(l.Samples, nav.Sample{
			Elapsed: time.Duration(math.Round(t * float64(time.Second))),
			Acc:     vec(v[0:3]),
			Gyro:    vec(v[3:6]),
			Quat:    quat(v[6:10]),
		})
	}
	if err := s.Err(); err != nil {
		return Log{}, fmt.Errorf("flightlog: %w", err)
	}
	return l, nil
}

// ReadFile reads a log from disk, decompressing .zst archives.
func ReadFile(path string) (Log, error) {
	rc, err := Open(path)
	if err != nil {
		return Log{}, err
	}
	defer rc.Close()
	return Read(rc)
}

func vec(v []*float64) *nav.Vec3 {
	if v[0] == nil || v[1] == nil || v[2] == nil {
		return nil
	}
	return &nav.Vec3{X: *v[0], Y: *v[1], Z: *v[2]}
}

func quat(v []*float64) *nav.Quat {
	if v[0] == nil || v[1] == nil || v[2] == nil || v[3] == nil {
		return nil
	}
	q := nav.QuatWXYZ(*v[0], *v[1], *v[2], *v[3])
	return &q
}

func parseHeader(h *Header, text string) error {
	key, val, ok := strings.Cut(text, " ")
	if !ok {
		return nil
	}
	val = strings.TrimSpace(val)
	switch key {
	case "start":
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return fmt.Errorf("bad start time %q: %w", val, err)
		}
		h.Start = t
	case "rate_hz":
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("bad rate %q: %w", val, err)
		}
		h.RateHz = v
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatAxis(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return "nan"
	}
	return formatFloat(*v)
}

func parseAxis(s string) (*float64, error) {
	if strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("bad value %q", s)
	}
	return &v, nil
}
