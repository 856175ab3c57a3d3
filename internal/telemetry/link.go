// Package telemetry carries status lines from the vehicle to the ground.
//
// Delivery is best effort and at most once. The flight loop never waits on
// the radio: lines go through a Queue that drops when full.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// ErrSetup wraps every failure to bring the link up.
var ErrSetup = errors.New("telemetry: link setup failed")

// Sink accepts one message. Implementations must not retain p.
type Sink interface {
	Send(p []byte) error
}

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type (
	resolveFunc func(network, address string) (*net.UDPAddr, error)
	dialFunc    func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)
)

var (
	resolveUDP resolveFunc = net.ResolveUDPAddr
	dialUDP    dialFunc    = func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	}
)

// Link is a UDP datagram sink standing in for the vehicle radio.
type Link struct {
	dest string
	conn udpConn
}

func NewLink(dest string) (*Link, error) {
	return newLink(dest, resolveUDP, dialUDP)
}

func newLink(dest string, resolve resolveFunc, dial dialFunc) (*Link, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrSetup, dest, err)
	}
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrSetup, dest, err)
	}
	return &Link{dest: dest, conn: conn}, nil
}

// retryWait pauses between setup attempts; tests replace it.
var retryWait = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Dial brings the link up, retrying until it succeeds or ctx ends. A zero
// retry interval retries immediately. The flight cannot proceed without a
// link.
func Dial(ctx context.Context, dest string, retry time.Duration, logger *slog.Logger) (*Link, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for attempt := 1; ; attempt++ {
		l, err := NewLink(dest)
		if err == nil {
			if attempt > 1 {
				logger.Info("telemetry link up", "dest", dest, "attempts", attempt)
			}
			return l, nil
		}
		if attempt == 1 || retry > 0 {
			logger.Warn("telemetry link setup failed", "dest", dest, "attempt", attempt, "err", err)
		} else {
			logger.Debug("telemetry link setup failed", "dest", dest, "attempt", attempt, "err", err)
		}

		if retry <= 0 {
			if cerr := ctx.Err(); cerr != nil {
				return nil, errors.Join(err, cerr)
			}
			continue
		}
		if werr := retryWait(ctx, retry); werr != nil {
			return nil, errors.Join(err, werr)
		}
	}
}

func (l *Link) Dest() string { return l.dest }

func (l *Link) Send(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	_, err := l.conn.Write(p)
	return err
}

func (l *Link) Close() error {
	if l == nil || l.conn == nil {
		return nil
	}
	return l.conn.Close()
}
