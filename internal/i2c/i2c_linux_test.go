//go:build linux

package i2c

import (
	"os"
	"strings"
	"testing"
)

func TestDevTx_InvalidAddr(t *testing.T) {
	f, err := os.OpenFile("/dev/null", os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile /dev/null: %v", err)
	}
	defer f.Close()

	b := &Bus{f: f, path: "/dev/null"}

	{
		d := &Dev{bus: b, addr: 0}
		err := d.Write([]byte{0x00})
		if err == nil || !strings.Contains(err.Error(), "invalid addr") {
			t.Fatalf("err=%v want invalid addr", err)
		}
	}

	{
		d := &Dev{bus: b, addr: 0x80}
		err := d.Write([]byte{0x00})
		if err == nil || !strings.Contains(err.Error(), "invalid addr") {
			t.Fatalf("err=%v want invalid addr", err)
		}
	}
}

func TestDevTx_EmptyIsNoop(t *testing.T) {
	f, err := os.OpenFile("/dev/null", os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile /dev/null: %v", err)
	}
	defer f.Close()

	b := &Bus{f: f, path: "/dev/null"}
	d := &Dev{bus: b, addr: 0x68}

	n, err := d.tx(nil, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if n != 0 {
		t.Fatalf("n=%d want 0", n)
	}
}

func TestDevTx_ClosedBus(t *testing.T) {
	f, err := os.OpenFile("/dev/null", os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile /dev/null: %v", err)
	}
	b := &Bus{f: f, path: "/dev/null"}
	d := b.Dev(0x28)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.WriteReg(0x3D, 0x08); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("err=%v want closed", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOpen_MissingAdapter(t *testing.T) {
	_, err := Open("/dev/i2c-does-not-exist")
	if err == nil || !strings.Contains(err.Error(), "i2c: open") {
		t.Fatalf("err=%v want open error", err)
	}
}
