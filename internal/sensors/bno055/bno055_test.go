package bno055

import (
	"errors"
	"math"
	"testing"
	"time"
)

type fakeI2C struct {
	regs   map[byte][]byte
	writes []writeOp

	readErrFor map[byte]error
}

type writeOp struct {
	reg byte
	val byte
}

func (f *fakeI2C) ReadRegU8(reg byte) (byte, error) {
	if err := f.readErrFor[reg]; err != nil {
		return 0, err
	}
	b := f.regs[reg]
	if len(b) < 1 {
		return 0, errors.New("no reg")
	}
	return b[0], nil
}

func (f *fakeI2C) ReadReg(reg byte, dst []byte) error {
	if err := f.readErrFor[reg]; err != nil {
		return err
	}
	b := f.regs[reg]
	if len(b) < len(dst) {
		return errors.New("short reg")
	}
	copy(dst, b[:len(dst)])
	return nil
}

func (f *fakeI2C) WriteReg(reg, value byte) error {
	f.writes = append(f.writes, writeOp{reg: reg, val: value})
	return nil
}

func noSleep(t *testing.T) {
	t.Helper()
	oldSleep := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = oldSleep })
}

func newFake() *fakeI2C {
	return &fakeI2C{regs: map[byte][]byte{regChipID: {chipIDVal}}, readErrFor: map[byte]error{}}
}

func TestNew_ChipIDMismatch(t *testing.T) {
	noSleep(t)
	f := &fakeI2C{regs: map[byte][]byte{regChipID: {0x00}}}
	if _, err := newWithIO(f, ModeIMUPlus); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNew_WritesExpectedInitRegisters(t *testing.T) {
	noSleep(t)
	f := newFake()
	d, err := newWithIO(f, ModeIMUPlus)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}
	if d.Mode() != ModeIMUPlus {
		t.Fatalf("mode=0x%02X", byte(d.Mode()))
	}

	if len(f.writes) == 0 || f.writes[0] != (writeOp{reg: regOprMode, val: byte(ModeConfig)}) {
		t.Fatalf("first write=%+v want config mode", f.writes)
	}
	var sawReset bool
	var units []byte
	for _, w := range f.writes {
		if w.reg == regSysTrig && w.val == trigReset {
			sawReset = true
		}
		if w.reg == regUnitSel {
			units = append(units, w.val)
		}
	}
	if !sawReset {
		t.Fatalf("reset not written: %+v", f.writes)
	}
	// Gyro in rad/s so the 900 LSB scale applies.
	if len(units) != 1 || units[0] != 0x02 {
		t.Fatalf("unit select writes=%v want [0x02]", units)
	}
	last := f.writes[len(f.writes)-1]
	if last != (writeOp{reg: regOprMode, val: byte(ModeIMUPlus)}) {
		t.Fatalf("last write=%+v want IMUPLUS mode", last)
	}
}

func TestVectors_Scaling(t *testing.T) {
	noSleep(t)
	f := newFake()
	d, err := newWithIO(f, ModeIMUPlus)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}

	// 981 = 9.81 m/s^2, -100 = -1 m/s^2 (0xFF9C), 0.
	f.regs[regAccData] = []byte{0xD5, 0x03, 0x9C, 0xFF, 0x00, 0x00}
	f.regs[regLiaData] = []byte{0x64, 0x00, 0x00, 0x00, 0x00, 0x00}
	f.regs[regGyrData] = []byte{0x84, 0x03, 0x00, 0x00, 0x00, 0x00}
	f.regs[regMagData] = []byte{0x10, 0x00, 0x20, 0x00, 0x30, 0x00}

	acc, ok := d.Acceleration()
	if !ok || math.Abs(acc.X-9.81) > 1e-12 || acc.Y != -1 || acc.Z != 0 {
		t.Fatalf("acc=%+v ok=%v", acc, ok)
	}
	lin, ok := d.LinearAcceleration()
	if !ok || lin.X != 1 {
		t.Fatalf("lin=%+v ok=%v", lin, ok)
	}
	gyr, ok := d.AngularRate()
	if !ok || math.Abs(gyr.X-1) > 1e-12 {
		t.Fatalf("gyro=%+v ok=%v want 900 LSB = 1 rad/s", gyr, ok)
	}
	mag, ok := d.MagneticField()
	if !ok || mag.X != 1 || mag.Y != 2 || mag.Z != 3 {
		t.Fatalf("mag=%+v ok=%v", mag, ok)
	}
}

func TestOrientation_Scaling(t *testing.T) {
	noSleep(t)
	f := newFake()
	d, err := newWithIO(f, ModeIMUPlus)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}
	// W=1 (16384 = 0x4000), X=-0.5 (-8192 = 0xE000), Y=0, Z=0.25 (4096).
	f.regs[regQuaData] = []byte{0x00, 0x40, 0x00, 0xE0, 0x00, 0x00, 0x00, 0x10}
	q, ok := d.Orientation()
	if !ok {
		t.Fatalf("orientation read failed")
	}
	if q.W != 1 || q.X != -0.5 || q.Y != 0 || q.Z != 0.25 {
		t.Fatalf("q=%+v", q)
	}
}

func TestReadMiss(t *testing.T) {
	noSleep(t)
	f := newFake()
	d, err := newWithIO(f, ModeIMUPlus)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}
	f.readErrFor[regLiaData] = errors.New("nack")
	f.readErrFor[regQuaData] = errors.New("nack")

	if _, ok := d.LinearAcceleration(); ok {
		t.Fatalf("expected miss")
	}
	if _, ok := d.Orientation(); ok {
		t.Fatalf("expected miss")
	}
	if d.LastError() == nil {
		t.Fatalf("expected LastError to be set")
	}
}

func TestCalibration(t *testing.T) {
	noSleep(t)
	f := newFake()
	d, err := newWithIO(f, ModeIMUPlus)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}

	f.regs[regCalibStat] = []byte{0b01_11_11_00}
	c, ok := d.Calibration()
	if !ok {
		t.Fatalf("calibration read failed")
	}
	if c != (Calibration{System: 1, Gyro: 3, Accel: 3, Mag: 0}) {
		t.Fatalf("calib=%v", c)
	}
	if !c.Ready() {
		t.Fatalf("expected ready")
	}

	f.regs[regCalibStat] = []byte{0b11_11_10_11}
	c, _ = d.Calibration()
	if c.Ready() {
		t.Fatalf("accel=2 should not be ready: %v", c)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("ndof"); err != nil || m != ModeNDOF {
		t.Fatalf("m=%v err=%v", m, err)
	}
	if m, err := ParseMode(""); err != nil || m != ModeIMUPlus {
		t.Fatalf("m=%v err=%v", m, err)
	}
	if _, err := ParseMode("compass"); err == nil {
		t.Fatalf("expected error")
	}
}
