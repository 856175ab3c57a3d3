package bno055

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"payloadnav/internal/i2c"
	"payloadnav/internal/nav"
)

var sleep = time.Sleep

// Minimal BNO055 driver.
//
// The chip runs its own sensor fusion; we only select an operating mode and
// read the output registers. UNIT_SEL keeps the power-on defaults (m/s^2,
// degrees, Windows orientation) except the gyro, which is switched to rad/s.

const (
	addrDefault   = 0x28
	addrAlternate = 0x29

	regChipID = 0x00
	chipIDVal = 0xA0
	regPageID = 0x07

	regAccData = 0x08 // 6 bytes, little-endian X,Y,Z
	regMagData = 0x0E
	regGyrData = 0x14
	regQuaData = 0x20 // 8 bytes, W,X,Y,Z
	regLiaData = 0x28

	regCalibStat = 0x35
	regSysStatus = 0x39
	regSysErr    = 0x3A
	regUnitSel   = 0x3B
	regOprMode   = 0x3D
	regPwrMode   = 0x3E
	regSysTrig   = 0x3F

	pwrNormal  = 0x00
	trigReset  = 0x20
	unitGyrRad = 0x02 // UNIT_SEL bit 1

	scaleAcc  = 1.0 / 100.0   // LSB per m/s^2
	scaleMag  = 1.0 / 16.0    // LSB per uT
	scaleGyro = 1.0 / 900.0   // LSB per rad/s
	scaleQuat = 1.0 / 16384.0 // 2^14 LSB per unit
)

// Mode is an OPR_MODE value.
type Mode byte

const (
	ModeConfig Mode = 0x00
	ModeAMG    Mode = 0x07
	// ModeIMUPlus fuses accelerometer and gyro only; heading is relative to
	// power-on.
	ModeIMUPlus Mode = 0x08
	ModeNDOF    Mode = 0x0C
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "imuplus":
		return ModeIMUPlus, nil
	case "ndof":
		return ModeNDOF, nil
	case "amg":
		return ModeAMG, nil
	default:
		return 0, fmt.Errorf("bno055: unknown mode %q (want imuplus, ndof or amg)", s)
	}
}

// Calibration levels run 0 (uncalibrated) to 3 (fully calibrated).
type Calibration struct {
	System byte
	Gyro   byte
	Accel  byte
	Mag    byte
}

// Ready reports whether the sensors used for navigation are fully calibrated.
func (c Calibration) Ready() bool { return c.Gyro == 3 && c.Accel == 3 }

func (c Calibration) String() string {
	return fmt.Sprintf("sys=%d gyro=%d accel=%d mag=%d", c.System, c.Gyro, c.Accel, c.Mag)
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

// Device is safe for concurrent reads.
type Device struct {
	mu   sync.Mutex
	dev  regIO
	mode Mode

	// lastErr is the most recent read error, for diagnostics.
	lastErr error
}

func DefaultAddress() uint16 { return addrDefault }

func AlternateAddress() uint16 { return addrAlternate }

func New(dev *i2c.Dev, mode Mode) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("bno055: dev is nil")
	}
	return newWithIO(dev, mode)
}

func newWithIO(dev regIO, mode Mode) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("bno055: dev is nil")
	}
	d := &Device{dev: dev, mode: mode}

	id, err := d.dev.ReadRegU8(regChipID)
	if err != nil {
		return nil, fmt.Errorf("bno055: chip id read failed: %w", err)
	}
	if id != chipIDVal {
		return nil, fmt.Errorf("bno055: chip id=0x%02X want 0x%02X", id, chipIDVal)
	}

	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	if err := d.setMode(ModeConfig); err != nil {
		return err
	}
	if err := d.dev.WriteReg(regSysTrig, trigReset); err != nil {
		return fmt.Errorf("bno055: reset failed: %w", err)
	}
	// The chip does not ACK while it reboots.
	sleep(650 * time.Millisecond)
	for i := 0; i < 10; i++ {
		if id, err := d.dev.ReadRegU8(regChipID); err == nil && id == chipIDVal {
			break
		}
		sleep(10 * time.Millisecond)
	}

	if err := d.dev.WriteReg(regPwrMode, pwrNormal); err != nil {
		return fmt.Errorf("bno055: power mode failed: %w", err)
	}
	_ = d.dev.WriteReg(regPageID, 0x00)
	if err := d.dev.WriteReg(regUnitSel, unitGyrRad); err != nil {
		return fmt.Errorf("bno055: unit select failed: %w", err)
	}
	_ = d.dev.WriteReg(regSysTrig, 0x00)
	sleep(10 * time.Millisecond)

	return d.setMode(d.mode)
}

func (d *Device) setMode(m Mode) error {
	if err := d.dev.WriteReg(regOprMode, byte(m)); err != nil {
		return fmt.Errorf("bno055: set mode 0x%02X failed: %w", byte(m), err)
	}
	// Switching out of config takes 7 ms, into config 19 ms.
	sleep(30 * time.Millisecond)
	return nil
}

func (d *Device) Mode() Mode { return d.mode }

// Acceleration is total acceleration in m/s^2, gravity included.
func (d *Device) Acceleration() (nav.Vec3, bool) { return d.vec(regAccData, scaleAcc) }

// LinearAcceleration is acceleration with gravity removed by the fusion
// engine, in m/s^2.
func (d *Device) LinearAcceleration() (nav.Vec3, bool) { return d.vec(regLiaData, scaleAcc) }

// AngularRate is in rad/s.
func (d *Device) AngularRate() (nav.Vec3, bool) { return d.vec(regGyrData, scaleGyro) }

// MagneticField is in microtesla.
func (d *Device) MagneticField() (nav.Vec3, bool) { return d.vec(regMagData, scaleMag) }

// Orientation is the fused body-to-earth quaternion.
func (d *Device) Orientation() (nav.Quat, bool) {
	var buf [8]byte
	if !d.read(regQuaData, buf[:]) {
		return nav.Quat{}, false
	}
	w := float64(int16(binary.LittleEndian.Uint16(buf[0:]))) * scaleQuat
	x := float64(int16(binary.LittleEndian.Uint16(buf[2:]))) * scaleQuat
	y := float64(int16(binary.LittleEndian.Uint16(buf[4:]))) * scaleQuat
	z := float64(int16(binary.LittleEndian.Uint16(buf[6:]))) * scaleQuat
	return nav.QuatWXYZ(w, x, y, z), true
}

func (d *Device) Calibration() (Calibration, bool) {
	var buf [1]byte
	if !d.read(regCalibStat, buf[:]) {
		return Calibration{}, false
	}
	b := buf[0]
	return Calibration{
		System: (b >> 6) & 0x03,
		Gyro:   (b >> 4) & 0x03,
		Accel:  (b >> 2) & 0x03,
		Mag:    b & 0x03,
	}, true
}

// SystemStatus returns the SYS_STATUS and SYS_ERR registers.
func (d *Device) SystemStatus() (status, sysErr byte, err error) {
	var buf [2]byte
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.dev.ReadReg(regSysStatus, buf[:]); err != nil {
		return 0, 0, fmt.Errorf("bno055: read status failed: %w", err)
	}
	return buf[0], buf[1], nil
}

// LastError is the most recent read failure, or nil.
func (d *Device) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Device) vec(reg byte, scale float64) (nav.Vec3, bool) {
	var buf [6]byte
	if !d.read(reg, buf[:]) {
		return nav.Vec3{}, false
	}
	return nav.Vec3{
		X: float64(int16(binary.LittleEndian.Uint16(buf[0:]))) * scale,
		Y: float64(int16(binary.LittleEndian.Uint16(buf[2:]))) * scale,
		Z: float64(int16(binary.LittleEndian.Uint16(buf[4:]))) * scale,
	}, true
}

func (d *Device) read(reg byte, dst []byte) bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.dev.ReadReg(reg, dst); err != nil {
		d.lastErr = fmt.Errorf("bno055: read 0x%02X failed: %w", reg, err)
		return false
	}
	return true
}
