package tcs34725

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/io/i2c"

	"github.com/alexytsu/NIARC-2018/internal/config"
	"github.com/alexytsu/NIARC-2018/internal/sensor"
)

// Register map. Every access goes through the command bit.
const (
	commandBit = 0x80

	regEnable  = 0x00
	regATime   = 0x01
	regControl = 0x0F
	regID      = 0x12
	regStatus  = 0x13
	regCData   = 0x14 // clear low, then R/G/B pairs follow

	enablePON = 0x01
	enableAEN = 0x02

	idTCS34725 = 0x44
	idTCS34727 = 0x4D

	// 101 integration cycles (~240ms), 1x gain
	defaultATime = 0xD5
	defaultGain  = 0x00
)

// Classification thresholds: a channel wins when it holds more than
// dominantShare of the RGB sum and the clear channel saw enough light.
const (
	minClear      = 80
	dominantShare = 0.40
)

// RegConn is the register-style connection slice the driver uses.
// *i2c.Device from golang.org/x/exp/io/i2c satisfies it.
type RegConn interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) error
	Close() error
}

// Device drives one TCS34725 color sensor. Plain register reads, no
// packet framing.
type Device struct {
	id   string
	opt  config.ColorOpt
	conn RegConn
}

func New(conn RegConn, opt config.ColorOpt) *Device {
	return &Device{id: opt.ID, opt: opt, conn: conn}
}

// NewSensor opens the configured bus and brings the device up. Nil on
// failure, matching the manager's probe loop.
func NewSensor(opt config.ColorOpt) *Device {
	d := New(nil, opt)
	if err := d.Open(); err != nil {
		log.Warnln(err)
		return nil
	}
	return d
}

func (d *Device) ID() string {
	return d.id
}

func (d *Device) Open() error {
	if d.conn != nil {
		return nil
	}
	dev, err := i2c.Open(&i2c.Devfs{Dev: d.opt.Bus}, d.opt.Addr)
	if err != nil {
		return err
	}
	d.conn = dev
	if err := d.Configure(); err != nil {
		_ = dev.Close()
		d.conn = nil
		return err
	}
	return nil
}

func (d *Device) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	if err != nil {
		return err
	}
	d.conn = nil
	return nil
}

// Configure checks the ID register then powers the ADC up.
func (d *Device) Configure() error {
	var id [1]byte
	if err := d.conn.ReadReg(commandBit|regID, id[:]); err != nil {
		return fmt.Errorf("tcs34725 %s: id read: %w", d.id, err)
	}
	if id[0] != idTCS34725 && id[0] != idTCS34727 {
		return fmt.Errorf("tcs34725 %s: unexpected id 0x%02X", d.id, id[0])
	}

	if err := d.conn.WriteReg(commandBit|regATime, []byte{defaultATime}); err != nil {
		return err
	}
	if err := d.conn.WriteReg(commandBit|regControl, []byte{defaultGain}); err != nil {
		return err
	}
	// power on first, then enable the ADC after the oscillator settles
	if err := d.conn.WriteReg(commandBit|regEnable, []byte{enablePON}); err != nil {
		return err
	}
	time.Sleep(3 * time.Millisecond)
	return d.conn.WriteReg(commandBit|regEnable, []byte{enablePON | enableAEN})
}

// Read pulls the four channel registers in one burst and classifies the
// dominant color.
func (d *Device) Read() (sensor.ColorReading, error) {
	if d.conn == nil {
		return sensor.ColorReading{}, errors.New("bus not open")
	}
	var buf [8]byte
	if err := d.conn.ReadReg(commandBit|regCData, buf[:]); err != nil {
		return sensor.ColorReading{}, err
	}
	r := sensor.ColorReading{
		Clear:    uint16(buf[1])<<8 | uint16(buf[0]),
		Red:      uint16(buf[3])<<8 | uint16(buf[2]),
		Green:    uint16(buf[5])<<8 | uint16(buf[4]),
		Blue:     uint16(buf[7])<<8 | uint16(buf[6]),
		SysTicks: time.Now().UnixNano(),
	}
	r.Dominant = Classify(r)
	return r, nil
}

// Classify picks the dominant channel by threshold comparison. Too little
// light, or no channel clearing the share threshold, is "none".
func Classify(r sensor.ColorReading) sensor.Color {
	if r.Clear < minClear {
		return sensor.ColorNone
	}
	sum := float32(r.Red) + float32(r.Green) + float32(r.Blue)
	if sum == 0 {
		return sensor.ColorNone
	}
	red := float32(r.Red) / sum
	green := float32(r.Green) / sum
	blue := float32(r.Blue) / sum

	switch {
	case red > dominantShare && red >= green && red >= blue:
		return sensor.ColorRed
	case green > dominantShare && green >= red && green >= blue:
		return sensor.ColorGreen
	case blue > dominantShare && blue >= red && blue >= green:
		return sensor.ColorBlue
	default:
		return sensor.ColorNone
	}
}
