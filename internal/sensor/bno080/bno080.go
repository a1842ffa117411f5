package bno080

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/io/i2c"

	"github.com/alexytsu/NIARC-2018/internal/config"
	"github.com/alexytsu/NIARC-2018/internal/sensor"
)

const MaxReportsPerRead = 16

// ErrNoData means a poll cycle finished without a single decodable report.
// Not fatal, the caller retries on its next cycle.
var ErrNoData = errors.New("no reports available")

// Conn is the slice of an I2C connection the driver uses. *i2c.Device from
// golang.org/x/exp/io/i2c satisfies it.
type Conn interface {
	Read(buf []byte) error
	Write(buf []byte) error
	Close() error
}

// Readings is the owned raw-value state of one device, overwritten in place
// as input reports are decoded. All values are fixed point; the Q point to
// apply depends on the sensor type.
type Readings struct {
	RawAccel        [3]int16
	RawLinAccel     [3]int16
	RawGyro         [3]int16
	RawMag          [3]int16
	RawQuat         [4]int16 // i, j, k, real
	RawQuatAccuracy int16

	AccelAccuracy    uint8
	LinAccelAccuracy uint8
	GyroAccuracy     uint8
	MagAccuracy      uint8
	QuatAccuracy     uint8

	StepCount          uint16
	Stability          uint8
	Activity           uint8
	ActivityConfidence [9]uint8

	Timestamp uint32
}

// ProductID holds the 0xF8 product id response fields.
type ProductID struct {
	ResetCause   uint8
	VersionMajor uint8
	VersionMinor uint8
	VersionPatch uint16
	PartNumber   uint32
	BuildNumber  uint32
}

// Device drives one BNO080 over SHTP. Not safe for concurrent use; the
// manager serializes all access.
type Device struct {
	id   string
	opt  config.IMUOpt
	conn Conn

	seqNum [numChannels]uint8
	pkt    packet
	chunk  []byte

	readChunk    int
	pollInterval time.Duration
	retryBudget  int

	readings Readings
	prod     ProductID

	calibrationStatus uint8

	// Q points, FRS metadata can override the defaults
	qRotation uint8
	qAccel    uint8
	qGyro     uint8
	qMag      uint8

	readSeq uint64
}

// New wraps an already opened connection. Zero option fields get the
// configured defaults so a partially filled IMUOpt still behaves.
func New(conn Conn, opt config.IMUOpt) *Device {
	d := &Device{
		id:           opt.ID,
		opt:          opt,
		conn:         conn,
		readChunk:    DefaultReadChunk,
		pollInterval: opt.PollInterval(),
		retryBudget:  opt.RetryBudget,
		qRotation:    QRotationVector,
		qAccel:       QAccelerometer,
		qGyro:        QGyroscope,
		qMag:         QMagnetometer,
	}
	if d.retryBudget <= 0 {
		d.retryBudget = 100
	}
	d.chunk = make([]byte, d.readChunk)
	return d
}

// NewSensor opens the configured bus and brings the device up. Returns nil
// when the device cannot be reached, matching the manager's probe loop.
func NewSensor(opt config.IMUOpt) sensor.Sensor {
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

func (d *Device) Seq() uint64 {
	return d.readSeq
}

// Open connects to the bus and runs the bring-up sequence.
func (d *Device) Open() error {
	if d.conn != nil {
		return nil
	}
	dev, err := i2c.Open(&i2c.Devfs{Dev: d.opt.Bus}, d.opt.Addr)
	if err != nil {
		return err
	}
	d.conn = dev
	d.readSeq = 0

	if err := d.Configure(); err != nil {
		_ = dev.Close()
		d.conn = nil
		return err
	}
	d.LoadQPoints()
	if err := d.EnableRotationVector(); err != nil {
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

// Reset soft-resets the hub and drains whatever it announces afterwards.
func (d *Device) Reset() error {
	if err := d.sendPacket(ChannelExecutable, []byte{1}); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)
	d.drain()
	return nil
}

// drain consumes pending packets (reset notification, advertisement) until
// the hub reports empty. The advertisement is not parsed.
func (d *Device) drain() {
	for {
		ok, err := d.receive()
		if err != nil || !ok {
			return
		}
	}
}

// Configure resets the device and verifies it answers a product id request.
func (d *Device) Configure() error {
	if err := d.Reset(); err != nil {
		return fmt.Errorf("bno080 %s: reset: %w", d.id, err)
	}

	if err := d.sendPacket(ChannelControl, []byte{ReportProductIDRequest, 0}); err != nil {
		return fmt.Errorf("bno080 %s: product id request: %w", d.id, err)
	}
	// skip over packets the hub interleaves (reset notifications mostly)
	for i := 0; i < 10; i++ {
		ok, err := d.waitReceive()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if d.pkt.channel == ChannelControl && d.pkt.length > 0 && d.pkt.data[0] == ReportProductIDResponse {
			d.parseProductID()
			log.Infof("bno080 %s: part %d sw %d.%d.%d build %d",
				d.id, d.prod.PartNumber, d.prod.VersionMajor, d.prod.VersionMinor, d.prod.VersionPatch, d.prod.BuildNumber)
			return nil
		}
	}
	return fmt.Errorf("bno080 %s: no product id response, device not detected", d.id)
}

// ProductIDs returns the fields of the last product id response.
func (d *Device) ProductIDs() ProductID {
	return d.prod
}

// EnableReport asks the hub to emit the given input report every intervalUs
// microseconds. Zero disables the report.
func (d *Device) EnableReport(reportID uint8, intervalUs uint32) error {
	var cmd [17]byte
	cmd[0] = ReportSetFeature
	cmd[1] = reportID
	// feature flags, change sensitivity: zero
	cmd[5] = byte(intervalUs)
	cmd[6] = byte(intervalUs >> 8)
	cmd[7] = byte(intervalUs >> 16)
	cmd[8] = byte(intervalUs >> 24)
	// batch interval, sensor specific config: zero
	return d.sendPacket(ChannelControl, cmd[:])
}

// EnableRotationVector enables the quaternion input report at the
// configured interval.
func (d *Device) EnableRotationVector() error {
	return d.EnableReport(SensorRotationVector, d.opt.ReportIntervalUs)
}

// DataAvailable waits for one packet within the retry budget and decodes
// it. True means the readings state changed. Timeouts and bus errors both
// come back false; the caller re-polls on its next cycle.
func (d *Device) DataAvailable() bool {
	report, err := d.poll(true)
	if err != nil {
		log.Debugf("bno080 %s: %v", d.id, err)
		return false
	}
	return report != 0
}

// poll receives one packet and routes it. Returns the input report id that
// updated the readings, or zero. With wait set the receive blocks for the
// retry budget, otherwise it is a single attempt.
func (d *Device) poll(wait bool) (uint8, error) {
	var (
		ok  bool
		err error
	)
	if wait {
		ok, err = d.waitReceive()
	} else {
		ok, err = d.receive()
	}
	if err != nil || !ok {
		return 0, err
	}
	switch d.pkt.channel {
	case ChannelReports:
		if d.pkt.length > 0 && d.pkt.data[0] == ReportBaseTimestamp {
			return d.parseInputReport(), nil
		}
	case ChannelControl:
		d.parseControlReport()
	}
	return 0, nil
}

// parseInputReport decodes a base-timestamp tagged report packet. Layout
// after the header: 5-byte timestamp prefix (0xFB + LE32 delta), report id,
// sequence, status byte (accuracy in the low 2 bits), delay, then LE 16-bit
// words. data4/data5 are only present on the longer report types.
func (d *Device) parseInputReport() uint8 {
	data := d.pkt.data[:d.pkt.length]
	if len(data) < 11 {
		return 0
	}

	d.readings.Timestamp = le32(data[1:5])

	reportID := data[5]
	status := data[7] & 0x03

	data1 := int16(le16(data[9:11]))
	var data2, data3, data4, data5 int16
	if len(data) >= 13 {
		data2 = int16(le16(data[11:13]))
	}
	if len(data) >= 15 {
		data3 = int16(le16(data[13:15]))
	}
	if d.pkt.length-5 > 9 && len(data) >= 17 {
		data4 = int16(le16(data[15:17]))
	}
	if d.pkt.length-5 > 11 && len(data) >= 19 {
		data5 = int16(le16(data[17:19]))
	}

	switch reportID {
	case SensorAccelerometer:
		d.readings.AccelAccuracy = status
		d.readings.RawAccel = [3]int16{data1, data2, data3}
	case SensorLinearAcceleration:
		d.readings.LinAccelAccuracy = status
		d.readings.RawLinAccel = [3]int16{data1, data2, data3}
	case SensorGyroscope:
		d.readings.GyroAccuracy = status
		d.readings.RawGyro = [3]int16{data1, data2, data3}
	case SensorMagnetometer:
		d.readings.MagAccuracy = status
		d.readings.RawMag = [3]int16{data1, data2, data3}
	case SensorRotationVector, SensorGameRotationVector:
		d.readings.QuatAccuracy = status
		d.readings.RawQuat = [4]int16{data1, data2, data3, data4}
		d.readings.RawQuatAccuracy = data5
	case SensorStepCounter:
		d.readings.StepCount = uint16(data3)
	case SensorStabilityClassifier:
		d.readings.Stability = data[9]
	case SensorActivityClassifier:
		if len(data) < 20 {
			return 0
		}
		d.readings.Activity = data[10]
		copy(d.readings.ActivityConfidence[:], data[11:20])
	default:
		// unknown report ids are ignored, newer firmware emits types we
		// do not track
		return 0
	}
	return reportID
}

// parseControlReport handles the control channel responses we care about:
// product id and command responses (ME calibration status).
func (d *Device) parseControlReport() {
	if d.pkt.length == 0 {
		return
	}
	switch d.pkt.data[0] {
	case ReportProductIDResponse:
		d.parseProductID()
	case ReportCommandResponse:
		if d.pkt.length > 5 && d.pkt.data[2] == CommandMECalibrate {
			d.calibrationStatus = d.pkt.data[5]
		}
	}
}

func (d *Device) parseProductID() {
	data := d.pkt.data[:d.pkt.length]
	if len(data) < 14 {
		return
	}
	d.prod = ProductID{
		ResetCause:   data[1],
		VersionMajor: data[2],
		VersionMinor: data[3],
		PartNumber:   le32(data[4:8]),
		BuildNumber:  le32(data[8:12]),
		VersionPatch: le16(data[12:14]),
	}
}

// CalibrationStatus returns the status byte of the last ME calibration
// command response.
func (d *Device) CalibrationStatus() uint8 {
	return d.calibrationStatus
}

// Readings returns a copy of the raw fixed-point state.
func (d *Device) Readings() Readings {
	return d.readings
}

// reading converts the current raw state into float values using the
// active Q points.
func (d *Device) reading() sensor.IMUReadingType {
	r := sensor.IMUReadingType{
		QuatAccuracyRad:    QToFloat(d.readings.RawQuatAccuracy, QRotationVectorAccuracy),
		AccAccuracy:        d.readings.AccelAccuracy,
		LinAccAccuracy:     d.readings.LinAccelAccuracy,
		GyroAccuracy:       d.readings.GyroAccuracy,
		MagAccuracy:        d.readings.MagAccuracy,
		QuatAccuracy:       d.readings.QuatAccuracy,
		Steps:              d.readings.StepCount,
		Stability:          d.readings.Stability,
		Activity:           d.readings.Activity,
		ActivityConfidence: d.readings.ActivityConfidence,
		Timestamp:          d.readings.Timestamp,
	}
	for i := 0; i < 3; i++ {
		r.Acc[i] = QToFloat(d.readings.RawAccel[i], d.qAccel)
		r.LinAcc[i] = QToFloat(d.readings.RawLinAccel[i], d.qAccel)
		r.Gyro[i] = QToFloat(d.readings.RawGyro[i], d.qGyro)
		r.Mag[i] = QToFloat(d.readings.RawMag[i], d.qMag)
	}
	for i := 0; i < 4; i++ {
		r.Quat[i] = QToFloat(d.readings.RawQuat[i], d.qRotation)
	}
	return r
}

// Read polls the hub and returns every decoded report as a wrapped
// reading. An empty poll cycle is an error the manager logs and retries,
// the same way a stalled serial port would be.
func (d *Device) Read() ([]sensor.IMUReadingWrapped, error) {
	if d.conn == nil {
		return nil, errors.New("bus not open")
	}
	results := make([]sensor.IMUReadingWrapped, 0, MaxReportsPerRead)
	for i := 0; i < MaxReportsPerRead; i++ {
		// only the first receive waits out the retry budget, the rest of
		// the batch is whatever the hub already has queued
		report, err := d.poll(i == 0)
		if err != nil {
			return nil, err
		}
		if report == 0 {
			break
		}
		results = append(results, sensor.IMUReadingWrapped{
			IMUReadingType: d.reading(),
			ID:             d.id,
			Report:         report,
			Seq:            d.readSeq,
			SysTicks:       time.Now().UnixNano(),
		})
		d.readSeq++
	}
	if len(results) == 0 {
		return nil, ErrNoData
	}
	return results, nil
}

var _ sensor.Sensor = &Device{}
