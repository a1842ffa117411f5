package bno080

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogf/gf/v2/os/gproc"
	log "github.com/sirupsen/logrus"

	"github.com/alexytsu/NIARC-2018/internal/config"
	"github.com/alexytsu/NIARC-2018/internal/manager"
	"github.com/alexytsu/NIARC-2018/internal/observability"
	"github.com/alexytsu/NIARC-2018/internal/sensor"
	"github.com/alexytsu/NIARC-2018/internal/sensor/bno080"
)

const BufLen = 1024

// newSensor is swapped out in tests.
var newSensor = bno080.NewSensor

// Publisher receives every decoded reading the polling loop produces.
type Publisher interface {
	Publish(r sensor.IMUReadingWrapped)
}

type bno080Manager struct {
	opt        *config.NIARCOpt
	pubs       []Publisher
	sensors    map[string]sensor.Sensor
	ringBuffer []sensor.IMUReadingWrapped
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lock       sync.RWMutex // guards sensors and lifecycle transitions
	ring       sync.RWMutex // guards ringBuffer and counter
	counter    int64

	// status flags, read concurrently by the API and the Daemon while the
	// polling goroutine writes faulted
	running         atomic.Bool
	manuallyStopped atomic.Bool
	faulted         atomic.Bool
}

func NewManager(opt *config.NIARCOpt, pubs ...Publisher) manager.Manager {
	return &bno080Manager{
		opt:        opt,
		pubs:       pubs,
		sensors:    nil,
		ringBuffer: make([]sensor.IMUReadingWrapped, BufLen),
	}
}

func (m *bno080Manager) Running() bool {
	return m.running.Load() && !m.faulted.Load()
}

func (m *bno080Manager) Faulted() bool {
	return m.faulted.Load()
}

func (m *bno080Manager) ManuallyStopped() bool {
	return m.manuallyStopped.Load()
}

// ListDev returns the ids of the managed sensors.
func (m *bno080Manager) ListDev() ([]string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	res := make([]string, 0, len(m.sensors))
	for _, s := range m.sensors {
		res = append(res, s.ID())
	}
	return res, nil
}

func listI2CBuses() []string {
	var buses []string
	files, err := os.ReadDir("/dev")
	if err != nil {
		log.Errorln("Error reading directory:", err)
		return nil
	}
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "i2c-") {
			buses = append(buses, "/dev/"+file.Name())
		}
	}
	return buses
}

// testBus shells out to i2cdetect and searches the scan output for the
// device address. Falls back to "bus exists" when the tool is missing.
func testBus(bus string, addr int) bool {
	num := strings.TrimPrefix(bus, "/dev/i2c-")
	output, err := gproc.ShellExec(context.Background(), "i2cdetect -y "+num)
	if err != nil {
		log.Debugf("i2cdetect unavailable for %s: %v", bus, err)
		return true
	}
	return strings.Contains(strings.ToLower(output), fmt.Sprintf("%02x", addr))
}

// ProbeDev scans the I2C buses for a responding device at each configured
// address.
func (m *bno080Manager) ProbeDev() ([]string, error) {
	buses := listI2CBuses()
	var valid []string

	for _, bus := range buses {
		for _, imu := range m.opt.IMU {
			if testBus(bus, imu.Addr) {
				valid = append(valid, fmt.Sprintf("%s @ 0x%02X", bus, imu.Addr))
			}
		}
	}

	if len(valid) == 0 {
		return nil, errors.New("no responding devices found")
	}
	return valid, nil
}

// updateAll is the polling loop: read every sensor, push decoded readings
// into the ring buffer and fan them out to the publishers.
func (m *bno080Manager) updateAll() {
	defer m.wg.Done()

	// diagnose variables
	diagLastCheck := time.Now().UnixMilli()
	diagPCounter := 0

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		got := 0
		for _, rs := range m.sensors {
			start := time.Now()
			res, err := rs.Read()
			observability.ObserveReadLatency(start)
			if err != nil {
				if errors.Is(err, bno080.ErrNoData) {
					log.Debugf("sensor %v error: %v", rs.ID(), err)
					observability.BusTimeouts.Inc()
					continue
				}
				log.Errorf("sensor %v error: %v", rs.ID(), err)
				m.faulted.Store(true)
				return
			}
			got += len(res)
			diagPCounter += len(res)

			m.ring.Lock()
			for _, item := range res {
				m.ringBuffer[m.counter%BufLen] = item
				m.counter++
				observability.ReportsDecoded.WithLabelValues(reportName(item.Report)).Inc()
			}
			m.ring.Unlock()

			for _, item := range res {
				for _, p := range m.pubs {
					p.Publish(item)
				}
			}
		}

		diagDuration := float64(time.Now().UnixMilli()-diagLastCheck) / 1000
		if diagDuration >= 10 {
			log.Debugf("updateAll rps: %3.1f", float64(diagPCounter)/diagDuration)
			diagLastCheck = time.Now().UnixMilli()
			diagPCounter = 0
		}

		if got == 0 {
			// the device read already waited out its retry budget, yield
			// briefly before the next cycle
			time.Sleep(time.Millisecond)
		}
	}
}

func reportName(id uint8) string {
	switch id {
	case bno080.SensorAccelerometer:
		return "accelerometer"
	case bno080.SensorGyroscope:
		return "gyroscope"
	case bno080.SensorMagnetometer:
		return "magnetometer"
	case bno080.SensorLinearAcceleration:
		return "linear_acceleration"
	case bno080.SensorRotationVector:
		return "rotation_vector"
	case bno080.SensorGameRotationVector:
		return "game_rotation_vector"
	case bno080.SensorStepCounter:
		return "step_counter"
	case bno080.SensorStabilityClassifier:
		return "stability_classifier"
	case bno080.SensorActivityClassifier:
		return "activity_classifier"
	default:
		return "unknown"
	}
}

// Start opens every configured sensor and launches the polling loop.
func (m *bno080Manager) Start() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	log.Infof("manager started")

	if m.sensors == nil {
		m.ctx, m.cancel = context.WithCancel(context.Background())
		m.sensors = make(map[string]sensor.Sensor)
		for _, imu := range m.opt.IMU {
			if imu.ID == "" {
				m.sensors = nil
				return errors.New("empty sensor id")
			}
			if imu.Bus == "" {
				m.sensors = nil
				return errors.New("empty sensor bus")
			}
			if _, ok := m.sensors[imu.ID]; ok {
				m.sensors = nil
				return errors.New("duplicate sensor id: " + imu.ID)
			}
			s := newSensor(imu)
			if s == nil {
				m.sensors = nil
				return errors.New("failed to create sensor: " + imu.ID)
			}
			m.sensors[imu.ID] = s
			time.Sleep(time.Millisecond * 50) // wait for stable
		}
		m.faulted.Store(false)
		m.running.Store(true)
		m.wg.Add(1)
		go m.updateAll()
	}
	m.manuallyStopped.Store(false)
	return nil
}

// Stop tears the polling loop down and closes the sensors.
func (m *bno080Manager) Stop() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	log.Infof("manager stopped")

	if m.sensors == nil {
		return nil
	}
	m.cancel()
	m.wg.Wait()
	for _, rs := range m.sensors {
		err := rs.Close()
		if err != nil {
			return err
		}
	}
	m.sensors = nil
	m.running.Store(false)
	m.manuallyStopped.Store(true)
	m.ring.Lock()
	m.counter = 0
	m.ringBuffer = make([]sensor.IMUReadingWrapped, BufLen)
	m.ring.Unlock()
	return nil
}

func (m *bno080Manager) Restart() error {
	err := m.Stop()
	if err != nil {
		return err
	}
	return m.Start()
}

// Read returns readings newer than cursor, or just the latest when cursor
// is negative.
func (m *bno080Manager) Read(cursor int64) (int64, []sensor.IMUReadingWrapped, error) {
	m.ring.RLock()
	defer m.ring.RUnlock()

	if cursor < 0 {
		cursor = m.counter - 1
		if cursor < 0 {
			return cursor, nil, errors.New("not ready")
		}
		return cursor, []sensor.IMUReadingWrapped{m.ringBuffer[cursor%BufLen]}, nil
	}

	if cursor+1 >= m.counter {
		return cursor, nil, errors.New("no new data")
	}
	stop := m.counter
	if stop-cursor >= BufLen {
		cursor = stop - BufLen
	}
	res := make([]sensor.IMUReadingWrapped, 0, stop-cursor)
	for ; cursor < stop; cursor++ {
		res = append(res, m.ringBuffer[cursor%BufLen])
	}
	return cursor, res, nil
}

// Daemon keeps the manager alive: restarts after faults unless it was
// stopped on purpose.
func Daemon(m manager.Manager) {
	for {
		if m.Faulted() {
			log.Infoln("status is faulted, stopping")
			err := m.Stop()
			if err != nil {
				log.Errorln(err)
			}
		}
		if !m.Running() && !m.ManuallyStopped() {
			err := m.Start()
			if err != nil {
				log.Errorln(err)
				time.Sleep(time.Second * 1)
				continue
			}
		}
		time.Sleep(time.Second * 1)
	}
}
