package tcs34725

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/alexytsu/NIARC-2018/internal/config"
	"github.com/alexytsu/NIARC-2018/internal/manager"
	"github.com/alexytsu/NIARC-2018/internal/observability"
	"github.com/alexytsu/NIARC-2018/internal/sensor"
	"github.com/alexytsu/NIARC-2018/internal/sensor/tcs34725"
)

var pollPeriod = time.Second

// colorDevice is the slice of the driver the manager needs.
type colorDevice interface {
	Read() (sensor.ColorReading, error)
	Close() error
}

// newSensor is swapped out in tests.
var newSensor = func(opt config.ColorOpt) colorDevice {
	d := tcs34725.NewSensor(opt)
	if d == nil {
		return nil
	}
	return d
}

type colorManager struct {
	opt    config.ColorOpt
	dev    colorDevice
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	lock   sync.RWMutex // guards dev lifecycle
	state  sync.RWMutex // guards latest
	latest sensor.ColorReading
	valid  bool
}

func NewManager(opt config.ColorOpt) manager.ColorManager {
	return &colorManager{opt: opt}
}

func (m *colorManager) Running() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.dev != nil
}

// Start opens the sensor and launches the 1 Hz classification loop.
func (m *colorManager) Start() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.dev != nil {
		return nil
	}
	dev := newSensor(m.opt)
	if dev == nil {
		return errors.New("failed to create color sensor: " + m.opt.ID)
	}
	m.dev = dev
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.wg.Add(1)
	go m.update()
	log.Infof("color manager started")
	return nil
}

func (m *colorManager) Stop() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.dev == nil {
		return nil
	}
	m.cancel()
	m.wg.Wait()
	err := m.dev.Close()
	m.dev = nil
	m.state.Lock()
	m.valid = false
	m.state.Unlock()
	log.Infof("color manager stopped")
	return err
}

// Latest returns the most recent classification cycle.
func (m *colorManager) Latest() (sensor.ColorReading, error) {
	m.state.RLock()
	defer m.state.RUnlock()
	if !m.valid {
		return sensor.ColorReading{}, errors.New("not ready")
	}
	return m.latest, nil
}

func (m *colorManager) update() {
	defer m.wg.Done()
	ticker := time.NewTicker(pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}

		r, err := m.dev.Read()
		if err != nil {
			log.Warnf("color sensor %v error: %v", m.opt.ID, err)
			continue
		}
		observability.ColorCycles.WithLabelValues(r.Dominant.String()).Inc()
		log.Debugln(r.Dominant.Message())

		m.state.Lock()
		m.latest = r
		m.valid = true
		m.state.Unlock()
	}
}
