package bno080

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexytsu/NIARC-2018/internal/config"
	"github.com/alexytsu/NIARC-2018/internal/sensor"
	drv "github.com/alexytsu/NIARC-2018/internal/sensor/bno080"
)

// fakeSensor serves scripted batches, then behaves like an idle hub. A
// non-nil err fails every read after the batches run out.
type fakeSensor struct {
	id      string
	mu      sync.Mutex
	batches [][]sensor.IMUReadingWrapped
	err     error
	closed  bool
	seq     uint64
}

func (f *fakeSensor) Read() ([]sensor.IMUReadingWrapped, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		if f.err != nil {
			return nil, f.err
		}
		return nil, drv.ErrNoData
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	f.seq += uint64(len(b))
	return b, nil
}

func (f *fakeSensor) Reset() error { return nil }

func (f *fakeSensor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSensor) Open() error { return nil }
func (f *fakeSensor) ID() string  { return f.id }
func (f *fakeSensor) Seq() uint64 { return f.seq }

type fakePublisher struct {
	mu       sync.Mutex
	readings []sensor.IMUReadingWrapped
}

func (p *fakePublisher) Publish(r sensor.IMUReadingWrapped) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readings = append(p.readings, r)
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.readings)
}

func testOpt() *config.NIARCOpt {
	opt := config.NewNIARCOpt()
	opt.IMU = []config.IMUOpt{{ID: "imu_0", Bus: "/dev/null", Addr: 0x4A}}
	return &opt
}

func swapNewSensor(t *testing.T, fn func(config.IMUOpt) sensor.Sensor) {
	t.Helper()
	old := newSensor
	newSensor = fn
	t.Cleanup(func() { newSensor = old })
}

func batch(id string, n int, start uint64) []sensor.IMUReadingWrapped {
	out := make([]sensor.IMUReadingWrapped, n)
	for i := range out {
		out[i] = sensor.IMUReadingWrapped{ID: id, Report: drv.SensorRotationVector, Seq: start + uint64(i)}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestReadCursor(t *testing.T) {
	m := &bno080Manager{opt: testOpt(), ringBuffer: make([]sensor.IMUReadingWrapped, BufLen)}
	for i := 0; i < 3; i++ {
		m.ringBuffer[i] = sensor.IMUReadingWrapped{ID: "imu_0", Seq: uint64(i)}
	}
	m.counter = 3

	cursor, res, err := m.Read(-1)
	if err != nil {
		t.Fatal(err)
	}
	if cursor != 2 || len(res) != 1 || res[0].Seq != 2 {
		t.Errorf("latest read: cursor %d, res %v", cursor, res)
	}

	// the caller's cursor is the last index it saw
	if _, _, err := m.Read(cursor); err == nil {
		t.Error("expected no new data at the head")
	}

	cursor, res, err = m.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if cursor != 3 || len(res) != 3 {
		t.Errorf("backlog read: cursor %d, %d readings", cursor, len(res))
	}
}

func TestReadNotReady(t *testing.T) {
	m := &bno080Manager{opt: testOpt(), ringBuffer: make([]sensor.IMUReadingWrapped, BufLen)}
	if _, _, err := m.Read(-1); err == nil {
		t.Fatal("expected an error before any reading arrived")
	}
}

func TestReadBacklogCappedAtBufLen(t *testing.T) {
	m := &bno080Manager{opt: testOpt(), ringBuffer: make([]sensor.IMUReadingWrapped, BufLen)}
	total := int64(BufLen + 100)
	for i := int64(0); i < total; i++ {
		m.ringBuffer[i%BufLen] = sensor.IMUReadingWrapped{Seq: uint64(i)}
	}
	m.counter = total

	_, res, err := m.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != BufLen {
		t.Fatalf("got %d readings, want %d", len(res), BufLen)
	}
	// the oldest surviving entry, not the overwritten one
	if res[0].Seq != uint64(total-BufLen) {
		t.Errorf("first Seq = %d, want %d", res[0].Seq, total-BufLen)
	}
}

func TestStartStop(t *testing.T) {
	fake := &fakeSensor{id: "imu_0", batches: [][]sensor.IMUReadingWrapped{batch("imu_0", 3, 0)}}
	swapNewSensor(t, func(opt config.IMUOpt) sensor.Sensor { return fake })

	pub := &fakePublisher{}
	m := NewManager(testOpt(), pub).(*bno080Manager)

	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	if !m.Running() {
		t.Error("manager not running after Start")
	}

	waitFor(t, func() bool { return pub.count() == 3 }, "publisher never saw the batch")

	cursor, res, err := m.Read(-1)
	if err != nil {
		t.Fatal(err)
	}
	if cursor != 2 || res[0].ID != "imu_0" {
		t.Errorf("cursor %d, res %v", cursor, res)
	}

	ids, err := m.ListDev()
	if err != nil || len(ids) != 1 || ids[0] != "imu_0" {
		t.Errorf("ListDev = %v, %v", ids, err)
	}

	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if m.Running() || !m.ManuallyStopped() {
		t.Error("manager state wrong after Stop")
	}
	if !fake.closed {
		t.Error("sensor not closed on Stop")
	}
	if _, _, err := m.Read(-1); err == nil {
		t.Error("ring buffer should be reset after Stop")
	}
}

func TestStartRejectsBadConfig(t *testing.T) {
	swapNewSensor(t, func(opt config.IMUOpt) sensor.Sensor { return &fakeSensor{id: opt.ID} })

	opt := testOpt()
	opt.IMU = []config.IMUOpt{{ID: "", Bus: "/dev/null"}}
	if err := NewManager(opt).Start(); err == nil {
		t.Error("empty id must fail")
	}

	opt = testOpt()
	opt.IMU = []config.IMUOpt{{ID: "a", Bus: "/dev/null"}, {ID: "a", Bus: "/dev/null"}}
	if err := NewManager(opt).Start(); err == nil {
		t.Error("duplicate id must fail")
	}
}

func TestStartSensorFailure(t *testing.T) {
	swapNewSensor(t, func(opt config.IMUOpt) sensor.Sensor { return nil })

	m := NewManager(testOpt())
	if err := m.Start(); err == nil {
		t.Fatal("expected Start to fail when the device is unreachable")
	}
	if m.Running() {
		t.Error("manager running after failed Start")
	}
}

func TestFaultOnBusError(t *testing.T) {
	fake := &fakeSensor{
		id:      "imu_0",
		batches: [][]sensor.IMUReadingWrapped{batch("imu_0", 1, 0)},
		err:     errors.New("remote I/O error"),
	}
	swapNewSensor(t, func(opt config.IMUOpt) sensor.Sensor { return fake })

	m := NewManager(testOpt())
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = m.Stop() }()

	waitFor(t, m.Faulted, "bus error never marked the manager faulted")
	if m.Running() {
		t.Error("a faulted manager must not report running")
	}
}

func TestStatusSafeWhilePolling(t *testing.T) {
	fake := &fakeSensor{
		id:      "imu_0",
		batches: [][]sensor.IMUReadingWrapped{batch("imu_0", 1, 0)},
		err:     errors.New("remote I/O error"),
	}
	swapNewSensor(t, func(opt config.IMUOpt) sensor.Sensor { return fake })

	m := NewManager(testOpt())
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = m.Stop() }()

	// hammer the status accessors while the polling goroutine trips the
	// fault flag; run with -race to catch unsynchronized access
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := time.Now().Add(200 * time.Millisecond)
			for time.Now().Before(deadline) {
				_ = m.Running()
				_ = m.Faulted()
				_ = m.ManuallyStopped()
			}
		}()
	}
	wg.Wait()

	waitFor(t, m.Faulted, "bus error never marked the manager faulted")
}

func TestReportName(t *testing.T) {
	cases := map[uint8]string{
		drv.SensorRotationVector:     "rotation_vector",
		drv.SensorAccelerometer:      "accelerometer",
		drv.SensorStepCounter:        "step_counter",
		drv.SensorActivityClassifier: "activity_classifier",
		0x7E:                         "unknown",
	}
	for id, want := range cases {
		if got := reportName(id); got != want {
			t.Errorf("reportName(0x%02X) = %q, want %q", id, got, want)
		}
	}
}
