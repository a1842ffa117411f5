package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexytsu/NIARC-2018/internal/sensor"
)

type fakeManager struct {
	running  bool
	faulted  bool
	stopped  bool
	readings []sensor.IMUReadingWrapped
	startErr error
}

func (f *fakeManager) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeManager) Stop() error {
	f.running = false
	f.stopped = true
	return nil
}

func (f *fakeManager) Restart() error { return nil }

func (f *fakeManager) Read(cursor int64) (int64, []sensor.IMUReadingWrapped, error) {
	if len(f.readings) == 0 {
		return cursor, nil, errNotReady
	}
	return int64(len(f.readings) - 1), f.readings, nil
}

func (f *fakeManager) Running() bool         { return f.running }
func (f *fakeManager) ManuallyStopped() bool { return f.stopped }
func (f *fakeManager) Faulted() bool         { return f.faulted }

func (f *fakeManager) ListDev() ([]string, error) { return []string{"imu_0"}, nil }

func (f *fakeManager) ProbeDev() ([]string, error) { return nil, nil }

var errNotReady = &notReadyError{}

type notReadyError struct{}

func (e *notReadyError) Error() string { return "not ready" }

type fakeColor struct {
	reading sensor.ColorReading
	ready   bool
}

func (f *fakeColor) Start() error  { return nil }
func (f *fakeColor) Stop() error   { return nil }
func (f *fakeColor) Running() bool { return true }

func (f *fakeColor) Latest() (sensor.ColorReading, error) {
	if !f.ready {
		return sensor.ColorReading{}, errNotReady
	}
	return f.reading, nil
}

func doRequest(t *testing.T, m *fakeManager, c *fakeColor, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	var r http.Handler
	if c == nil {
		r = NewRouter(m, nil, false)
	} else {
		r = NewRouter(m, c, false)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	w := doRequest(t, &fakeManager{}, nil, http.MethodGet, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListDevices(t *testing.T) {
	w := doRequest(t, &fakeManager{}, nil, http.MethodGet, "/v1/imu/devices")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.IDs) != 1 || body.IDs[0] != "imu_0" {
		t.Errorf("ids = %v", body.IDs)
	}
}

func TestLatestIMU(t *testing.T) {
	m := &fakeManager{readings: []sensor.IMUReadingWrapped{{ID: "imu_0", Seq: 4}}}
	m.readings[0].Quat = [4]float32{0, 0, 0, 1}
	w := doRequest(t, m, nil, http.MethodGet, "/v1/imu/latest")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Cursor   int64 `json:"cursor"`
		Readings []struct {
			ID   string     `json:"id"`
			Quat [4]float32 `json:"quat"`
		} `json:"readings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Readings) != 1 || body.Readings[0].ID != "imu_0" || body.Readings[0].Quat[3] != 1 {
		t.Errorf("readings = %+v", body.Readings)
	}
}

func TestLatestIMUNotReady(t *testing.T) {
	w := doRequest(t, &fakeManager{}, nil, http.MethodGet, "/v1/imu/latest")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestLatestIMUBadCursor(t *testing.T) {
	w := doRequest(t, &fakeManager{}, nil, http.MethodGet, "/v1/imu/latest?cursor=abc")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStartStopEndpoints(t *testing.T) {
	m := &fakeManager{}
	w := doRequest(t, m, nil, http.MethodPost, "/v1/imu/start")
	if w.Code != http.StatusOK || !m.running {
		t.Errorf("start: status %d, running %v", w.Code, m.running)
	}
	w = doRequest(t, m, nil, http.MethodPost, "/v1/imu/stop")
	if w.Code != http.StatusOK || m.running {
		t.Errorf("stop: status %d, running %v", w.Code, m.running)
	}
}

func TestColorLatest(t *testing.T) {
	c := &fakeColor{ready: true, reading: sensor.ColorReading{Clear: 200, Red: 300, Dominant: sensor.ColorRed}}
	w := doRequest(t, &fakeManager{}, c, http.MethodGet, "/v1/color/latest")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Dominant string `json:"dominant"`
		Message  string `json:"message"`
		Red      uint16 `json:"red"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Dominant != "red" || body.Message != "Detecting red" || body.Red != 300 {
		t.Errorf("body = %+v", body)
	}
}

func TestColorDisabled(t *testing.T) {
	w := doRequest(t, &fakeManager{}, nil, http.MethodGet, "/v1/color/latest")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
