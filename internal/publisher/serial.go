// Package publisher republishes decoded readings to downstream links.
package publisher

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	"github.com/alexytsu/NIARC-2018/internal/config"
	"github.com/alexytsu/NIARC-2018/internal/observability"
	"github.com/alexytsu/NIARC-2018/internal/sensor"
	"github.com/alexytsu/NIARC-2018/internal/sensor/bno080"
)

// Serial writes one quaternion line per rotation-vector report:
// I,J,K,Real, each signed with two decimals, newline terminated. All other
// report types are skipped.
type Serial struct {
	w io.Writer
	c io.Closer
}

// NewSerial opens the configured port.
func NewSerial(opt config.SerialOpt) (*Serial, error) {
	port, err := serial.OpenPort(&serial.Config{Name: opt.Name, Baud: opt.Baud})
	if err != nil {
		return nil, err
	}
	return &Serial{w: port, c: port}, nil
}

// NewSerialWriter wraps an existing writer, used by tests and stdout mode.
func NewSerialWriter(w io.Writer) *Serial {
	return &Serial{w: w}
}

// FormatQuat renders the republished line without the newline.
func FormatQuat(q [4]float32) string {
	return fmt.Sprintf("%+.2f,%+.2f,%+.2f,%+.2f", q[0], q[1], q[2], q[3])
}

func (s *Serial) Publish(r sensor.IMUReadingWrapped) {
	if r.Report != bno080.SensorRotationVector && r.Report != bno080.SensorGameRotationVector {
		return
	}
	if _, err := fmt.Fprintf(s.w, "%s\n", FormatQuat(r.Quat)); err != nil {
		observability.SerialErrors.Inc()
		log.Warnln("serial publish:", err)
		return
	}
	observability.SerialPublished.Inc()
}

func (s *Serial) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}
