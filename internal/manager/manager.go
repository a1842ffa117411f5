package manager

import "github.com/alexytsu/NIARC-2018/internal/sensor"

// Manager owns the polling loop over one or more IMUs. Read takes a cursor
// into the ring buffer: -1 means "latest sample only", otherwise everything
// newer than the cursor is returned along with the new cursor.
type Manager interface {
	Start() error
	Stop() error
	Restart() error
	Read(int64) (int64, []sensor.IMUReadingWrapped, error)
	Running() bool
	ManuallyStopped() bool
	Faulted() bool
	ListDev() ([]string, error)
	ProbeDev() ([]string, error)
}

// ColorManager owns the 1 Hz color classification loop.
type ColorManager interface {
	Start() error
	Stop() error
	Latest() (sensor.ColorReading, error)
	Running() bool
}
