package sensor

import "math"

// IMUReading is one decoded snapshot of the sensor hub state. Fields are
// overwritten in place as input reports arrive; accuracy fields carry the
// 2-bit status code of the last report of that kind.
type IMUReadingType struct {
	Acc                [3]float32 // m/s^2
	LinAcc             [3]float32 // m/s^2, gravity removed
	Gyro               [3]float32 // rad/s
	Mag                [3]float32 // uT
	Quat               [4]float32 // i, j, k, real
	QuatAccuracyRad    float32
	AccAccuracy        uint8
	LinAccAccuracy     uint8
	GyroAccuracy       uint8
	MagAccuracy        uint8
	QuatAccuracy       uint8
	Steps              uint16
	Stability          uint8
	Activity           uint8
	ActivityConfidence [9]uint8
	Timestamp          uint32
}

type IMUReadingWrapped struct {
	IMUReadingType
	ID       string
	Report   uint8 // input report id that produced this sample
	Seq      uint64
	SysTicks int64
}

type Sensor interface {
	Read() ([]IMUReadingWrapped, error)
	Reset() error
	Close() error
	Open() error
	ID() string
	Seq() uint64
}

// QuatToEuler converts an i,j,k,real quaternion to roll, pitch, yaw in
// radians.
func QuatToEuler(q [4]float32) [3]float32 {
	i, j, k, r := float64(q[0]), float64(q[1]), float64(q[2]), float64(q[3])

	roll := math.Atan2(2*(r*i+j*k), 1-2*(i*i+j*j))

	sinp := 2 * (r*j - k*i)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	yaw := math.Atan2(2*(r*k+i*j), 1-2*(j*j+k*k))

	return [3]float32{float32(roll), float32(pitch), float32(yaw)}
}
