package bno080

import "math"

// QToFloat converts a signed fixed-point value with the given Q point to a
// float: value * 2^-q.
func QToFloat(value int16, q uint8) float32 {
	return float32(float64(value) * math.Pow(2, -float64(q)))
}
