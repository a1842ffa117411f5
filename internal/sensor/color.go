package sensor

// Color is the classification result of one color sensor cycle.
type Color int

const (
	ColorNone Color = iota
	ColorRed
	ColorGreen
	ColorBlue
)

func (c Color) String() string {
	switch c {
	case ColorRed:
		return "red"
	case ColorGreen:
		return "green"
	case ColorBlue:
		return "blue"
	default:
		return "none"
	}
}

// Message is the human-readable per-cycle line.
func (c Color) Message() string {
	if c == ColorNone {
		return "Not detectable"
	}
	return "Detecting " + c.String()
}

// ColorReading holds the raw channel values of one RGBC register read plus
// the threshold classification derived from them.
type ColorReading struct {
	Clear    uint16
	Red      uint16
	Green    uint16
	Blue     uint16
	Dominant Color
	SysTicks int64
}
