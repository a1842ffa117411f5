package bno080

// SHTP channels. Each keeps its own sequence counter.
const (
	ChannelCommand     = 0
	ChannelExecutable  = 1
	ChannelControl     = 2
	ChannelReports     = 3
	ChannelWakeReports = 4
	ChannelGyro        = 5

	numChannels = 6
)

const (
	headerSize = 4 // LE length (bit 15 = continuation), channel, sequence

	// MaxPayloadSize caps the packet payload we keep. Longer packets (the
	// startup advertisement mostly) are drained from the bus and the excess
	// bytes dropped.
	MaxPayloadSize = 128

	// DefaultReadChunk is the largest single bus read the driver issues.
	// The hub re-sends a 4-byte header at the start of every chunk.
	DefaultReadChunk = 32

	continuationBit = 0x8000
	lengthMask      = 0x7FFF
)

// SHTP control report ids.
const (
	ReportCommandResponse   = 0xF1
	ReportCommandRequest    = 0xF2
	ReportFRSReadResponse   = 0xF3
	ReportFRSReadRequest    = 0xF4
	ReportProductIDResponse = 0xF8
	ReportProductIDRequest  = 0xF9
	ReportBaseTimestamp     = 0xFB
	ReportSetFeature        = 0xFD
)

// Input report ids the decoder understands. Anything else is ignored.
const (
	SensorAccelerometer       = 0x01
	SensorGyroscope           = 0x02
	SensorMagnetometer        = 0x03
	SensorLinearAcceleration  = 0x04
	SensorRotationVector      = 0x05
	SensorGameRotationVector  = 0x08
	SensorStepCounter         = 0x11
	SensorStabilityClassifier = 0x13
	SensorActivityClassifier  = 0x1E
)

// Command ids carried in 0xF1/0xF2 reports.
const (
	CommandMECalibrate = 0x07
)

// FRS record ids for the sensor metadata blocks.
const (
	FRSAccelerometer  = 0xE302
	FRSGyroscope      = 0xE306
	FRSMagnetometer   = 0xE309
	FRSRotationVector = 0xE30B
)

// Default Q points, used until FRS metadata overrides them.
const (
	QRotationVector         = 14
	QRotationVectorAccuracy = 12
	QAccelerometer          = 8
	QGyroscope              = 9
	QMagnetometer           = 4
)

const maxMetadataWords = 9
