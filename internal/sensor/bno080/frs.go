package bno080

import (
	log "github.com/sirupsen/logrus"
)

// FRS read status codes that terminate a transfer.
const (
	frsStatusComplete       = 3
	frsStatusRecordEmpty    = 6
	frsStatusLastWithOffset = 7
)

// frsReadRequest asks the hub for blockSize words of a flash record,
// starting at the given word offset.
func (d *Device) frsReadRequest(recordID uint16, offset uint16, blockSize uint16) error {
	req := []byte{
		ReportFRSReadRequest,
		0, // reserved
		byte(offset), byte(offset >> 8),
		byte(recordID), byte(recordID >> 8),
		byte(blockSize), byte(blockSize >> 8),
	}
	return d.sendPacket(ChannelControl, req)
}

// ReadFRS runs one FRS exchange and collects up to wordsToRead 32-bit words
// from record recordID starting at word offset start. Response packets
// carry at most two words each; the exchange ends when a terminal status
// code arrives or the metadata block is full. A missed response inside the
// retry budget fails the whole read, there is no outer retry.
func (d *Device) ReadFRS(recordID uint16, start uint16, wordsToRead int) ([]uint32, bool) {
	if wordsToRead > maxMetadataWords {
		wordsToRead = maxMetadataWords
	}
	if err := d.frsReadRequest(recordID, start, uint16(wordsToRead)); err != nil {
		log.Debugf("bno080 %s: frs request 0x%04X: %v", d.id, recordID, err)
		return nil, false
	}

	words := make([]uint32, 0, maxMetadataWords)
	for {
		if !d.waitFRSResponse(recordID) {
			return nil, false
		}

		data := d.pkt.data[:d.pkt.length]
		wordCount := int(data[1] >> 4)
		status := data[1] & 0x0F

		if wordCount > 0 && len(words) < maxMetadataWords {
			words = append(words, le32(data[4:8]))
		}
		if wordCount > 1 && len(words) < maxMetadataWords {
			words = append(words, le32(data[8:12]))
		}

		if len(words) >= maxMetadataWords {
			return words, true
		}
		switch status {
		case frsStatusComplete, frsStatusRecordEmpty, frsStatusLastWithOffset:
			return words, true
		}
	}
}

// waitFRSResponse polls until a 0xF3 packet for recordID shows up, within
// the retry budget. Unrelated packets are routed through the normal
// decoders so an interleaved input report is not lost.
func (d *Device) waitFRSResponse(recordID uint16) bool {
	for i := 0; i < d.retryBudget; i++ {
		ok, err := d.receive()
		if err != nil {
			log.Debugf("bno080 %s: frs response: %v", d.id, err)
			return false
		}
		if ok {
			if d.pkt.channel == ChannelControl && d.pkt.length >= 14 &&
				d.pkt.data[0] == ReportFRSReadResponse &&
				le16(d.pkt.data[12:14]) == recordID {
				return true
			}
			if d.pkt.channel == ChannelReports && d.pkt.length > 0 && d.pkt.data[0] == ReportBaseTimestamp {
				d.parseInputReport()
			}
			continue
		}
		d.sleepPoll()
	}
	return false
}

// readFRSWord fetches a single word of a record.
func (d *Device) readFRSWord(recordID uint16, wordNumber uint16) (uint32, bool) {
	words, ok := d.ReadFRS(recordID, wordNumber, 1)
	if !ok || len(words) == 0 {
		return 0, false
	}
	return words[0], true
}

// GetQ1 reads the Q1 point of a sensor metadata record: the low half of
// metadata word 7.
func (d *Device) GetQ1(recordID uint16) (int16, bool) {
	word, ok := d.readFRSWord(recordID, 7)
	if !ok {
		return 0, false
	}
	return int16(word & 0xFFFF), true
}

// GetQ2 reads Q2: the high half of metadata word 7.
func (d *Device) GetQ2(recordID uint16) (int16, bool) {
	word, ok := d.readFRSWord(recordID, 7)
	if !ok {
		return 0, false
	}
	return int16(word >> 16), true
}

// GetQ3 reads Q3: the high half of metadata word 8.
func (d *Device) GetQ3(recordID uint16) (int16, bool) {
	word, ok := d.readFRSWord(recordID, 8)
	if !ok {
		return 0, false
	}
	return int16(word >> 16), true
}

// GetResolution reads metadata word 2 scaled by the record's Q1.
func (d *Device) GetResolution(recordID uint16) (float32, bool) {
	q, ok := d.GetQ1(recordID)
	if !ok {
		return 0, false
	}
	word, ok := d.readFRSWord(recordID, 2)
	if !ok {
		return 0, false
	}
	return QToFloat(int16(word), uint8(q)), true
}

// GetRange reads metadata word 1 scaled by the record's Q1.
func (d *Device) GetRange(recordID uint16) (float32, bool) {
	q, ok := d.GetQ1(recordID)
	if !ok {
		return 0, false
	}
	word, ok := d.readFRSWord(recordID, 1)
	if !ok {
		return 0, false
	}
	return QToFloat(int16(word), uint8(q)), true
}

// LoadQPoints replaces the default Q points with the device's own FRS
// metadata where the records answer. Missing records and values outside
// the sane int16 shift range keep the defaults.
func (d *Device) LoadQPoints() {
	if q, ok := d.GetQ1(FRSRotationVector); ok && q > 0 && q < 32 {
		d.qRotation = uint8(q)
	}
	if q, ok := d.GetQ1(FRSAccelerometer); ok && q > 0 && q < 32 {
		d.qAccel = uint8(q)
	}
	if q, ok := d.GetQ1(FRSGyroscope); ok && q > 0 && q < 32 {
		d.qGyro = uint8(q)
	}
	if q, ok := d.GetQ1(FRSMagnetometer); ok && q > 0 && q < 32 {
		d.qMag = uint8(q)
	}
}
