package bno080

import (
	"encoding/binary"
	"time"

	log "github.com/sirupsen/logrus"
)

// packet is the last SHTP frame pulled off the bus. The payload buffer is
// reused between receives; Length is the payload size after the 4-byte
// header has been stripped, capped at MaxPayloadSize.
type packet struct {
	length    int
	channel   uint8
	seq       uint8
	continued bool
	dropped   int
	data      [MaxPayloadSize]byte
}

func le16(p []byte) uint16 {
	return binary.LittleEndian.Uint16(p)
}

func le32(p []byte) uint32 {
	return binary.LittleEndian.Uint32(p)
}

// receive attempts to pull one packet off the bus. A zero length header
// means the hub has nothing for us; that is (false, nil), not an error.
// Continuation frames are drained so the hub can move on, then reported the
// same way, since the decoder cannot use a partial payload.
func (d *Device) receive() (bool, error) {
	var hdr [headerSize]byte
	if err := d.conn.Read(hdr[:]); err != nil {
		return false, err
	}

	raw := le16(hdr[0:2])
	length := int(raw & lengthMask)
	if length == 0 {
		return false, nil
	}

	d.pkt.channel = hdr[2]
	d.pkt.seq = hdr[3]
	d.pkt.continued = raw&continuationBit != 0
	d.pkt.dropped = 0

	remaining := length - headerSize
	received := 0
	for remaining > 0 {
		n := remaining
		if n > d.readChunk-headerSize {
			n = d.readChunk - headerSize
		}
		chunk := d.chunk[:headerSize+n]
		if err := d.conn.Read(chunk); err != nil {
			return false, err
		}
		// the hub re-sends the header at the start of every chunk
		for _, b := range chunk[headerSize:] {
			if received < MaxPayloadSize {
				d.pkt.data[received] = b
			}
			received++
		}
		remaining -= n
	}

	d.pkt.length = received
	if received > MaxPayloadSize {
		d.pkt.length = MaxPayloadSize
		d.pkt.dropped = received - MaxPayloadSize
		log.Debugf("shtp: packet on channel %d truncated, dropped %d bytes", d.pkt.channel, d.pkt.dropped)
	}

	if d.pkt.continued {
		log.Debugf("shtp: discarding continuation packet on channel %d", d.pkt.channel)
		return false, nil
	}
	return true, nil
}

// waitReceive polls for a packet within the configured retry budget.
// Exhausting the budget is "no packet", the caller decides whether that is
// fatal for the exchange it is running.
func (d *Device) waitReceive() (bool, error) {
	for i := 0; i < d.retryBudget; i++ {
		ok, err := d.receive()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		d.sleepPoll()
	}
	return false, nil
}

func (d *Device) sleepPoll() {
	time.Sleep(d.pollInterval)
}

// sendPacket frames payload on the given channel and writes it in one
// transaction. The per-channel sequence number goes out in the header and
// wraps mod 256.
func (d *Device) sendPacket(channel uint8, payload []byte) error {
	total := headerSize + len(payload)
	buf := make([]byte, total)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(total))
	buf[2] = channel
	buf[3] = d.seqNum[channel]
	copy(buf[headerSize:], payload)
	d.seqNum[channel]++

	return d.conn.Write(buf)
}
