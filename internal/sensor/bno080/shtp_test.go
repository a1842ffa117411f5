package bno080

import (
	"bytes"
	"testing"

	"github.com/alexytsu/NIARC-2018/internal/config"
)

// fakeConn serves scripted bus reads in order and records every write. An
// exhausted script behaves like an idle hub: all-zero header reads.
type fakeConn struct {
	reads   [][]byte
	writes  [][]byte
	readErr error
	closed  bool
}

func (f *fakeConn) Read(buf []byte) error {
	if f.readErr != nil {
		return f.readErr
	}
	if len(f.reads) == 0 {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	copy(buf, f.reads[0])
	f.reads = f.reads[1:]
	return nil
}

func (f *fakeConn) Write(buf []byte) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func testDevice(f *fakeConn) *Device {
	return New(f, config.IMUOpt{
		ID:             "test",
		Bus:            "/dev/null",
		PollIntervalMs: 1,
		RetryBudget:    3,
	})
}

// frame renders a packet as the sequence of bus reads the driver issues:
// one header read, then chunk reads that each re-send the header.
func frame(channel, seq uint8, payload []byte, continued bool) [][]byte {
	raw := uint16(len(payload) + headerSize)
	if continued {
		raw |= continuationBit
	}
	out := [][]byte{{byte(raw), byte(raw >> 8), channel, seq}}
	step := DefaultReadChunk - headerSize
	for off := 0; off < len(payload); off += step {
		end := off + step
		if end > len(payload) {
			end = len(payload)
		}
		chunk := append([]byte{byte(raw), byte(raw >> 8), channel, seq}, payload[off:end]...)
		out = append(out, chunk)
	}
	return out
}

func TestReceiveEmptyBus(t *testing.T) {
	f := &fakeConn{}
	d := testDevice(f)

	ok, err := d.receive()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected no packet from an idle hub")
	}
}

func TestReceiveZeroLengthConsumesNothingFurther(t *testing.T) {
	next := frame(ChannelReports, 0, []byte{0xFB, 1, 2, 3}, false)
	f := &fakeConn{reads: append([][]byte{{0, 0, 0, 0}}, next...)}
	d := testDevice(f)

	ok, err := d.receive()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("zero-length header is not a packet")
	}
	if len(f.reads) != len(next) {
		t.Errorf("%d reads consumed past the zero-length header", len(next)-len(f.reads))
	}
}

func TestReceiveSingleChunk(t *testing.T) {
	payload := []byte{0xFB, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	f := &fakeConn{reads: frame(ChannelReports, 7, payload, false)}
	d := testDevice(f)

	ok, err := d.receive()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a packet")
	}
	if d.pkt.channel != ChannelReports {
		t.Errorf("channel = %d, want %d", d.pkt.channel, ChannelReports)
	}
	if d.pkt.seq != 7 {
		t.Errorf("seq = %d, want 7", d.pkt.seq)
	}
	if d.pkt.length != len(payload) {
		t.Fatalf("length = %d, want %d", d.pkt.length, len(payload))
	}
	if !bytes.Equal(d.pkt.data[:d.pkt.length], payload) {
		t.Errorf("payload mismatch: %v", d.pkt.data[:d.pkt.length])
	}
}

func TestReceiveChunkedReassembly(t *testing.T) {
	payload := make([]byte, 60)
	for i := range payload {
		payload[i] = byte(i)
	}
	f := &fakeConn{reads: frame(ChannelControl, 0, payload, false)}
	d := testDevice(f)

	ok, err := d.receive()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a packet")
	}
	if d.pkt.length != len(payload) {
		t.Fatalf("length = %d, want %d", d.pkt.length, len(payload))
	}
	if !bytes.Equal(d.pkt.data[:d.pkt.length], payload) {
		t.Error("chunked payload was not reassembled in order")
	}
	if len(f.reads) != 0 {
		t.Errorf("%d scripted reads left over", len(f.reads))
	}
}

func TestReceiveContinuationDiscarded(t *testing.T) {
	payload := make([]byte, 12)
	f := &fakeConn{reads: frame(ChannelReports, 1, payload, true)}
	d := testDevice(f)

	ok, err := d.receive()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("continuation packet must not be surfaced")
	}
	// the payload still has to be drained off the bus
	if len(f.reads) != 0 {
		t.Errorf("%d scripted reads left over, continuation not drained", len(f.reads))
	}
}

func TestReceiveOversizeTruncated(t *testing.T) {
	payload := make([]byte, MaxPayloadSize+22)
	for i := range payload {
		payload[i] = byte(i)
	}
	f := &fakeConn{reads: frame(ChannelControl, 0, payload, false)}
	d := testDevice(f)

	ok, err := d.receive()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a packet")
	}
	if d.pkt.length != MaxPayloadSize {
		t.Errorf("length = %d, want %d", d.pkt.length, MaxPayloadSize)
	}
	if d.pkt.dropped != 22 {
		t.Errorf("dropped = %d, want 22", d.pkt.dropped)
	}
	if !bytes.Equal(d.pkt.data[:], payload[:MaxPayloadSize]) {
		t.Error("kept payload bytes do not match the head of the packet")
	}
	if len(f.reads) != 0 {
		t.Errorf("%d scripted reads left over, oversize packet not drained", len(f.reads))
	}
}

func TestSendPacketHeader(t *testing.T) {
	f := &fakeConn{}
	d := testDevice(f)

	if err := d.sendPacket(ChannelControl, []byte{ReportProductIDRequest, 0}); err != nil {
		t.Fatal(err)
	}
	want := []byte{6, 0, ChannelControl, 0, ReportProductIDRequest, 0}
	if !bytes.Equal(f.writes[0], want) {
		t.Errorf("write = %v, want %v", f.writes[0], want)
	}
}

func TestSendPacketSequenceNumbers(t *testing.T) {
	f := &fakeConn{}
	d := testDevice(f)

	for i := 0; i < 3; i++ {
		if err := d.sendPacket(ChannelControl, []byte{0}); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.sendPacket(ChannelExecutable, []byte{1}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if got := f.writes[i][3]; got != byte(i) {
			t.Errorf("control write %d: seq = %d, want %d", i, got, i)
		}
	}
	// counters are per channel
	if got := f.writes[3][3]; got != 0 {
		t.Errorf("executable write: seq = %d, want 0", got)
	}
}

func TestSendPacketSequenceWraps(t *testing.T) {
	f := &fakeConn{}
	d := testDevice(f)
	d.seqNum[ChannelControl] = 255

	if err := d.sendPacket(ChannelControl, []byte{0}); err != nil {
		t.Fatal(err)
	}
	if err := d.sendPacket(ChannelControl, []byte{0}); err != nil {
		t.Fatal(err)
	}
	if f.writes[0][3] != 255 || f.writes[1][3] != 0 {
		t.Errorf("seq bytes = %d, %d, want 255, 0", f.writes[0][3], f.writes[1][3])
	}
}

func TestWaitReceiveGivesUp(t *testing.T) {
	f := &fakeConn{}
	d := testDevice(f)

	ok, err := d.waitReceive()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected the retry budget to run out")
	}
}
