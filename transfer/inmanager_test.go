package transfer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/softstream/usbep/pkg"
	"github.com/softstream/usbep/stream"
)

// mgrBench drives an InManager tick by tick, playing both the
// producer and the transaction layer.
type mgrBench struct {
	t     *testing.T
	m     *InManager
	queue []stream.Byte
}

func newBench(t *testing.T, maxPacketSize int, generateZLPs bool) *mgrBench {
	t.Helper()
	m, err := NewInManager(maxPacketSize, generateZLPs)
	if err != nil {
		t.Fatalf("NewInManager(%d): %v", maxPacketSize, err)
	}
	return &mgrBench{t: t, m: m}
}

func (b *mgrBench) tick(in Input) Output {
	if len(b.queue) > 0 {
		in.Stream = b.queue[0]
		in.StreamValid = true
	}
	out := b.m.Tick(in)
	if in.StreamValid && out.StreamReady {
		b.queue = b.queue[1:]
	}
	return out
}

// feed queues one transfer's worth of producer bytes and runs idle
// ticks so the manager can absorb what fits.
func (b *mgrBench) feed(data []byte) {
	for i, d := range data {
		b.queue = append(b.queue, stream.Byte{
			Data:  d,
			First: i == 0,
			Last:  i == len(data)-1,
		})
	}
	b.idle(len(data) + 2)
}

func (b *mgrBench) idle(n int) {
	for i := 0; i < n; i++ {
		b.tick(Input{Active: true})
	}
}

// collect issues one IN token and gathers the response without
// acknowledging it.
func (b *mgrBench) collect() (data []byte, nak, zlp bool, pid bool) {
	b.t.Helper()
	out := b.tick(Input{Active: true, TokenIn: true, TxReady: true})
	pid = out.DataPID
	if out.NAK {
		return nil, true, false, pid
	}
	if out.SendZLP {
		return nil, false, true, pid
	}
	for i := 0; i < 64; i++ {
		if out.TxValid {
			data = append(data, out.Tx.Data)
			if out.Tx.Last {
				return data, false, false, pid
			}
		}
		out = b.tick(Input{Active: true, TxReady: true})
	}
	b.t.Fatal("packet never terminated")
	return nil, false, false, pid
}

func (b *mgrBench) ack() {
	b.tick(Input{Active: true, HostAck: true})
}

func TestNewInManagerInvalidSize(t *testing.T) {
	if _, err := NewInManager(0, true); !errors.Is(err, pkg.ErrInvalidPacketSize) {
		t.Errorf("NewInManager(0) = %v, want ErrInvalidPacketSize", err)
	}
}

func TestInManagerNAKsWhenEmpty(t *testing.T) {
	b := newBench(t, 8, true)
	if _, nak, _, _ := b.collect(); !nak {
		t.Error("expected NAK with no packet staged")
	}
}

func TestInManagerShortPacketNoZLP(t *testing.T) {
	b := newBench(t, 8, true)
	b.feed([]byte{1, 2, 3})

	data, nak, zlp, pid := b.collect()
	if nak || zlp {
		t.Fatalf("collect: nak=%v zlp=%v, want packet", nak, zlp)
	}
	if pid {
		t.Error("first packet should carry DATA0")
	}
	if !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("packet = %v, want [1 2 3]", data)
	}
	b.ack()

	if !b.m.DataPID() {
		t.Error("DATA PID should toggle after ACK")
	}

	// Short final packet already terminates the transfer: no ZLP.
	if _, nak, zlp, _ := b.collect(); !nak || zlp {
		t.Errorf("after short packet: nak=%v zlp=%v, want NAK", nak, zlp)
	}
}

func TestInManagerZLPAfterExactMultiple(t *testing.T) {
	b := newBench(t, 8, true)
	b.feed([]byte{0, 1, 2, 3, 4, 5, 6, 7})

	data, _, zlp, pid := b.collect()
	if zlp || len(data) != 8 {
		t.Fatalf("first response: zlp=%v len=%d, want full packet", zlp, len(data))
	}
	if pid {
		t.Error("first packet should carry DATA0")
	}
	b.ack()

	// The transfer ended exactly on a packet boundary: a ZLP must
	// follow so the host can detect completion.
	_, nak, zlp, pid := b.collect()
	if nak || !zlp {
		t.Fatalf("second response: nak=%v zlp=%v, want ZLP", nak, zlp)
	}
	if !pid {
		t.Error("ZLP should carry DATA1")
	}
	b.ack()

	if _, nak, _, _ := b.collect(); !nak {
		t.Error("expected NAK after ZLP retired the transfer")
	}
}

func TestInManagerZLPGenerationDisabled(t *testing.T) {
	b := newBench(t, 8, false)
	b.feed([]byte{0, 1, 2, 3, 4, 5, 6, 7})

	if data, _, _, _ := b.collect(); len(data) != 8 {
		t.Fatalf("collected %d bytes, want 8", len(data))
	}
	b.ack()

	if _, nak, zlp, _ := b.collect(); !nak || zlp {
		t.Errorf("with ZLPs disabled: nak=%v zlp=%v, want NAK", nak, zlp)
	}
}

func TestInManagerSplitsTransferIntoPackets(t *testing.T) {
	b := newBench(t, 4, true)
	payload := []byte{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
	b.feed(payload)

	var got []byte
	wantPIDs := []bool{false, true, false}
	for i, wantLen := range []int{4, 4, 2} {
		data, nak, zlp, pid := b.collect()
		if nak || zlp {
			t.Fatalf("packet %d: nak=%v zlp=%v", i, nak, zlp)
		}
		if len(data) != wantLen {
			t.Fatalf("packet %d has %d bytes, want %d", i, len(data), wantLen)
		}
		if pid != wantPIDs[i] {
			t.Errorf("packet %d PID = %v, want %v", i, pid, wantPIDs[i])
		}
		got = append(got, data...)
		b.ack()
		b.idle(4) // let the next packet stage
	}

	if !bytes.Equal(got, payload) {
		t.Errorf("reassembled %v, want %v", got, payload)
	}
	if _, nak, _, _ := b.collect(); !nak {
		t.Error("final short packet should need no ZLP")
	}
}

func TestInManagerRetransmitsUntilAcked(t *testing.T) {
	b := newBench(t, 8, true)
	b.feed([]byte{0xAA, 0xBB})

	first, _, _, firstPID := b.collect()
	// No ACK: the host never saw the packet, so the next IN token
	// must produce identical bytes with an unchanged PID.
	second, nak, _, secondPID := b.collect()
	if nak {
		t.Fatal("retransmission NAKed")
	}
	if !bytes.Equal(first, second) {
		t.Errorf("retransmission = %v, want %v", second, first)
	}
	if firstPID != secondPID {
		t.Errorf("retransmission PID = %v, want %v", secondPID, firstPID)
	}

	b.ack()
	if _, nak, _, _ := b.collect(); !nak {
		t.Error("expected NAK once the packet was finally acknowledged")
	}
}

func TestInManagerDoubleBuffers(t *testing.T) {
	b := newBench(t, 8, true)

	// Two full packets fit in the two slots; nothing collected yet.
	for i := 0; i < 16; i++ {
		b.queue = append(b.queue, stream.Byte{Data: byte(i), First: i == 0})
	}
	b.idle(20)
	if len(b.queue) != 0 {
		t.Fatalf("%d bytes not absorbed, want 0", len(b.queue))
	}

	// A third packet must wait for a slot.
	b.queue = append(b.queue, stream.Byte{Data: 0x99})
	b.idle(4)
	if len(b.queue) != 1 {
		t.Error("byte accepted with both packet slots occupied")
	}

	// Retiring the oldest packet frees its slot for the waiting byte.
	data, _, _, _ := b.collect()
	b.ack()
	if !bytes.Equal(data, []byte{0, 1, 2, 3, 4, 5, 6, 7}) {
		t.Errorf("first packet = %v", data)
	}
	b.idle(4)
	if len(b.queue) != 0 {
		t.Error("freed slot did not accept the waiting byte")
	}
}

func TestInManagerIgnoresTokensWhenInactive(t *testing.T) {
	b := newBench(t, 8, true)
	b.feed([]byte{1})

	out := b.m.Tick(Input{TokenIn: true, TxReady: true})
	if out.NAK || out.TxValid || out.SendZLP {
		t.Errorf("inactive token drew a response: %+v", out)
	}
}

func TestInManagerReset(t *testing.T) {
	b := newBench(t, 8, true)
	b.feed([]byte{1, 2, 3})
	b.collect()
	b.ack()

	b.m.Reset()
	if b.m.DataPID() {
		t.Error("Reset should return DATA PID to 0")
	}
	if _, nak, _, _ := b.collect(); !nak {
		t.Error("Reset should drop staged packets")
	}
}
