// Package sim implements the usbesim commands: a host-side loopback
// simulation of the endpoint stack, and a stimulus image generator.
package sim

import (
	"fmt"

	"github.com/softstream/usbep/endpoint"
	"github.com/softstream/usbep/host"
	"github.com/softstream/usbep/internal/config"
	"github.com/softstream/usbep/pkg"
)

// Loopback drives a full round trip: the host writes a stimulus
// payload into an OUT endpoint packet by packet, the consumer stream
// is packed into words and produced on a multibyte IN endpoint, and
// the host reads it back and verifies the echo.
type Loopback struct {
	Profile string `help:"YAML simulation profile" type:"existingfile" short:"p"`

	// Overrides applied on top of the profile.
	Length       int    `help:"Pseudorandom stimulus length in bytes (overrides profile)"`
	Seed         int64  `help:"Stimulus generator seed (overrides profile)"`
	HexFile      string `help:"Intel HEX stimulus image (overrides profile)"`
	WordWidth    int    `help:"IN endpoint word width in bytes, 1-8 (overrides profile)"`
	CorruptEvery int    `help:"Corrupt every Nth OUT packet before retrying it (overrides profile)"`
	DropAckEvery int    `help:"Withhold the ACK of every Nth IN packet (overrides profile)"`
}

// stats accumulates transaction counts for the closing report.
type stats struct {
	outPackets, outNAKs, outCorrupted        int
	inPackets, inNAKs, inZLPs, inRetransmits int
}

func (l *Loopback) profile() (config.Profile, error) {
	p := config.Default()
	if l.Profile != "" {
		var err error
		if p, err = config.Load(l.Profile); err != nil {
			return p, err
		}
	}
	if l.Length > 0 {
		p.Stimulus.Length = l.Length
	}
	if l.Seed != 0 {
		p.Stimulus.Seed = l.Seed
	}
	if l.HexFile != "" {
		p.Stimulus.HexFile = l.HexFile
	}
	if l.WordWidth > 0 {
		p.Endpoint.WordWidth = l.WordWidth
	}
	if l.CorruptEvery > 0 {
		p.Faults.CorruptEvery = l.CorruptEvery
	}
	if l.DropAckEvery > 0 {
		p.Faults.DropAckEvery = l.DropAckEvery
	}
	return p, p.Validate()
}

// Run is called by kong when the loopback command is executed.
func (l *Loopback) Run() error {
	p, err := l.profile()
	if err != nil {
		return err
	}

	stimulus, err := loadStimulus(p.Stimulus)
	if err != nil {
		return err
	}

	outEP, err := endpoint.NewStreamOut(p.OutConfig())
	if err != nil {
		return err
	}
	inEP, err := endpoint.NewMultibyteIn(p.InConfig())
	if err != nil {
		return err
	}

	width := inEP.WordWidth()
	stimulus = padToWidth(stimulus, width)

	pkg.LogInfo(pkg.ComponentSim, "loopback starting",
		"bytes", len(stimulus),
		"max-packet-size", p.Endpoint.MaxPacketSize,
		"word-width", width,
		"corrupt-every", p.Faults.CorruptEvery,
		"drop-ack-every", p.Faults.DropAckEvery)

	var st stats

	payload, err := l.drive(outEP, stimulus, p, &st)
	if err != nil {
		return err
	}

	// The words produced on the IN endpoint come from the consumer
	// stream the OUT endpoint delivered, framed as one transfer.
	echoed, err := l.collect(inEP, packWords(payload, width), len(stimulus), p, &st)
	if err != nil {
		return err
	}

	for i := range stimulus {
		if echoed[i] != stimulus[i] {
			return fmt.Errorf("loopback mismatch at byte %d: sent %#02x, read %#02x: %w",
				i, stimulus[i], echoed[i], pkg.ErrProtocol)
		}
	}

	pkg.LogInfo(pkg.ComponentSim, "loopback verified",
		"bytes", len(stimulus),
		"out-packets", st.outPackets, "out-naks", st.outNAKs,
		"out-corrupted", st.outCorrupted,
		"in-packets", st.inPackets, "in-naks", st.inNAKs,
		"in-zlps", st.inZLPs, "in-retransmits", st.inRetransmits)
	return nil
}

// drive pushes the whole stimulus into the OUT endpoint, injecting
// the configured corruption faults and retrying NAKed packets after
// letting the consumer drain.
func (l *Loopback) drive(ep *endpoint.StreamOut, stimulus []byte, p config.Profile, st *stats) ([]byte, error) {
	h := host.NewOut(ep)
	mps := p.Endpoint.MaxPacketSize

	pid := false
	for off := 0; off < len(stimulus); off += mps {
		end := off + mps
		if end > len(stimulus) {
			end = len(stimulus)
		}
		packet := stimulus[off:end]
		st.outPackets++

		if n := p.Faults.CorruptEvery; n > 0 && st.outPackets%n == 0 {
			// A corrupted packet draws no handshake; the host times
			// out and retries the same data with the same PID.
			if resp := h.SendData(packet, pid, false); resp != pkg.ResponseNone {
				return nil, fmt.Errorf("corrupt OUT packet %d drew %v: %w",
					st.outPackets, resp, pkg.ErrProtocol)
			}
			st.outCorrupted++
		}

		for try := 0; ; try++ {
			if try > 64 {
				return nil, fmt.Errorf("OUT packet %d NAKed indefinitely: %w",
					st.outPackets, pkg.ErrProtocol)
			}
			resp := h.SendData(packet, pid, true)
			if resp == pkg.ResponseACK {
				break
			}
			if resp != pkg.ResponseNAK {
				return nil, fmt.Errorf("OUT packet %d drew %v: %w",
					st.outPackets, resp, pkg.ErrProtocol)
			}
			st.outNAKs++
			h.Idle(2 * mps)
		}
		pid = !pid
	}

	// Drain the tail of the consumer stream.
	h.Idle(2 * p.Endpoint.MaxPacketSize)

	if got := len(h.Received); got != len(stimulus) {
		return nil, fmt.Errorf("consumer stream carried %d bytes, want %d: %w",
			got, len(stimulus), pkg.ErrProtocol)
	}
	return h.Payload(), nil
}

// collect reads the forwarded words back through the IN endpoint,
// injecting the configured dropped-ACK faults.
func (l *Loopback) collect(ep *endpoint.MultibyteIn, words []uint64, want int, p config.Profile, st *stats) ([]byte, error) {
	h := host.NewWordIn(ep)
	h.Feed(words, true, true)
	h.Idle(4 * ep.WordWidth())

	var echoed []byte
	justDropped := false
	for i := 0; len(echoed) < want; i++ {
		if i > 16*st.outPackets+256 {
			return nil, fmt.Errorf("IN side stalled at %d of %d bytes: %w",
				len(echoed), want, pkg.ErrProtocol)
		}

		// Never drop two handshakes in a row, so a drop-every-packet
		// setting still makes progress.
		if n := p.Faults.DropAckEvery; n > 0 && !justDropped && (st.inPackets+1)%n == 0 {
			h.DropNextAck = true
		}

		res := h.TokenIn()
		justDropped = false
		switch res.Response {
		case pkg.ResponseNAK:
			st.inNAKs++
			h.Idle(2 * p.Endpoint.MaxPacketSize)
		case pkg.ResponseNone:
			// We withheld the ACK, so the host view is that the
			// packet never arrived; the retransmission delivers it.
			st.inRetransmits++
			justDropped = true
		case pkg.ResponseACK:
			if res.ZLP {
				st.inZLPs++
				break
			}
			st.inPackets++
			echoed = append(echoed, res.Data...)
		}
	}
	return echoed, nil
}
