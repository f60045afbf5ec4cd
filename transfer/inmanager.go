// Package transfer implements the IN transfer manager: the sequencer
// that packetizes a producer byte stream into USB DATA packets,
// toggles the DATA PID on each acknowledged packet, retransmits
// unacknowledged packets, and inserts zero-length packets so a host
// can unambiguously detect the end of a transfer.
package transfer

import (
	"fmt"

	"github.com/softstream/usbep/pkg"
	"github.com/softstream/usbep/stream"
)

// packetSlots is the number of packet buffers; two gives classic
// double buffering: one packet can be filled while another is being
// transmitted or awaiting its handshake.
const packetSlots = 2

// packet is one staged DATA packet.
type packet struct {
	data  []byte
	n     int
	last  bool // producer asserted Last within this packet
	zlp   bool // zero-length terminator, no payload
	valid bool // closed and awaiting transmission + handshake
}

// Input carries the per-tick inputs to an InManager.
type Input struct {
	// Producer stream.
	Stream      stream.Byte
	StreamValid bool

	// Active is asserted while the current token targets the owning
	// endpoint's number.
	Active bool

	// TokenIn strobes when an IN token awaits a response this tick.
	TokenIn bool

	// TxReady is asserted while the transaction layer accepts one
	// transmit byte this tick.
	TxReady bool

	// HostAck strobes when the host acknowledged the transmitted
	// packet.
	HostAck bool
}

// Output carries the per-tick outputs of an InManager.
type Output struct {
	// StreamReady is asserted while the producer stream can deliver a
	// byte this tick.
	StreamReady bool

	// Tx carries one transmit byte when TxValid is asserted.
	Tx      stream.Byte
	TxValid bool

	// SendZLP strobes when the response to the IN token is a
	// zero-length packet.
	SendZLP bool

	// NAK strobes when the IN token must be refused (no packet
	// staged).
	NAK bool

	// DataPID is the DATA0/DATA1 polarity for the packet being
	// transmitted.
	DataPID bool
}

// InManager sequences IN packet transfers for a single endpoint.
//
// The manager stages up to two packets. A packet is closed when it
// reaches the maximum packet size or the producer asserts Last; a
// closed packet is retained, and retransmitted with an unchanged DATA
// PID, until the host acknowledges it. When ZLP generation is enabled
// and an acknowledged packet both ended a transfer and was exactly
// maximum size, a zero-length packet is staged behind it so the host
// sees a short packet terminating the transfer.
//
// Within one Tick, host-side events apply before producer intake, in
// the order: acknowledge, token response, transmit byte, intake. The
// bench never strobes TokenIn and HostAck on the same tick.
type InManager struct {
	maxPacketSize int
	generateZLPs  bool

	packets [packetSlots]packet
	fill    int
	send    int

	dataPID     bool
	txActive    bool
	txPos       int
	awaitingAck bool
}

// NewInManager creates an IN transfer manager for the given maximum
// packet size.
func NewInManager(maxPacketSize int, generateZLPs bool) (*InManager, error) {
	if maxPacketSize < 1 {
		return nil, fmt.Errorf("max packet size %d: %w", maxPacketSize, pkg.ErrInvalidPacketSize)
	}
	m := &InManager{
		maxPacketSize: maxPacketSize,
		generateZLPs:  generateZLPs,
	}
	for i := range m.packets {
		m.packets[i].data = make([]byte, maxPacketSize)
	}
	return m, nil
}

// DataPID returns the DATA0/DATA1 polarity (false/true) that the next
// transmitted packet will carry.
func (m *InManager) DataPID() bool {
	return m.dataPID
}

// Reset returns the manager to its initial state: both slots empty,
// DATA PID 0, nothing in flight.
func (m *InManager) Reset() {
	for i := range m.packets {
		m.packets[i].n = 0
		m.packets[i].last = false
		m.packets[i].zlp = false
		m.packets[i].valid = false
	}
	m.fill = 0
	m.send = 0
	m.dataPID = false
	m.txActive = false
	m.txPos = 0
	m.awaitingAck = false
}

// Tick advances the manager by one cycle.
func (m *InManager) Tick(in Input) Output {
	var out Output
	out.DataPID = m.dataPID

	if in.HostAck && m.awaitingAck {
		m.acknowledge()
		out.DataPID = m.dataPID
	}

	if in.TokenIn && in.Active {
		p := &m.packets[m.send]
		switch {
		case p.valid && p.zlp:
			out.SendZLP = true
			m.awaitingAck = true
			pkg.LogDebug(pkg.ComponentTransfer, "responding with ZLP", "pid", m.dataPID)
		case p.valid:
			m.txActive = true
			m.txPos = 0
			m.awaitingAck = false
		default:
			out.NAK = true
		}
	}

	if m.txActive && in.TxReady {
		p := &m.packets[m.send]
		out.Tx = stream.Byte{
			Data:  p.data[m.txPos],
			First: m.txPos == 0,
			Last:  m.txPos == p.n-1,
		}
		out.TxValid = true
		m.txPos++
		if m.txPos == p.n {
			m.txActive = false
			m.awaitingAck = true
		}
	}

	out.StreamReady = !m.packets[m.fill].valid
	if in.StreamValid && out.StreamReady {
		p := &m.packets[m.fill]
		p.data[p.n] = in.Stream.Data
		p.n++
		if in.Stream.Last || p.n == m.maxPacketSize {
			p.valid = true
			p.last = in.Stream.Last
			other := 1 - m.fill
			if !m.packets[other].valid {
				m.fill = other
			}
		}
	}

	return out
}

// acknowledge retires the transmitted packet: the DATA PID toggles,
// and the slot is either recycled or, when the packet closed a
// transfer at exactly maximum size, reused for the terminating ZLP.
func (m *InManager) acknowledge() {
	p := &m.packets[m.send]
	m.dataPID = !m.dataPID
	m.awaitingAck = false

	if m.generateZLPs && !p.zlp && p.last && p.n == m.maxPacketSize {
		p.n = 0
		p.zlp = true
		return
	}

	p.n = 0
	p.last = false
	p.zlp = false
	p.valid = false
	freed := m.send
	m.send = 1 - m.send
	if m.packets[m.fill].valid {
		m.fill = freed
	}
}
