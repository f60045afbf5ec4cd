// Package host provides a synchronous bench model of a USB host for
// exercising the device-side endpoint layer: it drives an endpoint
// tick by tick, issuing tokens, streaming packet payloads, strobing
// integrity-check results, and collecting handshakes and transmitted
// packets.
//
// The model keeps to USB 2.0 bulk/interrupt pacing: it never pipelines
// more than one unacknowledged packet per endpoint, and it never
// strobes a packet-end marker on the same tick as a handshake request
// for a different packet.
package host

import (
	"github.com/softstream/usbep/endpoint"
	"github.com/softstream/usbep/pkg"
	"github.com/softstream/usbep/stream"
)

// maxCollectTicks bounds a packet collection loop so a sequencing bug
// in the device under test cannot hang the bench.
const maxCollectTicks = 1 << 14

// Out drives a StreamOut endpoint as the host and the application
// consumer at once.
type Out struct {
	ep *endpoint.StreamOut

	// ConsumerReady is the application-side ready level applied on
	// every tick. Tests deassert it to exercise backpressure.
	ConsumerReady bool

	// Received accumulates every byte delivered on the consumer
	// stream, with framing.
	Received []stream.Byte
}

// NewOut creates a bench driver for ep with the consumer initially
// ready.
func NewOut(ep *endpoint.StreamOut) *Out {
	return &Out{ep: ep, ConsumerReady: true}
}

// tick advances the endpoint one cycle, applying the consumer ready
// level and collecting any delivered byte.
func (h *Out) tick(in endpoint.OutInput) endpoint.OutOutput {
	in.ConsumerReady = h.ConsumerReady
	out := h.ep.Tick(in)
	if out.ConsumerValid && h.ConsumerReady {
		h.Received = append(h.Received, out.Consumer)
	}
	return out
}

// Idle runs n ticks with no token on the bus.
func (h *Out) Idle(n int) {
	for i := 0; i < n; i++ {
		h.tick(endpoint.OutInput{})
	}
}

/// SendData performs one OUT transaction: token, payload bytes, then
// either a valid packet end with a handshake request, or an integrity
// failure. The handshake observed is returned; a corrupted packet
// draws no handshake at all, mirroring the host's own timeout path.
func (h *Out) SendData(data []byte, pid bool, valid bool) pkg.Response {
	tok := endpoint.Token{Endpoint: h.ep.Number(), IsOut: true}

	for _, b := range data {
		h.tick(endpoint.OutInput{
			Token:       tok,
			RxData:      b,
			RxValid:     true,
			RxPIDToggle: pid,
		})
	}

	if !valid {
		h.tick(endpoint.OutInput{
			Token:       tok,
			RxInvalid:   true,
			RxPIDToggle: pid,
		})
		return pkg.ResponseNone
	}

	out := h.tick(endpoint.OutInput{
		Token:              tok,
		RxComplete:         true,
		RxReadyForResponse: true,
		RxPIDToggle:        pid,
	})
	return out.Handshake.Response()
}

// Ping performs one PING transaction, querying whether the endpoint
// could accept a packet with the given DATA PID right now.
func (h *Out) Ping(pid bool) pkg.Response {
	out := h.tick(endpoint.OutInput{
		Token: endpoint.Token{
			Endpoint:         h.ep.Number(),
			IsPing:           true,
			ReadyForResponse: true,
		},
		RxPIDToggle: pid,
	})
	return out.Handshake.Response()
}

// Payload returns the data bytes received on the consumer stream so
// far, without framing.
func (h *Out) Payload() []byte {
	data := make([]byte, len(h.Received))
	for i, b := range h.Received {
		data[i] = b.Data
	}
	return data
}

// InResult is the outcome of one IN transaction.
type InResult struct {
	Data     []byte       // packet payload, nil for a ZLP or NAK
	Response pkg.Response // handshake the host issued (or withheld)
	ZLP      bool         // the response was a zero-length packet
	PID      bool         // DATA PID the packet carried
}

// In drives a StreamIn endpoint as the host and the application
// producer at once.
type In struct {
	ep    *endpoint.StreamIn
	queue []stream.Byte

	// DropNextAck suppresses the acknowledgement of the next
	// collected packet, simulating a lost ACK so the device must
	// retransmit.
	DropNextAck bool
}

// NewIn creates a bench driver for ep.
func NewIn(ep *endpoint.StreamIn) *In {
	return &In{ep: ep}
}

// Feed queues one framed segment of producer data; first and last
// mark the transfer boundaries carried on the segment's outer bytes.
func (h *In) Feed(data []byte, first, last bool) {
	for i, d := range data {
		h.queue = append(h.queue, stream.Byte{
			Data:  d,
			First: first && i == 0,
			Last:  last && i == len(data)-1,
		})
	}
}

/// FeedTransfer queues one complete transfer: First on the first byte,
// Last on the final byte.
func (h *In) FeedTransfer(data []byte) {
	h.Feed(data, true, true)
}

// Pending returns the number of producer bytes not yet accepted by
// the endpoint.
func (h *In) Pending() int {
	return len(h.queue)
}

// tick advances the endpoint one cycle, offering the head of the
// producer queue.
func (h *In) tick(in endpoint.InInput) endpoint.InOutput {
	if len(h.queue) > 0 {
		in.Stream = h.queue[0]
		in.StreamValid = true
	}
	out := h.ep.Tick(in)
	if in.StreamValid && out.StreamReady {
		h.queue = h.queue[1:]
	}
	return out
}

// Idle runs n ticks with no token on the bus, letting the endpoint
// absorb queued producer data.
func (h *In) Idle(n int) {
	for i := 0; i < n; i++ {
		h.tick(endpoint.InInput{})
	}
}

/// TokenIn performs one IN transaction: it issues the token, collects
// the device's response (packet bytes, a ZLP, or a NAK), and issues
// the handshake unless DropNextAck is set.
func (h *In) TokenIn() InResult {
	idleTok := endpoint.Token{Endpoint: h.ep.Number()}

	out := h.tick(endpoint.InInput{
		Token: endpoint.Token{
			Endpoint:         h.ep.Number(),
			IsIn:             true,
			ReadyForResponse: true,
		},
		TxReady: true,
	})
	res := InResult{PID: out.DataPID}

	if out.Handshake.NAK {
		res.Response = pkg.ResponseNAK
		return res
	}
	if out.SendZLP {
		res.ZLP = true
		res.Response = h.handshake(idleTok)
		return res
	}

	for i := 0; i < maxCollectTicks; i++ {
		if out.TxValid {
			res.Data = append(res.Data, out.Tx.Data)
			if out.Tx.Last {
				res.Response = h.handshake(idleTok)
				return res
			}
		}
		out = h.tick(endpoint.InInput{Token: idleTok, TxReady: true})
	}

	pkg.LogError(pkg.ComponentHost, "IN packet never terminated",
		"endpoint", h.ep.Number(), "collected", len(res.Data))
	return res
}

// handshake acknowledges the collected packet, or withholds the ACK
// once when DropNextAck is set.
func (h *In) handshake(tok endpoint.Token) pkg.Response {
	if h.DropNextAck {
		h.DropNextAck = false
		return pkg.ResponseNone
	}
	h.tick(endpoint.InInput{Token: tok, HostAck: true})
	return pkg.ResponseACK
}
