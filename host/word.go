package host

import (
	"github.com/softstream/usbep/endpoint"
	"github.com/softstream/usbep/pkg"
	"github.com/softstream/usbep/stream"
)

// WordIn drives a MultibyteIn endpoint as the host and the word
// producer at once, the way In drives a byte-stream endpoint.
type WordIn struct {
	ep    *endpoint.MultibyteIn
	queue []stream.Word

	// DropNextAck suppresses the acknowledgement of the next
	// collected packet, simulating a corrupted or lost handshake so
	// the endpoint retransmits.
	DropNextAck bool
}

// NewWordIn creates a bench driver for ep.
func NewWordIn(ep *endpoint.MultibyteIn) *WordIn {
	return &WordIn{ep: ep}
}

// Feed queues framed words; first and last mark the transfer
// boundaries carried on the outer words.
func (h *WordIn) Feed(words []uint64, first, last bool) {
	for i, w := range words {
		h.queue = append(h.queue, stream.Word{
			Data:  w,
			First: first && i == 0,
			Last:  last && i == len(words)-1,
		})
	}
}

// FeedWords queues raw words with no transfer boundaries.
func (h *WordIn) FeedWords(words ...stream.Word) {
	h.queue = append(h.queue, words...)
}

// Pending returns the number of producer words not yet accepted by
// the endpoint.
func (h *WordIn) Pending() int {
	return len(h.queue)
}

// tick advances the endpoint one cycle, offering the head of the
// producer queue.
func (h *WordIn) tick(in endpoint.MultibyteInInput) endpoint.MultibyteInOutput {
	if len(h.queue) > 0 {
		in.Word = h.queue[0]
		in.WordValid = true
	}
	out := h.ep.Tick(in)
	if out.WordReady && len(h.queue) > 0 {
		h.queue = h.queue[1:]
	}
	return out
}

// Idle runs n ticks with no token on the bus, letting the endpoint
// absorb queued producer words.
func (h *WordIn) Idle(n int) {
	for i := 0; i < n; i++ {
		h.tick(endpoint.MultibyteInInput{})
	}
}

// TokenIn performs one IN transaction: it issues the token, collects
// the device's response, and issues the handshake unless DropNextAck
// is set.
func (h *WordIn) TokenIn() InResult {
	tok := endpoint.Token{
		Endpoint:         h.ep.Number(),
		IsIn:             true,
		ReadyForResponse: true,
	}
	idleTok := endpoint.Token{Endpoint: h.ep.Number()}

	out := h.tick(endpoint.MultibyteInInput{Token: tok, TxReady: true})
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
		out = h.tick(endpoint.MultibyteInInput{Token: idleTok, TxReady: true})
	}

	pkg.LogError(pkg.ComponentHost, "IN packet never terminated",
		"endpoint", h.ep.Number(), "collected", len(res.Data))
	return res
}

func (h *WordIn) handshake(tok endpoint.Token) pkg.Response {
	if h.DropNextAck {
		h.DropNextAck = false
		return pkg.ResponseNone
	}
	h.tick(endpoint.MultibyteInInput{Token: tok, HostAck: true})
	return pkg.ResponseACK
}
