package endpoint

import (
	"github.com/softstream/usbep/buffer"
	"github.com/softstream/usbep/pkg"
	"github.com/softstream/usbep/stream"
)

// OutInput carries the per-tick inputs to a StreamOut endpoint.
type OutInput struct {
	// Token is the transaction layer's current token view.
	Token Token

	// Receive stream from the transaction layer. RxValid qualifies
	// RxData for this tick.
	RxData  byte
	RxValid bool

	// RxComplete strobes when the received packet ended with a valid
	// integrity check; RxInvalid when the check failed. Neither is
	// asserted on a tick that also carries a valid byte's successor.
	RxComplete bool
	RxInvalid  bool

	// RxReadyForResponse strobes when the transaction layer expects
	// the handshake for a received DATA packet on this tick.
	RxReadyForResponse bool

	// RxPIDToggle is the DATA0/DATA1 polarity of the received packet.
	RxPIDToggle bool

	// ConsumerReady is the application-side stream's ready signal.
	ConsumerReady bool
}

// OutOutput carries the per-tick outputs of a StreamOut endpoint.
type OutOutput struct {
	// Handshake is the ACK/NAK decision for this tick.
	Handshake Handshake

	// Consumer carries one committed byte when ConsumerValid is
	// asserted. The byte transfers only on ticks where ConsumerReady
	// was also asserted; otherwise the same byte is presented again.
	Consumer      stream.Byte
	ConsumerValid bool
}

// StreamOut receives data from the host on a single OUT endpoint and
// produces a framed byte stream.
//
// The consumer stream is transaction oriented: First and Last mark the
// boundaries of individual data packets, so short-packet detection is
// the consumer's responsibility. Payload reaches the consumer only
// after its packet's integrity check passed; a packet that fails the
// check is rolled back in its entirety and is never observable.
//
// Flow control follows USB 2.0 bulk/interrupt semantics: a packet is
// admitted only when a full maximum-size packet fits in the buffer
// (otherwise NAK), the PING protocol is answered from the same
// predicate, and a packet whose DATA PID repeats the previous one is
// acknowledged without being re-buffered, since the host evidently
// missed our earlier ACK [USB 2.0: 8.6.3].
type StreamOut struct {
	cfg      Config
	detector *stream.BoundaryDetector
	fifo     *buffer.Skid

	// expectedToggle is the DATA PID polarity the next accepted
	// packet must carry. It advances exactly once per accepted
	// packet, never on a skip or NAK [USB 2.0: 8.6.2].
	expectedToggle bool

	// firstByte tracks whether the next consumer byte starts a new
	// transaction: true after reset, and again after each byte
	// delivered with Last set.
	firstByte bool
}

// NewStreamOut creates an OUT stream endpoint from cfg. The
// configuration is validated eagerly; a buffer smaller than one
// maximum packet is rejected here, not at runtime.
func NewStreamOut(cfg Config) (*StreamOut, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	fifo, err := buffer.NewSkid(cfg.BufferSize)
	if err != nil {
		return nil, err
	}
	return &StreamOut{
		cfg:       cfg,
		detector:  stream.NewBoundaryDetector(),
		fifo:      fifo,
		firstByte: true,
	}, nil
}

// Number returns the endpoint number this endpoint responds to.
func (e *StreamOut) Number() uint8 {
	return e.cfg.Number
}

// ExpectedDataToggle returns the DATA PID polarity the next accepted
// packet must carry.
func (e *StreamOut) ExpectedDataToggle() bool {
	return e.expectedToggle
}

// AtTransferBoundary reports whether the next byte delivered to the
// consumer starts a new transaction.
func (e *StreamOut) AtTransferBoundary() bool {
	return e.firstByte
}

// Buffered returns the number of committed bytes awaiting the
// consumer.
func (e *StreamOut) Buffered() int {
	return e.fifo.Len()
}

// Reset returns the endpoint to its initial state: toggle DATA0,
// buffer empty, any in-flight speculative data dropped.
func (e *StreamOut) Reset() {
	e.detector.Reset()
	e.fifo.Reset()
	e.expectedToggle = false
	e.firstByte = true
}

// Tick advances the endpoint by one cycle.
//
// Handshake decisions are computed from state registered before this
// tick: a commit or buffer write occurring on the same tick never
// influences the ACK/NAK issued for the packet that caused it.
func (e *StreamOut) Tick(in OutInput) OutOutput {
	var out OutOutput

	// Classify the current token against pre-tick state.
	numberMatches := in.Token.Endpoint == e.cfg.Number
	targeting := numberMatches && in.Token.IsOut
	pidMatch := in.RxPIDToggle == e.expectedToggle
	sufficient := e.fifo.SpaceAvailable() >= e.cfg.MaxPacketSize

	pingRequested := numberMatches && in.Token.IsPing && in.Token.ReadyForResponse
	dataRequested := targeting && in.RxReadyForResponse

	// PING transactions probe the same acceptance predicate as DATA,
	// so okay is independent of the token's OUT/PING flavor.
	okay := numberMatches && sufficient && pidMatch
	skip := targeting && !pidMatch

	// Frame the raw receive stream.
	det := e.detector.Tick(stream.BoundaryInput{
		Data:     in.RxData,
		Valid:    in.RxValid,
		Complete: in.RxComplete,
		Invalid:  in.RxInvalid,
	})

	// Buffer speculatively; the admission predicate reserved a whole
	// packet, so a write can only fail on a babbling host.
	if targeting && okay && det.OutValid {
		if err := e.fifo.Write(det.Out); err != nil {
			pkg.LogWarn(pkg.ComponentEndpoint, "dropping byte beyond packet reservation",
				"endpoint", e.cfg.Number, "error", err)
		}
	}

	// Keep the packet if it finished with a valid integrity check,
	// roll it back otherwise.
	if targeting && det.CompleteOut {
		e.fifo.CommitWrite()
	}
	if targeting && det.InvalidOut {
		e.fifo.DiscardWrite()
	}

	// ACK packets received correctly, and packets skipped for a PID
	// sequence mismatch: the mismatch means the host missed a
	// previous ACK, so we acknowledge without accepting the data.
	out.Handshake.ACK = (dataRequested && okay) ||
		(pingRequested && okay) ||
		(dataRequested && skip)

	// NAK when a response is owed but the packet cannot be accepted
	// and it is not the skip case.
	out.Handshake.NAK = (dataRequested && !okay && !skip) ||
		(pingRequested && !okay)

	// The DATA PID advances exactly once per accepted packet.
	if dataRequested && okay {
		e.expectedToggle = !e.expectedToggle
		pkg.LogDebug(pkg.ComponentEndpoint, "OUT packet accepted",
			"endpoint", e.cfg.Number, "toggle", e.expectedToggle)
	}

	// The consumer stream reads committed buffer contents only;
	// framing travels with each byte through the buffer.
	if b, ok := e.fifo.Read(); ok {
		out.Consumer = b
		out.ConsumerValid = true
		if in.ConsumerReady {
			e.fifo.CommitRead()
			e.firstByte = b.Last
		} else {
			e.fifo.UnreadAll()
		}
	}

	return out
}
