package endpoint

import (
	"github.com/softstream/usbep/stream"
)

// MultibyteInInput carries the per-tick inputs to a MultibyteIn
// endpoint. Token, TxReady and HostAck pass through to the inner byte
// endpoint unchanged.
type MultibyteInInput struct {
	Token Token

	// Producer word stream. WordValid qualifies Word for this tick.
	Word      stream.Word
	WordValid bool

	TxReady bool
	HostAck bool
}

// MultibyteInOutput carries the per-tick outputs of a MultibyteIn
// endpoint.
type MultibyteInOutput struct {
	// WordReady is asserted while the producer stream can deliver a
	// word this tick.
	WordReady bool

	Tx        stream.Byte
	TxValid   bool
	SendZLP   bool
	Handshake Handshake
	DataPID   bool
}

// multibyteState enumerates the word serializer's states.
type multibyteState int

const (
	multibyteIdle     multibyteState = iota // waiting for a word
	multibyteTransmit                       // shifting a word out byte by byte
)

// MultibyteIn transmits a framed word stream to the host on a single
// IN endpoint.
//
// Each accepted word is latched into a shift register and fed to an
// inner [StreamIn] one byte at a time, in little-endian order. The
// transfer's First marker is forwarded only on the first byte of the
// first word and Last only on the final byte of the last word;
// interior bytes of a word never carry either marker. A word width of
// one degenerates to a byte-for-byte pass-through.
type MultibyteIn struct {
	cfg   Config
	inner *StreamIn

	state multibyteState

	// Shift register and latched framing for the word in flight.
	shift        uint64
	bytesLeft    int
	firstLatched bool
	lastLatched  bool
}

// NewMultibyteIn creates a multibyte IN endpoint from cfg. The word
// width is cfg.WordWidth bytes, 1 through 8.
func NewMultibyteIn(cfg Config) (*MultibyteIn, error) {
	inner, err := NewStreamIn(cfg)
	if err != nil {
		return nil, err
	}
	return &MultibyteIn{cfg: inner.cfg, inner: inner}, nil
}

// Number returns the endpoint number this endpoint responds to.
func (e *MultibyteIn) Number() uint8 {
	return e.cfg.Number
}

// WordWidth returns the configured word width in bytes.
func (e *MultibyteIn) WordWidth() int {
	return e.cfg.WordWidth
}

// Reset returns the endpoint and its inner byte endpoint to their
// initial states.
func (e *MultibyteIn) Reset() {
	e.inner.Reset()
	e.state = multibyteIdle
	e.shift = 0
	e.bytesLeft = 0
	e.firstLatched = false
	e.lastLatched = false
}

// Tick advances the endpoint by one cycle.
func (e *MultibyteIn) Tick(in MultibyteInInput) MultibyteInOutput {
	innerIn := InInput{
		Token:   in.Token,
		TxReady: in.TxReady,
		HostAck: in.HostAck,
	}

	// Always offer the inner transmitter the least significant byte
	// of the shift register while a word is in flight.
	if e.state == multibyteTransmit {
		innerIn.StreamValid = true
		innerIn.Stream = stream.Byte{
			Data:  byte(e.shift),
			First: e.firstLatched && e.bytesLeft == e.cfg.WordWidth-1,
			Last:  e.lastLatched && e.bytesLeft == 0,
		}
	}

	innerOut := e.inner.Tick(innerIn)

	out := MultibyteInOutput{
		Tx:        innerOut.Tx,
		TxValid:   innerOut.TxValid,
		SendZLP:   innerOut.SendZLP,
		Handshake: innerOut.Handshake,
		DataPID:   innerOut.DataPID,
	}

	switch e.state {
	case multibyteIdle:
		out.WordReady = true
		if in.WordValid {
			e.load(in.Word)
			e.state = multibyteTransmit
		}

	case multibyteTransmit:
		if !innerOut.StreamReady {
			break // inner endpoint stalled this tick
		}
		if e.bytesLeft > 0 {
			e.shift >>= 8
			e.bytesLeft--
			break
		}
		// Final byte accepted: complete the word, reloading
		// immediately when the next one is already available.
		out.WordReady = true
		if in.WordValid {
			e.load(in.Word)
		} else {
			e.state = multibyteIdle
		}
	}

	return out
}

// load latches a word into the shift register.
func (e *MultibyteIn) load(w stream.Word) {
	e.shift = w.Data
	e.firstLatched = w.First
	e.lastLatched = w.Last
	e.bytesLeft = e.cfg.WordWidth - 1
}
