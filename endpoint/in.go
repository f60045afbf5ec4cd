package endpoint

import (
	"github.com/softstream/usbep/stream"
	"github.com/softstream/usbep/transfer"
)

// InInput carries the per-tick inputs to a StreamIn endpoint.
type InInput struct {
	// Token is the transaction layer's current token view. An IN
	// token with ReadyForResponse set asks this endpoint to respond
	// with a packet, a ZLP, or a NAK.
	Token Token

	// Producer stream. StreamValid qualifies Stream for this tick.
	Stream      stream.Byte
	StreamValid bool

	// TxReady is asserted while the transaction layer accepts one
	// transmit byte this tick.
	TxReady bool

	// HostAck strobes when the host acknowledged the transmitted
	// packet.
	HostAck bool
}

// InOutput carries the per-tick outputs of a StreamIn endpoint.
type InOutput struct {
	// StreamReady is asserted while the producer stream can deliver a
	// byte this tick.
	StreamReady bool

	// Tx carries one transmit byte when TxValid is asserted; First
	// and Last frame the transmitted packet.
	Tx      stream.Byte
	TxValid bool

	// SendZLP strobes when the response to the IN token is a
	// zero-length packet.
	SendZLP bool

	// Handshake carries a NAK when the IN token cannot be answered
	// with data.
	Handshake Handshake

	// DataPID is the DATA0/DATA1 polarity of the packet being
	// transmitted.
	DataPID bool
}

// StreamIn transmits a framed byte stream to the host on a single IN
// endpoint.
//
// Packet sequencing is delegated to a [transfer.InManager] with ZLP
// generation enabled: a transfer whose final packet exactly fills the
// maximum packet size is followed by a zero-length packet so the host
// can detect the end of the transfer unambiguously. If the stream's
// Last marker is never asserted, a continuous sequence of
// maximum-length packets is sent with no inserted ZLPs.
//
// The implementation is double buffered: a second packet's worth of
// data is accepted from the producer while the first is transmitted
// or awaiting its handshake.
type StreamIn struct {
	cfg     Config
	manager *transfer.InManager
}

// NewStreamIn creates an IN stream endpoint from cfg.
func NewStreamIn(cfg Config) (*StreamIn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	// Always generate ZLPs, to pass along where stream packets
	// terminate.
	manager, err := transfer.NewInManager(cfg.MaxPacketSize, true)
	if err != nil {
		return nil, err
	}
	return &StreamIn{cfg: cfg, manager: manager}, nil
}

// Number returns the endpoint number this endpoint responds to.
func (e *StreamIn) Number() uint8 {
	return e.cfg.Number
}

// DataPID returns the DATA0/DATA1 polarity the next transmitted
// packet will carry.
func (e *StreamIn) DataPID() bool {
	return e.manager.DataPID()
}

// Reset returns the endpoint to its initial state.
func (e *StreamIn) Reset() {
	e.manager.Reset()
}

// Tick advances the endpoint by one cycle. The endpoint is active
// only while the current token targets its endpoint number; tokens
// for other endpoints are ignored entirely.
func (e *StreamIn) Tick(in InInput) InOutput {
	active := in.Token.Endpoint == e.cfg.Number

	mo := e.manager.Tick(transfer.Input{
		Stream:      in.Stream,
		StreamValid: in.StreamValid,
		Active:      active,
		TokenIn:     active && in.Token.IsIn && in.Token.ReadyForResponse,
		TxReady:     in.TxReady,
		HostAck:     in.HostAck,
	})

	return InOutput{
		StreamReady: mo.StreamReady,
		Tx:          mo.Tx,
		TxValid:     mo.TxValid,
		SendZLP:     mo.SendZLP,
		Handshake:   Handshake{NAK: mo.NAK},
		DataPID:     mo.DataPID,
	}
}
