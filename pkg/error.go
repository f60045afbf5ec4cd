package pkg

import "errors"

// Endpoint-layer errors.
var (
	// ErrOverrun indicates a write to a buffer with no free capacity.
	ErrOverrun = errors.New("buffer overrun")

	// ErrUnderrun indicates a read from an empty buffer.
	ErrUnderrun = errors.New("buffer underrun")

	// ErrBufferTooSmall indicates a buffer smaller than one max packet.
	ErrBufferTooSmall = errors.New("buffer smaller than max packet size")

	// ErrInvalidEndpoint indicates an endpoint number outside 0-15.
	ErrInvalidEndpoint = errors.New("invalid endpoint number")

	// ErrInvalidPacketSize indicates a non-positive max packet size.
	ErrInvalidPacketSize = errors.New("invalid max packet size")

	// ErrInvalidWordWidth indicates a word width outside 1-8 bytes.
	ErrInvalidWordWidth = errors.New("invalid word width")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrProtocol indicates a protocol sequencing violation.
	ErrProtocol = errors.New("protocol error")
)

// Response represents the handshake a host observes for one transaction.
type Response int

// Handshake response values.
const (
	ResponseNone Response = iota // No handshake issued (e.g. CRC failure)
	ResponseACK                  // Transaction acknowledged
	ResponseNAK                  // Transaction refused, host should retry
)

// String returns a string representation of the handshake response.
func (r Response) String() string {
	switch r {
	case ResponseNone:
		return "none"
	case ResponseACK:
		return "ack"
	case ResponseNAK:
		return "nak"
	default:
		return "unknown"
	}
}
