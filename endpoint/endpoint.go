package endpoint

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/softstream/usbep/pkg"
)

// MaxEndpointNumber is the highest endpoint number addressable by a
// USB token.
const MaxEndpointNumber = 15

// Config holds the construction-time parameters of an endpoint. The
// zero value is not usable; Number and MaxPacketSize must be set.
type Config struct {
	// Number is the endpoint number (not address) this endpoint
	// responds to, 0-15.
	Number uint8

	// MaxPacketSize is the maximum packet size in bytes. It should
	// match the wMaxPacketSize of the endpoint descriptor.
	MaxPacketSize int

	// BufferSize is the OUT endpoint buffer depth in bytes. It must
	// be at least MaxPacketSize so a full packet can be vetted before
	// any of it is exposed. Zero selects twice MaxPacketSize, the
	// classic double-buffered depth.
	BufferSize int

	// WordWidth is the payload width in bytes for the multibyte IN
	// adapter, 1-8. Zero selects 1.
	WordWidth int
}

// Validate checks every configuration constraint and reports all
// violations at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.Number > MaxEndpointNumber {
		result = multierror.Append(result,
			fmt.Errorf("endpoint number %d: %w", c.Number, pkg.ErrInvalidEndpoint))
	}
	if c.MaxPacketSize < 1 {
		result = multierror.Append(result,
			fmt.Errorf("max packet size %d: %w", c.MaxPacketSize, pkg.ErrInvalidPacketSize))
	}
	if c.BufferSize != 0 && c.BufferSize < c.MaxPacketSize {
		result = multierror.Append(result,
			fmt.Errorf("buffer size %d < max packet size %d: %w",
				c.BufferSize, c.MaxPacketSize, pkg.ErrBufferTooSmall))
	}
	if c.WordWidth < 0 || c.WordWidth > 8 {
		result = multierror.Append(result,
			fmt.Errorf("word width %d: %w", c.WordWidth, pkg.ErrInvalidWordWidth))
	}

	return result.ErrorOrNil()
}

// withDefaults returns the config with zero-valued optional fields
// replaced by their defaults.
func (c Config) withDefaults() Config {
	if c.BufferSize == 0 {
		c.BufferSize = 2 * c.MaxPacketSize
	}
	if c.WordWidth == 0 {
		c.WordWidth = 1
	}
	return c
}

// Token describes the token most recently decoded by the transaction
// layer, as seen by an endpoint for one tick.
type Token struct {
	// Endpoint is the token's target endpoint number.
	Endpoint uint8

	// Token type flags; at most one is set.
	IsOut  bool
	IsIn   bool
	IsPing bool

	// ReadyForResponse strobes when the transaction layer expects the
	// endpoint's response to this token on this tick.
	ReadyForResponse bool
}

// Handshake is an endpoint's ACK/NAK decision for one tick. Both
// fields false means no handshake is issued (the endpoint stays
// silent, e.g. after a failed integrity check).
type Handshake struct {
	ACK bool
	NAK bool
}

// Response converts the handshake signals to a pkg.Response value for
// reporting.
func (h Handshake) Response() pkg.Response {
	switch {
	case h.ACK:
		return pkg.ResponseACK
	case h.NAK:
		return pkg.ResponseNAK
	default:
		return pkg.ResponseNone
	}
}
