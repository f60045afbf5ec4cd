// Package stream defines the signal-level stream contract shared by the
// endpoint components, and the boundary detector that annotates a raw
// receive stream with transaction framing.
//
// A stream carries one payload unit per transfer, qualified by a
// valid/ready handshake and by first/last transaction boundary markers.
// A transfer occurs exactly on ticks where the producer asserts valid
// and the consumer asserts ready; the producer may not retract valid
// once asserted until the transfer occurs, while the consumer may
// assert and deassert ready freely.
package stream

// Byte is one unit of a framed byte stream: a payload byte plus the
// first/last markers that delimit a transaction. A well-formed transfer
// is a contiguous run of bytes with First set on exactly the first and
// Last on exactly the final byte; a one-byte transfer carries both.
type Byte struct {
	Data  byte
	First bool
	Last  bool
}

// Word is one unit of a framed word stream, as consumed by the
// multibyte IN endpoint. Words are serialized least-significant-byte
// first; First and Last apply to the whole word.
type Word struct {
	Data  uint64
	First bool
	Last  bool
}
