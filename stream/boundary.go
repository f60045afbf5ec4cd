package stream

// BoundaryInput carries the per-tick inputs to a BoundaryDetector: the
// raw receive byte (qualified by Valid) and the out-of-band strobes
// reporting how the packet ended. Complete signals a packet whose
// integrity check passed; Invalid one whose check failed.
type BoundaryInput struct {
	Data     byte
	Valid    bool
	Complete bool
	Invalid  bool
}

// BoundaryOutput carries the per-tick outputs of a BoundaryDetector:
// the re-emitted stream with first/last framing attached, plus the
// delayed end-of-packet strobes. CompleteOut and InvalidOut never fire
// before the tick on which the annotated final byte is emitted, so a
// consumer that processes the byte before the strobe observes a fully
// framed packet at commit time.
type BoundaryOutput struct {
	Out         Byte
	OutValid    bool
	CompleteOut bool
	InvalidOut  bool
}

// closeKind records a packet-end strobe that arrived on the same tick
// as the packet's final byte and must be replayed one tick later.
type closeKind int

const (
	closeNone closeKind = iota
	closeComplete
	closeInvalid
)

// BoundaryDetector relabels a raw receive stream with first/last
// transaction boundaries derived from the Complete/Invalid strobes.
//
// The detector holds exactly one byte of state: it cannot know whether
// a byte is the last of its packet until the following event arrives,
// so each byte is emitted one event late, stamped Last when the packet
// end showed up first. It performs no other buffering; it is a pure
// relabeling pass.
//
// First is asserted on the first byte after reset and on each byte
// following an emitted Last. A Complete or Invalid strobe with no byte
// pending (a zero-length packet) forwards the strobe alone.
type BoundaryDetector struct {
	pending      Byte
	pendingValid bool
	nextFirst    bool
	close        closeKind
}

// NewBoundaryDetector creates a boundary detector in its reset state.
func NewBoundaryDetector() *BoundaryDetector {
	return &BoundaryDetector{nextFirst: true}
}

// Reset returns the detector to its initial state, dropping any
// pending byte.
func (d *BoundaryDetector) Reset() {
	d.pending = Byte{}
	d.pendingValid = false
	d.nextFirst = true
	d.close = closeNone
}

// Tick advances the detector by one cycle. Outputs are a function of
// the state registered before the call and the current inputs; state
// mutations apply after output computation.
func (d *BoundaryDetector) Tick(in BoundaryInput) BoundaryOutput {
	var out BoundaryOutput

	// Replay a packet end that arrived alongside its final byte.
	if d.close != closeNone {
		out.Out = d.pending
		out.Out.Last = true
		out.OutValid = true
		out.CompleteOut = d.close == closeComplete
		out.InvalidOut = d.close == closeInvalid
		d.pendingValid = false
		d.close = closeNone
		d.nextFirst = true
		if in.Valid {
			d.intake(in.Data)
		}
		return out
	}

	switch {
	case in.Complete || in.Invalid:
		if in.Valid {
			// The arriving byte is the packet's final byte; it is
			// emitted, stamped Last, on the next tick.
			if d.pendingValid {
				out.Out = d.pending
				out.OutValid = true
			}
			d.intake(in.Data)
			if in.Complete {
				d.close = closeComplete
			} else {
				d.close = closeInvalid
			}
			return out
		}
		if d.pendingValid {
			out.Out = d.pending
			out.Out.Last = true
			out.OutValid = true
			d.pendingValid = false
			d.nextFirst = true
		}
		out.CompleteOut = in.Complete
		out.InvalidOut = in.Invalid
		return out

	case in.Valid:
		if d.pendingValid {
			out.Out = d.pending
			out.OutValid = true
		}
		d.intake(in.Data)
	}

	return out
}

// intake latches an arriving byte as the new pending byte, stamping
// its First marker.
func (d *BoundaryDetector) intake(data byte) {
	d.pending = Byte{Data: data, First: d.nextFirst}
	d.pendingValid = true
	d.nextFirst = false
}
