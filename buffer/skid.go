// Package buffer provides the transactional skid FIFO backing the OUT
// endpoint: a ring buffer whose writes are speculative until committed,
// and whose reads can be rewound until committed.
//
// The writer appends one packet's worth of entries speculatively and
// then either commits the run (valid integrity check) or discards it
// (failed check). The reader only ever observes committed entries, and
// may rewind uncommitted reads when a downstream consumer rejects
// data. Commit and discard are O(1) index adjustments; no entry is
// ever copied or moved after being written.
//
// The writer and reader operate on disjoint index ranges enforced by
// the commit protocol, so no locking is required between the receive
// and consume sides of an endpoint.
package buffer

import (
	"fmt"

	"github.com/softstream/usbep/pkg"
	"github.com/softstream/usbep/stream"
)

// Skid is a transactionalized FIFO of framed stream bytes.
//
// Four monotonically increasing counters delimit three regions of the
// ring: committed-and-unread entries (readSpec..writeCommit), entries
// handed to the reader but not yet read-committed (readCommit..readSpec),
// and speculative writes (writeCommit..writeSpec). The invariant
// readCommit <= readSpec <= writeCommit <= writeSpec holds at all
// times; total occupancy writeSpec-readCommit never exceeds capacity.
type Skid struct {
	entries []stream.Byte

	readCommit  uint64 // oldest retained entry
	readSpec    uint64 // next entry handed to the reader
	writeCommit uint64 // end of reader-visible data
	writeSpec   uint64 // end of speculative data
}

// NewSkid creates a skid buffer holding up to capacity entries.
func NewSkid(capacity int) (*Skid, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("skid capacity %d: %w", capacity, pkg.ErrInvalidParameter)
	}
	return &Skid{entries: make([]stream.Byte, capacity)}, nil
}

// Capacity returns the total number of entries the buffer can hold.
func (s *Skid) Capacity() int {
	return len(s.entries)
}

// Write appends an entry speculatively. The entry is invisible to the
// reader until CommitWrite. Write fails with pkg.ErrOverrun when every
// slot is occupied by retained, committed, or speculative entries.
func (s *Skid) Write(b stream.Byte) error {
	if s.writeSpec-s.readCommit >= uint64(len(s.entries)) {
		return pkg.ErrOverrun
	}
	s.entries[s.writeSpec%uint64(len(s.entries))] = b
	s.writeSpec++
	return nil
}

// CommitWrite publishes all entries written since the last commit or
// discard, making them visible to the reader in FIFO order.
func (s *Skid) CommitWrite() {
	s.writeCommit = s.writeSpec
}

// DiscardWrite removes all entries written since the last commit or
// discard, as if they were never written.
func (s *Skid) DiscardWrite() {
	s.writeSpec = s.writeCommit
}

// Read pops the next committed entry speculatively. Until CommitRead
// is called the pop can be undone with UnreadAll. The second return
// value is false when no committed entry remains.
func (s *Skid) Read() (stream.Byte, bool) {
	if s.readSpec >= s.writeCommit {
		return stream.Byte{}, false
	}
	b := s.entries[s.readSpec%uint64(len(s.entries))]
	s.readSpec++
	return b, true
}

// CommitRead makes all speculative reads permanent, releasing their
// slots for reuse by the writer.
func (s *Skid) CommitRead() {
	s.readCommit = s.readSpec
}

// UnreadAll rewinds every read made since the last CommitRead; the
// entries will be returned again by subsequent reads.
func (s *Skid) UnreadAll() {
	s.readSpec = s.readCommit
}

// Empty reports whether no committed, unread entries remain.
// Speculative writes are never visible here.
func (s *Skid) Empty() bool {
	return s.readSpec >= s.writeCommit
}

// Len returns the number of committed entries not yet handed to the
// reader.
func (s *Skid) Len() int {
	return int(s.writeCommit - s.readSpec)
}

// SpaceAvailable returns the capacity available for admitting a new
// packet: total capacity minus committed occupancy. Entries remain
// counted until the reader commits their reads. Speculative writes are
// deliberately excluded — packet admission reserves a whole packet up
// front, and exactly one uncommitted run exists at a time, so the
// reservation covers every speculative entry (Write still guards
// against true overrun independently).
func (s *Skid) SpaceAvailable() int {
	return len(s.entries) - int(s.writeCommit-s.readCommit)
}

// Reset discards all contents and returns the buffer to its initial
// empty state.
func (s *Skid) Reset() {
	s.readCommit = 0
	s.readSpec = 0
	s.writeCommit = 0
	s.writeSpec = 0
}
