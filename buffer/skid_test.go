package buffer

import (
	"errors"
	"testing"

	"github.com/softstream/usbep/pkg"
	"github.com/softstream/usbep/stream"
)

func mustSkid(t *testing.T, capacity int) *Skid {
	t.Helper()
	s, err := NewSkid(capacity)
	if err != nil {
		t.Fatalf("NewSkid(%d): %v", capacity, err)
	}
	return s
}

func writeRun(t *testing.T, s *Skid, data ...byte) {
	t.Helper()
	for i, d := range data {
		b := stream.Byte{Data: d, First: i == 0, Last: i == len(data)-1}
		if err := s.Write(b); err != nil {
			t.Fatalf("Write(%#02x): %v", d, err)
		}
	}
}

func TestNewSkidInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := NewSkid(capacity); !errors.Is(err, pkg.ErrInvalidParameter) {
			t.Errorf("NewSkid(%d) = %v, want ErrInvalidParameter", capacity, err)
		}
	}
}

func TestSkidCommitMakesDataVisible(t *testing.T) {
	s := mustSkid(t, 8)

	writeRun(t, s, 1, 2, 3)
	if !s.Empty() {
		t.Error("speculative writes must not be reader-visible")
	}

	s.CommitWrite()
	if s.Empty() {
		t.Fatal("committed writes should be reader-visible")
	}

	for i, want := range []byte{1, 2, 3} {
		b, ok := s.Read()
		if !ok {
			t.Fatalf("Read %d: no entry", i)
		}
		if b.Data != want {
			t.Errorf("Read %d = %#02x, want %#02x", i, b.Data, want)
		}
	}
	s.CommitRead()

	if !s.Empty() {
		t.Error("buffer should drain empty")
	}
}

func TestSkidDiscardRollsBack(t *testing.T) {
	s := mustSkid(t, 8)

	writeRun(t, s, 1, 2)
	s.CommitWrite()
	writeRun(t, s, 3, 4, 5)
	s.DiscardWrite()

	var got []byte
	for {
		b, ok := s.Read()
		if !ok {
			break
		}
		got = append(got, b.Data)
	}
	s.CommitRead()

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("after discard read %v, want [1 2]", got)
	}

	// The discarded slots are reusable.
	writeRun(t, s, 6)
	s.CommitWrite()
	b, ok := s.Read()
	if !ok || b.Data != 6 {
		t.Errorf("post-discard write read = %+v/%v, want 6", b, ok)
	}
}

func TestSkidFramingSurvivesBuffering(t *testing.T) {
	s := mustSkid(t, 4)
	writeRun(t, s, 0xA0, 0xA1, 0xA2)
	s.CommitWrite()

	b, _ := s.Read()
	if !b.First || b.Last {
		t.Errorf("first entry = %+v, want First only", b)
	}
	b, _ = s.Read()
	if b.First || b.Last {
		t.Errorf("middle entry = %+v, want no markers", b)
	}
	b, _ = s.Read()
	if b.First || !b.Last {
		t.Errorf("final entry = %+v, want Last only", b)
	}
}

func TestSkidUnreadReplays(t *testing.T) {
	s := mustSkid(t, 4)
	writeRun(t, s, 9, 8)
	s.CommitWrite()

	first, _ := s.Read()
	s.UnreadAll()

	again, ok := s.Read()
	if !ok || again != first {
		t.Errorf("replayed read = %+v, want %+v", again, first)
	}

	s.CommitRead()
	b, _ := s.Read()
	if b.Data != 8 {
		t.Errorf("read after commit = %#02x, want 8", b.Data)
	}
}

func TestSkidOverrunGuard(t *testing.T) {
	s := mustSkid(t, 2)
	writeRun(t, s, 1, 2)

	// Speculative entries occupy space even before commit.
	if err := s.Write(stream.Byte{Data: 3}); !errors.Is(err, pkg.ErrOverrun) {
		t.Errorf("Write into full buffer = %v, want ErrOverrun", err)
	}

	// Uncommitted reads do not free space either.
	s.CommitWrite()
	s.Read()
	if err := s.Write(stream.Byte{Data: 3}); !errors.Is(err, pkg.ErrOverrun) {
		t.Errorf("Write with uncommitted read = %v, want ErrOverrun", err)
	}

	// A committed read releases one slot.
	s.CommitRead()
	if err := s.Write(stream.Byte{Data: 3}); err != nil {
		t.Errorf("Write after CommitRead: %v", err)
	}
}

func TestSkidSpaceAvailable(t *testing.T) {
	s := mustSkid(t, 16)
	if got := s.SpaceAvailable(); got != 16 {
		t.Fatalf("SpaceAvailable() = %d, want 16", got)
	}

	// Admission accounting tracks committed occupancy.
	writeRun(t, s, make([]byte, 8)...)
	if got := s.SpaceAvailable(); got != 16 {
		t.Errorf("SpaceAvailable() with speculative run = %d, want 16", got)
	}
	s.CommitWrite()
	if got := s.SpaceAvailable(); got != 8 {
		t.Errorf("SpaceAvailable() after commit = %d, want 8", got)
	}

	// A second whole packet still fits: this is the double-buffer case.
	writeRun(t, s, make([]byte, 8)...)
	s.CommitWrite()
	if got := s.SpaceAvailable(); got != 0 {
		t.Errorf("SpaceAvailable() after second commit = %d, want 0", got)
	}

	// Draining and committing reads restores space.
	for i := 0; i < 8; i++ {
		s.Read()
	}
	s.CommitRead()
	if got := s.SpaceAvailable(); got != 8 {
		t.Errorf("SpaceAvailable() after drain = %d, want 8", got)
	}
}

func TestSkidWraparound(t *testing.T) {
	s := mustSkid(t, 4)

	// Cycle enough data through to wrap the ring several times.
	for round := 0; round < 5; round++ {
		base := byte(round * 3)
		writeRun(t, s, base, base+1, base+2)
		s.CommitWrite()
		for i := 0; i < 3; i++ {
			b, ok := s.Read()
			if !ok {
				t.Fatalf("round %d read %d: no entry", round, i)
			}
			if b.Data != base+byte(i) {
				t.Errorf("round %d read %d = %d, want %d", round, i, b.Data, base+byte(i))
			}
		}
		s.CommitRead()
	}
}

func TestSkidReset(t *testing.T) {
	s := mustSkid(t, 4)
	writeRun(t, s, 1, 2)
	s.CommitWrite()
	s.Read()

	s.Reset()

	if !s.Empty() {
		t.Error("Reset should empty the buffer")
	}
	if got := s.SpaceAvailable(); got != 4 {
		t.Errorf("SpaceAvailable() after reset = %d, want 4", got)
	}
	if _, ok := s.Read(); ok {
		t.Error("Read after reset should find nothing")
	}
}
