package sim

import (
	"fmt"
	"math/rand"
	"os"
	"sort"

	"github.com/marcinbor85/gohex"

	"github.com/softstream/usbep/internal/config"
)

// loadStimulus materializes the stimulus payload: the data segments
// of an Intel HEX image in ascending address order, or a pseudorandom
// byte sequence when no image is named.
func loadStimulus(p config.StimulusProfile) ([]byte, error) {
	if p.HexFile == "" {
		data := make([]byte, p.Length)
		rng := rand.New(rand.NewSource(p.Seed))
		rng.Read(data)
		return data, nil
	}

	f, err := os.Open(p.HexFile)
	if err != nil {
		return nil, fmt.Errorf("stimulus: %w", err)
	}
	defer f.Close()

	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(f); err != nil {
		return nil, fmt.Errorf("stimulus %s: %w", p.HexFile, err)
	}

	segments := mem.GetDataSegments()
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].Address < segments[j].Address
	})

	var data []byte
	for _, s := range segments {
		data = append(data, s.Data...)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("stimulus %s holds no data", p.HexFile)
	}
	return data, nil
}

// padToWidth zero-pads data to a whole number of words.
func padToWidth(data []byte, width int) []byte {
	if rem := len(data) % width; rem != 0 {
		data = append(data, make([]byte, width-rem)...)
	}
	return data
}

// packWords folds a byte sequence into little-endian words of the
// given width. len(data) must be a multiple of width.
func packWords(data []byte, width int) []uint64 {
	words := make([]uint64, 0, len(data)/width)
	for off := 0; off < len(data); off += width {
		var w uint64
		for i := 0; i < width; i++ {
			w |= uint64(data[off+i]) << (8 * i)
		}
		words = append(words, w)
	}
	return words
}
