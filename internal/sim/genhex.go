package sim

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/marcinbor85/gohex"

	"github.com/softstream/usbep/pkg"
)

// GenHex writes a pseudorandom stimulus image in Intel HEX format,
// for replay with the loopback command's --hex-file flag.
type GenHex struct {
	Out     string `arg:"" help:"Output .hex file" type:"path"`
	Length  int    `help:"Stimulus length in bytes" default:"4096"`
	Seed    int64  `help:"Generator seed" default:"1"`
	Base    uint32 `help:"Base address of the image" default:"0"`
	LineLen byte   `help:"Data bytes per HEX record" default:"16"`
}

// Run is called by kong when the gen-hex command is executed.
func (g *GenHex) Run() error {
	if g.Length < 1 {
		return fmt.Errorf("length %d: %w", g.Length, pkg.ErrInvalidParameter)
	}

	data := make([]byte, g.Length)
	rand.New(rand.NewSource(g.Seed)).Read(data)

	mem := gohex.NewMemory()
	if err := mem.AddBinary(g.Base, data); err != nil {
		return fmt.Errorf("gen-hex: %w", err)
	}

	w, err := os.Create(g.Out)
	if err != nil {
		return fmt.Errorf("gen-hex: %w", err)
	}
	defer w.Close()

	if err := mem.DumpIntelHex(w, g.LineLen); err != nil {
		return fmt.Errorf("gen-hex %s: %w", g.Out, err)
	}

	pkg.LogInfo(pkg.ComponentSim, "stimulus image written",
		"file", g.Out, "bytes", g.Length, "seed", g.Seed)
	return nil
}
