// Command usbesim simulates a USB host exercising the endpoint stack:
// it drives stimulus packets into an OUT endpoint, loops the consumer
// stream back through a multibyte IN endpoint, and verifies the echo.
package main

import (
	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/softstream/usbep/internal/config"
	"github.com/softstream/usbep/internal/sim"
)

type cli struct {
	config.Log `embed:"" prefix:"log."`

	Loopback sim.Loopback `cmd:"" default:"withargs" help:"Run a host loopback simulation"`
	GenHex   sim.GenHex   `cmd:"" name:"gen-hex" help:"Generate a pseudorandom Intel HEX stimulus image"`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("usbesim"),
		kong.Description("USB endpoint loopback simulator."),
		kong.UsageOnError(),
		// Flags may also come from a config file; explicit flags and
		// environment variables take precedence.
		kong.Configuration(kongyaml.Loader,
			"/etc/usbesim/config.yaml", "~/.config/usbesim/config.yaml", ".usbesim.yaml"),
	)

	c.Log.Apply()

	ctx.FatalIfErrorf(ctx.Run())
}
