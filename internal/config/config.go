// Package config defines the simulator's CLI surface and its YAML
// simulation profile.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/softstream/usbep/endpoint"
	"github.com/softstream/usbep/pkg"
)

// Log holds the logging flags shared by every command.
type Log struct {
	Level  string `help:"Log level: debug, info, warn, error" default:"info" enum:"debug,info,warn,error" env:"USBESIM_LOG_LEVEL"`
	Format string `help:"Log format: text, json" default:"text" enum:"text,json" env:"USBESIM_LOG_FORMAT"`
}

// Apply installs the selected level and format on the package logger.
func (l Log) Apply() {
	switch l.Level {
	case "debug":
		pkg.SetLogLevel(slog.LevelDebug)
	case "warn":
		pkg.SetLogLevel(slog.LevelWarn)
	case "error":
		pkg.SetLogLevel(slog.LevelError)
	default:
		pkg.SetLogLevel(slog.LevelInfo)
	}
	if l.Format == "json" {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	} else {
		pkg.SetLogFormat(pkg.LogFormatText)
	}
}

// Profile is a simulation profile. Zero-valued fields take the
// defaults from [Default].
type Profile struct {
	Endpoint EndpointProfile `yaml:"endpoint"`
	Stimulus StimulusProfile `yaml:"stimulus"`
	Faults   FaultProfile    `yaml:"faults"`
}

// EndpointProfile selects the endpoint pair under simulation.
type EndpointProfile struct {
	// OutNumber and InNumber are the endpoint numbers of the OUT and
	// IN halves of the loop.
	OutNumber uint8 `yaml:"out-number"`
	InNumber  uint8 `yaml:"in-number"`

	// MaxPacketSize, BufferSize and WordWidth carry the same meaning
	// as in endpoint.Config.
	MaxPacketSize int `yaml:"max-packet-size"`
	BufferSize    int `yaml:"buffer-size"`
	WordWidth     int `yaml:"word-width"`
}

// StimulusProfile selects the payload driven through the loop.
type StimulusProfile struct {
	// Length is the number of pseudorandom stimulus bytes, used when
	// HexFile is empty.
	Length int `yaml:"length"`

	// Seed seeds the pseudorandom stimulus generator.
	Seed int64 `yaml:"seed"`

	// HexFile names an Intel HEX image whose data segments become
	// the stimulus, in ascending address order.
	HexFile string `yaml:"hex-file"`
}

// FaultProfile injects host-side faults to exercise the recovery
// paths.
type FaultProfile struct {
	// CorruptEvery corrupts every Nth OUT packet before retrying it
	// intact; zero disables.
	CorruptEvery int `yaml:"corrupt-every"`

	// DropAckEvery withholds the ACK of every Nth IN packet so the
	// endpoint retransmits; zero disables.
	DropAckEvery int `yaml:"drop-ack-every"`
}

// Default returns the profile used when no file and no flags are
// given: a full-speed bulk pair with a 64-byte maximum packet.
func Default() Profile {
	return Profile{
		Endpoint: EndpointProfile{
			OutNumber:     1,
			InNumber:      2,
			MaxPacketSize: 64,
		},
		Stimulus: StimulusProfile{
			Length: 4096,
			Seed:   1,
		},
	}
}

// Load reads a YAML profile from path, layered over the defaults.
// Unknown keys are rejected.
func Load(path string) (Profile, error) {
	p := Default()

	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("load profile: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("load profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks every profile constraint and reports all violations
// at once.
func (p Profile) Validate() error {
	var result *multierror.Error

	if err := p.OutConfig().Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("out endpoint: %w", err))
	}
	if err := p.InConfig().Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("in endpoint: %w", err))
	}
	if p.Endpoint.OutNumber == p.Endpoint.InNumber {
		result = multierror.Append(result,
			fmt.Errorf("out and in endpoints share number %d: %w",
				p.Endpoint.OutNumber, pkg.ErrInvalidParameter))
	}
	if p.Stimulus.HexFile == "" && p.Stimulus.Length < 1 {
		result = multierror.Append(result,
			fmt.Errorf("stimulus length %d: %w", p.Stimulus.Length, pkg.ErrInvalidParameter))
	}
	if p.Faults.CorruptEvery < 0 || p.Faults.DropAckEvery < 0 {
		result = multierror.Append(result,
			fmt.Errorf("fault intervals must not be negative: %w", pkg.ErrInvalidParameter))
	}

	return result.ErrorOrNil()
}

// OutConfig returns the endpoint configuration of the OUT half.
func (p Profile) OutConfig() endpoint.Config {
	return endpoint.Config{
		Number:        p.Endpoint.OutNumber,
		MaxPacketSize: p.Endpoint.MaxPacketSize,
		BufferSize:    p.Endpoint.BufferSize,
	}
}

// InConfig returns the endpoint configuration of the IN half.
func (p Profile) InConfig() endpoint.Config {
	return endpoint.Config{
		Number:        p.Endpoint.InNumber,
		MaxPacketSize: p.Endpoint.MaxPacketSize,
		WordWidth:     p.Endpoint.WordWidth,
	}
}
