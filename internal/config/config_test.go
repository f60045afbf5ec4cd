package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/softstream/usbep/pkg"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeProfile(t, `
endpoint:
  max-packet-size: 8
  word-width: 4
stimulus:
  length: 128
faults:
  drop-ack-every: 5
`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if p.Endpoint.MaxPacketSize != 8 || p.Endpoint.WordWidth != 4 {
		t.Errorf("endpoint profile = %+v", p.Endpoint)
	}
	if p.Stimulus.Length != 128 {
		t.Errorf("stimulus length = %d, want 128", p.Stimulus.Length)
	}
	if p.Faults.DropAckEvery != 5 || p.Faults.CorruptEvery != 0 {
		t.Errorf("fault profile = %+v", p.Faults)
	}

	// Fields the file omits keep their defaults.
	def := Default()
	if p.Endpoint.OutNumber != def.Endpoint.OutNumber ||
		p.Endpoint.InNumber != def.Endpoint.InNumber {
		t.Errorf("endpoint numbers = %+v, want defaults %+v", p.Endpoint, def.Endpoint)
	}
	if p.Stimulus.Seed != def.Stimulus.Seed {
		t.Errorf("seed = %d, want default %d", p.Stimulus.Seed, def.Stimulus.Seed)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeProfile(t, `
endpoint:
  max-paket-size: 8
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted a misspelled key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}

func TestDefaultProfileValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default profile invalid: %v", err)
	}
}

func TestValidateReportsAllViolations(t *testing.T) {
	p := Default()
	p.Endpoint.OutNumber = 3
	p.Endpoint.InNumber = 3
	p.Endpoint.MaxPacketSize = 0
	p.Stimulus.Length = 0
	p.Faults.DropAckEvery = -1

	err := p.Validate()
	if err == nil {
		t.Fatal("Validate() = nil")
	}
	for _, sentinel := range []error{pkg.ErrInvalidPacketSize, pkg.ErrInvalidParameter} {
		if !errors.Is(err, sentinel) {
			t.Errorf("Validate() = %v, missing %v", err, sentinel)
		}
	}
}
