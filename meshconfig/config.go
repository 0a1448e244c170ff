// Package meshconfig loads the YAML description of a mesh topology and
// per-tile hardware wiring used by cmd/blinkboot's "mesh" subcommand and
// the hardware entry point alike.
package meshconfig

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Move38/Blinks-SDK/pixel"
)

// Config is the top-level mesh config document.
type Config struct {
	Mesh MeshConfig `yaml:"mesh"`
}

// MeshConfig lists every tile participating in this run.
type MeshConfig struct {
	Tiles []TileConfig `yaml:"tiles"`
}

// TileConfig describes one tile: its identity, which faces are wired to
// which neighbor (for the in-process simulator), and the serial/GPIO
// device names backing it on real hardware.
type TileConfig struct {
	ID     string          `yaml:"id"`
	Role   string          `yaml:"role"` // "source" or "receiver"
	Faces  [6]FaceWiring   `yaml:"faces"`
	Serial SerialConfig    `yaml:"serial"`
	Pixels PixelPinsConfig `yaml:"pixels"`
	TickMs int             `yaml:"tick_ms"`
}

// FaceWiring names the neighbor tile ID and face index this face connects
// to in a simulated mesh. Empty Neighbor means the face is unconnected.
type FaceWiring struct {
	Neighbor string `yaml:"neighbor"`
	Face     int    `yaml:"face"`
}

// SerialConfig names the serial device and baud rate backing one tile's
// six faces, indexed by face number, for hardware runs.
type SerialConfig struct {
	Devices  [6]string `yaml:"devices"`
	BaudRate int       `yaml:"baud_rate"`
}

// PixelPinsConfig names the GPIO pins backing one tile's six-face RGB
// display, for hardware runs.
type PixelPinsConfig struct {
	Faces [6]pixel.FacePins `yaml:"faces"`
}

// Load reads and parses a mesh config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("meshconfig: open %s: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a mesh config document from r.
func Parse(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("meshconfig: decode: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration correctness declaratively; it never
// mutates cfg.
func Validate(cfg *Config) error {
	seen := make(map[string]bool)

	for _, tile := range cfg.Mesh.Tiles {
		if tile.ID == "" {
			return fmt.Errorf("meshconfig: tile with empty id")
		}
		if seen[tile.ID] {
			return fmt.Errorf("meshconfig: duplicate tile id %q", tile.ID)
		}
		seen[tile.ID] = true

		if tile.Role != "source" && tile.Role != "receiver" {
			return fmt.Errorf("meshconfig: tile %q: role must be \"source\" or \"receiver\", got %q", tile.ID, tile.Role)
		}
	}

	for _, tile := range cfg.Mesh.Tiles {
		for face, wiring := range tile.Faces {
			if wiring.Neighbor == "" {
				continue
			}
			if !seen[wiring.Neighbor] {
				return fmt.Errorf("meshconfig: tile %q face %d: unknown neighbor %q", tile.ID, face, wiring.Neighbor)
			}
			if wiring.Face < 0 || wiring.Face >= 6 {
				return fmt.Errorf("meshconfig: tile %q face %d: neighbor face %d out of range", tile.ID, face, wiring.Face)
			}
		}
	}

	return nil
}
