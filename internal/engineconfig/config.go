// Package engineconfig implements the ambient, YAML-loaded configuration
// an embedder uses to size a Driver (generational thresholds, recursion
// limit, module search paths): the ambient counterpart to
// internal/engine's runtime state.
package engineconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level asteria.yaml document.
type Config struct {
	// GC sizes the tri-generational collector.
	GC GCConfig `yaml:"gc"`

	// RecursionLimit bounds non-tail call nesting; 0 disables the
	// sentry (unlimited, aside from the Go runtime's own stack).
	RecursionLimit int `yaml:"recursion_limit"`

	// RandomSeedHex is a 64-hex-character (32-byte) seed for the Global
	// context's PRNG (internal/engine.newRand); an empty value leaves the
	// seed to the embedder (pkg/asteria.WithRandomSeed), and with neither
	// the all-zero seed is used.
	RandomSeedHex string `yaml:"random_seed,omitempty"`

	// ModulePaths lists filesystem roots for module lookup, in search
	// order. It is decoded with the rest of the Config; loader.FileLoader
	// and the engine do not read it.
	ModulePaths []string `yaml:"module_paths,omitempty"`
}

// GCConfig carries the per-generation collection thresholds: the
// number of live allocations a generation tolerates before a collection
// pass runs. A threshold of 0 disables opportunistic collection for that
// generation (it collects only when forced; promotions into it never
// trigger a pass).
type GCConfig struct {
	G0Threshold int `yaml:"g0_threshold"`
	G1Threshold int `yaml:"g1_threshold"`
	G2Threshold int `yaml:"g2_threshold"`
}

// Default returns the configuration New-ing a Driver without a config
// file falls back to: a modest nursery, wider tenured generations, and
// a recursion limit of 4096 nested calls.
func Default() Config {
	return Config{
		GC: GCConfig{
			G0Threshold: 256,
			G1Threshold: 2048,
			G2Threshold: 16384,
		},
		RecursionLimit: 4096,
	}
}

// Load reads and validates an asteria.yaml document from path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("engineconfig: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes raw YAML bytes into a Config, filling in
// Default()'s values for any key the document omits.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("engineconfig: invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a configuration that would make the collector or the
// recursion sentry meaningless.
func (c Config) Validate() error {
	if c.GC.G0Threshold < 0 || c.GC.G1Threshold < 0 || c.GC.G2Threshold < 0 {
		return fmt.Errorf("engineconfig: gc thresholds must be non-negative")
	}
	if c.RecursionLimit < 0 {
		return fmt.Errorf("engineconfig: recursion_limit must be non-negative")
	}
	if c.RandomSeedHex != "" && len(c.RandomSeedHex) != 64 {
		return fmt.Errorf("engineconfig: random_seed must be 64 hex characters (32 bytes), got %d", len(c.RandomSeedHex))
	}
	return nil
}

// Seed decodes RandomSeedHex into the 32-byte array internal/engine.New
// expects, or returns the zero seed when none was configured.
func (c Config) Seed() ([32]byte, error) {
	var seed [32]byte
	if c.RandomSeedHex == "" {
		return seed, nil
	}
	return decodeHexSeed(c.RandomSeedHex)
}

func decodeHexSeed(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) != 64 {
		return out, fmt.Errorf("engineconfig: random_seed must be exactly 64 hex characters")
	}
	for i := 0; i < 32; i++ {
		hi, ok1 := hexVal(s[2*i])
		lo, ok2 := hexVal(s[2*i+1])
		if !ok1 || !ok2 {
			return out, fmt.Errorf("engineconfig: random_seed contains a non-hex character")
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	default:
		return 0, false
	}
}
