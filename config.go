package stencil

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration file.
//
//	schemes:
//	  mine:
//	    signal: "#cc0000"
//	overlay:
//	  title: ""
//	  leg_pos: [0.1, 0.7, 0.3, 0.9]
//	compiler:
//	  command: lualatex
type Config struct {
	Schemes  map[string]map[string]string `yaml:"schemes"`
	Overlay  yaml.Node                    `yaml:"overlay"`
	Compiler *Compiler                    `yaml:"compiler"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}
	return cfg, nil
}

// RegisterSchemes registers every scheme in the config, replacing schemes of
// the same name.
func (c *Config) RegisterSchemes() error {
	for name, hex := range c.Schemes {
		scheme, err := ParseScheme(hex)
		if err != nil {
			return fmt.Errorf("scheme %q: %w", name, err)
		}
		RegisterScheme(name, scheme)
	}
	return nil
}

// ApplyOverlay overwrites the options named in the overlay section. Options
// not named keep their value.
func (c *Config) ApplyOverlay(opts *OverlayOptions) error {
	if c.Overlay.Kind == 0 {
		return nil
	}
	if err := c.Overlay.Decode(opts); err != nil {
		return fmt.Errorf("could not apply overlay config: %w", err)
	}
	return nil
}

// TexCompiler returns the configured compiler, or DefaultCompiler.
func (c *Config) TexCompiler() Compiler {
	if c.Compiler == nil {
		return DefaultCompiler
	}
	return *c.Compiler
}
