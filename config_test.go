package stencil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testConfig = `
schemes:
  config_test_scheme:
    signal: "#cc0000"
    background: "00f"
overlay:
  title: "Energy"
  leg_pos: [0.1, 0.6, 0.3, 0.8]
  log_y: true
compiler:
  command: lualatex
  args: ["-interaction=batchmode"]
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfig))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	t.Run("schemes", func(t *testing.T) {
		if err := cfg.RegisterSchemes(); err != nil {
			t.Fatalf("RegisterSchemes: %v", err)
		}
		scheme, err := ColorScheme("config_test_scheme")
		if err != nil {
			t.Fatalf("ColorScheme: %v", err)
		}
		if got := rgba8(scheme["signal"]); got != [4]uint8{0xcc, 0, 0, 0xff} {
			t.Errorf("signal = %v", got)
		}
		if got := rgba8(scheme["background"]); got != [4]uint8{0, 0, 0xff, 0xff} {
			t.Errorf("background = %v", got)
		}
	})

	t.Run("overlay overrides", func(t *testing.T) {
		opts := DefaultOverlayOptions()
		if err := cfg.ApplyOverlay(&opts); err != nil {
			t.Fatalf("ApplyOverlay: %v", err)
		}

		want := DefaultOverlayOptions()
		want.Title = "Energy"
		want.LegPos = Position{0.1, 0.6, 0.3, 0.8}
		want.LogY = true
		if diff := cmp.Diff(want, opts); diff != "" {
			t.Errorf("options mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("compiler", func(t *testing.T) {
		want := Compiler{Command: "lualatex", Args: []string{"-interaction=batchmode"}}
		if diff := cmp.Diff(want, cfg.TexCompiler()); diff != "" {
			t.Errorf("compiler mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestEmptyConfig(t *testing.T) {
	cfg, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	opts := DefaultOverlayOptions()
	if err := cfg.ApplyOverlay(&opts); err != nil {
		t.Fatalf("ApplyOverlay: %v", err)
	}
	if diff := cmp.Diff(DefaultOverlayOptions(), opts); diff != "" {
		t.Errorf("an empty config changed the options (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(DefaultCompiler, cfg.TexCompiler()); diff != "" {
		t.Errorf("compiler mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.RegisterSchemes(); err != nil {
		t.Errorf("RegisterSchemes: %v", err)
	}
}

func TestConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatalf("expected an error for a missing file")
		}
	})

	t.Run("bad yaml", func(t *testing.T) {
		if _, err := ParseConfig([]byte("schemes: [")); err == nil {
			t.Fatalf("expected a parse error")
		}
	})

	t.Run("bad color", func(t *testing.T) {
		cfg, err := ParseConfig([]byte("schemes:\n  broken:\n    a: \"#zz\"\n"))
		if err != nil {
			t.Fatalf("ParseConfig: %v", err)
		}
		if err := cfg.RegisterSchemes(); err == nil {
			t.Fatalf("expected an error for a bad color")
		}
	})

	t.Run("wrong leg_pos arity", func(t *testing.T) {
		cfg, err := ParseConfig([]byte("overlay:\n  leg_pos: [0.1, 0.2]\n"))
		if err != nil {
			t.Fatalf("ParseConfig: %v", err)
		}
		opts := DefaultOverlayOptions()
		if err := cfg.ApplyOverlay(&opts); err == nil {
			t.Fatalf("expected an error for two leg_pos values")
		}
	})
}

func TestLoadConfig(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "stencil.yaml")
	if err := os.WriteFile(fn, []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(fn)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.TexCompiler().Command != "lualatex" {
		t.Fatalf("compiler = %+v", cfg.TexCompiler())
	}
}
