package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "retoucher.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("RETOUCHER_PROVIDER", "")
	t.Setenv("RETOUCHER_MAX_SIDE", "")

	tests := []struct {
		name    string
		body    string
		check   func(t *testing.T, c Config)
		wantErr bool
	}{
		{
			name: "overrides",
			body: "provider: openai\nmodel: gpt-image-1\nbrush_size: 12\nautosave_delay: 2s\nmax_side: 1024\n",
			check: func(t *testing.T, c Config) {
				if c.Provider != "openai" || c.Model != "gpt-image-1" || c.BrushSize != 12 || c.MaxSide != 1024 {
					t.Errorf("config = %+v", c)
				}
				if c.AutosaveDelay != 2*time.Second {
					t.Errorf("autosave delay = %v", c.AutosaveDelay)
				}
			},
		},
		{
			name: "defaults kept",
			body: "model: custom\n",
			check: func(t *testing.T, c Config) {
				if c.Temperature != 0.4 || c.MaxSide != 2048 || c.Addr != ":8888" {
					t.Errorf("config = %+v", c)
				}
			},
		},
		{name: "bad provider", body: "provider: ollama\n", wantErr: true},
		{name: "bad temperature", body: "temperature: 9\n", wantErr: true},
		{name: "bad yaml", body: "provider: [\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(writeFile(t, tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.check(t, c)
		})
	}
}

func TestLoadEmptyPath(t *testing.T) {
	t.Setenv("RETOUCHER_MAX_SIDE", "512")
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.MaxSide != 512 {
		t.Errorf("max side = %d, want env value", c.MaxSide)
	}
}

func TestMaxSideFromEnv(t *testing.T) {
	tests := map[string]int{"": 2048, "1024": 1024, "abc": 2048, "-5": 2048}
	for v, want := range tests {
		t.Setenv("RETOUCHER_MAX_SIDE", v)
		if got := maxSideFromEnv(); got != want {
			t.Errorf("%q: got %d, want %d", v, got, want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error")
	}
}
