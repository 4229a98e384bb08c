package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func example(name string) string {
	return filepath.Join("..", "..", "examples", name)
}

func TestAnalyzeExamples(t *testing.T) {
	tests := []struct {
		file      string
		solid     bool
		volume    float64
		openEdges int
	}{
		{"cube.geojson", true, 1, 0},
		{"open_box.geojson", false, 0, 4},
		{"courtyard.geojson", true, 252, 0},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			var out bytes.Buffer
			if err := run([]string{"analyze", example(tt.file)}, &out); err != nil {
				t.Fatalf("analyze: %v", err)
			}
			var reports []featureReport
			if err := json.Unmarshal(out.Bytes(), &reports); err != nil {
				t.Fatalf("decode %q: %v", out.String(), err)
			}
			if len(reports) != 1 {
				t.Fatalf("got %d reports, want 1", len(reports))
			}
			r := reports[0].Report
			if r.Solid != tt.solid || r.OpenEdgeCount != tt.openEdges {
				t.Errorf("solid/open edges = %v/%d, want %v/%d", r.Solid, r.OpenEdgeCount, tt.solid, tt.openEdges)
			}
			if tt.solid && (r.Volume < tt.volume-1e-6 || r.Volume > tt.volume+1e-6) {
				t.Errorf("volume = %v, want %v", r.Volume, tt.volume)
			}
		})
	}
}

func TestEvalCommand(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"eval", "-tolerance", "0.001", "(open-edge-count)", example("open_box.geojson")}, &out); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "open box\t4" {
		t.Errorf("output = %q, want %q", got, "open box\t4")
	}

	out.Reset()
	if err := run([]string{"eval", "(* 2 3)"}, &out); err != nil {
		t.Fatalf("eval without geometry: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "0\t6" {
		t.Errorf("output = %q, want %q", got, "0\t6")
	}

	if err := run([]string{"eval", "(pt 1)"}, &out); err == nil {
		t.Error("a failing expression should return an error")
	}
}

func TestExportCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.stl")
	var out bytes.Buffer
	if err := run([]string{"export", example("cube.geojson"), path}, &out); err != nil {
		t.Fatalf("export: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	// Binary STL: 84 byte header plus 50 bytes per triangle.
	if info.Size() != 84+50*12 {
		t.Errorf("STL size = %d, want %d", info.Size(), 84+50*12)
	}

	if err := run([]string{"export", "-feature", "3", example("cube.geojson"), path}, &out); err == nil {
		t.Error("out of range feature should fail")
	}
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solidmesh.yaml")
	var out bytes.Buffer
	if err := run([]string{"config", "-workers", "4", path}, &out); err != nil {
		t.Fatalf("config: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "workers: 4") {
		t.Errorf("saved config missing workers override:\n%s", data)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"analyze without file", []string{"analyze"}},
		{"export without output", []string{"export", example("cube.geojson")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(tt.args, &bytes.Buffer{}); !errors.Is(err, errUsage) {
				t.Errorf("run(%v) = %v, want errUsage", tt.args, err)
			}
		})
	}

	if err := run([]string{"bogus"}, &bytes.Buffer{}); err == nil {
		t.Error("unknown command should fail")
	}
	if err := run([]string{"analyze", example("missing.geojson")}, &bytes.Buffer{}); err == nil {
		t.Error("missing input should fail")
	}
}
