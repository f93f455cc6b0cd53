package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	exports := filepath.Join(tmpDir, "exports")
	outside := filepath.Join(tmpDir, "outside")
	for _, d := range []string{exports, outside} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	if err := os.Symlink(outside, filepath.Join(exports, "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(exports, "lulc_2020.tif"), false},
		{"nested new file", filepath.Join(exports, "masks", "mask_water_2020.tif"), false},
		{"dot dot", filepath.Join(exports, "..", "lulc_2020.tif"), true},
		{"relative escape", "../../../etc/passwd", true},
		{"sibling", filepath.Join(outside, "x.tif"), true},
		{"through symlink", filepath.Join(exports, "link", "x.tif"), true},
		{"new file under symlink", filepath.Join(exports, "link", "new", "x.tif"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, exports)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePathWithinAllowedDirs(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	if err := ValidatePathWithinAllowedDirs(filepath.Join(b, "trend.png"), []string{a, b}); err != nil {
		t.Errorf("path in second dir rejected: %v", err)
	}
	if err := ValidatePathWithinAllowedDirs("/etc/passwd", []string{a, b}); err == nil {
		t.Error("path outside both dirs accepted")
	}
	if err := ValidatePathWithinAllowedDirs(filepath.Join(a, "x"), nil); err == nil {
		t.Error("empty allow list accepted")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Urban Area", "urban_area"},
		{"Water", "water"},
		{"../../etc", "etc"},
		{"a  / b", "a_b"},
		{"", "unknown"},
		{"___", "unknown"},
		{"v1.2-final", "v1.2-final"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := SanitizeFilename(strings.Repeat("x", 300)); len(got) != 128 {
		t.Errorf("long name has length %d, want 128", len(got))
	}
}
