package archive

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFamilyFromName(t *testing.T) {
	tests := []struct {
		name string
		want Family
	}{
		{"mod.zip", Zip},
		{"MOD.ZIP", Zip},
		{"mod.7z", SevenZip},
		{"mod.rar", Rar},
		{"mod.tar", Tar},
		{"mod.tar.gz", TarGz},
		{"mod.tgz", TarGz},
		{"mod.tar.xz", TarXz},
		{"https://files.example.com/dl/123/mod.tar.gz", TarGz},
		{"mod.bin", Unknown},
		{"mod", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FamilyFromName(tt.name); got != tt.want {
				t.Errorf("FamilyFromName(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestFamilyFromContentType(t *testing.T) {
	tests := []struct {
		ct   string
		want Family
	}{
		{"application/zip", Zip},
		{"application/x-7z-compressed", SevenZip},
		{"application/vnd.rar; charset=binary", Rar},
		{"application/gzip", TarGz},
		{"application/octet-stream", Unknown},
		{"", Unknown},
	}

	for _, tt := range tests {
		if got := FamilyFromContentType(tt.ct); got != tt.want {
			t.Errorf("FamilyFromContentType(%q) = %q, want %q", tt.ct, got, tt.want)
		}
	}
}

func TestDetectFamilyMagicBytes(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		header []byte
		want   Family
	}{
		{"zip", []byte("PK\x03\x04rest"), Zip},
		{"7z", []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C, 0, 4}, SevenZip},
		{"rar", []byte("Rar!\x1A\x07\x00"), Rar},
		{"gzip", []byte{0x1F, 0x8B, 8, 0}, TarGz},
		{"unknown", []byte("hello"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".bin")
			if err := os.WriteFile(path, tt.header, 0644); err != nil {
				t.Fatal(err)
			}
			got, err := DetectFamily(path)
			if err != nil {
				t.Fatalf("DetectFamily() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectFamily() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFamilyExt(t *testing.T) {
	if TarGz.Ext() != ".tar.gz" {
		t.Errorf("TarGz.Ext() = %q", TarGz.Ext())
	}
	if Unknown.Ext() != "" {
		t.Errorf("Unknown.Ext() = %q", Unknown.Ext())
	}
}
