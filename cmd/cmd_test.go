package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/samhoang/modhub/internal/config"
	"github.com/samhoang/modhub/internal/logging"
)

func testApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()
	paths := config.NewPaths(filepath.Join(dir, "data"), filepath.Join(dir, "mods"))
	if err := paths.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	return &app{
		cfg:      config.DefaultConfig(),
		paths:    paths,
		logger:   logging.Discard(),
		closeLog: func() error { return nil },
	}
}

func TestLoadApp(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MODHUB_DIR", dir)
	t.Setenv("MODHUB_CONTENT_ROOT", "")

	data := "whitelist = [\"sound/bank\"]\ndedupe_window = \"5s\"\n"
	if err := os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	a, err := loadApp(false)
	if err != nil {
		t.Fatalf("loadApp() error = %v", err)
	}
	defer a.closeLog()

	if !reflect.DeepEqual(a.cfg.Whitelist, []string{"sound/bank"}) {
		t.Errorf("Whitelist = %v", a.cfg.Whitelist)
	}
	if a.cfg.DedupeWindow.Seconds() != 5 {
		t.Errorf("DedupeWindow = %v, want 5s", a.cfg.DedupeWindow)
	}
	if want := filepath.Join(dir, "mods"); a.paths.ContentRoot != want {
		t.Errorf("ContentRoot = %q, want %q", a.paths.ContentRoot, want)
	}
	if a.cfg.Server.Addr == "" {
		t.Error("defaults should survive a partial config file")
	}
}

func TestLoadAppBadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MODHUB_DIR", dir)
	if err := os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte("whitelist = ["), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := loadApp(false); err == nil {
		t.Error("loadApp() should fail on malformed modhub.toml")
	}
}

func TestWriteStructured(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Whitelist = []string{"sound/bank"}

	tests := []struct {
		format string
		want   string
	}{
		{"json", `"Whitelist": [`},
		{"yaml", "dedupe_window: 3s"},
		{"toml", "dedupe_window = "},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeStructured(&buf, tt.format, cfg); err != nil {
				t.Fatalf("writeStructured() error = %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}

	if err := writeStructured(&bytes.Buffer{}, "xml", cfg); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestOpenerCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "open"},
		{"windows", "explorer"},
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
	}
	for _, tt := range tests {
		name, args := openerCommand(tt.goos, "/mods/A")
		if name != tt.want {
			t.Errorf("openerCommand(%q) = %q, want %q", tt.goos, name, tt.want)
		}
		if !reflect.DeepEqual(args, []string{"/mods/A"}) {
			t.Errorf("openerCommand(%q) args = %v", tt.goos, args)
		}
	}
}

func TestFindLeftovers(t *testing.T) {
	a := testApp(t)

	if got := findLeftovers(a.paths); len(got) != 0 {
		t.Fatalf("findLeftovers() = %v, want none", got)
	}

	for _, dir := range []string{a.paths.DownloadDir("id-1"), a.paths.StagingDir("id-2")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}

	got := findLeftovers(a.paths)
	want := []string{a.paths.DownloadDir("id-1"), a.paths.StagingDir("id-2")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("findLeftovers() = %v, want %v", got, want)
	}
}

func TestRunToggle(t *testing.T) {
	a := testApp(t)
	current = a
	t.Cleanup(func() { current = nil })

	for _, name := range []string{"A", "B"} {
		if err := os.MkdirAll(filepath.Join(a.paths.PackagePath(name), "fighter"), 0755); err != nil {
			t.Fatal(err)
		}
	}

	if err := runToggle(false, []string{"A"}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := os.Stat(a.paths.DisabledPackagePath("A")); err != nil {
		t.Errorf("A should be in the disabled directory: %v", err)
	}

	err := runToggle(true, []string{"A", "missing"})
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("enable error = %v, want one naming the missing mod", err)
	}
	if _, err := os.Stat(a.paths.PackagePath("A")); err != nil {
		t.Errorf("A should be enabled again despite the other failure: %v", err)
	}

	if err := runToggle(true, nil); err == nil {
		t.Error("no names without -i should fail")
	}
}

func TestCompletePackageNames(t *testing.T) {
	a := testApp(t)
	current = a
	t.Cleanup(func() { current = nil })

	if err := os.MkdirAll(a.paths.PackagePath("A"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(a.paths.DisabledPackagePath("B"), 0755); err != nil {
		t.Fatal(err)
	}

	all, _ := completePackageNames(false)(nil, nil, "")
	if !reflect.DeepEqual(all, []string{"A", "B"}) {
		t.Errorf("all = %v, want [A B]", all)
	}
	enabled, _ := completePackageNames(true)(nil, nil, "")
	if !reflect.DeepEqual(enabled, []string{"A"}) {
		t.Errorf("enabled = %v, want [A]", enabled)
	}
}

func TestWriteCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeCompletion(&buf, rootCmd, shell, true); err != nil {
				t.Fatalf("writeCompletion(%q) error = %v", shell, err)
			}
			if !strings.Contains(buf.String(), "modhub") {
				t.Errorf("%s script does not mention modhub", shell)
			}
		})
	}

	if err := writeCompletion(&bytes.Buffer{}, rootCmd, "tcsh", true); err == nil {
		t.Error("unsupported shell should fail")
	}
}
