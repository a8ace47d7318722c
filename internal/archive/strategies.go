package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/samhoang/modhub/internal/config"
)

// Strategy names
const (
	StrategySevenZip = "7zip"
	StrategySystem   = "system"
	StrategyNative   = "native"
)

var sevenZipBinaries = []string{"7zz", "7z", "7za"}

// DefaultStrategies returns the platform extraction chain:
// 7-Zip, then the system tools, then the in-process extractor.
// Strategies named in cfg.Disable are left out.
func DefaultStrategies(cfg config.ExtractConfig) []Strategy {
	all := []Strategy{
		SevenZipStrategy(cfg.SevenZipPath),
		SystemStrategy(runtime.GOOS),
		NativeStrategy(),
	}

	disabled := make(map[string]bool, len(cfg.Disable))
	for _, name := range cfg.Disable {
		disabled[name] = true
	}

	var out []Strategy
	for _, s := range all {
		if !disabled[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// SevenZipStrategy shells out to a 7-Zip binary. binPath may be empty, in
// which case 7zz, 7z and 7za are looked up on PATH.
func SevenZipStrategy(binPath string) Strategy {
	return Strategy{
		Name: StrategySevenZip,
		// 7-Zip only peels the outer compression layer of a tarball.
		Supports: func(f Family) bool {
			return f == Zip || f == SevenZip || f == Rar || f == Tar
		},
		Run: func(ctx context.Context, archivePath, targetDir string) error {
			bin, err := findSevenZip(binPath)
			if err != nil {
				return err
			}
			return runTool(ctx, bin, "x", "-y", "-o"+targetDir, archivePath)
		},
	}
}

// FindSevenZip returns the 7-Zip binary the 7zip strategy would run
func FindSevenZip(binPath string) (string, error) {
	return findSevenZip(binPath)
}

func findSevenZip(binPath string) (string, error) {
	if binPath != "" {
		if _, err := os.Stat(binPath); err != nil {
			return "", fmt.Errorf("configured 7-zip binary: %w", err)
		}
		return binPath, nil
	}
	for _, name := range sevenZipBinaries {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("7-zip not found on PATH (tried %s)", strings.Join(sevenZipBinaries, ", "))
}

// SystemStrategy uses the platform's archive utilities. goos selects the
// tool set: Linux uses unzip for zip files, while macOS and Windows ship a
// libarchive-based tar that reads zip, 7z and rar as well.
func SystemStrategy(goos string) Strategy {
	bsdtar := goos == "darwin" || goos == "windows"

	return Strategy{
		Name: StrategySystem,
		Supports: func(f Family) bool {
			if f.IsTar() || f == Zip {
				return true
			}
			return bsdtar && (f == SevenZip || f == Rar)
		},
		Run: func(ctx context.Context, archivePath, targetDir string) error {
			family, err := DetectFamily(archivePath)
			if err != nil {
				return err
			}
			if family == Zip && !bsdtar {
				return runTool(ctx, "unzip", "-o", "-q", archivePath, "-d", targetDir)
			}
			return runTool(ctx, "tar", "-xf", archivePath, "-C", targetDir)
		},
	}
}

// NativeStrategy extracts zip and tar families in-process
func NativeStrategy() Strategy {
	return Strategy{
		Name: StrategyNative,
		Supports: func(f Family) bool {
			return f == Zip || f.IsTar()
		},
		Run: func(ctx context.Context, archivePath, targetDir string) error {
			family, err := DetectFamily(archivePath)
			if err != nil {
				return err
			}
			return extractNative(ctx, family, archivePath, targetDir)
		},
	}
}

func runTool(ctx context.Context, name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not available: %w", name, err)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, lastLine(msg))
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
