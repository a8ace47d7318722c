package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/samhoang/modhub/internal/config"
	errs "github.com/samhoang/modhub/internal/errors"
)

var sampleFiles = map[string]string{
	"my_mod/fighter/mario/model.numatb": "model",
	"my_mod/info.toml":                  "display_name = \"Mario\"\n",
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func tarBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(tarBytes(t, files))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func writeTarXz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write(tarBytes(t, files))
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func assertSampleExtracted(t *testing.T, dir string) {
	t.Helper()
	for name, body := range sampleFiles {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		require.NoError(t, err, name)
		assert.Equal(t, body, string(data))
	}
}

func TestNativeStrategyFormats(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		write func(*testing.T, string, map[string]string)
	}{
		{"zip", "mod.zip", writeZip},
		{"tar.gz", "mod.tar.gz", writeTarGz},
		{"tar.xz", "mod.tar.xz", writeTarXz},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			archivePath := filepath.Join(dir, tt.file)
			tt.write(t, archivePath, sampleFiles)

			target := filepath.Join(dir, "out")
			e := NewExtractor([]Strategy{NativeStrategy()})
			require.NoError(t, e.Extract(context.Background(), archivePath, target))
			assertSampleExtracted(t, target)
		})
	}
}

func TestNativeRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")
	writeZip(t, archivePath, map[string]string{"../escape.txt": "x"})

	e := NewExtractor([]Strategy{NativeStrategy()})
	err := e.Extract(context.Background(), archivePath, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrExtractionFailed))

	_, statErr := os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func failing(name string, calls *[]string) Strategy {
	return Strategy{
		Name: name,
		Run: func(ctx context.Context, archivePath, targetDir string) error {
			*calls = append(*calls, name)
			return errors.New(name + " broke")
		},
	}
}

func TestExtractFallsBackInOrder(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "mod.zip")
	writeZip(t, archivePath, sampleFiles)

	var calls []string
	recordingNative := NativeStrategy()
	run := recordingNative.Run
	recordingNative.Run = func(ctx context.Context, a, d string) error {
		calls = append(calls, "native")
		return run(ctx, a, d)
	}

	e := NewExtractor([]Strategy{failing("first", &calls), failing("second", &calls), recordingNative})
	target := filepath.Join(dir, "out")
	require.NoError(t, e.Extract(context.Background(), archivePath, target))

	assert.Equal(t, []string{"first", "second", "native"}, calls)
	assertSampleExtracted(t, target)
}

func TestExtractStopsAtFirstSuccess(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "mod.zip")
	writeZip(t, archivePath, sampleFiles)

	var calls []string
	e := NewExtractor([]Strategy{NativeStrategy(), failing("never", &calls)})
	require.NoError(t, e.Extract(context.Background(), archivePath, filepath.Join(dir, "out")))
	assert.Empty(t, calls)
}

func TestExtractAllFail(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "mod.zip")
	writeZip(t, archivePath, sampleFiles)

	var calls []string
	e := NewExtractor([]Strategy{failing("a", &calls), failing("b", &calls)})
	err := e.Extract(context.Background(), archivePath, filepath.Join(dir, "out"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrExtractionFailed))

	var extractErr *errs.ExtractionError
	require.True(t, errors.As(err, &extractErr))
	require.Len(t, extractErr.Attempts, 2)
	assert.Equal(t, "a", extractErr.Attempts[0].Strategy)
	assert.Equal(t, "b", extractErr.Attempts[1].Strategy)
}

func TestExtractRejectsEmptySuccess(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "mod.zip")
	writeZip(t, archivePath, sampleFiles)

	silent := Strategy{
		Name: "silent",
		Run:  func(ctx context.Context, a, d string) error { return nil },
	}

	e := NewExtractor([]Strategy{silent})
	err := e.Extract(context.Background(), archivePath, filepath.Join(dir, "out"))

	var extractErr *errs.ExtractionError
	require.True(t, errors.As(err, &extractErr))
	require.Len(t, extractErr.Attempts, 1)
	assert.True(t, errors.Is(extractErr.Attempts[0].Err, errs.ErrNoFilesAfterExtraction))

	e = NewExtractor([]Strategy{silent, NativeStrategy()})
	require.NoError(t, e.Extract(context.Background(), archivePath, filepath.Join(dir, "out")))
}

func TestExtractSkipsUnsupportedStrategies(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "mod.tar.gz")
	writeTarGz(t, archivePath, sampleFiles)

	var calls []string
	zipOnly := failing("zip-only", &calls)
	zipOnly.Supports = func(f Family) bool { return f == Zip }

	e := NewExtractor([]Strategy{zipOnly, NativeStrategy()})
	require.NoError(t, e.Extract(context.Background(), archivePath, filepath.Join(dir, "out")))
	assert.Empty(t, calls)
}

func TestDefaultStrategiesOrderAndDisable(t *testing.T) {
	all := NewExtractor(DefaultStrategies(config.ExtractConfig{}))
	assert.Equal(t, []string{StrategySevenZip, StrategySystem, StrategyNative}, all.Strategies())

	some := NewExtractor(DefaultStrategies(config.ExtractConfig{Disable: []string{StrategySevenZip}}))
	assert.Equal(t, []string{StrategySystem, StrategyNative}, some.Strategies())
}

func TestSystemStrategySupport(t *testing.T) {
	linux := SystemStrategy("linux")
	assert.True(t, linux.Supports(Zip))
	assert.True(t, linux.Supports(TarXz))
	assert.False(t, linux.Supports(SevenZip))

	mac := SystemStrategy("darwin")
	assert.True(t, mac.Supports(Rar))
}
