package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samhoang/modhub/internal/archive"
	"github.com/samhoang/modhub/internal/config"
	"github.com/samhoang/modhub/internal/conflict"
	"github.com/samhoang/modhub/internal/download"
	"github.com/samhoang/modhub/internal/events"
	"github.com/samhoang/modhub/internal/hub"
	"github.com/samhoang/modhub/internal/ingest"
	"github.com/samhoang/modhub/internal/logging"
)

type fixture struct {
	api   *Server
	srv   *httptest.Server
	files *httptest.Server
	paths *config.Paths
}

func modZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("MyMod/fighter/mario/model.numatb")
	require.NoError(t, err)
	_, err = w.Write([]byte("model"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	payload := modZip(t)
	return newFixtureWithFiles(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	})
}

func newFixtureWithFiles(t *testing.T, serveFile http.HandlerFunc) *fixture {
	t.Helper()
	files := httptest.NewServer(serveFile)
	t.Cleanup(files.Close)

	dir := t.TempDir()
	paths := config.NewPaths(filepath.Join(dir, "data"), filepath.Join(dir, "mods"))
	logger := logging.Discard()
	bus := events.NewBus()

	svc := ingest.NewService(paths,
		ingest.WithEmitter(bus),
		ingest.WithLogger(logger),
		ingest.WithDownloader(download.NewManager(download.WithEmitter(bus), download.WithLogger(logger))),
		ingest.WithExtractor(archive.NewExtractor([]archive.Strategy{archive.NativeStrategy()}, archive.WithLogger(logger))),
	)
	api := New(svc, hub.NewStore(paths), conflict.NewDetector(conflict.WithLogger(logger)), bus,
		WithLogger(logger),
		WithWhitelist([]string{"shared/"}),
	)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		srv.Close()
		api.Close()
		bus.Close()
	})
	return &fixture{api: api, srv: srv, files: files, paths: paths}
}

func (f *fixture) postLink(t *testing.T, link string) (*http.Response, linkResponse) {
	t.Helper()
	body, _ := json.Marshal(linkRequest{Link: link})
	resp, err := http.Post(f.srv.URL+"/api/v1/links", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out linkResponse
	if resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return f.api.clientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, want events.Type) []events.Event {
	t.Helper()
	var seen []events.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var evt events.Event
		require.NoError(t, json.Unmarshal(data, &evt))
		seen = append(seen, evt)
		if evt.Type == want {
			return seen
		}
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.True(t, NewClient(f.srv.URL).Ping(context.Background()))
	assert.False(t, NewClient("127.0.0.1:1").Ping(context.Background()))
}

func TestSubmitLink(t *testing.T) {
	f := newFixture(t)
	link := "modhub:" + f.files.URL + "/mod.zip"

	resp, out := f.postLink(t, link)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotNil(t, out.Install)
	assert.Equal(t, ingest.StateAwaitingConfirmation, out.Install.State)

	resp, out = f.postLink(t, link)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Duplicate)
	assert.Nil(t, out.Install)

	resp, _ = f.postLink(t, "modhub:garbage")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAndListInstalls(t *testing.T) {
	f := newFixture(t)
	_, out := f.postLink(t, "modhub:"+f.files.URL+"/mod.zip")
	require.NotNil(t, out.Install)

	resp, err := http.Get(f.srv.URL + "/api/v1/installs/" + out.Install.ID)
	require.NoError(t, err)
	var got ingest.PendingInstall
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, out.Install.ID, got.ID)

	resp, err = http.Get(f.srv.URL + "/api/v1/installs")
	require.NoError(t, err)
	var list []ingest.PendingInstall
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Len(t, list, 1)

	resp, err = http.Get(f.srv.URL + "/api/v1/installs/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfirmStreamsEventsAndInstalls(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	client := NewClient(f.srv.URL)

	pending, err := client.SubmitLink(context.Background(), "modhub:"+f.files.URL+"/mod.zip")
	require.NoError(t, err)
	require.NotNil(t, pending)

	first := readUntil(t, conn, events.ConfirmationRequest)
	assert.Equal(t, pending.ID, first[len(first)-1].ID)

	require.NoError(t, client.Confirm(context.Background(), pending.ID))
	seen := readUntil(t, conn, events.Success)
	final := seen[len(seen)-1]
	assert.Equal(t, "MyMod", final.PackageName)
	assert.False(t, final.Time.IsZero())

	resp, err := http.Get(f.srv.URL + "/api/v1/packages")
	require.NoError(t, err)
	var pkgs []hub.Package
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pkgs))
	resp.Body.Close()
	require.Len(t, pkgs, 1)
	assert.Equal(t, "MyMod", pkgs[0].Name)

	err = client.Confirm(context.Background(), pending.ID)
	assert.Error(t, err, "finished installs leave the registry")
}

func TestConfirmTwiceConflicts(t *testing.T) {
	payload := modZip(t)
	release := make(chan struct{})
	f := newFixtureWithFiles(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write(payload)
	})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	_, out := f.postLink(t, "modhub:"+f.files.URL+"/mod.zip")
	require.NotNil(t, out.Install)
	confirmURL := f.srv.URL + "/api/v1/installs/" + out.Install.ID + "/confirm"

	resp, err := http.Post(confirmURL, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Post(confirmURL, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	unblock()
	require.Eventually(t, func() bool {
		return len(f.api.ingest.List()) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.DirExists(t, f.paths.PackagePath("MyMod"))
}

func TestCancelEndpoint(t *testing.T) {
	f := newFixture(t)
	_, out := f.postLink(t, "modhub:"+f.files.URL+"/mod.zip")
	require.NotNil(t, out.Install)

	resp, err := http.Post(f.srv.URL+"/api/v1/installs/"+out.Install.ID+"/cancel", "application/json", nil)
	require.NoError(t, err)
	var res download.CancelResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	assert.True(t, res.Success)

	resp, err = http.Post(f.srv.URL+"/api/v1/installs/"+out.Install.ID+"/cancel", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", res.Error)
}

func TestConflictsEndpoint(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"A", "B"} {
		for _, rel := range []string{"fighter/mario/model.numatb", "shared/common.bin"} {
			p := filepath.Join(f.paths.PackagePath(name), filepath.FromSlash(rel))
			require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
			require.NoError(t, os.WriteFile(p, []byte(name), 0644))
		}
	}

	get := func(query string) []conflict.Conflict {
		resp, err := http.Get(f.srv.URL + "/api/v1/conflicts" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out []conflict.Conflict
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	all := get("")
	require.Len(t, all, 1)
	assert.Equal(t, "fighter/mario/model.numatb", all[0].FilePath)
	assert.Equal(t, "A", all[0].Owners[0].PackageName)

	assert.Empty(t, get("?whitelist=fighter/"))
}
