package preview

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/contentforge/internal/buildlog"
	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/metrics"
)

func siteRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.html":       "<html><body>home</body></html>",
		"about.html":       "<html><body>about</body></html>",
		"blog/index.html":  "<html><body>blog</body></html>",
		"assets/css/a.css": "body{}",
		"sitemap.xml":      "<urlset></urlset>",
	}
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
	return root
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_StaticFiles(t *testing.T) {
	h := NewServer(siteRoot(t), 0).Handler()

	tests := []struct {
		target string
		status int
		body   string
	}{
		{"/", http.StatusOK, "<html><body>home</body></html>"},
		{"/about.html", http.StatusOK, "<html><body>about</body></html>"},
		{"/about", http.StatusOK, "<html><body>about</body></html>"},
		{"/blog/", http.StatusOK, "<html><body>blog</body></html>"},
		{"/blog", http.StatusOK, "<html><body>blog</body></html>"},
		{"/assets/css/a.css", http.StatusOK, "body{}"},
		{"/missing.html", http.StatusNotFound, ""},
		{"/blog/missing", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	h := NewServer(siteRoot(t), 0).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_InjectsScriptWithHub(t *testing.T) {
	h := NewServer(siteRoot(t), 0, WithHub(NewHub(nil))).Handler()

	rec := get(t, h, "/about.html")
	assert.Equal(t, "<html><body>about"+scriptTag+"</body></html>", rec.Body.String())
	assert.Equal(t, strconv.Itoa(rec.Body.Len()), rec.Header().Get("Content-Length"))

	assert.Equal(t, "body{}", get(t, h, "/assets/css/a.css").Body.String())

	js := get(t, h, ScriptPath)
	assert.Equal(t, http.StatusOK, js.Code)
	assert.Contains(t, js.Body.String(), "EventSource('"+ReloadPath+"')")
}

func TestServer_NoReloadRoutesWithoutHub(t *testing.T) {
	h := NewServer(siteRoot(t), 0).Handler()
	assert.Equal(t, http.StatusNotFound, get(t, h, ScriptPath).Code)
	assert.Equal(t, "<html><body>about</body></html>", get(t, h, "/about.html").Body.String())
}

func TestServer_Metrics(t *testing.T) {
	reg := prom.NewRegistry()
	metrics.NewPrometheusRecorder(reg).IncRebuildTrigger()
	h := NewServer(siteRoot(t), 0, WithMetrics(reg)).Handler()

	rec := get(t, h, MetricsPath)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "contentforge_rebuild_triggers_total")
}

type fakeHistory struct {
	records []buildlog.Record
	err     error
	gotN    int
}

func (f *fakeHistory) Recent(_ context.Context, n int) ([]buildlog.Record, error) {
	f.gotN = n
	return f.records, f.err
}

func TestServer_Builds(t *testing.T) {
	hist := &fakeHistory{records: []buildlog.Record{{ID: "b2", Status: buildlog.StatusSuccess, Pages: 3}}}
	h := NewServer(siteRoot(t), 0, WithHistory(hist)).Handler()

	rec := get(t, h, BuildsPath+"?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, hist.gotN)

	var body struct {
		Builds []buildlog.Record `json:"builds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Builds, 1)
	assert.Equal(t, "b2", body.Builds[0].ID)
	assert.Equal(t, 3, body.Builds[0].Pages)

	get(t, h, BuildsPath+"?limit=100000")
	assert.Equal(t, maxBuildsLimit, hist.gotN)

	assert.Equal(t, http.StatusBadRequest, get(t, h, BuildsPath+"?limit=abc").Code)
}

func TestServer_BuildsStoreError(t *testing.T) {
	hist := &fakeHistory{err: errors.HistoryError("database locked").Build()}
	h := NewServer(siteRoot(t), 0, WithHistory(hist)).Handler()

	rec := get(t, h, BuildsPath)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, defaultBuildsLimit, hist.gotN)
}

func TestServer_RecoversFromPanics(t *testing.T) {
	s := NewServer(siteRoot(t), 0)
	h := chain(s.logger, errors.NewHTTPErrorAdapter(s.logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := get(t, h, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestServer_StartStop(t *testing.T) {
	hub := NewHub(nil)
	s := NewServer(siteRoot(t), 0, WithHost("127.0.0.1"), WithHub(hub))
	require.NoError(t, s.Start(t.Context()))
	assert.NotZero(t, s.Port())

	resp, err := http.Get("http://" + s.Addr() + "/about.html")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), scriptTag)

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))

	select {
	case _, open := <-s.Done():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	s := NewServer(t.TempDir(), port, WithHost("127.0.0.1"))
	err = s.Start(t.Context())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryServer))

	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.True(t, ce.IsFatal())
	got, _ := ce.Context().Get("port")
	assert.Equal(t, port, got)
}
