package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/treebark/internal/config"
	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/internal/watcher"
)

func testConfig(root string) *config.Config {
	return &config.Config{
		Render:  config.RenderConfig{MaxDepth: config.DefaultMaxDepth},
		Server:  config.ServerConfig{Host: "localhost", Port: 0, Root: root},
		Watch:   config.WatchConfig{Debounce: 20 * time.Millisecond},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func quietLogger() logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelError, Output: io.Discard})
}

// newTestServer starts the hub and an httptest server over the handler.
func newTestServer(t *testing.T, cfg *config.Config) (*PreviewServer, *httptest.Server) {
	t.Helper()

	s, err := New(cfg, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go s.runWebSocketHub(ctx)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		_ = s.Shutdown(context.Background())
	})

	return s, ts
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func postRender(t *testing.T, ts *httptest.Server, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/render", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t.TempDir()))

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "'nonce-")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
	assert.EqualValues(t, 0, health["clients"])
}

func TestRenderAPI(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t.TempDir()))

	tests := []struct {
		name      string
		body      string
		wantHTML  string
		wantCodes []string
	}{
		{
			name:     "interpolation is escaped",
			body:     `{"template": {"div": {"class": "x", "$children": ["Hi {{name}}"]}}, "data": {"name": "<b>"}}`,
			wantHTML: `<div class="x">Hi &lt;b&gt;</div>`,
		},
		{
			name:     "attribute order follows the request",
			body:     `{"template": {"a": {"title": "t", "href": "/x", "$children": ["go"]}}}`,
			wantHTML: `<a title="t" href="/x">go</a>`,
		},
		{
			name:      "blocked tag is reported",
			body:      `{"template": {"script": "alert(1)"}}`,
			wantHTML:  "",
			wantCodes: []string{"ERR_TAG_NOT_ALLOWED"},
		},
		{
			name:     "indent from request",
			body:     `{"template": {"ul": [{"li": "a"}]}, "indent": 2}`,
			wantHTML: "<ul>\n  <li>a</li>\n</ul>",
		},
		{
			name:     "yaml body",
			body:     "template:\n  p: \"{{n}}\"\ndata:\n  n: 3\n",
			wantHTML: "<p>3</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postRender(t, ts, tt.body, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var out RenderResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, tt.wantHTML, out.HTML)

			var codes []string
			for _, d := range out.Diagnostics {
				codes = append(codes, d.Code)
			}
			assert.Equal(t, tt.wantCodes, codes)
		})
	}
}

func TestRenderAPIDiagnosticFields(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t.TempDir()))

	resp := postRender(t, ts, `{"template": {"a": {"href": "javascript:x", "$children": ["c"]}}}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out RenderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "<a>c</a>", out.HTML)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, "warn", out.Diagnostics[0].Level)
	assert.Equal(t, "ERR_URL_BLOCKED", out.Diagnostics[0].Code)
	assert.Equal(t, "a", out.Diagnostics[0].Tag)
	assert.Equal(t, "href", out.Diagnostics[0].Attribute)
}

func TestRenderAPIRejects(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t.TempDir()))

	tests := []struct {
		name   string
		body   string
		header http.Header
		status int
	}{
		{name: "missing template", body: `{"data": {}}`, status: http.StatusBadRequest},
		{name: "not an object", body: `[1, 2]`, status: http.StatusBadRequest},
		{name: "malformed", body: `{"template": [`, status: http.StatusBadRequest},
		{
			name:   "too large",
			body:   `{"template": "` + strings.Repeat("a", maxBodySize) + `"}`,
			status: http.StatusRequestEntityTooLarge,
		},
		{
			name:   "cross origin",
			body:   `{"template": "x"}`,
			header: http.Header{"Origin": {"http://evil.example"}},
			status: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postRender(t, ts, tt.body, tt.header)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRenderAPIAllowedOrigin(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Server.AllowedOrigins = []string{"http://editor.local:3000"}
	_, ts := newTestServer(t, cfg)

	resp := postRender(t, ts, `{"template": {"p": "ok"}}`, http.Header{"Origin": {"http://editor.local:3000"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postRender(t, ts, `{"template": {"p": "ok"}}`, http.Header{"Origin": {ts.URL}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPreview(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "page.yaml", "template:\n  h1: \"{{title}}\"\ndata:\n  title: Hello\n")
	writeFile(t, root, "broken.yaml", "div: [")
	writeFile(t, root, "warn.yaml", "a: {href: \"javascript:x\", $children: [c]}")
	writeFile(t, root, "notes.txt", "plain")

	cfg := testConfig(root)
	cfg.Render.Contain = true
	_, ts := newTestServer(t, cfg)

	get := func(path string) (int, string, http.Header) {
		resp, err := ts.Client().Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body), resp.Header
	}

	t.Run("renders inside the shell", func(t *testing.T) {
		status, body, header := get("/preview/page.yaml")
		assert.Equal(t, http.StatusOK, status)
		assert.Contains(t, header.Get("Content-Type"), "text/html")
		assert.Contains(t, body, `<div data-treebark-root="" style="contain: content; isolation: isolate"><h1>Hello</h1></div>`)
		assert.Contains(t, body, `<script nonce="`)
		assert.Contains(t, body, `var target="page.yaml"`)
		assert.NotContains(t, body, "<aside>")
	})

	t.Run("shows diagnostics", func(t *testing.T) {
		status, body, _ := get("/preview/warn.yaml")
		assert.Equal(t, http.StatusOK, status)
		assert.Contains(t, body, "<aside>")
		assert.Contains(t, body, `<li class="warn">`)
	})

	t.Run("parse error banner", func(t *testing.T) {
		status, body, _ := get("/preview/broken.yaml")
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Contains(t, body, `<div class="treebark-error"><strong>Treebark Error:</strong>`)
	})

	t.Run("missing file", func(t *testing.T) {
		status, _, _ := get("/preview/missing.yaml")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("wrong extension", func(t *testing.T) {
		status, _, _ := get("/preview/notes.txt")
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestPreviewSymlinks(t *testing.T) {
	outside := t.TempDir()
	writeFile(t, outside, "secret.json", `{"p": "secret"}`)

	root := t.TempDir()
	writeFile(t, root, "real.yaml", "p: inside")
	if err := os.Symlink(filepath.Join(outside, "secret.json"), filepath.Join(root, "leak.json")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "linked")))
	require.NoError(t, os.Symlink(filepath.Join(root, "real.yaml"), filepath.Join(root, "alias.yaml")))

	_, ts := newTestServer(t, testConfig(root))

	get := func(path string) (int, string) {
		resp, err := ts.Client().Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	for _, path := range []string{"/preview/leak.json", "/preview/linked/secret.json"} {
		status, body := get(path)
		assert.Equal(t, http.StatusNotFound, status, path)
		assert.NotContains(t, body, "secret", path)
	}

	status, body := get("/preview/alias.yaml")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "<p>inside</p>")
}

func TestIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.yaml", "p: b")
	writeFile(t, root, "nested/a.json", `{"p": "a"}`)
	writeFile(t, root, ".hidden.yaml", "p: h")
	writeFile(t, root, ".git/x.yaml", "p: g")
	writeFile(t, root, "readme.md", "# r")

	s, ts := newTestServer(t, testConfig(root))

	names, err := s.listTemplates()
	require.NoError(t, err)
	assert.Equal(t, []string{"b.yaml", "nested/a.json"}, names)

	resp, err := ts.Client().Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `<a href="/preview/nested/a.json">nested/a.json</a>`)
	assert.Contains(t, string(body), `var target=""`)
}

func TestWebSocketReload(t *testing.T) {
	root := t.TempDir()
	s, ts := newTestServer(t, testConfig(root))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": {ts.URL}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.handleFileChange([]watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, Path: filepath.Join(root, "pages", "home.yaml")},
	}))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "reload", msg.Type)
	assert.Equal(t, "pages/home.yaml", msg.Target)

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return s.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketOrigin(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Server.AllowedOrigins = []string{"http://editor.local:3000"}
	_, ts := newTestServer(t, cfg)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{name: "same host", origin: ts.URL, ok: true},
		{name: "allowed", origin: "http://editor.local:3000", ok: true},
		{name: "foreign", origin: "http://evil.example", ok: false},
		{name: "bad scheme", origin: "file://local", ok: false},
		{name: "missing", origin: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
			if tt.ok {
				require.NoError(t, err)
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	cfg.Server.Host = "127.0.0.1"

	s, err := New(cfg, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		s.serverMutex.RLock()
		defer s.serverMutex.RUnlock()
		return s.httpServer != nil
	}, 2*time.Second, 10*time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	require.NoError(t, s.Shutdown(shutdownCtx))
	require.NoError(t, s.Shutdown(shutdownCtx))

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
