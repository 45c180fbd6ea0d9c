package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenario = `
name: contacts
timing: 0
passthrough: ["https://cdn.example.com/**"]
models:
  - name: contact
    attributes:
      name: {type: string, required: true}
resources:
  - name: contacts
routes:
  - method: GET
    path: /status
    timing: 10ms
    response:
      body: {ok: true}
fixtures:
  contacts:
    - {name: Shiek}
`

// syncBuffer is a bytes.Buffer safe for a concurrently running command.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "mirage dev (commit none, built unknown)\n", out)
}

func TestValidate(t *testing.T) {
	path := writeScenario(t, scenario)
	out, err := run(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid: 1 models, 7 routes, 1 fixtures")

	bad := writeScenario(t, `
resources:
  - name: widgets
fixtures:
  gadgets: [{}]
`)
	_, err = run(t, "validate", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widget")

	_, err = run(t, "validate")
	assert.Error(t, err)
}

func TestRoutes(t *testing.T) {
	path := writeScenario(t, scenario)

	out, err := run(t, "routes", path)
	require.NoError(t, err)
	assert.Contains(t, out, "METHOD")
	assert.Regexp(t, regexp.MustCompile(`GET\s+/status\s+custom\s+10ms`), out)
	assert.Regexp(t, regexp.MustCompile(`DELETE\s+/contacts/:id\s+contact#delete`), out)
	assert.Contains(t, out, "https://cdn.example.com/**")

	out, err = run(t, "routes", path, "--json")
	require.NoError(t, err)
	var rows []routeRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 7)
	assert.Equal(t, "/status", rows[0].Path)
}

func TestOpenAPI(t *testing.T) {
	path := writeScenario(t, scenario)

	out, err := run(t, "openapi", path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "contacts", doc["info"].(map[string]any)["title"])

	target := filepath.Join(t.TempDir(), "openapi.yaml")
	out, err = run(t, "openapi", path, "--format", "yaml", "-o", target, "--title", "Contacts API")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "title: Contacts API")

	_, err = run(t, "openapi", path, "--format", "xml")
	assert.Error(t, err)
}

func TestSettings_EnvAndFlags(t *testing.T) {
	t.Setenv("MIRAGE_PORT", "9999")
	t.Setenv("MIRAGE_SCENARIO", "from-env.yaml")
	t.Setenv("MIRAGE_LOG_LEVEL", "debug")

	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "1234"}))
	s, err := loadSettings(cmd)
	require.NoError(t, err)

	assert.Equal(t, 1234, s.Port)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, defaultHost, s.Host)
	path, err := s.scenarioPath(nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env.yaml", path)
	path, err = s.scenarioPath([]string{"arg.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "arg.yaml", path)
}

func TestServe(t *testing.T) {
	path := writeScenario(t, scenario)
	logFile := filepath.Join(t.TempDir(), "mirage.log")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	cmd := NewRootCommand()
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"serve", path, "--port", "0", "--log-file", logFile, "--log-level", "debug"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	addrPattern := regexp.MustCompile(`listening on (http://\S+)`)
	var base string
	require.Eventually(t, func() bool {
		m := addrPattern.FindStringSubmatch(out.String())
		if m == nil {
			return false
		}
		base = m[1]
		return true
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get(base + "/contacts/1")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Shiek")

	resp, err = http.Get(base + "/__mirage/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}

	logs, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(logs), `"msg":"server started"`))
}

func TestServe_Errors(t *testing.T) {
	t.Setenv("MIRAGE_SCENARIO", "")

	_, err := run(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenario given")

	path := writeScenario(t, scenario)
	_, err = run(t, "serve", path, "--timing", "soon", "--port", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --timing")
}

func TestServe_InvalidLogLevel(t *testing.T) {
	path := writeScenario(t, scenario)
	_, err := run(t, "serve", path, "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}
