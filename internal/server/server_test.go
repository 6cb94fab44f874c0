package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wesm/projectsview/internal/config"
	"github.com/wesm/projectsview/internal/correlate"
	"github.com/wesm/projectsview/internal/parser"
	"github.com/wesm/projectsview/internal/server"
	"github.com/wesm/projectsview/internal/testexport"
)

// testEnv is a server over an archive written to a temp dir.
type testEnv struct {
	srv               *server.Server
	handler           http.Handler
	projectsPath      string
	conversationsPath string
}

type setupOption func(*config.Config)

func withWriteTimeout(d time.Duration) setupOption {
	return func(c *config.Config) { c.WriteTimeout = d }
}

func withPolicy(p string) setupOption {
	return func(c *config.Config) { c.BranchPolicy = p }
}

func sampleConversations() []*testexport.ConversationBuilder {
	branch := testexport.NewMappingBuilder("root").
		Add("q", "root", "user", "question").
		Add("a1", "q", "assistant", "first answer").
		Add("a2", "q", "assistant", "second answer")
	return []*testexport.ConversationBuilder{
		testexport.NewConversation("c1").Gizmo("g-p-1", "").
			Times(100, 200).Mapping(testexport.Linear("hi", "hello")),
		testexport.NewConversation("c2").Gizmo("g-p-1", "").
			Times(150, 300).Mapping(branch),
		testexport.NewConversation("c3").Gizmo("g-p-2", ""),
		testexport.NewConversation("gpt").Set("gizmo_type", "gpt").
			Times(1, 10),
		testexport.NewConversation("plain").Times(1, 20),
		testexport.NewConversation("orphan").Gizmo("g-p-deadbeef", ""),
	}
}

func sampleProjects() []map[string]any {
	return []map[string]any{
		testexport.ProjectJSON("g-p-1", "Health"),
		testexport.ProjectJSON("g-p-2", "Health Research"),
	}
}

func writeArchive(
	t *testing.T, dir string,
	projects []map[string]any, convs []*testexport.ConversationBuilder,
) (string, string) {
	t.Helper()
	pp := filepath.Join(dir, "projects.json")
	cp := filepath.Join(dir, "conversations.json")
	require.NoError(t, os.WriteFile(
		pp, []byte(testexport.ProjectsDocument(projects...)), 0o644,
	))
	require.NoError(t, os.WriteFile(
		cp, []byte(testexport.ConversationsDocument(convs...)), 0o644,
	))
	return pp, cp
}

func setup(t *testing.T, opts ...setupOption) *testEnv {
	t.Helper()
	return setupWithServerOpts(t, nil, opts...)
}

func setupWithServerOpts(
	t *testing.T, srvOpts []server.Option, opts ...setupOption,
) *testEnv {
	t.Helper()
	dir := t.TempDir()
	pp, cp := writeArchive(t, dir, sampleProjects(), sampleConversations())

	cfg := config.Config{
		ProjectsFile:      pp,
		ConversationsFile: cp,
		BranchPolicy:      "all",
		Host:              "127.0.0.1",
		Port:              0,
		Workers:           2,
		DataDir:           dir,
		WriteTimeout:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	load := func() (*correlate.Engine, error) {
		a, err := parser.LoadArchive(cfg.ProjectsFile, cfg.ConversationsFile)
		if err != nil {
			return nil, err
		}
		return correlate.FromArchive(a), nil
	}
	engine, err := load()
	require.NoError(t, err)

	srvOpts = append([]server.Option{server.WithLoader(load)}, srvOpts...)
	srv := server.New(cfg, engine, srvOpts...)
	return &testEnv{
		srv:               srv,
		handler:           srv.Handler(),
		projectsPath:      pp,
		conversationsPath: cp,
	}
}

func (te *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	te.handler.ServeHTTP(w, req)
	return w
}

func (te *testEnv) get(t *testing.T, path string) (int, gjson.Result) {
	t.Helper()
	w := te.do(t, http.MethodGet, path)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	return w.Code, gjson.ParseBytes(w.Body.Bytes())
}

func idsOf(r gjson.Result) []string {
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.Get("id").String())
		return true
	})
	return out
}

func TestHealth(t *testing.T) {
	te := setup(t)
	code, body := te.get(t, "/api/v1/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Get("status").String())
	assert.True(t, body.Get("loaded").Bool())
	assert.Equal(t, int64(2), body.Get("projects").Int())
	assert.Equal(t, int64(6), body.Get("conversations").Int())
}

func TestHealthNotLoaded(t *testing.T) {
	srv := server.New(config.Config{WriteTimeout: time.Second}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "loaded").Bool())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListProjects(t *testing.T) {
	te := setup(t)
	code, body := te.get(t, "/api/v1/projects")
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, "g-p-1", body.Get("projects.0.project_id").String())
	assert.Equal(t, int64(2), body.Get("projects.0.conversation_count").Int())
	assert.Equal(t, "100", body.Get("projects.0.first_activity").Raw)
	assert.Equal(t, "300", body.Get("projects.0.last_activity").Raw)
	assert.Equal(t, "null", body.Get("projects.1.last_activity").Raw)
	assert.Equal(t, int64(4), body.Get("totals.project_conversations").Int())
	assert.Equal(t, int64(2), body.Get("totals.non_project_conversations").Int())
}

func TestGetProject(t *testing.T) {
	te := setup(t)
	code, body := te.get(t, "/api/v1/projects/health")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "g-p-1", body.Get("project.project_id").String())
	assert.Equal(t, []string{"c2", "c1"}, idsOf(body.Get("conversations")))
	assert.Equal(t, int64(3), body.Get("conversations.0.messages.#").Int())
}

func TestGetProjectEscapedName(t *testing.T) {
	te := setup(t)
	code, body := te.get(t, "/api/v1/projects/Health%20Research")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "g-p-2", body.Get("project.project_id").String())
}

func TestGetProjectNotFound(t *testing.T) {
	te := setup(t)
	code, body := te.get(t, "/api/v1/projects/gardening")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body.Get("error").String(), "gardening")
	assert.Equal(t, int64(2), body.Get("total").Int())
	assert.Equal(t, "Health", body.Get("candidates.0.name").String())
	assert.Equal(t, "g-p-2", body.Get("candidates.1.project_id").String())
}

func TestExport(t *testing.T) {
	te := setup(t)
	code, body := te.get(t, "/api/v1/export")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(6), body.Get("summary.total_conversations").Int())
	assert.False(t, body.Get("projects.0.conversations.0.messages").Exists())
	assert.Equal(t, "g-p-deadbeef", body.Get(
		"orphaned_project_conversations.conversations.0.gizmo_id",
	).String())

	code, body = te.get(t, "/api/v1/export?messages=true")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Get("projects.0.conversations.0.messages").IsArray())
}

func TestExportBadParam(t *testing.T) {
	te := setup(t)
	code, body := te.get(t, "/api/v1/export?messages=maybe")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body.Get("error").String(), "messages")
}

func TestNonProject(t *testing.T) {
	te := setup(t)
	code, body := te.get(t, "/api/v1/non-project")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2),
		body.Get("summary.total_non_project_conversations").Int())
	assert.Equal(t, []string{"gpt"},
		idsOf(body.Get("custom_gpt_conversations.conversations")))
	assert.Equal(t, []string{"plain"},
		idsOf(body.Get("regular_conversations.conversations")))
}

func TestGetMessages(t *testing.T) {
	tests := []struct {
		name     string
		opts     []setupOption
		query    string
		want     []string
		wantCode int
	}{
		{
			name: "DefaultAll", query: "",
			want:     []string{"question", "first answer", "second answer"},
			wantCode: http.StatusOK,
		},
		{
			name: "QueryLatest", query: "?policy=latest",
			want:     []string{"question", "second answer"},
			wantCode: http.StatusOK,
		},
		{
			name: "ConfiguredLatest", opts: []setupOption{withPolicy("latest")},
			want:     []string{"question", "second answer"},
			wantCode: http.StatusOK,
		},
		{
			name: "BadPolicy", query: "?policy=oldest",
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := setup(t, tt.opts...)
			code, body := te.get(t, "/api/v1/conversations/c2/messages"+tt.query)
			require.Equal(t, tt.wantCode, code)
			if tt.wantCode != http.StatusOK {
				return
			}
			var got []string
			body.Get("messages").ForEach(func(_, m gjson.Result) bool {
				got = append(got, m.Get("content").String())
				return true
			})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int64(len(tt.want)), body.Get("count").Int())
		})
	}
}

func TestGetMessagesUnknownConversation(t *testing.T) {
	te := setup(t)
	code, _ := te.get(t, "/api/v1/conversations/nope/messages")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGetMessagesEmptyIsArray(t *testing.T) {
	te := setup(t)
	code, body := te.get(t, "/api/v1/conversations/c3/messages")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "[]", body.Get("messages").Raw)
}

func TestUnknownRoute(t *testing.T) {
	te := setup(t)
	code, body := te.get(t, "/api/v1/nothing")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not found", body.Get("error").String())
}

func TestCORSPreflight(t *testing.T) {
	te := setup(t)
	w := te.do(t, http.MethodOptions, "/api/v1/projects")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestReloadPicksUpChanges(t *testing.T) {
	te := setup(t)
	writeArchive(t, filepath.Dir(te.projectsPath),
		append(sampleProjects(), testexport.ProjectJSON("g-p-3", "New")),
		sampleConversations(),
	)

	w := te.do(t, http.MethodPost, "/api/v1/reload")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), gjson.Get(w.Body.String(), "projects").Int())

	code, body := te.get(t, "/api/v1/health")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(3), body.Get("projects").Int())
}

func TestReloadFailureKeepsArchive(t *testing.T) {
	te := setup(t)
	require.NoError(t, os.WriteFile(te.conversationsPath, []byte("{broken"), 0o644))

	err := te.srv.Reload()
	require.Error(t, err)

	code, body := te.get(t, "/api/v1/health")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(6), body.Get("conversations").Int())
}

func TestReloadWithoutLoader(t *testing.T) {
	srv := server.New(config.Config{}, correlate.NewEngine(nil, nil))
	assert.True(t, errors.Is(srv.Reload(), server.ErrNotLoaded))
}

func TestWriteTimeout(t *testing.T) {
	te := setupWithServerOpts(t,
		[]server.Option{server.WithHandlerDelay(200 * time.Millisecond)},
		withWriteTimeout(20*time.Millisecond),
	)
	code, body := te.get(t, "/api/v1/projects")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "request timed out", body.Get("error").String())
}

func TestVersion(t *testing.T) {
	te := setupWithServerOpts(t, []server.Option{
		server.WithVersion(server.VersionInfo{Version: "1.2.3"}),
	})
	code, body := te.get(t, "/api/v1/version")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1.2.3", body.Get("version").String())
}

func TestListenAndServe(t *testing.T) {
	te := setup(t)
	port := server.FindAvailablePort("127.0.0.1", 40000)
	te.srv.SetPort(port)

	done := make(chan error, 1)
	go func() { done <- te.srv.ListenAndServe() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = te.srv.Shutdown(ctx)
		<-done
	})

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get(url)
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 5*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
}

func TestSetPortDuringRequests(t *testing.T) {
	te := setup(t)
	var wg sync.WaitGroup
	wg.Go(func() {
		for port := range 50 {
			te.srv.SetPort(41000 + port)
		}
	})
	for range 4 {
		wg.Go(func() {
			for range 10 {
				w := te.do(t, http.MethodGet,
					"/api/v1/conversations/c2/messages")
				assert.Equal(t, http.StatusOK, w.Code)
				assert.Equal(t, "all",
					gjson.GetBytes(w.Body.Bytes(), "policy").String())
			}
		})
	}
	wg.Wait()
}
