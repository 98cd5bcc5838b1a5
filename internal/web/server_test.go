package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/closeplan/internal/agent"
	"github.com/JonMunkholm/closeplan/internal/channel"
	"github.com/JonMunkholm/closeplan/internal/config"
	"github.com/JonMunkholm/closeplan/internal/core"
	"github.com/JonMunkholm/closeplan/internal/core/profiles"
	"github.com/JonMunkholm/closeplan/internal/sheet"
)

const taskHeader = "Workstream,Task,Category,Type,Status,Start Date,End Date,ACN Owner,Client Owner,Comments\n"

const validTaskRow = "Tax,Accruals,Task,Close,Not Started,2024-01-02,2024-01-05,Jane Doe,Bob Roe,first\n"

type fakeDirectory struct {
	result core.ResolutionMap
	err    error
}

func (f *fakeDirectory) ResolveOwners(context.Context, core.OwnerQuery) (core.ResolutionMap, error) {
	return f.result, f.err
}

type fakeSaver struct {
	mu    sync.Mutex
	saved []core.Payload
	err   error
}

func (f *fakeSaver) Save(_ context.Context, _ *core.Profile, _ string, payloads []core.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, payloads...)
	return nil
}

type fakeInvoker struct {
	envelope string
	err      error
}

func (f fakeInvoker) Invoke(context.Context, string, string) (string, error) {
	return f.envelope, f.err
}

type fakeGenerator struct {
	lastSystem string
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	return "text:" + prompt, nil
}

func (f *fakeGenerator) ChatGeneration(_ context.Context, prompt, system string) (string, error) {
	f.lastSystem = system
	return "chat:" + prompt, nil
}

type serverFixture struct {
	srv   *Server
	cfg   *config.Config
	dir   *fakeDirectory
	saver *fakeSaver
	gen   *fakeGenerator
	hub   *channel.Hub
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{MaxFileSize: 1 << 20},
	}
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	return newServerFixtureWith(t, testConfig(), fakeInvoker{envelope: agent.FormatEnvelope("hello", "s-1")})
}

func newServerFixtureWith(t *testing.T, cfg *config.Config, inv agent.Invoker) *serverFixture {
	t.Helper()

	f := &serverFixture{
		cfg:   cfg,
		dir:   &fakeDirectory{result: core.ResolutionMap{"jane doe": "u-1", "bob roe": "u-2"}},
		saver: &fakeSaver{},
		gen:   &fakeGenerator{},
		hub:   channel.NewHub(),
	}
	t.Cleanup(f.hub.Close)

	svc, err := core.NewService(core.Options{
		Decoder:     sheet.NewDecoder(),
		Directory:   f.dir,
		Saver:       f.saver,
		Notifier:    f.hub,
		MaxFileSize: cfg.Import.MaxFileSize,
	})
	require.NoError(t, err)

	f.srv = NewServer(cfg, Deps{
		Imports:   svc,
		Hub:       f.hub,
		Chat:      agent.NewService(inv, nil, time.Second),
		Generator: f.gen,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
	})
	t.Cleanup(func() { _ = f.srv.Shutdown(context.Background()) })
	return f
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) upload(t *testing.T, sessionID, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) openSession(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/sessions", map[string]string{
		"profile": profiles.TimelineTasks,
		"scope":   "plan-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap core.SessionSnapshot
	decode(t, rec, &snap)
	return snap.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, rec, &resp)
	return resp.Code
}

var errOffline = errors.New("directory offline")
