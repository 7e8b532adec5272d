package command

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"time"

	"github.com/urfave/cli/v2"
)

const (
	testCaller = "0x00000000000000000000000000000000000000aa"
	testOwner  = "0x00000000000000000000000000000000000000bb"
	testAPIKey = "lmak-01arz3ndektsv4rrffq69g5fav:lmas_test-secret"
)

// recordedRequest is what the mock server saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Caller string
	Auth   string
	Body   []byte
}

// mockServer creates a test HTTP server with custom handlers.
type mockServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []recordedRequest
}

// newMockServer creates a new mock server. Handlers match on
// "METHOD /exact/path".
func newMockServer() *mockServer {
	m := &mockServer{
		handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m.mu.Lock()
		m.requests = append(m.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Caller: r.Header.Get("X-Ledger-Caller"),
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		handler := m.handlers[r.Method+" "+r.URL.Path]
		m.mu.Unlock()

		if handler == nil {
			errorResponse(w, http.StatusNotFound, "LM-SYS-4040", "not found")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		handler(w, r)
	}))
	return m
}

// handle registers a handler for "METHOD /path".
func (m *mockServer) handle(pattern string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[pattern] = handler
}

// lastRequest returns the most recent request.
func (m *mockServer) lastRequest() recordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return recordedRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// decodeBody unmarshals the last request body into v.
func (m *mockServer) decodeBody(v any) error {
	return json.Unmarshal(m.lastRequest().Body, v)
}

// okResponse writes a success envelope.
func okResponse(w http.ResponseWriter, status int, data any) {
	jsonResponse(w, status, map[string]any{
		"code":       "OK",
		"message":    "Success",
		"request_id": "req-test",
		"timestamp":  time.Now().UnixMilli(),
		"data":       data,
	})
}

// jsonResponse writes a JSON response.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorResponse writes an error envelope.
func errorResponse(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": "req-test",
	})
}

// noConfigFile points --config at a path that never exists, so tests never
// read the developer's ~/.licmesh/cli.yaml.
var noConfigFile = filepath.Join("nonexistent-licmesh-test", "cli.yaml")

// makeTestContext creates a CLI context whose output goes to the returned
// buffer. extraFlags maps command flag names to values; zero values are
// declared but not passed.
func makeTestContext(server *mockServer, extraFlags map[string]any, args ...string) (*cli.Context, *bytes.Buffer) {
	out := &bytes.Buffer{}
	app := &cli.App{
		Name:      "test",
		Flags:     globalFlags(),
		Writer:    out,
		ErrWriter: io.Discard,
	}

	allFlags := append([]cli.Flag{}, globalFlags()...)

	existing := make(map[string]bool)
	for _, f := range allFlags {
		for _, name := range f.Names() {
			existing[name] = true
		}
	}

	for name, val := range extraFlags {
		if existing[name] {
			continue
		}
		switch v := val.(type) {
		case string:
			allFlags = append(allFlags, &cli.StringFlag{Name: name})
		case int:
			allFlags = append(allFlags, &cli.IntFlag{Name: name})
		case uint64:
			allFlags = append(allFlags, &cli.Uint64Flag{Name: name})
		case bool:
			allFlags = append(allFlags, &cli.BoolFlag{Name: name})
		case time.Duration:
			allFlags = append(allFlags, &cli.DurationFlag{Name: name})
		case []string:
			allFlags = append(allFlags, &cli.StringSliceFlag{Name: name})
		default:
			panic(fmt.Sprintf("unsupported flag type %T", v))
		}
		existing[name] = true
	}

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.SetOutput(io.Discard)
	for _, f := range allFlags {
		f.Apply(set)
	}

	cliArgs := []string{"--config", noConfigFile}
	if server != nil {
		cliArgs = append(cliArgs, "--server", server.URL)
	}
	for name, val := range extraFlags {
		switch v := val.(type) {
		case string:
			if v != "" {
				cliArgs = append(cliArgs, "--"+name, v)
			}
		case int:
			if v != 0 {
				cliArgs = append(cliArgs, "--"+name, fmt.Sprintf("%d", v))
			}
		case uint64:
			if v != 0 {
				cliArgs = append(cliArgs, "--"+name, fmt.Sprintf("%d", v))
			}
		case bool:
			if v {
				cliArgs = append(cliArgs, "--"+name)
			}
		case time.Duration:
			if v != 0 {
				cliArgs = append(cliArgs, "--"+name, v.String())
			}
		case []string:
			for _, s := range v {
				cliArgs = append(cliArgs, "--"+name, s)
			}
		}
	}
	cliArgs = append(cliArgs, args...)

	if err := set.Parse(cliArgs); err != nil {
		panic(err)
	}

	return cli.NewContext(app, set, nil), out
}

// asCaller is the common extra flag set for principal-bound commands.
func asCaller(extra map[string]any) map[string]any {
	if extra == nil {
		extra = make(map[string]any)
	}
	extra["caller"] = testCaller
	extra["api-key"] = testAPIKey
	return extra
}
