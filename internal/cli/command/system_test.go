package command

import (
	"net/http"
	"strings"
	"testing"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/ledger"
)

func TestSystemCommand(t *testing.T) {
	cmd := SystemCommand()
	names := make(map[string]bool)
	for _, sub := range cmd.Subcommands {
		names[sub.Name] = true
	}
	for _, want := range []string{"health", "ready", "stats"} {
		if !names[want] {
			t.Errorf("missing subcommand %s", want)
		}
	}
}

func TestSystemHealth(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("GET /health", func(w http.ResponseWriter, r *http.Request) {
		okResponse(w, http.StatusOK, map[string]string{"status": "healthy", "version": "1.2.3"})
	})

	ctx, out := makeTestContext(server, nil)
	if err := systemHealth(ctx); err != nil {
		t.Fatalf("systemHealth() error = %v", err)
	}
	if !strings.Contains(out.String(), "healthy (version 1.2.3)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSystemReady(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		okResponse(w, http.StatusOK, map[string]any{"status": "ready", "seq": 17})
	})

	ctx, out := makeTestContext(server, nil)
	if err := systemReady(ctx); err != nil {
		t.Fatalf("systemReady() error = %v", err)
	}
	if !strings.Contains(out.String(), "ready at seq 17") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSystemReady_Unavailable(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code, "no leader")
	})

	ctx, out := makeTestContext(server, nil)
	if err := systemReady(ctx); err == nil {
		t.Error("systemReady() should exit non-zero")
	}
	if !strings.Contains(out.String(), "not ready") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSystemStats(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("GET /v1/ledger/stats", func(w http.ResponseWriter, r *http.Request) {
		okResponse(w, http.StatusOK, ledger.Stats{Live: 3, Minted: 5, Slots: 3, Orphaned: 0, Seq: 11})
	})

	ctx, out := makeTestContext(server, map[string]any{"output": "yaml"})
	if err := systemStats(ctx); err != nil {
		t.Fatalf("systemStats() error = %v", err)
	}
	for _, want := range []string{"live: 3", "minted: 5", "seq: 11"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSystem_ConnectionRefused(t *testing.T) {
	server := newMockServer()
	url := server.URL
	server.Close()

	ctx, _ := makeTestContext(nil, map[string]any{"server": url})
	if err := systemHealth(ctx); err == nil {
		t.Error("systemHealth() against a closed server should fail")
	}
}
