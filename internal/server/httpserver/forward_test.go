package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/server/httpserver/handler"
)

type staticLeader struct {
	api   *url.URL
	local bool
}

func (s staticLeader) LeaderAPI() (*url.URL, bool) { return s.api, s.local }

// leaderNode serves a full router and records the headers of every request
// it receives.
type leaderNode struct {
	*httptest.Server
	url *url.URL

	mu   sync.Mutex
	seen []http.Header
}

func newLeaderNode(t *testing.T) *leaderNode {
	t.Helper()
	router, _ := newTestRouter(t)
	n := &leaderNode{}
	n.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		n.seen = append(n.seen, r.Header.Clone())
		n.mu.Unlock()
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(n.Close)
	n.url, _ = url.Parse(n.URL)
	return n
}

func (n *leaderNode) requests() []http.Header {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]http.Header(nil), n.seen...)
}

func newFollower(t *testing.T, leader LeaderLocator) *httptest.Server {
	t.Helper()
	router, _ := newTestRouter(t, func(c *RouterConfig) {
		c.Forward = ForwardConfig{Leader: leader, NodeID: "node-2"}
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func mintRequest(t *testing.T, base string, extra http.Header) *http.Request {
	t.Helper()
	body, _ := json.Marshal(handler.MintRequest{Owner: testUser.Hex(), ApplicationID: "demo"})
	req, err := http.NewRequest("POST", base+"/v1/licenses", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	_, creds := testAuth(t)
	req.Header.Set("Authorization", creds[testMinter].bearer())
	for k, v := range extra {
		req.Header[k] = v
	}
	return req
}

func TestForwardToLeader_RelaysWrites(t *testing.T) {
	leader := newLeaderNode(t)
	follower := newFollower(t, staticLeader{api: leader.url})

	req := mintRequest(t, follower.URL, http.Header{handler.HeaderRequestID: {"req-client-1"}})
	resp, err := follower.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env handler.Response
	_ = json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode != http.StatusCreated || env.Code != "OK" {
		t.Fatalf("forwarded mint = %d %+v", resp.StatusCode, env)
	}
	if got := resp.Header.Values(handler.HeaderRequestID); len(got) != 1 || got[0] != "req-client-1" {
		t.Errorf("%s = %v, want the client's id once", handler.HeaderRequestID, got)
	}

	seen := leader.requests()
	if len(seen) != 1 {
		t.Fatalf("leader saw %d requests, want 1", len(seen))
	}
	if got := seen[0].Get(handler.HeaderForwardedBy); got != "node-2" {
		t.Errorf("%s = %q, want node-2", handler.HeaderForwardedBy, got)
	}
	if seen[0].Get("Authorization") == "" {
		t.Error("api key was not relayed to the leader")
	}
	if seen[0].Get(handler.HeaderRequestID) != "req-client-1" {
		t.Errorf("leader request id = %q", seen[0].Get(handler.HeaderRequestID))
	}

	// The license lives on the leader only; reads are served locally.
	resp, _ = send(t, leader.Client(), "GET", leader.URL+"/v1/licenses/1", domain.ZeroAddress, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("leader GET = %d, want 200", resp.StatusCode)
	}
	resp, _ = send(t, follower.Client(), "GET", follower.URL+"/v1/licenses/1", domain.ZeroAddress, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("follower GET = %d, want 404 from its own replica", resp.StatusCode)
	}
	if len(leader.requests()) != 2 {
		t.Errorf("leader saw %d requests, the follower read must not be forwarded", len(leader.requests()))
	}
}

func TestForwardToLeader_ServesLocally(t *testing.T) {
	leader := newLeaderNode(t)

	tests := []struct {
		name    string
		locator LeaderLocator
		header  http.Header
	}{
		{"this node leads", staticLeader{local: true}, nil},
		{"leader unknown", staticLeader{}, nil},
		{"already forwarded", staticLeader{api: leader.url}, http.Header{handler.HeaderForwardedBy: {"node-3"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(leader.requests())
			follower := newFollower(t, tt.locator)

			resp, err := follower.Client().Do(mintRequest(t, follower.URL, tt.header))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Errorf("local mint = %d, want 201", resp.StatusCode)
			}
			if len(leader.requests()) != before {
				t.Error("request reached the leader")
			}
		})
	}
}

func TestForwardToLeader_LeaderUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL, _ := url.Parse(dead.URL)
	dead.Close()

	router, metrics := newTestRouter(t, func(c *RouterConfig) {
		c.Forward = ForwardConfig{Leader: staticLeader{api: deadURL}, NodeID: "node-2"}
	})
	follower := httptest.NewServer(router)
	defer follower.Close()

	resp, err := follower.Client().Do(mintRequest(t, follower.URL, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env handler.Response
	_ = json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode != http.StatusServiceUnavailable || env.Code != domain.ErrNotLeader.Code {
		t.Errorf("unreachable leader = %d %s, want 503 %s", resp.StatusCode, env.Code, domain.ErrNotLeader.Code)
	}
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if want := `licmesh_http_leader_forwards_total{result="unreachable"} 1`; !strings.Contains(rec.Body.String(), want) {
		t.Errorf("/metrics missing %q", want)
	}
}
