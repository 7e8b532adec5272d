package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

type testAddr string

func (a testAddr) Hex() string { return string(a) }

const (
	minter = testAddr("0x00000000000000000000000000000000000000aa")
	holder = testAddr("0x00000000000000000000000000000000000000bb")
)

func newJSON(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	t.Cleanup(func() { _ = SetLevel("info") })
	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l, &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew(t *testing.T) {
	t.Cleanup(func() { _ = SetLevel("info") })
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero value", Config{}, false},
		{"json", Config{Level: "error", Format: "JSON"}, false},
		{"text", Config{Level: "debug", Format: "text"}, false},
		{"console alias", Config{Format: "console"}, false},
		{"unknown format", Config{Format: "xml"}, true},
		{"unknown level", Config{Level: "verbose"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestLogger_LedgerAttributes(t *testing.T) {
	l, buf := newJSON(t, "info")

	l.With(Caller(minter)).Info("license minted",
		Owner(holder), App("demo"), Token(7), Seq(12), Credential("cred-1"))

	entry := decode(t, buf)
	want := map[string]any{
		"msg":         "license minted",
		KeyCaller:     string(minter),
		KeyOwner:      string(holder),
		KeyApp:        "demo",
		KeyToken:      float64(7),
		KeySeq:        float64(12),
		KeyCredential: "cred-1",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestLogger_TextCarriesLedgerAttributes(t *testing.T) {
	t.Cleanup(func() { _ = SetLevel("info") })
	var buf bytes.Buffer
	l, err := New(Config{Format: "text", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Warn("invalidation failed", Seq(3), Token(1), "attempt", 2)

	out := buf.String()
	for _, want := range []string{"invalidation failed", "seq=3", "token_id=1", "attempt=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLogger_LevelsAndReload(t *testing.T) {
	l, buf := newJSON(t, "warn")

	l.Debug("stale event discarded", Seq(1))
	l.Info("credentials invalidated", Seq(2))
	if buf.Len() != 0 {
		t.Fatalf("below-threshold entries written: %s", buf.String())
	}
	l.Error("event parked", Seq(3))
	if entry := decode(t, buf); entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}

	// A reload lowers the shared level for loggers already handed out.
	buf.Reset()
	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	l.Debug("stale event discarded", Seq(4))
	if buf.Len() == 0 {
		t.Error("debug entry dropped after reload")
	}
	if got := Level(); got != "debug" {
		t.Errorf("Level() = %q, want debug", got)
	}

	if err := SetLevel("loud"); err == nil {
		t.Error("SetLevel(loud) should fail")
	}
	if got := Level(); got != "debug" {
		t.Errorf("Level() after rejected reload = %q, want debug", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"", slog.LevelInfo, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_RedactsBearerButKeepsTokenID(t *testing.T) {
	l, buf := newJSON(t, "info")

	l.Info("access issued", Token(9), "token", "eyJhbGciOiJIUzI1NiJ9.e30.sig", "secret", "lmas_abc")

	entry := decode(t, buf)
	if entry[KeyToken] != float64(9) {
		t.Errorf("%s = %v, want 9", KeyToken, entry[KeyToken])
	}
	if s, _ := entry["token"].(string); strings.Contains(s, "e30.sig") {
		t.Errorf("token = %q, want redacted", s)
	}
	if entry["secret"] != redactedValue {
		t.Errorf("secret = %v, want redacted", entry["secret"])
	}
}

func TestSlog_SharesHandler(t *testing.T) {
	l, buf := newJSON(t, "info")

	Slog(l).Info("raft leader elected", "secret", "s3cr3t")
	if !strings.Contains(buf.String(), "raft leader elected") {
		t.Fatalf("Slog() output missing: %s", buf.String())
	}
	if strings.Contains(buf.String(), "s3cr3t") {
		t.Error("Slog() logger must keep redaction")
	}
}

func TestFromSlog(t *testing.T) {
	var buf bytes.Buffer
	sl := slog.New(slog.NewJSONHandler(&buf, nil))

	l := FromSlog(sl)
	if Slog(l) != sl {
		t.Error("Slog(FromSlog(x)) should return x")
	}
	l.With("component", "http").Info("wrapped", Caller(minter))
	if !strings.Contains(buf.String(), `"component":"http"`) || !strings.Contains(buf.String(), string(minter)) {
		t.Errorf("FromSlog() output = %s", buf.String())
	}
	if FromSlog(nil) == nil {
		t.Error("FromSlog(nil) returned nil")
	}
}

func TestDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, buf := newJSON(t, "info")
	SetDefault(l)
	Default().Info("ledger recovered from journal", Seq(5))
	if entry := decode(t, buf); entry[KeySeq] != float64(5) {
		t.Errorf("default logger entry = %v", entry)
	}
}
