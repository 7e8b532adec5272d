package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/licmesh/internal/core/domain"
)

func TestTableFormatter_Format_Table(t *testing.T) {
	table := &Table{
		Headers: []string{"NAME", "VALUE"},
		Rows: [][]string{
			{"key1", "value1"},
			{"key2", "value2"},
		},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}

	if err := f.Format(&buf, table); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "NAME") {
		t.Error("Format() missing header NAME")
	}
	if !strings.Contains(output, "key1") {
		t.Error("Format() missing row data key1")
	}
}

func TestTableFormatter_Format_TableNoHeaders(t *testing.T) {
	table := Table{
		Headers: []string{"NAME", "VALUE"},
		Rows:    [][]string{{"key1", "value1"}},
	}

	var buf bytes.Buffer
	f := &TableFormatter{NoHeaders: true}

	if err := f.Format(&buf, table); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "NAME") {
		t.Error("Format() should not contain headers when NoHeaders=true")
	}
	if !strings.Contains(output, "key1") {
		t.Error("Format() missing row data")
	}
}

func TestTableFormatter_Format_Nil(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, nil); err != nil {
		t.Fatalf("Format(nil) error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Format(nil) wrote %q", buf.String())
	}
}

func TestTableFormatter_Format_License(t *testing.T) {
	owner := domain.Address{0xaa}
	lic := &domain.License{
		ID:            7,
		Owner:         owner,
		ApplicationID: "app.example",
		AppHash:       domain.HashApplicationID("app.example"),
		MetadataRef:   "ipfs://meta",
		MintedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli(),
	}

	t.Run("narrow", func(t *testing.T) {
		var buf bytes.Buffer
		f := &TableFormatter{}
		if err := f.Format(&buf, lic); err != nil {
			t.Fatalf("Format() error = %v", err)
		}
		out := buf.String()

		for _, want := range []string{"FIELD", "application_id", "app.example", strings.ToLower(owner.Hex()), "2026-01-02 03:04:05"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		// Wide-only columns stay hidden.
		if strings.Contains(out, "app_hash") || strings.Contains(out, "ipfs://meta") {
			t.Errorf("narrow output shows wide columns:\n%s", out)
		}
		// Perpetual expiry renders as a dash, not the epoch.
		if strings.Contains(out, "1970") {
			t.Errorf("zero expiry rendered as a date:\n%s", out)
		}
	})

	t.Run("wide", func(t *testing.T) {
		var buf bytes.Buffer
		f := &TableFormatter{Wide: true}
		if err := f.Format(&buf, lic); err != nil {
			t.Fatalf("Format() error = %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "app_hash") || !strings.Contains(out, "ipfs://meta") {
			t.Errorf("wide output missing wide columns:\n%s", out)
		}
	})
}

func TestTableFormatter_Format_EmbeddedStruct(t *testing.T) {
	type view struct {
		*domain.License
		Expired bool   `json:"expired"`
		URI     string `json:"metadata_uri"`
	}

	rows := []view{
		{License: &domain.License{ID: 1, ApplicationID: "a"}, Expired: true, URI: "https://x/1"},
		{License: &domain.License{ID: 2, ApplicationID: "b"}},
		{Expired: false},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, rows); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	header := lines[0]
	for _, want := range []string{"ID", "OWNER", "APPLICATION_ID", "EXPIRED", "METADATA_URI"} {
		if !strings.Contains(header, want) {
			t.Errorf("header missing %q: %s", want, header)
		}
	}
	if !strings.Contains(lines[1], "https://x/1") {
		t.Errorf("row 1 = %q", lines[1])
	}
}

func TestTableFormatter_Format_Slice(t *testing.T) {
	type item struct {
		TokenID uint64 `json:"token_id"`
		Code    string `json:"code"`
		secret  string
	}

	data := []item{{TokenID: 1}, {TokenID: 0, Code: "LM-LIC-4090", secret: "x"}}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "TOKEN_ID") || !strings.Contains(out, "CODE") {
		t.Errorf("missing headers:\n%s", out)
	}
	if strings.Contains(out, "SECRET") {
		t.Errorf("unexported field rendered:\n%s", out)
	}
	if !strings.Contains(out, "LM-LIC-4090") {
		t.Errorf("missing row:\n%s", out)
	}
}

func TestTableFormatter_Format_ScalarSlice(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, []string{"x", "y"}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), "VALUE") || !strings.Contains(buf.String(), "y") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTableFormatter_Format_MapSorted(t *testing.T) {
	data := map[string]uint64{"seq": 9, "live": 3, "minted": 4}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	live := strings.Index(out, "live")
	minted := strings.Index(out, "minted")
	seq := strings.Index(out, "seq")
	if !(live < minted && minted < seq) {
		t.Errorf("keys not sorted:\n%s", out)
	}
}

func TestTableFormatter_Format_FallbackJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, 42); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "42" {
		t.Errorf("output = %q, want JSON fallback", buf.String())
	}
}

func TestFormatMillis(t *testing.T) {
	if got := FormatMillis(0); got != "-" {
		t.Errorf("FormatMillis(0) = %q", got)
	}
	ms := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if got := FormatMillis(ms); got != "2030-06-01 00:00:00" {
		t.Errorf("FormatMillis() = %q", got)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"LedgerSeq", "Ledger_Seq"},
		{"TokenId", "Token_Id"},
		{"owner", "owner"},
		{"ledger_seq", "ledger_seq"},
	}
	for _, tt := range tests {
		if got := toSnakeCase(tt.in); got != tt.want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTable_AddRowAndHeaders(t *testing.T) {
	table := &Table{}
	table.SetHeaders("A", "B")
	table.AddRow("1", "2")

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "A  B") {
		t.Errorf("Render() = %q", buf.String())
	}
}
