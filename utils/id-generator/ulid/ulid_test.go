package ulid

import (
	"bytes"
	"sort"
	"testing"
	"time"
)

func TestGenerateString(t *testing.T) {
	id := GenerateString()
	if len(id) != MediaKeyLen {
		t.Fatalf("expected %d chars, got %d: %q", MediaKeyLen, len(id), id)
	}
	if !IsValidMediaKey(id) {
		t.Fatalf("generated key should be valid: %q", id)
	}
}

func TestGeneratorMonotonicWithinSameMillisecond(t *testing.T) {
	gen := NewGenerator(bytes.NewReader(bytes.Repeat([]byte{0x42}, 1024)))

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = gen.GenerateWithTime(at).String()
	}

	if !sort.StringsAreSorted(ids) {
		t.Fatalf("ids generated within one millisecond should sort ascending: %v", ids)
	}
}

func TestParseRoundTrip(t *testing.T) {
	id := Generate()
	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != id {
		t.Fatalf("round trip mismatch: %v != %v", parsed, id)
	}
}

func TestTimeExtraction(t *testing.T) {
	gen := NewGenerator(nil)
	at := time.Date(2026, 5, 20, 8, 30, 0, 0, time.UTC)
	id := gen.GenerateWithTime(at)

	got := Time(id)
	if got.Sub(at) > time.Millisecond || at.Sub(got) > time.Millisecond {
		t.Fatalf("timestamp mismatch: want %v, got %v", at, got)
	}
}

func TestIsValidMediaKey(t *testing.T) {
	cases := map[string]bool{
		GenerateString():              true,
		"":                           false,
		"too-short":                  false,
		"0000000000000000000000000U": false, // U 不在 Crockford 字母表中
	}
	for key, want := range cases {
		if got := IsValidMediaKey(key); got != want {
			t.Errorf("IsValidMediaKey(%q) = %v, want %v", key, got, want)
		}
	}
}
