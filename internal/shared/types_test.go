package shared

import (
	"strings"
	"testing"
)

func TestStringSlice_RoundTrip(t *testing.T) {
	s := StringSlice{"bug", "help wanted"}

	v, err := s.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var got StringSlice
	if err := got.Scan(v); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 2 || got[0] != "bug" || got[1] != "help wanted" {
		t.Errorf("round trip got %v", got)
	}
}

func TestStringSlice_Empty(t *testing.T) {
	var s StringSlice
	v, err := s.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if v != "[]" {
		t.Errorf("empty slice should serialize to [], got %v", v)
	}
}

func TestFloatMap_RoundTrip(t *testing.T) {
	m := FloatMap{"Python": 30.0, "JavaScript": 70.0}

	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var got FloatMap
	if err := got.Scan(string(v.([]byte))); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if got["Python"] != 30.0 || got["JavaScript"] != 70.0 {
		t.Errorf("round trip got %v", got)
	}
}

func TestFloatMap_ScanNil(t *testing.T) {
	m := FloatMap{"Go": 100}
	if err := m.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error = %v", err)
	}
	if m != nil {
		t.Errorf("Scan(nil) should reset the map, got %v", m)
	}
}

func TestNewID(t *testing.T) {
	id1 := NewID("user_")
	id2 := NewID("user_")

	if !strings.HasPrefix(id1, "user_") {
		t.Errorf("NewID should keep the prefix, got %s", id1)
	}
	if len(id1) != len("user_")+32 {
		t.Errorf("unexpected id length %d", len(id1))
	}
	if id1 == id2 {
		t.Error("two generated ids should differ")
	}
}

func TestNewToken(t *testing.T) {
	tok := NewToken(6)
	if len(tok) != 12 {
		t.Errorf("expected 12 hex chars, got %d", len(tok))
	}
	if tok == NewToken(6) {
		t.Error("two generated tokens should differ")
	}
}
