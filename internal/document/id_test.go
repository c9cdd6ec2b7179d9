package document

import (
	"encoding/json"
	"sort"
	"testing"
)

func TestParseIDIntegers(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"int", 42, "42"},
		{"int64", int64(7), "7"},
		{"uint64", uint64(0), "0"},
		{"float64 whole", float64(10), "10"},
		{"json number", json.Number("123"), "123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseID(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.Type() != IDTypeU64 {
				t.Errorf("expected u64 type, got %v", id.Type())
			}
			if id.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, id.String())
			}
		})
	}
}

func TestZeroIntegerIDIsNotZeroValue(t *testing.T) {
	id, err := ParseID(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.IsZero() {
		t.Error("integer ID 0 must not be the zero value")
	}
	if NewU64ID(0).IsZero() {
		t.Error("NewU64ID(0) must not be the zero value")
	}
	if id.String() != "0" {
		t.Errorf("expected canonical form \"0\", got %q", id.String())
	}
	if !(ID{}).IsZero() {
		t.Error("the zero ID must report IsZero")
	}
}

func TestParseIDStrings(t *testing.T) {
	id, err := ParseID("record-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Type() != IDTypeString {
		t.Errorf("expected string type, got %v", id.Type())
	}
	if id.String() != "record-abc" {
		t.Errorf("expected record-abc, got %q", id.String())
	}
}

func TestParseIDRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"negative int", -1},
		{"negative int64", int64(-5)},
		{"fractional float", 1.5},
		{"empty string", ""},
		{"nil", nil},
		{"bool", true},
		{"bad json number", json.Number("-3")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseID(tt.input); err == nil {
				t.Errorf("expected error for %v", tt.input)
			}
		})
	}
}

func TestIDCompareIsLexicographic(t *testing.T) {
	// Integer IDs collate as document keys: 0, 1, 10, 11, ..., 2, 20, ...
	ids := make([]ID, 0, 20)
	for i := 0; i < 20; i++ {
		ids = append(ids, NewU64ID(uint64(i)))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })

	got := make([]string, len(ids))
	for i, id := range ids {
		got[i] = id.String()
	}
	want := []string{"0", "1", "10", "11", "12", "13", "14", "15", "16", "17", "18", "19", "2", "3", "4", "5", "6", "7", "8", "9"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %s, got %s (full order %v)", i, want[i], got[i], got)
		}
	}
}

func TestIDEqualDistinguishesTypes(t *testing.T) {
	intID := NewU64ID(1)
	strID, err := NewStringID("1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intID.Equal(strID) {
		t.Error("integer 1 and string \"1\" must be distinct IDs")
	}
	if intID.Compare(strID) == 0 && intID.Equal(strID) {
		t.Error("compare must break ties between types")
	}
}

func TestIDJSONRoundTrip(t *testing.T) {
	for _, raw := range []string{`17`, `"seventeen"`} {
		var id ID
		if err := json.Unmarshal([]byte(raw), &id); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		out, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(out) != raw {
			t.Errorf("round trip: expected %s, got %s", raw, out)
		}
	}
}
