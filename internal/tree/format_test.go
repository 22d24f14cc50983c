package tree

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestResult_JSONRoundTrip(t *testing.T) {
	result := Result{
		{Host: "zeta", Entries: []Entry{
			Dir("b", Dir("inner"), File("x.txt")),
			Dir("a"),
			File("root.txt"),
		}},
		{Host: "alpha", Entries: []Entry{File("only.txt")}},
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"zeta":[{"b":[{"inner":[]},"x.txt"]},{"a":[]},"root.txt"],"alpha":["only.txt"]}`
	if string(data) != want {
		t.Fatalf("got  %s\nwant %s", data, want)
	}

	var decoded Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(decoded, result) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, result)
	}
}

func TestResult_UnmarshalErrors(t *testing.T) {
	tests := []string{
		`[]`,
		`{"h": "not a list"}`,
		`{"h": [{"a": [], "b": []}]}`,
		`{"h": [42]}`,
	}
	for _, input := range tests {
		var r Result
		if err := json.Unmarshal([]byte(input), &r); err == nil {
			t.Errorf("Unmarshal(%s) expected error", input)
		}
	}
}

func TestResult_EmptyMarshal(t *testing.T) {
	for _, r := range []Result{nil, {}} {
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if string(data) != "{}" {
			t.Errorf("Marshal(%v) = %s, want {}", r, data)
		}
	}
}

func TestResult_Lookup(t *testing.T) {
	result := Result{
		{Host: "h", Entries: []Entry{
			Dir("a", Dir("b", File("c.txt"))),
			File("a.txt"),
		}},
	}

	tests := []struct {
		host  string
		dirs  []string
		found bool
		count int
	}{
		{"h", nil, true, 2},
		{"h", []string{"a"}, true, 1},
		{"h", []string{"a", "b"}, true, 1},
		{"h", []string{"a.txt"}, false, 0},
		{"h", []string{"missing"}, false, 0},
		{"other", nil, false, 0},
	}

	for _, tt := range tests {
		entries, ok := result.Lookup(tt.host, tt.dirs...)
		if ok != tt.found {
			t.Errorf("Lookup(%q, %v) found=%v, want %v", tt.host, tt.dirs, ok, tt.found)
			continue
		}
		if len(entries) != tt.count {
			t.Errorf("Lookup(%q, %v) returned %d entries, want %d", tt.host, tt.dirs, len(entries), tt.count)
		}
	}
}
