package resource

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := map[string]Type{"0": Wood, "1": Iron, "Leather": Leather, " crystal ": Crystal, "GOLD": Gold}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %s want %s", in, got, want)
		}
	}
	for _, bad := range []string{"6", "-1", "mithril", ""} {
		if _, err := Parse(bad); !errors.Is(err, ErrUnknown) {
			t.Fatalf("expected ErrUnknown for %q, got %v", bad, err)
		}
	}
}

func TestJSONMapKeysUseNames(t *testing.T) {
	raw, err := json.Marshal(map[Type]uint64{Iron: 3, Wood: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"iron":3,"wood":1}` {
		t.Fatalf("unexpected json %s", raw)
	}
	var back map[Type]uint64
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[Iron] != 3 || back[Wood] != 1 {
		t.Fatalf("round trip lost values: %v", back)
	}
}

func TestAll(t *testing.T) {
	all := All()
	if len(all) != Count {
		t.Fatalf("expected %d types, got %d", Count, len(all))
	}
	if Type(Count).Valid() {
		t.Fatalf("out-of-range type reported valid")
	}
}
