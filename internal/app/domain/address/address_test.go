package address

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseChecksum(t *testing.T) {
	// Reference vectors from EIP-55.
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, want := range vectors {
		got, err := Parse(strings.ToLower(want))
		if err != nil {
			t.Fatalf("parse %s: %v", want, err)
		}
		if got.String() != want {
			t.Fatalf("checksum mismatch: got %s want %s", got, want)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "0x1234", "0xzz5aeb6053f3e94c9b9a09f33669435e7ef1beaed", "player-one"} {
		if _, err := Parse(raw); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid for %q, got %v", raw, err)
		}
	}
}

func TestDeriveIsStable(t *testing.T) {
	a := Derive("crafting-engine")
	b := Derive("crafting-engine")
	if a != b {
		t.Fatalf("derive not deterministic: %s vs %s", a, b)
	}
	if a == Derive("marketplace") {
		t.Fatalf("different labels should derive different addresses")
	}
	if _, err := Parse(a.String()); err != nil {
		t.Fatalf("derived address does not parse: %v", err)
	}
}

func TestZero(t *testing.T) {
	if !Zero.IsZero() || !Address("").IsZero() {
		t.Fatalf("zero address not detected")
	}
	if Derive("x").IsZero() {
		t.Fatalf("derived address reported as zero")
	}
}

func TestUnmarshalJSON(t *testing.T) {
	var v struct {
		To Address `json:"to"`
	}
	raw := `{"to":"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"}`
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.To != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Fatalf("not checksummed: %s", v.To)
	}
	if err := json.Unmarshal([]byte(`{"to":"0x12"}`), &v); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
