package access

import (
	"encoding/json"
	"testing"
)

func TestOpSet(t *testing.T) {
	if !ContractOps.Has(OpMint) || !ContractOps.Has(OpBurn) || ContractOps.Has(OpTransfer) {
		t.Fatalf("unexpected contract ops %s", ContractOps)
	}
	raw, err := json.Marshal(ContractOps)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `["mint","burn"]` {
		t.Fatalf("unexpected json %s", raw)
	}
	if raw, _ := json.Marshal(OpSet(0)); string(raw) != `[]` {
		t.Fatalf("empty set should encode as [], got %s", raw)
	}
}

func TestParseLedger(t *testing.T) {
	if l, err := ParseLedger(" Currency "); err != nil || l != LedgerCurrency {
		t.Fatalf("got %s, %v", l, err)
	}
	if _, err := ParseLedger("gold"); err == nil {
		t.Fatalf("expected unknown ledger error")
	}
}
