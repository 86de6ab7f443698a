// Package access holds the capability table types: which principal may
// perform which privileged operation on which ledger.
package access

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
)

// Ledger names a governed ledger.
type Ledger string

const (
	LedgerResources Ledger = "resources"
	LedgerItems     Ledger = "items"
	LedgerCurrency  Ledger = "currency"
)

// Ledgers returns every governed ledger.
func Ledgers() []Ledger {
	return []Ledger{LedgerResources, LedgerItems, LedgerCurrency}
}

// ParseLedger converts user input into a Ledger.
func ParseLedger(s string) (Ledger, error) {
	l := Ledger(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Ledgers() {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown ledger %q", s)
}

// Op is a privileged ledger operation.
type Op uint8

const (
	OpMint Op = 1 << iota
	OpBurn
	OpTransfer
)

func (o Op) String() string {
	switch o {
	case OpMint:
		return "mint"
	case OpBurn:
		return "burn"
	case OpTransfer:
		return "transfer"
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// OpSet is a bitmask of operations.
type OpSet uint8

// ContractOps is what an authorized contract receives.
const ContractOps = OpSet(OpMint) | OpSet(OpBurn)

func (s OpSet) Has(op Op) bool { return s&OpSet(op) != 0 }

func (s OpSet) Ops() []Op {
	var out []Op
	for _, op := range []Op{OpMint, OpBurn, OpTransfer} {
		if s.Has(op) {
			out = append(out, op)
		}
	}
	return out
}

func (s OpSet) String() string {
	ops := s.Ops()
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, ",")
}

func (s OpSet) MarshalJSON() ([]byte, error) {
	ops := s.Ops()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.String()
	}
	return json.Marshal(names)
}

// Grant is one row of the capability table.
type Grant struct {
	Ledger    Ledger          `json:"ledger"`
	Principal address.Address `json:"principal"`
	Ops       OpSet           `json:"ops"`
	UpdatedAt time.Time       `json:"updated_at"`
}
