// Package service describes the economy's components for operators. A
// descriptor does not change runtime behaviour.
package service

import (
	"sort"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
)

// Descriptor advertises a component: the principal it acts as, the ledgers
// it needs grants on, and the operations it serves.
type Descriptor struct {
	Name         string          `json:"name"`
	Principal    address.Address `json:"principal,omitempty"`
	Ledgers      []access.Ledger `json:"ledgers,omitempty"`
	Capabilities []string        `json:"capabilities"`
}

// WithCapabilities returns a copy of the descriptor with additional
// capabilities appended.
func (d Descriptor) WithCapabilities(caps ...string) Descriptor {
	if len(caps) == 0 {
		return d
	}
	combined := make([]string, 0, len(d.Capabilities)+len(caps))
	combined = append(combined, d.Capabilities...)
	combined = append(combined, caps...)
	d.Capabilities = combined
	return d
}

// Sorted orders descriptors by name.
func Sorted(ds []Descriptor) []Descriptor {
	out := append([]Descriptor(nil), ds...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
