// Package address defines the principal identity used by every ledger: a
// 20-byte account address rendered in EIP-55 mixed-case checksum form.
package address

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Length is the size of an address in bytes.
const Length = 20

// ErrInvalid is returned when a string is not a 20-byte hex address.
var ErrInvalid = errors.New("invalid address")

// Address is a checksummed account address. The zero value is the empty
// string and never identifies a principal.
type Address string

// Zero is the all-zero address. Ledgers never credit it.
var Zero = FromBytes(make([]byte, Length))

// Parse validates a hex address (with or without 0x prefix, any case) and
// returns its checksummed form.
func Parse(raw string) (Address, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*Length {
		return "", fmt.Errorf("%w: %q", ErrInvalid, raw)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalid, raw)
	}
	return FromBytes(b), nil
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) Address {
	a, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// Derive returns a deterministic address for a named component, taken from
// the low 20 bytes of keccak256(label).
func Derive(label string) Address {
	sum := keccak256([]byte(label))
	return FromBytes(sum[len(sum)-Length:])
}

// FromBytes renders the last 20 bytes of b as a checksummed address.
func FromBytes(b []byte) Address {
	if len(b) > Length {
		b = b[len(b)-Length:]
	}
	buf := make([]byte, Length)
	copy(buf[Length-len(b):], b)

	lower := hex.EncodeToString(buf)
	hash := keccak256([]byte(lower))
	out := make([]byte, 0, 2+len(lower))
	out = append(out, '0', 'x')
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if c >= 'a' && c <= 'f' && nibble&0x0f >= 8 {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return Address(out)
}

func (a Address) String() string { return string(a) }

// IsZero reports whether a is unset or the all-zero address.
func (a Address) IsZero() bool { return a == "" || a == Zero }

// UnmarshalText validates and checksums decoded addresses. Empty input
// leaves the zero value.
func (a *Address) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*a = ""
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Equal compares addresses case-insensitively.
func (a Address) Equal(b Address) bool { return strings.EqualFold(string(a), string(b)) }

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
