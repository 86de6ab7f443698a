package resource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Type enumerates the raw materials a player can gather. The set is fixed.
type Type uint8

const (
	Wood Type = iota
	Iron
	Stone
	Leather
	Gold
	Crystal
)

// Count is the number of resource types.
const Count = 6

// ErrUnknown is returned for ids or names outside the enumeration.
var ErrUnknown = errors.New("unknown resource type")

var names = [Count]string{"wood", "iron", "stone", "leather", "gold", "crystal"}

// All returns every resource type in id order.
func All() []Type {
	out := make([]Type, Count)
	for i := range out {
		out[i] = Type(i)
	}
	return out
}

// Valid reports whether t is part of the enumeration.
func (t Type) Valid() bool { return int(t) < Count }

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("resource(%d)", uint8(t))
	}
	return names[t]
}

// Parse accepts a numeric id ("1") or a case-insensitive name ("Iron").
func Parse(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n >= Count {
			return 0, fmt.Errorf("%w: %d", ErrUnknown, n)
		}
		return Type(n), nil
	}
	lower := strings.ToLower(s)
	for i, name := range names {
		if name == lower {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknown, s)
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, uint8(t))
	}
	return []byte(names[t]), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
