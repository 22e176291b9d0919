package model

import "fmt"

// Metal identifies a tracked precious metal.
type Metal string

const (
	Gold   Metal = "gold"
	Silver Metal = "silver"
)

// Tracked is the full set of metals the service follows.
var Tracked = []Metal{Gold, Silver}

// Symbol returns the upstream API symbol for the metal (XAU for gold, XAG for silver).
func (m Metal) Symbol() string {
	switch m {
	case Gold:
		return "XAU"
	case Silver:
		return "XAG"
	}
	return ""
}

// Valid reports whether m is a tracked metal.
func (m Metal) Valid() bool {
	return m == Gold || m == Silver
}

// ParseMetal converts a string into a Metal, failing on unknown values.
func ParseMetal(s string) (Metal, error) {
	m := Metal(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown metal %q", s)
	}
	return m, nil
}
