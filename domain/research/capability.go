package research

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Capability is the evidence-gathering specialization a sub-question needs.
// The set is closed: Document, Web and Market.
type Capability int

const (
	CapabilityDocument Capability = iota + 1
	CapabilityWeb
	CapabilityMarket
)

// Priority is the fixed order in which capability stages run.
var Priority = [...]Capability{CapabilityDocument, CapabilityWeb, CapabilityMarket}

func (c Capability) String() string {
	switch c {
	case CapabilityDocument:
		return "document"
	case CapabilityWeb:
		return "web"
	case CapabilityMarket:
		return "market"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Valid reports whether c is one of the three capabilities
func (c Capability) Valid() bool {
	return c >= CapabilityDocument && c <= CapabilityMarket
}

// ParseCapability accepts the canonical names and the legacy tool tags
// (RAG, WEB, STOCK), case-insensitively.
func ParseCapability(s string) (Capability, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DOCUMENT", "DOCUMENTS", "RAG":
		return CapabilityDocument, nil
	case "WEB":
		return CapabilityWeb, nil
	case "MARKET", "STOCK":
		return CapabilityMarket, nil
	default:
		return 0, fmt.Errorf("unknown capability %q", s)
	}
}

func (c Capability) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid capability %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Capability) UnmarshalText(text []byte) error {
	parsed, err := ParseCapability(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// CapabilitySet is a set of capabilities
type CapabilitySet uint8

func bit(c Capability) CapabilitySet {
	if !c.Valid() {
		return 0
	}
	return 1 << uint(c)
}

// NewCapabilitySet builds a set from the given capabilities
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range caps {
		s = s.With(c)
	}
	return s
}

// With returns s plus c
func (s CapabilitySet) With(c Capability) CapabilitySet {
	return s | bit(c)
}

// Has reports membership
func (s CapabilitySet) Has(c Capability) bool {
	b := bit(c)
	return b != 0 && s&b != 0
}

func (s CapabilitySet) Empty() bool {
	return s == 0
}

// Len returns the number of members
func (s CapabilitySet) Len() int {
	return len(s.Slice())
}

// Slice returns members in priority order
func (s CapabilitySet) Slice() []Capability {
	var out []Capability
	for _, c := range Priority {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Contains reports whether every member of other is in s
func (s CapabilitySet) Contains(other CapabilitySet) bool {
	return s&other == other
}

func (s CapabilitySet) String() string {
	caps := s.Slice()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}

func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	caps := s.Slice()
	if caps == nil {
		caps = []Capability{}
	}
	return json.Marshal(caps)
}

func (s *CapabilitySet) UnmarshalJSON(data []byte) error {
	var caps []Capability
	if err := json.Unmarshal(data, &caps); err != nil {
		return err
	}
	*s = NewCapabilitySet(caps...)
	return nil
}
