// Package prefixed_uuid generates and parses identifiers of the form
// "<prefix>-<uuid>", e.g. "snippet-0f8fad5b-d9cb-469f-a165-70867728950e".
package prefixed_uuid

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PrefixedUUID represents a UUID with a prefix string.
type PrefixedUUID struct {
	Prefix string
	UUID   uuid.UUID
}

// New creates a new PrefixedUUID with the given prefix and a random UUID.
func New(prefix string) PrefixedUUID {
	return PrefixedUUID{Prefix: prefix, UUID: uuid.New()}
}

// FromString parses "prefix-uuid". The prefix is everything before the
// first dash and may not be empty.
func FromString(s string) (PrefixedUUID, error) {
	prefix, rest, ok := strings.Cut(s, "-")
	if !ok || prefix == "" {
		return PrefixedUUID{}, fmt.Errorf("invalid prefixed UUID format: %q", s)
	}

	id, err := uuid.Parse(rest)
	if err != nil {
		return PrefixedUUID{}, fmt.Errorf("invalid UUID in %q: %w", s, err)
	}

	return PrefixedUUID{Prefix: prefix, UUID: id}, nil
}

// ParseWithPrefix is FromString that also requires a specific prefix.
func ParseWithPrefix(prefix, s string) (PrefixedUUID, error) {
	p, err := FromString(s)
	if err != nil {
		return PrefixedUUID{}, err
	}
	if p.Prefix != prefix {
		return PrefixedUUID{}, fmt.Errorf("expected prefix %q, got %q", prefix, p.Prefix)
	}
	return p, nil
}

// String returns the "prefix-uuid" form.
func (p PrefixedUUID) String() string {
	return p.Prefix + "-" + p.UUID.String()
}

// IsZero reports whether p is the zero value.
func (p PrefixedUUID) IsZero() bool {
	return p.Prefix == "" && p.UUID == uuid.Nil
}

// MarshalJSON encodes p as a JSON string.
func (p PrefixedUUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes p from a JSON string.
func (p *PrefixedUUID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("prefixed UUID must be a JSON string: %w", err)
	}

	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
