package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Flag is a boolean the upstream API sends as 0/1, true/false or "0"/"1".
type Flag bool

// UnmarshalJSON accepts every representation the backend uses.
func (f *Flag) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch strings.ToLower(raw) {
	case "", "null", "0", "false":
		*f = false
	case "1", "true":
		*f = true
	default:
		return fmt.Errorf("models: invalid flag value %q", raw)
	}
	return nil
}

// MarshalJSON writes the flag as 0/1, the form the backend expects.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// Int returns 1 when set.
func (f Flag) Int() int {
	if f {
		return 1
	}
	return 0
}

var _ json.Unmarshaler = (*Flag)(nil)
