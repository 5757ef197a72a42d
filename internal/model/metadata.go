package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is the opaque provider document stored with a generation. Its
// shape depends on the backend and is never interpreted by the workflow.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Metadata", src)
	}

	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Merge returns a copy of m with the keys of other added on top.
func (m Metadata) Merge(other Metadata) Metadata {
	if m == nil && other == nil {
		return nil
	}
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
