// internal/models/candidate.go
package models

import (
	"encoding/json"
	"strconv"
)

// Candidate is a family or individual under evaluation, carried as a flat
// attribute bag supplied by the candidate attribute source.
type Candidate struct {
	ID         string                 `json:"id"`
	Attributes map[string]interface{} `json:"attributes"`
}

// Float returns the named attribute as a float64. Attribute values arrive
// from JSON columns, so numbers may be float64, json.Number, integers, or
// numeric strings.
func (c *Candidate) Float(key string) (float64, bool) {
	v, ok := c.Attributes[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// String returns the named attribute as a string.
func (c *Candidate) String(key string) (string, bool) {
	v, ok := c.Attributes[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool returns the named attribute as a bool. String forms "true"/"false"
// are accepted since upstream generators serialize booleans inconsistently.
func (c *Candidate) Bool(key string) (bool, bool) {
	v, ok := c.Attributes[key]
	if !ok || v == nil {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	default:
		return false, false
	}
}

// Has reports whether the attribute is present and non-nil.
func (c *Candidate) Has(key string) bool {
	v, ok := c.Attributes[key]
	return ok && v != nil
}
