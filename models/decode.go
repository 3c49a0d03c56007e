package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
)

var (
	// ErrMalformed marks a line that is not valid JSON.
	ErrMalformed = errors.New("malformed record")
	// ErrUnknownType marks a JSON record whose type is missing or is neither
	// "config" nor "data". Callers drop these without a diagnostic.
	ErrUnknownType = errors.New("unknown record type")
	// ErrInvalid marks a config or data record with missing or mistyped fields.
	ErrInvalid = errors.New("invalid record")
)

// envelope is decoded first so the type tag can be inspected before the
// rest of the record is trusted.
type envelope struct {
	Type string `json:"type"`
}

// dataWire lets Decode tell a missing timestamp from a zero one. Values are
// kept raw so one non-numeric entry does not sink the whole record.
type dataWire struct {
	Type      string                     `json:"type"`
	Timestamp *float64                   `json:"timestamp"`
	Values    map[string]json.RawMessage `json:"values"`
}

// Decode parses one framed line.
//
// The returned error wraps ErrMalformed, ErrUnknownType or ErrInvalid. A
// record is returned only when it is complete; nothing is half-applied.
func Decode(line string) (Record, error) {
	var env envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// Valid JSON, but "type" is not a string (or the line is not an object).
			return nil, ErrUnknownType
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeConfig:
		var c Config
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("%w: config: %v", ErrInvalid, err)
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return &c, nil
	case TypeData:
		var w dataWire
		if err := json.Unmarshal([]byte(line), &w); err != nil {
			return nil, fmt.Errorf("%w: data: %v", ErrInvalid, err)
		}
		if w.Timestamp == nil {
			return nil, fmt.Errorf("%w: data: missing timestamp", ErrInvalid)
		}
		if w.Values == nil {
			return nil, fmt.Errorf("%w: data: missing values", ErrInvalid)
		}
		d := &Data{Type: TypeData, Timestamp: *w.Timestamp, Values: make(map[string]float64, len(w.Values))}
		for k, raw := range w.Values {
			if v, ok := number(raw); ok {
				d.Values[k] = v
			} else {
				d.Skipped = append(d.Skipped, k)
			}
		}
		slices.Sort(d.Skipped)
		return d, nil
	default:
		return nil, ErrUnknownType
	}
}

// number parses a JSON number. null, strings, booleans and containers are
// not numbers.
func number(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// Validate checks the fields a config must carry before it can build a plot.
func (c *Config) Validate() error {
	if _, ok := ParseGraphKind(c.GraphType.String()); !ok {
		return fmt.Errorf("%w: config: missing graphType", ErrInvalid)
	}
	if len(c.Series) == 0 {
		return fmt.Errorf("%w: config: no series", ErrInvalid)
	}
	for i, s := range c.Series {
		if s.YColumn == "" {
			return fmt.Errorf("%w: config: series[%d] has no y_column", ErrInvalid, i)
		}
	}
	return nil
}

// Encode returns the wire form of r, without the trailing newline.
func Encode(r Record) ([]byte, error) {
	switch v := r.(type) {
	case *Config:
		c := *v
		c.Type = TypeConfig
		return json.Marshal(&c)
	case *Data:
		d := *v
		d.Type = TypeData
		return json.Marshal(&d)
	default:
		return nil, fmt.Errorf("encode: unsupported record %T", r)
	}
}

// Equal reports whether c and o describe the same chart. The comparison is
// over the decoded values, so key order or spacing on the wire never makes
// two configs differ.
func (c *Config) Equal(o *Config) bool {
	if c == nil || o == nil {
		return c == o
	}
	return reflect.DeepEqual(c, o)
}
