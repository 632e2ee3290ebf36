// Package hdf holds the Heimdall Data Format model and assembles converted controls into a report.
package hdf

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Finding statuses.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// NistTag is the tag key every control carries.
const NistTag = "nist"

// Finding is one evaluated result of a control.
type Finding struct {
	Status      string   `json:"status"`
	CodeDesc    string   `json:"code_desc"`
	Message     string   `json:"message,omitempty"`
	SkipMessage string   `json:"skip_message,omitempty"`
	Backtrace   []string `json:"backtrace,omitempty"`
	RunTime     float64  `json:"run_time"`
	StartTime   string   `json:"start_time"`
}

// ValidStatus reports whether s is one of the HDF finding statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped, StatusError:
		return true
	}
	return false
}

// Description is a labelled block of control text.
type Description struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// SourceLocation points at the code or resource a control was derived from.
type SourceLocation struct {
	Ref  string `json:"ref,omitempty"`
	Line int    `json:"line,omitempty"`
}

// Control is a unique check with its findings.
type Control struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Desc           string         `json:"desc"`
	Impact         float64        `json:"impact"`
	Tags           *Tags          `json:"tags"`
	Descriptions   []Description  `json:"descriptions"`
	Refs           []any          `json:"refs"`
	SourceLocation SourceLocation `json:"source_location"`
	Code           string         `json:"code"`
	Results        []Finding      `json:"results"`
}

// Tags is an insertion-ordered tag map.
type Tags struct {
	keys   []string
	values map[string]any
}

// NewTags creates a tag map holding the nist tag.
func NewTags(nist []string) *Tags {
	t := &Tags{values: map[string]any{}}
	t.Set(NistTag, nist)
	return t
}

// Set adds or replaces a tag. New keys keep their insertion order.
func (t *Tags) Set(key string, value any) {
	if t.values == nil {
		t.values = map[string]any{}
	}
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

// Get returns the tag value.
func (t *Tags) Get(key string) (any, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.values[key]
	return v, ok
}

// Keys returns the tag keys in insertion order.
func (t *Tags) Keys() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.keys...)
}

// Nist returns the nist tag.
func (t *Tags) Nist() []string {
	v, _ := t.Get(NistTag)
	nist, _ := v.([]string)
	return nist
}

// MarshalJSON implements json.Marshaler.
func (t *Tags) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(t.values[key])
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, preserving the document key order.
func (t *Tags) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("tags must be a JSON object")
	}
	*t = Tags{values: map[string]any{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var value any
		if key == NistTag {
			var nist []string
			if err := json.Unmarshal(raw, &nist); err == nil {
				t.Set(key, nist)
				continue
			}
		}
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		t.Set(key, value)
	}
	_, err = dec.Token()
	return err
}

// Platform identifies the producer of a report.
type Platform struct {
	Name    string `json:"name"`
	Release string `json:"release"`
}

// Statistics carries run statistics; duration is always present.
type Statistics map[string]any

// Profile is the single profile of a converted report.
type Profile struct {
	Name           string    `json:"name"`
	Version        string    `json:"version"`
	Title          string    `json:"title"`
	Maintainer     string    `json:"maintainer"`
	Summary        string    `json:"summary"`
	License        string    `json:"license"`
	Copyright      string    `json:"copyright"`
	CopyrightEmail string    `json:"copyright_email"`
	Supports       []any     `json:"supports"`
	Attributes     []any     `json:"attributes"`
	Depends        []any     `json:"depends"`
	Groups         []any     `json:"groups"`
	Status         string    `json:"status"`
	Controls       []Control `json:"controls"`
	SHA256         string    `json:"sha256,omitempty"`
}

// Report is the HDF document envelope.
type Report struct {
	Platform   Platform   `json:"platform"`
	Version    string     `json:"version"`
	Statistics Statistics `json:"statistics"`
	Profiles   []Profile  `json:"profiles"`
}

// Profile returns the report's only profile.
func (r *Report) Profile() *Profile {
	if len(r.Profiles) == 0 {
		return nil
	}
	return &r.Profiles[0]
}

// JSON serializes the report.
func (r *Report) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// IndentedJSON serializes the report for humans.
func (r *Report) IndentedJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
