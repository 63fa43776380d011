package aiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Field is one column of a result row.
type Field struct {
	Key   string
	Value any // string, json.Number, bool or nil
}

// Text renders the value for display.
func (f Field) Text() string {
	switch v := f.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Row is a flat record with its keys in the order the endpoint sent them.
type Row []Field

// Get returns the value for key.
func (r Row) Get(key string) (Field, bool) {
	for _, f := range r {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// UnmarshalJSON accepts a JSON object whose values are all scalars.
func (r *Row) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*r = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row must be a JSON object")
	}
	row := Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		val, err := dec.Token()
		if err != nil {
			return err
		}
		if _, nested := val.(json.Delim); nested {
			return fmt.Errorf("row field %q: nested values are not supported", key)
		}
		row = append(row, Field{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = row
	return nil
}

// MarshalJSON writes the fields in order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Columns returns the union of keys across rows, in first-seen order.
func Columns(rows []Row) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for _, f := range r {
			if !seen[f.Key] {
				seen[f.Key] = true
				cols = append(cols, f.Key)
			}
		}
	}
	return cols
}
