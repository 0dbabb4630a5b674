// Package model provides domain types shared across packages.
package model

import (
	"strings"
)

// RecordField is a single named value of a vault record.
// Value is nil when the vault holds no value for the field.
type RecordField struct {
	Name  string  `json:"name" yaml:"name"`
	Value *string `json:"value,omitempty" yaml:"value,omitempty"`
}

// StringValue returns the field value, or "" when it is unset.
func (f RecordField) StringValue() string {
	if f.Value == nil {
		return ""
	}
	return *f.Value
}

// NewField creates a field with a value.
func NewField(name, value string) RecordField {
	return RecordField{Name: name, Value: &value}
}

// Record is a vault entry: an id, a display name and an ordered field list.
// Field names are not unique; lookups use the first case-insensitive match.
type Record struct {
	ID     string        `json:"id" yaml:"id"`
	Name   string        `json:"name,omitempty" yaml:"name,omitempty"`
	Fields []RecordField `json:"fields" yaml:"fields"`
}

// Field returns the first field whose name matches case-insensitively.
func (r *Record) Field(name string) (RecordField, bool) {
	if r == nil {
		return RecordField{}, false
	}
	for _, f := range r.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return RecordField{}, false
}

// HasField reports whether the record has a field with the given name.
func (r *Record) HasField(name string) bool {
	_, ok := r.Field(name)
	return ok
}

// IsDisplayNameAlias reports whether name refers to the record's display
// name when no field of that name exists.
func IsDisplayNameAlias(name string) bool {
	return strings.EqualFold(name, "Name") || strings.EqualFold(name, "Title")
}

// DisplayValue resolves a name against the field list first and then
// against the virtual Name/Title fields.
func (r *Record) DisplayValue(name string) (string, bool) {
	if f, ok := r.Field(name); ok {
		return f.StringValue(), true
	}
	if r != nil && IsDisplayNameAlias(name) {
		return r.Name, true
	}
	return "", false
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{ID: r.ID, Name: r.Name, Fields: make([]RecordField, len(r.Fields))}
	for i, f := range r.Fields {
		out.Fields[i] = RecordField{Name: f.Name}
		if f.Value != nil {
			v := *f.Value
			out.Fields[i].Value = &v
		}
	}
	return out
}
