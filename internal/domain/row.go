package domain

import (
	"strconv"
	"strings"
)

// Cell is one header/value pair of a source row.
type Cell struct {
	Header string
	Value  Value
}

// Row is one raw source row in source column order. Headers are whatever
// the uploaded file carried; case and language are not normalized here.
// Order matters: duplicate-header resolution lets the later column win.
type Row []Cell

// Get returns the value under the given header, or the null value when
// the row has no such column.
func (r Row) Get(header string) Value {
	for _, c := range r {
		if c.Header == header {
			return c.Value
		}
	}
	return NullValue()
}

// ValueKind discriminates the closed set of cell value types a tabular
// parser can produce.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
)

// Value is a loosely-typed cell value. Coercion to string happens
// explicitly at the normalization boundary, never implicitly.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

// StringValue wraps a string cell.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// NumberValue wraps a numeric cell.
func NumberValue(f float64) Value { return Value{Kind: ValueNumber, Num: f} }

// BoolValue wraps a boolean cell.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// NullValue is the missing/empty cell.
func NullValue() Value { return Value{Kind: ValueNull} }

// Coerce returns the trimmed string form of the value. Null becomes the
// empty string.
func (v Value) Coerce() string {
	switch v.Kind {
	case ValueString:
		return strings.TrimSpace(v.Str)
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}
