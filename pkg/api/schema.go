package api

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Kind is the shape category a Schema accepts.
type Kind string

const (
	KindAny     Kind = "any"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// Field is a named member of an object Schema.
type Field struct {
	Name     string
	Schema   *Schema
	Required bool
}

// Schema describes the shape and required fields of a value flowing through a
// workflow: the trigger payload, a step input or a step output.
//
// Schemas are plain values built with the constructors below:
//
//	api.Object(
//	    api.Required("dynamicInput", api.String()),
//	    api.Optional("threadId", api.String()),
//	)
//
// Object schemas are open by default: keys that are not declared are
// accepted. Use Strict to reject them.
type Schema struct {
	Kind        Kind
	Fields      []Field
	Items       *Schema
	AllowNull   bool
	Closed      bool
	Description string
}

func Any() *Schema     { return &Schema{Kind: KindAny} }
func String() *Schema  { return &Schema{Kind: KindString} }
func Number() *Schema  { return &Schema{Kind: KindNumber} }
func Integer() *Schema { return &Schema{Kind: KindInteger} }
func Boolean() *Schema { return &Schema{Kind: KindBoolean} }

// ArrayOf returns an array schema whose elements must satisfy items.
// A nil items schema accepts any element.
func ArrayOf(items *Schema) *Schema {
	return &Schema{Kind: KindArray, Items: items}
}

// Object returns an object schema with the given fields.
func Object(fields ...Field) *Schema {
	return &Schema{Kind: KindObject, Fields: fields}
}

// Required declares a field that must be present and non-null
// (unless its schema is Nullable).
func Required(name string, s *Schema) Field {
	return Field{Name: name, Schema: s, Required: true}
}

// Optional declares a field that may be absent. When present it must satisfy s.
func Optional(name string, s *Schema) Field {
	return Field{Name: name, Schema: s}
}

// Nullable returns a copy of s that also accepts nil.
func (s *Schema) Nullable() *Schema {
	c := *s
	c.AllowNull = true
	return &c
}

// Strict returns a copy of an object schema that rejects undeclared members:
// keys of a map value, or exported fields of a struct value.
func (s *Schema) Strict() *Schema {
	c := *s
	c.Closed = true
	return &c
}

// Describe returns a copy of s carrying a human readable description.
func (s *Schema) Describe(desc string) *Schema {
	c := *s
	c.Description = desc
	return &c
}

// Clone returns a deep copy of s. Cloning nil gives nil.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	c := *s
	c.Items = s.Items.Clone()
	if s.Fields != nil {
		c.Fields = make([]Field, len(s.Fields))
		for i, f := range s.Fields {
			f.Schema = f.Schema.Clone()
			c.Fields[i] = f
		}
	}
	return &c
}

// Field returns the declared field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate reports whether v satisfies the schema. A nil Schema accepts
// everything. The returned error, if any, is a *ContractError.
//
// Objects may be maps with string keys or structs; struct fields are matched
// by their json tag name, falling back to the Go field name.
func (s *Schema) Validate(v any) error {
	if ce := s.validate("$", reflect.ValueOf(v)); ce != nil {
		return ce
	}
	return nil
}

func (s *Schema) validate(path string, rv reflect.Value) *ContractError {
	if s == nil || s.Kind == KindAny {
		return nil
	}

	rv = indirect(rv)
	if !rv.IsValid() {
		if s.AllowNull {
			return nil
		}
		return violation(path, "expected %s, got null", s.Kind)
	}

	switch s.Kind {
	case KindString:
		if rv.Kind() != reflect.String {
			return violation(path, "expected string, got %s", describe(rv))
		}
	case KindBoolean:
		if rv.Kind() != reflect.Bool {
			return violation(path, "expected boolean, got %s", describe(rv))
		}
	case KindNumber:
		if !isNumber(rv) {
			return violation(path, "expected number, got %s", describe(rv))
		}
	case KindInteger:
		if !isInteger(rv) {
			return violation(path, "expected integer, got %s", describe(rv))
		}
	case KindArray:
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return violation(path, "expected array, got %s", describe(rv))
		}
		for i := 0; i < rv.Len(); i++ {
			if ce := s.Items.validate(fmt.Sprintf("%s[%d]", path, i), rv.Index(i)); ce != nil {
				return ce
			}
		}
	case KindObject:
		return s.validateObject(path, rv)
	default:
		return violation(path, "unknown schema kind %q", s.Kind)
	}
	return nil
}

func (s *Schema) validateObject(path string, rv reflect.Value) *ContractError {
	members, ok := objectMembers(rv)
	if !ok {
		return violation(path, "expected object, got %s", describe(rv))
	}

	for _, f := range s.Fields {
		fieldPath := path + "." + f.Name
		val, present := members[f.Name]
		if present {
			val = indirect(val)
		}
		if !present || !val.IsValid() {
			if f.Required && (f.Schema == nil || !f.Schema.AllowNull) {
				return violation(fieldPath, "missing required field")
			}
			continue
		}
		if ce := f.Schema.validate(fieldPath, val); ce != nil {
			return ce
		}
	}

	if s.Closed {
		for name := range members {
			if _, declared := s.Field(name); !declared {
				return violation(path+"."+name, "unexpected field")
			}
		}
	}
	return nil
}

// Lookup returns the member called name of an object-like value (a map with
// string keys or a struct). Struct members are matched the same way Validate
// matches them.
func Lookup(v any, name string) (any, bool) {
	members, ok := objectMembers(indirect(reflect.ValueOf(v)))
	if !ok {
		return nil, false
	}
	val, ok := members[name]
	if !ok {
		return nil, false
	}
	val = indirect(val)
	if !val.IsValid() {
		return nil, true
	}
	return val.Interface(), true
}

func objectMembers(rv reflect.Value) (map[string]reflect.Value, bool) {
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		out := make(map[string]reflect.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value()
		}
		return out, true
	case reflect.Struct:
		t := rv.Type()
		out := make(map[string]reflect.Value, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() {
				continue
			}
			name := sf.Name
			if tag, ok := sf.Tag.Lookup("json"); ok {
				tagName, _, _ := strings.Cut(tag, ",")
				if tagName == "-" {
					continue
				}
				if tagName != "" {
					name = tagName
				}
			}
			out[name] = rv.Field(i)
		}
		return out, true
	default:
		return nil, false
	}
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func isNumber(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// isInteger also accepts integral floats, which is what JSON decoding produces.
func isInteger(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return !math.IsInf(f, 0) && f == math.Trunc(f)
	}
	return isNumber(rv)
}

func describe(rv reflect.Value) string {
	switch {
	case !rv.IsValid():
		return "null"
	case rv.Kind() == reflect.String:
		return "string"
	case rv.Kind() == reflect.Bool:
		return "boolean"
	case isNumber(rv):
		return "number"
	case rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array:
		return "array"
	case rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct:
		return "object"
	}
	return rv.Kind().String()
}

func violation(path, format string, args ...any) *ContractError {
	return &ContractError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
