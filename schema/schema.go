// Package schema validates and reshapes JSON payloads returned by the camera
// service. A schema lists the fields it expects; validation keeps only those
// fields, coerces them to their declared kind and reports every failure in a
// field error map.
package schema

import (
	"strconv"

	"github.com/go-errors/errors"
	"github.com/valyala/fastjson"
)

var parserPool fastjson.ParserPool

type Kind uint8

const (
	String Kind = iota
	Integer
	Float
	Boolean
	URL
	Email
	DateTime
	Nested
)

const NonFieldErrors = "non_field_errors"

// Field describes one member of a schema. Nested fields carry their own schema
// and Many turns any field into a list of that field.
type Field struct {
	Name      string
	Kind      Kind
	MaxLength int
	Optional  bool
	Nullable  bool
	Many      bool
	Schema    *Schema
}

type Schema struct {
	Name   string
	Fields []Field
}

// Errors maps a field name to []string messages, a nested Errors value, or a
// []any of per item errors aligned with the input list.
type Errors map[string]any

// Result is either a validated Value or the Errors explaining why validation failed.
type Result struct {
	Value  *Object
	Errors Errors
}

func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Validate parses data and validates it. Malformed JSON is reported as an
// error rather than as a validation result.
func (s *Schema) Validate(data []byte) (Result, error) {
	parser := parserPool.Get()
	defer parserPool.Put(parser)

	value, err := parser.ParseBytes(data)
	if err != nil {
		return Result{}, errors.WrapPrefix(err, s.Name+": upstream payload is not valid JSON", 0)
	}

	return s.ValidateValue(value), nil
}

// ValidateValue validates an already parsed payload.
func (s *Schema) ValidateValue(value *fastjson.Value) Result {
	object, errs := s.validateObject(value)
	if len(errs) > 0 {
		return Result{Errors: errs}
	}
	return Result{Value: object}
}

func (s *Schema) validateObject(value *fastjson.Value) (*Object, Errors) {
	if value == nil || value.Type() != fastjson.TypeObject {
		return nil, Errors{NonFieldErrors: []string{"Invalid data. Expected a dictionary, but got " + typeName(value) + "."}}
	}

	result := NewObject()
	errs := Errors{}

	for _, field := range s.Fields {
		raw := value.Get(field.Name)
		if raw == nil {
			if !field.Optional {
				errs[field.Name] = []string{msgRequired}
			}
			continue
		}

		if raw.Type() == fastjson.TypeNull {
			if field.Nullable {
				result.Set(field.Name, nil)
			} else {
				errs[field.Name] = []string{msgNull}
			}
			continue
		}

		converted, fieldErr := field.validate(raw)
		if fieldErr != nil {
			errs[field.Name] = fieldErr
			continue
		}
		result.Set(field.Name, converted)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return result, nil
}

func (f Field) validate(raw *fastjson.Value) (any, any) {
	if f.Many {
		return f.validateList(raw)
	}
	return f.validateOne(raw)
}

func (f Field) validateList(raw *fastjson.Value) (any, any) {
	if raw.Type() != fastjson.TypeArray {
		return nil, Errors{NonFieldErrors: []string{"Expected a list of items but got type " + strconv.Quote(typeName(raw)) + "."}}
	}

	items := raw.GetArray()
	values := make([]any, 0, len(items))
	itemErrors := make([]any, len(items))
	failed := false

	for i, item := range items {
		if item.Type() == fastjson.TypeNull {
			itemErrors[i] = []string{msgNull}
			failed = true
			continue
		}

		converted, itemErr := f.validateOne(item)
		if itemErr != nil {
			itemErrors[i] = itemErr
			failed = true
			continue
		}
		itemErrors[i] = Errors{}
		values = append(values, converted)
	}

	if failed {
		return nil, itemErrors
	}
	return values, nil
}

func (f Field) validateOne(raw *fastjson.Value) (any, any) {
	if f.Kind == Nested {
		object, errs := f.Schema.validateObject(raw)
		if errs != nil {
			return nil, errs
		}
		return object, nil
	}

	converted, message := convert(f, raw)
	if message != "" {
		return nil, []string{message}
	}
	return converted, nil
}

// typeName names a JSON value the way the error messages expect.
func typeName(value *fastjson.Value) string {
	if value == nil {
		return "NoneType"
	}

	switch value.Type() {
	case fastjson.TypeString:
		return "str"
	case fastjson.TypeNumber:
		if _, err := value.Int64(); err == nil {
			return "int"
		}
		return "float"
	case fastjson.TypeTrue, fastjson.TypeFalse:
		return "bool"
	case fastjson.TypeArray:
		return "list"
	case fastjson.TypeObject:
		return "dict"
	default:
		return "NoneType"
	}
}
