package rest

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// bodyStructFieldsCache caches tag metadata per struct type
var bodyStructFieldsCache sync.Map

type fieldProcessorFunc func(reflect.Value)

type cachedStructField struct {
	index      []int
	processors []fieldProcessorFunc
}

type cachedBodyStructMetadata struct {
	fields      []cachedStructField
	hasValidate bool
}

var normalizers = map[string]fieldProcessorFunc{
	"trim": trimNormalizer,
}

func parseTag(tag string) []string {
	var result []string
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func buildStructFields(t reflect.Type) (cachedBodyStructMetadata, error) {
	meta := cachedBodyStructMetadata{}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		if sf.Tag.Get("validate") != "" {
			meta.hasValidate = true
		}

		var processors []fieldProcessorFunc
		for _, name := range parseTag(sf.Tag.Get("normalize")) {
			fn, ok := normalizers[name]
			if !ok {
				return cachedBodyStructMetadata{}, fmt.Errorf("field %s uses unknown normalizer %q", sf.Name, name)
			}
			processors = append(processors, fn)
		}
		if len(processors) == 0 {
			continue
		}

		meta.fields = append(meta.fields, cachedStructField{index: []int{i}, processors: processors})
	}

	return meta, nil
}

func structMetadata(rt reflect.Type) (cachedBodyStructMetadata, error) {
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return cachedBodyStructMetadata{}, fmt.Errorf("expected a struct, got: %s", rt.Kind())
	}

	if cached, ok := bodyStructFieldsCache.Load(rt); ok {
		return cached.(cachedBodyStructMetadata), nil
	}

	meta, err := buildStructFields(rt)
	if err != nil {
		return cachedBodyStructMetadata{}, err
	}
	bodyStructFieldsCache.Store(rt, meta)
	return meta, nil
}

// normalizeStruct applies the processors named in the `normalize` tag to the
// fields of the struct v points to.
func normalizeStruct(v any) error {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("expected a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("expected a struct, got: %s", rv.Kind())
	}

	meta, err := structMetadata(rv.Type())
	if err != nil {
		return err
	}

	for _, fs := range meta.fields {
		fv := rv.FieldByIndex(fs.index)
		if !fv.CanSet() {
			continue
		}
		for _, fn := range fs.processors {
			fn(fv)
		}
	}

	return nil
}

func processStringValue(v reflect.Value, transform func(string) string) {
	switch v.Kind() {
	case reflect.String:
		v.SetString(transform(v.String()))
	case reflect.Ptr:
		if !v.IsNil() && v.Elem().Kind() == reflect.String {
			v.Elem().SetString(transform(v.Elem().String()))
		}
	}
}

func trimNormalizer(v reflect.Value) {
	processStringValue(v, strings.TrimSpace)
}
