package schema

import (
	"github.com/bytedance/sonic"
)

// Object is a validated JSON object that keeps its fields in schema order.
type Object struct {
	keys   []string
	values map[string]any
}

func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

func (o *Object) Set(key string, value any) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *Object) Get(key string) (any, bool) {
	value, ok := o.values[key]
	return value, ok
}

func (o *Object) Keys() []string {
	return o.keys
}

func (o *Object) Len() int {
	return len(o.keys)
}

func (o *Object) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 64*len(o.keys)+2)
	buf = append(buf, '{')

	for i, key := range o.keys {
		if i > 0 {
			buf = append(buf, ',')
		}

		encodedKey, err := sonic.Marshal(key)
		if err != nil {
			return nil, err
		}
		encodedValue, err := sonic.Marshal(o.values[key])
		if err != nil {
			return nil, err
		}

		buf = append(buf, encodedKey...)
		buf = append(buf, ':')
		buf = append(buf, encodedValue...)
	}

	return append(buf, '}'), nil
}
