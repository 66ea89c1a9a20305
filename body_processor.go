package rest

import (
	"errors"
	"reflect"
)

// validateAny prefers the body's own Validate method over its validate tags.
func validateAny(ctx *EndpointContext, val any) error {
	if val == nil {
		return errors.New("cannot validate nil value")
	}

	if v, ok := val.(Validable); ok {
		return v.Validate(ctx)
	}

	if isValidable(val) {
		return ctx.ValidateStruct(val)
	}

	return nil
}

func isValidable(val any) bool {
	if val == nil {
		return false
	}

	meta, err := structMetadata(reflect.TypeOf(val))
	if err != nil {
		return false
	}
	return meta.hasValidate
}
