package rest

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/xompass/vsaas-camera-proxy/http_errors"
)

// parseBody binds the JSON body of the request to the endpoint's body struct,
// then normalizes and validates it. Bodies are accepted on any method, GET
// included, as long as the endpoint declares BodyParams.
func parseBody(e *Endpoint, ec *EndpointContext) error {
	if e.BodyParams == nil {
		return nil
	}

	form := e.BodyParams()
	if form == nil {
		return http_errors.BadRequestError("Request body cannot be nil")
	}

	req := ec.EchoCtx.Request()
	if req.Header.Get(echo.HeaderContentType) == "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	if err := ec.EchoCtx.Bind(form); err != nil {
		ec.App.Debugf("cannot bind request body for %s: %v", e.Name, err)
		return http_errors.BadRequestError("Invalid JSON")
	}

	if err := normalizeStruct(form); err != nil {
		return asBadRequest(err)
	}

	if err := validateAny(ec, form); err != nil {
		return asBadRequest(err)
	}

	ec.ParsedBody = form
	return nil
}

func asBadRequest(err error) error {
	var errResponse *http_errors.ErrorResponse
	if errors.As(err, &errResponse) {
		return errResponse
	}
	return http_errors.ValidationError(getFriendlyValidationErrors(err))
}

// ParamErrors maps a parameter name to its error messages.
type ParamErrors map[string][]string

func (pe ParamErrors) Error() string {
	names := make([]string, 0, len(pe))
	for name := range pe {
		names = append(names, name)
	}
	sort.Strings(names)

	messages := make([]string, 0, len(names))
	for _, name := range names {
		messages = append(messages, name+": "+strings.Join(pe[name], ", "))
	}
	return strings.Join(messages, "; ")
}

func parseAllParams(e *Endpoint, ec *EndpointContext) error {
	ec.ParsedQuery = make(map[string]any)
	ec.ParsedPath = make(map[string]any)

	paramErrors := ParamErrors{}

	for _, param := range e.Accepts {
		val, err := parseParam(ec, param)
		if err != nil {
			paramErrors[param.name] = append(paramErrors[param.name], err.Error())
			continue
		}

		switch param.in {
		case InQuery:
			ec.ParsedQuery[param.name] = val
		case InPath:
			ec.ParsedPath[param.name] = val
		}
	}

	if len(paramErrors) > 0 {
		return paramErrors
	}

	return nil
}

func parseParam(ctx *EndpointContext, param Param) (any, error) {
	if ctx == nil || ctx.EchoCtx == nil {
		return nil, errors.New("endpoint context is required to read parameters")
	}

	var raw string

	switch param.in {
	case InQuery:
		raw = ctx.EchoCtx.QueryParam(param.name)
	case InPath:
		raw = ctx.EchoCtx.Param(param.name)
	}

	if param.required && raw == "" {
		return nil, errors.New("This field is required.")
	}

	if raw == "" {
		return nil, nil
	}

	if param.rule != "" && ctx.App != nil {
		if err := ctx.App.ValidatorInstance.Var(raw, param.rule); err != nil {
			return nil, fmt.Errorf("%q is not a valid value.", raw)
		}
	}

	switch param.paramType {
	case string(QueryParamTypeString):
		return raw, nil
	case string(QueryParamTypeInt):
		value, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("A valid integer is required.")
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %s", param.paramType)
	}
}

// getFriendlyValidationErrors turns validator errors into a field -> messages map.
func getFriendlyValidationErrors(err error) map[string][]string {
	friendlyErrors := map[string][]string{}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		friendlyErrors["non_field_errors"] = []string{err.Error()}
		return friendlyErrors
	}

	for _, e := range ve {
		message := getErrorMessage(e.Tag(), e.Kind().String(), e.Param())
		if message == "" {
			message = "This field is invalid."
		}
		friendlyErrors[e.Field()] = append(friendlyErrors[e.Field()], message)
	}

	return friendlyErrors
}

func getErrorMessage(tag string, kind string, param string) string {
	lengthKind := kind == "string" || kind == "slice" || kind == "array"

	switch tag {
	case "required":
		return "This field is required."
	case "max":
		if lengthKind {
			return "Ensure this field has no more than " + param + " characters."
		}
		return "Ensure this value is less than or equal to " + param + "."
	case "min":
		if lengthKind {
			return "Ensure this field has at least " + param + " characters."
		}
		return "Ensure this value is greater than or equal to " + param + "."
	case "gte":
		return "Ensure this value is greater than or equal to " + param + "."
	case "lte":
		return "Ensure this value is less than or equal to " + param + "."
	case "gt":
		return "Ensure this value is greater than " + param + "."
	case "lt":
		return "Ensure this value is less than " + param + "."
	case "email":
		return "Enter a valid email address."
	case "url", "http_url":
		return "Enter a valid URL."
	case "oneof":
		return "This field must be one of: " + param + "."
	default:
		return ""
	}
}
