package rest

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// EndpointContext is the per-request state handed to every handler.
type EndpointContext struct {
	App         *RestApp
	EchoCtx     echo.Context
	Endpoint    *Endpoint
	ParsedBody  any
	ParsedQuery map[string]any
	ParsedPath  map[string]any
	IpAddress   string
	Principal   Principal
	Token       AuthToken
	context     context.Context
}

func (eCtx *EndpointContext) Context() context.Context {
	if eCtx.context == nil {
		return context.Background()
	}
	return eCtx.context
}

// AccessToken returns the verified opaque access token attached by the authorizer.
func (eCtx *EndpointContext) AccessToken() (string, bool) {
	if eCtx.Token == nil || !eCtx.Token.IsValid() {
		return "", false
	}
	return eCtx.Token.GetAccessToken(), true
}

func (eCtx *EndpointContext) ValidateStruct(v any) error {
	if v == nil {
		return nil
	}
	return eCtx.App.ValidatorInstance.Struct(v)
}

// PathString returns a parsed string path parameter.
func (eCtx *EndpointContext) PathString(name string) string {
	value, _ := eCtx.ParsedPath[name].(string)
	return value
}

// PathInt returns a parsed integer path parameter.
func (eCtx *EndpointContext) PathInt(name string) int {
	value, _ := eCtx.ParsedPath[name].(int)
	return value
}

// QueryString returns a parsed string query parameter, empty when absent.
func (eCtx *EndpointContext) QueryString(name string) string {
	value, _ := eCtx.ParsedQuery[name].(string)
	return value
}

// JSON sends a JSON response, 200 unless a status code is given.
func (ctx *EndpointContext) JSON(response any, statusCode ...int) error {
	status := http.StatusOK
	if len(statusCode) > 0 {
		status = statusCode[0]
	}
	return ctx.EchoCtx.JSON(status, response)
}
