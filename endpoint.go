package rest

import (
	"regexp"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xompass/vsaas-camera-proxy/http_errors"
)

type RateLimit struct {
	Max    int
	Window time.Duration
	Key    string
}

type Validable interface {
	Validate(ctx *EndpointContext) error
}

type Param struct {
	in        ParamLocation
	name      string
	paramType string
	required  bool
	rule      string
	pattern   *regexp.Regexp
}

// WithRule attaches a validator tag (e.g. "hostname_port|hostname") checked against the raw value.
func (p Param) WithRule(rule string) Param {
	p.rule = rule
	return p
}

// WithPattern restricts which path values route to the endpoint. A path value
// that does not match answers 404 before authorization runs.
func (p Param) WithPattern(expr string) Param {
	p.pattern = regexp.MustCompile(expr)
	return p
}

func NewQueryParam(name string, paramType QueryParamType, required ...bool) Param {
	return Param{
		in:        InQuery,
		name:      name,
		paramType: string(paramType),
		required:  len(required) > 0 && required[0],
	}
}

func NewPathParam(name string, paramType PathParamType, required ...bool) Param {
	return Param{
		in:        InPath,
		name:      name,
		paramType: string(paramType),
		required:  len(required) > 0 && required[0],
	}
}

type Endpoint struct {
	Name        string
	Method      EndpointMethod
	Path        string
	Handler     func(c *EndpointContext) error
	BodyParams  func() any                       // Returns the struct the request body is bound to.
	RateLimiter func(*EndpointContext) RateLimit // Rate limit configuration for the endpoint.
	Public      bool                             // If true, the endpoint is reachable without a verified access token.
	ActionType  ActionType
	Accepts     []Param
	app         *RestApp
}

// run is the request pipeline shared by every endpoint:
// authorize, gate, rate limit, body, params, handler.
func (ep *Endpoint) run(c echo.Context) error {
	if !ep.routes(c) {
		return echo.ErrNotFound
	}

	ctx := &EndpointContext{
		EchoCtx:   c,
		Endpoint:  ep,
		App:       ep.app,
		IpAddress: c.RealIP(),
		context:   c.Request().Context(),
	}

	if err := ep.app.Authorize(ctx); err != nil {
		return err
	}

	if !ep.Public {
		if err := requireAccessToken(ctx); err != nil {
			return err
		}
	}

	if err := checkRateLimit(ctx); err != nil {
		return err
	}

	if err := parseBody(ep, ctx); err != nil {
		return err
	}

	if err := parseAllParams(ep, ctx); err != nil {
		return err
	}

	return ep.Handler(ctx)
}

// requireAccessToken rejects requests whose context carries no verified access token.
func requireAccessToken(ctx *EndpointContext) error {
	if _, ok := ctx.AccessToken(); !ok {
		return http_errors.UnauthorizedError("Unauthorized")
	}
	return nil
}

// routes reports whether every patterned path param matches the request.
func (ep *Endpoint) routes(c echo.Context) bool {
	for _, param := range ep.Accepts {
		if param.in == InPath && param.pattern != nil && !param.pattern.MatchString(c.Param(param.name)) {
			return false
		}
	}
	return true
}
