package rest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-errors/errors"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xompass/vsaas-camera-proxy/http_errors"
)

type testToken struct {
	accessToken string
}

func (t *testToken) IsValid() bool          { return t.accessToken != "" }
func (t *testToken) GetToken() string       { return "session." + t.accessToken }
func (t *testToken) GetAccessToken() string { return t.accessToken }
func (t *testToken) GetExpiresAt() int64    { return 0 }

type testPrincipal struct{}

func (testPrincipal) GetPrincipalID() string   { return "viewer" }
func (testPrincipal) GetPrincipalRole() string { return "camera_viewer" }

// headerAuthorizer trusts the X-Test-Token header; it stands in for session verification.
func headerAuthorizer(ctx *EndpointContext) (Principal, AuthToken, error) {
	value := ctx.EchoCtx.Request().Header.Get("X-Test-Token")
	if value == "" {
		return nil, nil, nil
	}
	return testPrincipal{}, &testToken{accessToken: value}, nil
}

func newPipelineApp(t *testing.T, options RestAppOptions, endpoints ...*Endpoint) *RestApp {
	t.Helper()

	options.Name = "pipeline-test"
	options.LogLevel = LogLevelError
	if options.Authorizer == nil {
		options.Authorizer = headerAuthorizer
	}

	app := NewRestApp(options)
	t.Cleanup(func() { _ = app.Destroy() })
	app.RegisterEndpoints(endpoints, app.Group(""))
	return app
}

func noContent(c *EndpointContext) error {
	return c.EchoCtx.NoContent(http.StatusNoContent)
}

func get(app *RestApp, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	app.EchoApp.ServeHTTP(rec, req)
	return rec
}

func TestPipeline_GateRejectsAnonymous(t *testing.T) {
	var handled atomic.Int32
	app := newPipelineApp(t, RestAppOptions{}, &Endpoint{
		Name:    "private",
		Method:  MethodGET,
		Path:    "/private",
		Accepts: []Param{NewQueryParam("start", QueryParamTypeString, true)},
		Handler: func(c *EndpointContext) error {
			handled.Add(1)
			token, ok := c.AccessToken()
			require.True(t, ok)
			return c.JSON(map[string]string{"token": token, "principal": c.Principal.GetPrincipalID()})
		},
	})

	rec := get(app, "/private", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())

	rec = get(app, "/private?start=x", map[string]string{"X-Test-Token": "pat"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token":"pat","principal":"viewer"}`, rec.Body.String())

	assert.Equal(t, int32(1), handled.Load())
}

func TestPipeline_GateRunsBeforeParams(t *testing.T) {
	app := newPipelineApp(t, RestAppOptions{}, &Endpoint{
		Name:    "private",
		Method:  MethodGET,
		Path:    "/private/:id",
		Accepts: []Param{NewPathParam("id", PathParamTypeInt, true)},
		Handler: noContent,
	})

	rec := get(app, "/private/abc", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(app, "/private/abc", map[string]string{"X-Test-Token": "pat"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"id":["A valid integer is required."]}`, rec.Body.String())

	rec = get(app, "/private/7", map[string]string{"X-Test-Token": "pat"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPipeline_PublicEndpoint(t *testing.T) {
	app := newPipelineApp(t, RestAppOptions{}, &Endpoint{
		Name:    "public",
		Method:  MethodGET,
		Path:    "/public",
		Public:  true,
		Handler: func(c *EndpointContext) error { return c.JSON(map[string]string{"status": "ok"}) },
	})

	rec := get(app, "/public", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPipeline_PathPatternRoutesBeforeGate(t *testing.T) {
	var handled atomic.Int32
	app := newPipelineApp(t, RestAppOptions{}, &Endpoint{
		Name:    "detail",
		Method:  MethodGET,
		Path:    "/items/:id",
		Accepts: []Param{NewPathParam("id", PathParamTypeInt, true).WithPattern(`^[0-9]+$`)},
		Handler: func(c *EndpointContext) error {
			handled.Add(1)
			return c.JSON(map[string]int{"id": c.PathInt("id")})
		},
	})

	for _, target := range []string{"/items/abc", "/items/-1", "/items/12a"} {
		rec := get(app, target, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.JSONEq(t, `{"detail":"Not Found"}`, rec.Body.String(), target)

		rec = get(app, target, map[string]string{"X-Test-Token": "pat"})
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}

	rec := get(app, "/items/42", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(app, "/items/42", map[string]string{"X-Test-Token": "pat"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":42}`, rec.Body.String())
	assert.Equal(t, int32(1), handled.Load())
}

func TestPipeline_AuthorizerError(t *testing.T) {
	app := newPipelineApp(t, RestAppOptions{
		Authorizer: func(*EndpointContext) (Principal, AuthToken, error) {
			return nil, nil, errors.New("token store unavailable")
		},
	}, &Endpoint{
		Name:    "public",
		Method:  MethodGET,
		Path:    "/public",
		Public:  true,
		Handler: noContent,
	})

	rec := get(app, "/public", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal Server Error"}`, rec.Body.String())
}

func TestPipeline_RateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	app := newPipelineApp(t, RestAppOptions{
		EnableRateLimiter: true,
		Redis:             &redis.Options{Addr: mr.Addr()},
	}, &Endpoint{
		Name:   "limited",
		Method: MethodGET,
		Path:   "/limited",
		Public: true,
		RateLimiter: func(*EndpointContext) RateLimit {
			return RateLimit{Max: 2, Window: time.Minute}
		},
		Handler: noContent,
	})

	assert.Equal(t, http.StatusNoContent, get(app, "/limited", nil).Code)
	assert.Equal(t, http.StatusNoContent, get(app, "/limited", nil).Code)

	rec := get(app, "/limited", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"detail":"Too many requests"}`, rec.Body.String())

	assert.True(t, mr.Exists("limited_192.0.2.1"))
	ttl := mr.TTL("limited_192.0.2.1")
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusNoContent, get(app, "/limited", nil).Code)
}

func TestPipeline_RateLimitDisabledWithoutRedis(t *testing.T) {
	app := newPipelineApp(t, RestAppOptions{EnableRateLimiter: true}, &Endpoint{
		Name:   "limited",
		Method: MethodGET,
		Path:   "/limited",
		Public: true,
		RateLimiter: func(*EndpointContext) RateLimit {
			return RateLimit{Max: 1, Window: time.Minute}
		},
		Handler: noContent,
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, get(app, "/limited", nil).Code)
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		handler func(c *EndpointContext) error
		code    int
		body    string
	}{
		{
			name:    "error response with detail",
			handler: func(*EndpointContext) error { return http_errors.NotFoundError("Camera not found") },
			code:    http.StatusNotFound,
			body:    `{"detail":"Camera not found"}`,
		},
		{
			name: "error response with error key",
			handler: func(*EndpointContext) error {
				return http_errors.BadRequestError("Failed").WithKey(http_errors.KeyError)
			},
			code: http.StatusBadRequest,
			body: `{"error":"Failed"}`,
		},
		{
			name: "upstream status passthrough",
			handler: func(*EndpointContext) error {
				return http_errors.NewErrorResponse(http.StatusBadGateway, "Failed to retrieve camera list")
			},
			code: http.StatusBadGateway,
			body: `{"detail":"Failed to retrieve camera list"}`,
		},
		{
			name: "field errors",
			handler: func(*EndpointContext) error {
				return http_errors.ValidationError(map[string][]string{"speed": {"Speed must be a non-negative value."}})
			},
			code: http.StatusBadRequest,
			body: `{"speed":["Speed must be a non-negative value."]}`,
		},
		{
			name:    "echo error",
			handler: func(*EndpointContext) error {
				return echo.NewHTTPError(http.StatusNotAcceptable, "unsupported content type")
			},
			code:    http.StatusNotAcceptable,
			body:    `{"detail":"unsupported content type"}`,
		},
		{
			name:    "stack error",
			handler: func(*EndpointContext) error { return errors.Wrap("connection refused", 0) },
			code:    http.StatusInternalServerError,
			body:    `{"detail":"Internal Server Error"}`,
		},
		{
			name:    "plain error",
			handler: func(*EndpointContext) error { return fmt.Errorf("boom") },
			code:    http.StatusInternalServerError,
			body:    `{"detail":"Internal Server Error"}`,
		},
		{
			name:    "panic",
			handler: func(*EndpointContext) error { panic("unexpected") },
			code:    http.StatusInternalServerError,
			body:    `{"detail":"Internal Server Error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newPipelineApp(t, RestAppOptions{}, &Endpoint{
				Name:    "failing",
				Method:  MethodGET,
				Path:    "/failing",
				Public:  true,
				Handler: tt.handler,
			})

			rec := get(app, "/failing", nil)
			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestErrorHandler_Routing(t *testing.T) {
	app := newPipelineApp(t, RestAppOptions{}, &Endpoint{
		Name:    "login",
		Method:  MethodPOST,
		Path:    "/login/",
		Public:  true,
		Handler: noContent,
	})

	rec := get(app, "/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not Found"}`, rec.Body.String())

	rec = get(app, "/login/", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"detail":"Method Not Allowed"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodHead, "/unknown", nil)
	res := httptest.NewRecorder()
	app.EchoApp.ServeHTTP(res, req)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Empty(t, res.Body.String())
}

func TestEchoApp_RequestID(t *testing.T) {
	app := newPipelineApp(t, RestAppOptions{}, &Endpoint{
		Name:    "public",
		Method:  MethodGET,
		Path:    "/public",
		Public:  true,
		Handler: noContent,
	})

	rec := get(app, "/public", nil)
	assert.Len(t, rec.Header().Get("X-Request-Id"), 36)

	rec = get(app, "/public", map[string]string{"X-Request-Id": "given-id"})
	assert.Equal(t, "given-id", rec.Header().Get("X-Request-Id"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}

func TestRestApp_Environment(t *testing.T) {
	app := NewRestApp(RestAppOptions{LogLevel: LogLevelError, Environment: " Production "})
	assert.Equal(t, "production", app.GetEnvironment())

	app = NewRestApp(RestAppOptions{LogLevel: LogLevelError})
	assert.Equal(t, "development", app.GetEnvironment())
}
