// Package accounts exchanges a personal access token for a session token.
package accounts

import (
	"encoding/json"
	"time"

	rest "github.com/xompass/vsaas-camera-proxy"
	"github.com/xompass/vsaas-camera-proxy/http_errors"
	"github.com/xompass/vsaas-camera-proxy/schema"
	"github.com/xompass/vsaas-camera-proxy/session"
	"github.com/xompass/vsaas-camera-proxy/upstream"
)

const maxAccessTokenLength = 255

// LoginRequest keeps the token raw so numbers can be taken as their literal
// text, the way the rest of the API coerces string fields.
type LoginRequest struct {
	PersonalAccessToken json.RawMessage `json:"personal_access_token"`
	accessToken         string
}

func (r *LoginRequest) Validate(ctx *rest.EndpointContext) error {
	if len(r.PersonalAccessToken) == 0 {
		return tokenError("This field is required.")
	}

	accessToken, message := schema.ParseString(r.PersonalAccessToken, maxAccessTokenLength)
	if message != "" {
		return tokenError(message)
	}

	r.accessToken = accessToken
	return nil
}

func tokenError(message string) error {
	return http_errors.ValidationError(map[string][]string{"personal_access_token": {message}})
}

type LoginResponse struct {
	Token string `json:"token"`
}

// RateLimit caps login attempts per client address. A zero Max disables it.
type RateLimit struct {
	Max    int
	Window time.Duration
}

type Controller struct {
	sessions  *session.Manager
	upstream  *upstream.Client
	rateLimit RateLimit
}

func NewController(sessions *session.Manager, client *upstream.Client, rateLimit RateLimit) *Controller {
	return &Controller{
		sessions:  sessions,
		upstream:  client,
		rateLimit: rateLimit,
	}
}

func (c *Controller) Endpoints() []*rest.Endpoint {
	return []*rest.Endpoint{
		{
			Name:        "login",
			Method:      rest.MethodPOST,
			Path:        "/login/",
			Public:      true,
			ActionType:  rest.ActionTypeLogin,
			BodyParams:  func() any { return &LoginRequest{} },
			RateLimiter: c.loginRateLimit,
			Handler:     c.Login,
		},
	}
}

func (c *Controller) loginRateLimit(ctx *rest.EndpointContext) rest.RateLimit {
	return rest.RateLimit{
		Max:    c.rateLimit.Max,
		Window: c.rateLimit.Window,
		Key:    "login_" + ctx.IpAddress,
	}
}

// Login checks the personal access token with the camera service and, when it
// is accepted, returns a session token carrying it.
func (c *Controller) Login(ctx *rest.EndpointContext) error {
	body := ctx.ParsedBody.(*LoginRequest)

	res, err := c.upstream.Me(ctx.Context(), body.accessToken)
	if err != nil {
		return err
	}

	if !res.IsOK() {
		ctx.App.Debugf("Personal access token rejected by upstream with status %d", res.StatusCode)
		return http_errors.UnauthorizedError("Invalid Personal Access Token")
	}

	token, err := c.sessions.Issue(body.accessToken)
	if err != nil {
		return err
	}

	return ctx.JSON(LoginResponse{Token: token})
}
