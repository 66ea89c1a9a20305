package session

import (
	"github.com/labstack/echo/v4"
	rest "github.com/xompass/vsaas-camera-proxy"
)

// Principal is the caller identified by a verified session token. The service
// has no users of its own, so the access token is the identity.
type Principal struct {
	token *Token
}

func (p *Principal) GetPrincipalID() string {
	return p.token.accessToken
}

func (p *Principal) GetPrincipalRole() string {
	return "camera_viewer"
}

// Token is a verified session token together with the access token it carries.
type Token struct {
	raw         string
	accessToken string
}

func (t *Token) IsValid() bool {
	return t != nil && t.raw != ""
}

func (t *Token) GetToken() string {
	return t.raw
}

func (t *Token) GetAccessToken() string {
	return t.accessToken
}

// GetExpiresAt is always 0: session tokens are issued without expiry.
func (t *Token) GetExpiresAt() int64 {
	return 0
}

// Authorizer returns the credential verifier for the rest pipeline. It never
// fails a request: missing or unverifiable credentials leave the request
// anonymous and non-public endpoints reject it afterwards.
func (m *Manager) Authorizer() rest.Authorizer {
	return func(ctx *rest.EndpointContext) (rest.Principal, rest.AuthToken, error) {
		header := ctx.EchoCtx.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return nil, nil, nil
		}

		raw := ExtractToken(header)
		accessToken, err := m.Verify(raw)
		switch Classify(err) {
		case KindNone:
			token := &Token{raw: raw, accessToken: accessToken}
			return &Principal{token: token}, token, nil
		case KindExpired:
			ctx.App.Warnf("Expired token")
		case KindInvalid:
			ctx.App.Warnf("Invalid token")
		default:
			ctx.App.Errorf("Unexpected error: %v", err)
		}

		return nil, nil, nil
	}
}
