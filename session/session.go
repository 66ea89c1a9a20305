// Package session mints and verifies the signed session tokens that carry a
// client's personal access token between requests.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaim is the payload field holding the opaque access token.
const AccessTokenClaim = "personal_access_token"

var (
	ErrEmptySecret        = errors.New("session secret key is required")
	ErrMissingAccessToken = errors.New("session token has no personal_access_token claim")
)

// Kind classifies verification failures.
type Kind uint8

const (
	KindNone Kind = iota
	KindExpired
	KindInvalid
	KindUnexpected
)

// Manager signs and verifies session tokens with a process-wide HMAC secret.
type Manager struct {
	secret []byte
	method jwt.SigningMethod
}

func NewManager(secret string) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	return &Manager{
		secret: []byte(secret),
		method: jwt.SigningMethodHS256,
	}, nil
}

// Issue returns a session token whose payload is exactly
// {"personal_access_token": accessToken}. No expiry is set.
func (m *Manager) Issue(accessToken string) (string, error) {
	token := jwt.NewWithClaims(m.method, jwt.MapClaims{
		AccessTokenClaim: accessToken,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature of a session token and returns the access token
// it carries. Registered claims such as exp are honoured when present. A
// numeric claim is returned as its literal text; any other non-string claim
// is rejected.
func (m *Manager) Verify(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{m.method.Alg()}), jwt.WithJSONNumber())
	if err != nil {
		return "", err
	}

	switch accessToken := claims[AccessTokenClaim].(type) {
	case string:
		return accessToken, nil
	case json.Number:
		return accessToken.String(), nil
	default:
		return "", ErrMissingAccessToken
	}
}

// Classify maps a Verify error to the failure kind used for logging.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, jwt.ErrTokenExpired):
		return KindExpired
	case errors.Is(err, ErrMissingAccessToken),
		errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenInvalidClaims),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrSignatureInvalid):
		return KindInvalid
	default:
		return KindUnexpected
	}
}

// ExtractToken strips an optional "Bearer " prefix from an Authorization header value.
func ExtractToken(header string) string {
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return header
}
