package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rest "github.com/xompass/vsaas-camera-proxy"
)

const (
	testSecret      = "django-insecure-test-secret-key-for-sessions"
	testAccessToken = "2d459c38db3fc0e211ab2deb157b1683339c013d"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testSecret)
	require.NoError(t, err)
	return m
}

func TestNewManager_EmptySecret(t *testing.T) {
	_, err := NewManager("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestIssue_PayloadIsOnlyTheAccessToken(t *testing.T) {
	m := newTestManager(t)

	signed, err := m.Issue(testAccessToken)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)

	assert.Equal(t, "HS256", token.Method.Alg())
	assert.Equal(t, jwt.MapClaims{"personal_access_token": testAccessToken}, claims)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	m := newTestManager(t)

	for _, accessToken := range []string{testAccessToken, "invalid_personal_access_token", "x"} {
		signed, err := m.Issue(accessToken)
		require.NoError(t, err)

		decoded, err := m.Verify(signed)
		require.NoError(t, err)
		assert.Equal(t, accessToken, decoded)
	}
}

func signWith(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestVerify_Failures(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name  string
		token string
		kind  Kind
	}{
		{
			name:  "malformed",
			token: "not-a-jwt",
			kind:  KindInvalid,
		},
		{
			name:  "wrong secret",
			token: signWith(t, jwt.SigningMethodHS256, []byte("another-secret"), jwt.MapClaims{AccessTokenClaim: testAccessToken}),
			kind:  KindInvalid,
		},
		{
			name:  "wrong algorithm",
			token: signWith(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.MapClaims{AccessTokenClaim: testAccessToken}),
			kind:  KindInvalid,
		},
		{
			name:  "missing claim",
			token: signWith(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"user": "someone"}),
			kind:  KindInvalid,
		},
		{
			name:  "null claim",
			token: signWith(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{AccessTokenClaim: nil}),
			kind:  KindInvalid,
		},
		{
			name:  "boolean claim",
			token: signWith(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{AccessTokenClaim: true}),
			kind:  KindInvalid,
		},
		{
			name:  "object claim",
			token: signWith(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{AccessTokenClaim: map[string]string{"a": "b"}}),
			kind:  KindInvalid,
		},
		{
			name: "expired",
			token: signWith(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
				AccessTokenClaim: testAccessToken,
				"exp":            time.Now().Add(-time.Hour).Unix(),
			}),
			kind: KindExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			require.Error(t, err)
			assert.Equal(t, tt.kind, Classify(err))
		})
	}
}

func TestVerify_NumericClaim(t *testing.T) {
	m := newTestManager(t)

	for claim, want := range map[any]string{42: "42", 1234567890123: "1234567890123", 2.5: "2.5"} {
		token := signWith(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{AccessTokenClaim: claim})

		accessToken, err := m.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, want, accessToken)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindNone, Classify(nil))
	assert.Equal(t, KindUnexpected, Classify(assert.AnError))
}

func TestExtractToken(t *testing.T) {
	assert.Equal(t, "abc.def.ghi", ExtractToken("Bearer abc.def.ghi"))
	assert.Equal(t, "abc.def.ghi", ExtractToken("abc.def.ghi"))
	assert.Equal(t, "bearer abc", ExtractToken("bearer abc"))
}

func authorize(t *testing.T, m *Manager, header string) *rest.EndpointContext {
	t.Helper()

	app := rest.NewRestApp(rest.RestAppOptions{Name: "test", LogLevel: rest.LogLevelError})
	req := httptest.NewRequest(http.MethodGet, "/cameras/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	ctx := &rest.EndpointContext{
		App:     app,
		EchoCtx: app.EchoApp.NewContext(req, httptest.NewRecorder()),
	}

	principal, token, err := m.Authorizer()(ctx)
	require.NoError(t, err)
	ctx.Principal = principal
	ctx.Token = token
	return ctx
}

func TestAuthorizer(t *testing.T) {
	m := newTestManager(t)
	signed, err := m.Issue(testAccessToken)
	require.NoError(t, err)

	t.Run("bearer token", func(t *testing.T) {
		ctx := authorize(t, m, "Bearer "+signed)
		accessToken, ok := ctx.AccessToken()
		assert.True(t, ok)
		assert.Equal(t, testAccessToken, accessToken)
		assert.Equal(t, testAccessToken, ctx.Principal.GetPrincipalID())
		assert.Equal(t, signed, ctx.Token.GetToken())
	})

	t.Run("bare token", func(t *testing.T) {
		ctx := authorize(t, m, signed)
		accessToken, ok := ctx.AccessToken()
		assert.True(t, ok)
		assert.Equal(t, testAccessToken, accessToken)
	})

	t.Run("no header", func(t *testing.T) {
		ctx := authorize(t, m, "")
		_, ok := ctx.AccessToken()
		assert.False(t, ok)
	})

	t.Run("invalid token stays anonymous", func(t *testing.T) {
		ctx := authorize(t, m, "Bearer garbage")
		_, ok := ctx.AccessToken()
		assert.False(t, ok)
		assert.Nil(t, ctx.Principal)
	})
}
