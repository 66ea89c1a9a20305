package rest

type Principal interface {
	GetPrincipalID() string
	GetPrincipalRole() string
}

// Authorizer resolves the caller of a request. Returning a nil principal and a
// nil error leaves the request anonymous.
type Authorizer func(*EndpointContext) (Principal, AuthToken, error)

type AuthToken interface {
	IsValid() bool
	GetToken() string
	GetAccessToken() string
	GetExpiresAt() int64
}
