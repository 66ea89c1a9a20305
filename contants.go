package rest

type EndpointMethod string

const (
	MethodGET  EndpointMethod = "Get"
	MethodPOST EndpointMethod = "Post"
)

type ParamLocation string

const (
	InQuery ParamLocation = "query"
	InPath  ParamLocation = "path"
)

type PathParamType string

const (
	PathParamTypeString PathParamType = "string"
	PathParamTypeInt    PathParamType = "int"
)

type QueryParamType string

const (
	QueryParamTypeString QueryParamType = "string"
	QueryParamTypeInt    QueryParamType = "int"
)

type ActionType string

const (
	ActionTypeRead   ActionType = "read"
	ActionTypeUpdate ActionType = "update"
	ActionTypeLogin  ActionType = "login"
)
