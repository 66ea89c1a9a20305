package http_errors

import "net/http"

// Body keys used by the error responses of this service.
const (
	KeyDetail = "detail"
	KeyError  = "error"
)

type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"` // Field level errors; rendered as the whole body when set
	Key     string `json:"-"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// WithKey changes the body key the message is rendered under.
func (e *ErrorResponse) WithKey(key string) *ErrorResponse {
	e.Key = key
	return e
}

// Body returns the JSON body sent to the client.
func (e *ErrorResponse) Body() any {
	if e.Details != nil {
		return e.Details
	}

	key := e.Key
	if key == "" {
		key = KeyDetail
	}

	return map[string]string{key: e.Message}
}

func NewErrorResponse(code int, message string, details ...any) *ErrorResponse {
	if len(details) > 0 {
		return &ErrorResponse{
			Message: message,
			Code:    code,
			Details: details[0],
		}
	}

	return &ErrorResponse{
		Message: message,
		Code:    code,
	}
}

// ValidationError is a 400 whose body is the given field error map.
func ValidationError(fields any) *ErrorResponse {
	return NewErrorResponse(http.StatusBadRequest, "Validation failed", fields)
}

func BadRequestError(message string, details ...any) *ErrorResponse {
	return NewErrorResponse(http.StatusBadRequest, message, details...)
}

func UnauthorizedError(message string, details ...any) *ErrorResponse {
	return NewErrorResponse(http.StatusUnauthorized, message, details...).WithKey(KeyError)
}

func NotFoundError(message string, details ...any) *ErrorResponse {
	return NewErrorResponse(http.StatusNotFound, message, details...)
}

func TooManyRequestsError(message string, details ...any) *ErrorResponse {
	return NewErrorResponse(http.StatusTooManyRequests, message, details...)
}

func InternalServerError(message string, details ...any) *ErrorResponse {
	return NewErrorResponse(http.StatusInternalServerError, message, details...)
}
