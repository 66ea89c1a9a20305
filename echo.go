package rest

import (
	"fmt"
	"net/http"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/karagenc/fj4echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/xompass/vsaas-camera-proxy/http_errors"
)

const internalServerErrorMessage = "Internal Server Error"

func NewEchoApp(logger *log.Logger) *echo.Echo {
	app := echo.New()
	app.HideBanner = true
	if logger != nil {
		app.Logger = logger
	}

	app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	app.Use(middleware.Recover())
	app.Use(middleware.CORS())
	app.Use(middleware.Secure())

	app.JSONSerializer = fj4echo.New()

	return app
}

// handleError renders every error returned by an endpoint or by echo itself.
func (receiver *RestApp) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, body := receiver.renderError(err)

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, body)
	}

	if writeErr != nil {
		receiver.Errorf("Failed to write error response: %v", writeErr)
	}
}

func (receiver *RestApp) renderError(err error) (int, any) {
	var er *http_errors.ErrorResponse
	if errors.As(err, &er) {
		return er.Code, er.Body()
	}

	var pe ParamErrors
	if errors.As(err, &pe) {
		return http.StatusBadRequest, pe
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if he.Message != nil {
			message = fmt.Sprint(he.Message)
		}
		return he.Code, map[string]string{http_errors.KeyDetail: message}
	}

	var stackErr *errors.Error
	if errors.As(err, &stackErr) {
		receiver.Errorf("Unhandled error: %s", stackErr.ErrorStack())
	} else {
		receiver.Errorf("Unhandled error: %v", err)
	}

	return http.StatusInternalServerError, map[string]string{http_errors.KeyDetail: internalServerErrorMessage}
}
