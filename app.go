package rest

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

type LogLevel uint8

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var LogLevelLabels = map[LogLevel]string{
	LogLevelDebug: "DEBUG",
	LogLevelInfo:  "INFO",
	LogLevelWarn:  "WARN",
	LogLevelError: "ERROR",
}

var gommonLevels = map[LogLevel]log.Lvl{
	LogLevelDebug: log.DEBUG,
	LogLevelInfo:  log.INFO,
	LogLevelWarn:  log.WARN,
	LogLevelError: log.ERROR,
}

// ParseLogLevel maps a configuration label (debug, info, warn, error) to a LogLevel.
// Unknown labels fall back to info.
func ParseLogLevel(label string) LogLevel {
	for level, name := range LogLevelLabels {
		if strings.EqualFold(name, label) {
			return level
		}
	}
	if strings.EqualFold(label, "warning") {
		return LogLevelWarn
	}
	return LogLevelInfo
}

type RestAppOptions struct {
	Name              string
	Port              uint16
	LogLevel          LogLevel
	AccessLog         bool
	EnableRateLimiter bool
	Redis             *redis.Options // Required when EnableRateLimiter is set
	Environment       string         // Defaults to "development"
	Authorizer        Authorizer
}

type RestApp struct {
	EchoApp           *echo.Echo
	ValidatorInstance *validator.Validate
	redisClient       *redis.Client
	logger            *log.Logger
	options           RestAppOptions
	environment       string
	authorizer        Authorizer
}

func (receiver *RestApp) GetEnvironment() string {
	return receiver.environment
}

func (receiver *RestApp) Debugf(format string, args ...any) {
	receiver.log(LogLevelDebug, format, args...)
}

func (receiver *RestApp) Infof(format string, args ...any) {
	receiver.log(LogLevelInfo, format, args...)
}

func (receiver *RestApp) Warnf(format string, args ...any) {
	receiver.log(LogLevelWarn, format, args...)
}

func (receiver *RestApp) Errorf(format string, args ...any) {
	receiver.log(LogLevelError, format, args...)
}

func (receiver *RestApp) log(level LogLevel, format string, args ...any) {
	if receiver == nil || receiver.logger == nil {
		return
	}

	switch level {
	case LogLevelDebug:
		receiver.logger.Debugf(format, args...)
	case LogLevelInfo:
		receiver.logger.Infof(format, args...)
	case LogLevelWarn:
		receiver.logger.Warnf(format, args...)
	default:
		receiver.logger.Errorf(format, args...)
	}
}

// Authorize runs the configured authorizer and attaches its result to the context.
func (receiver *RestApp) Authorize(ctx *EndpointContext) error {
	if receiver.authorizer == nil {
		receiver.Warnf("No authorizer configured for the application")
		return nil
	}
	principal, token, err := receiver.authorizer(ctx)
	if err != nil {
		receiver.Errorf("Authorization error: %v", err)
		return err
	}
	if principal == nil {
		return nil
	}

	ctx.Principal = principal
	ctx.Token = token
	return nil
}

func registerTagNameFunc(validate *validator.Validate) {
	// Field names in validation errors follow the JSON tags
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

func NewRestApp(appOptions RestAppOptions) *RestApp {
	name := appOptions.Name
	if name == "" {
		name = "rest"
	}

	logger := log.New(name)
	logger.SetLevel(gommonLevels[appOptions.LogLevel])

	e := NewEchoApp(logger)
	if appOptions.AccessLog {
		e.Use(middleware.Logger())
	}

	validate := validator.New()
	registerTagNameFunc(validate)

	environment := strings.ToLower(strings.TrimSpace(appOptions.Environment))
	if environment == "" {
		environment = "development"
	}

	app := &RestApp{
		EchoApp:           e,
		ValidatorInstance: validate,
		logger:            logger,
		options:           appOptions,
		environment:       environment,
		authorizer:        appOptions.Authorizer,
	}

	e.HTTPErrorHandler = app.handleError

	if appOptions.EnableRateLimiter {
		if appOptions.Redis != nil {
			app.redisClient = redis.NewClient(appOptions.Redis)
		} else {
			app.Warnf("Rate limiter enabled without redis options, requests will not be limited")
		}
	}

	return app
}

func (receiver *RestApp) Destroy() error {
	if receiver == nil {
		return nil
	}

	if receiver.redisClient != nil {
		return receiver.redisClient.Close()
	}

	return nil
}

func (receiver *RestApp) Start() error {
	receiver.Infof("%s listening on port %d (%s)", receiver.options.Name, receiver.options.Port, receiver.environment)
	return receiver.EchoApp.Start(fmt.Sprint(":", receiver.options.Port))
}

func (receiver *RestApp) Shutdown(ctx context.Context) error {
	return receiver.EchoApp.Shutdown(ctx)
}

func (receiver *RestApp) Group(path string, m ...echo.MiddlewareFunc) *echo.Group {
	g := receiver.EchoApp.Group(path)
	for _, handler := range m {
		g.Use(handler)
	}
	return g
}

func (receiver *RestApp) RegisterEndpoint(ep *Endpoint, r *echo.Group) {
	if ep == nil {
		return
	}

	var executor func(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	switch ep.Method {
	case MethodGET:
		executor = r.GET
	case MethodPOST:
		executor = r.POST
	}

	if executor == nil {
		receiver.logger.Fatalf("Unsupported HTTP method %s for endpoint %s", ep.Method, ep.Name)
		return
	}

	ep.app = receiver
	executor(ep.Path, ep.run)
	receiver.Debugf("Registered %s %s (%s, %s)", ep.Method, ep.Path, ep.Name, ep.ActionType)
}

func (receiver *RestApp) RegisterEndpoints(endpoints []*Endpoint, r *echo.Group) {
	for _, ep := range endpoints {
		if ep == nil {
			continue
		}
		receiver.RegisterEndpoint(ep, r)
	}
}
