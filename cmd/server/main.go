package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	rest "github.com/xompass/vsaas-camera-proxy"
	"github.com/xompass/vsaas-camera-proxy/accounts"
	"github.com/xompass/vsaas-camera-proxy/cameras"
	"github.com/xompass/vsaas-camera-proxy/config"
	"github.com/xompass/vsaas-camera-proxy/session"
	"github.com/xompass/vsaas-camera-proxy/upstream"
)

const shutdownTimeout = 10 * time.Second

var apiPrefixes = []string{"/login", "/cameras", "/camera", "/recording", "/metrics"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Cannot load configuration: %v", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		log.Fatalf("Cannot build application: %v", err)
	}

	go func() {
		if err := app.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Errorf("Server stopped: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Infof("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		app.Errorf("Graceful shutdown failed: %v", err)
	}
	if err := app.Destroy(); err != nil {
		app.Errorf("Cannot close redis client: %v", err)
	}
}

func newApp(cfg *config.Config) (*rest.RestApp, error) {
	sessions, err := session.NewManager(cfg.Security.SecretKey)
	if err != nil {
		return nil, err
	}

	options := rest.RestAppOptions{
		Name:              "camera-proxy",
		Port:              cfg.Server.Port,
		Environment:       cfg.Server.Environment,
		LogLevel:          rest.ParseLogLevel(cfg.Server.LogLevel),
		AccessLog:         cfg.Server.AccessLog,
		EnableRateLimiter: cfg.Redis.Enabled,
		Authorizer:        sessions.Authorizer(),
	}
	if cfg.Redis.Enabled {
		options.Redis = &redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
	}

	app := rest.NewRestApp(options)

	client := upstream.NewClient(cfg.Upstream.BaseURL, upstream.WithTimeout(cfg.Upstream.Timeout))
	loginLimit := accounts.RateLimit{
		Max:    cfg.Security.LoginRateLimit,
		Window: cfg.Security.LoginRateWindow,
	}

	root := app.Group("")
	app.RegisterEndpoints(accounts.NewController(sessions, client, loginLimit).Endpoints(), root)
	app.RegisterEndpoints(cameras.NewController(client).Endpoints(), root)

	if cfg.Metrics.Enabled {
		app.EchoApp.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	if cfg.Static.Dir != "" {
		if err := app.ServeStatic(rest.StaticConfig{
			Directory:       cfg.Static.Dir,
			ExcludePrefixes: apiPrefixes,
		}); err != nil {
			return nil, err
		}
	}

	app.Infof("Proxying camera service at %s", client.BaseURL())
	return app, nil
}
