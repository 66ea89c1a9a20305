package rest

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

// StaticConfig describes a single page frontend bundle served next to the API.
type StaticConfig struct {
	Prefix          string            // URL prefix, "/" by default
	Directory       string            // Build output directory
	IndexFile       string            // "index.html" by default
	ExcludePrefixes []string          // API prefixes that never fall back to the index file
	Headers         map[string]string // Extra headers for every served file
}

// SecureStaticHeaders returns secure default headers for static files
func SecureStaticHeaders() map[string]string {
	return map[string]string{
		"X-Frame-Options":        "SAMEORIGIN",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
}

// CachedAssetHeaders returns headers for fingerprinted build assets
func CachedAssetHeaders() map[string]string {
	headers := SecureStaticHeaders()
	headers["Cache-Control"] = "public, max-age=31536000, immutable"
	return headers
}

// SPAIndexHeaders returns headers for the index file, which must never be cached
func SPAIndexHeaders() map[string]string {
	headers := SecureStaticHeaders()
	headers["Cache-Control"] = "no-cache, no-store, must-revalidate"
	headers["Pragma"] = "no-cache"
	headers["Expires"] = "0"
	return headers
}

var assetExtensions = map[string]bool{
	".js": true, ".css": true, ".map": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".svg": true, ".webp": true, ".ico": true, ".woff": true, ".woff2": true,
	".ttf": true, ".json": true,
}

func isAssetFile(path string) bool {
	return assetExtensions[strings.ToLower(filepath.Ext(path))]
}

func mergeHeaders(headerMaps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, headers := range headerMaps {
		for key, value := range headers {
			result[key] = value
		}
	}
	return result
}

func (config *StaticConfig) headersFor(filePath string) map[string]string {
	if filepath.Base(filePath) == config.IndexFile {
		return mergeHeaders(SPAIndexHeaders(), config.Headers)
	}
	if isAssetFile(filePath) {
		return mergeHeaders(CachedAssetHeaders(), config.Headers)
	}
	return mergeHeaders(SecureStaticHeaders(), config.Headers)
}

func (config *StaticConfig) excluded(requestPath string) bool {
	for _, prefix := range config.ExcludePrefixes {
		if strings.HasPrefix(requestPath, prefix) {
			return true
		}
	}
	return false
}

// ServeStatic serves the frontend bundle. Unmatched GET requests outside the
// excluded prefixes receive the requested file if it exists, otherwise the
// index file so client side routing can take over.
func (receiver *RestApp) ServeStatic(config StaticConfig) error {
	if config.Directory == "" {
		return echo.NewHTTPError(http.StatusInternalServerError, "Static directory is required")
	}

	if info, err := os.Stat(config.Directory); err != nil || !info.IsDir() {
		receiver.Warnf("Static directory does not exist: %s", config.Directory)
		return echo.NewHTTPError(http.StatusInternalServerError, "Static directory does not exist: "+config.Directory)
	}

	if config.Prefix == "" {
		config.Prefix = "/"
	}
	if config.IndexFile == "" {
		config.IndexFile = "index.html"
	}

	receiver.Infof("Serving frontend from %s at %s", config.Directory, config.Prefix)

	indexPath := filepath.Join(config.Directory, config.IndexFile)
	originalHandler := receiver.EchoApp.HTTPErrorHandler

	receiver.EchoApp.HTTPErrorHandler = func(err error, c echo.Context) {
		he, ok := err.(*echo.HTTPError)
		requestPath := c.Request().URL.Path
		if !ok || he.Code != http.StatusNotFound || c.Request().Method != http.MethodGet ||
			!strings.HasPrefix(requestPath, config.Prefix) || config.excluded(requestPath) {
			originalHandler(err, c)
			return
		}

		relative := strings.TrimPrefix(requestPath, config.Prefix)
		filePath := filepath.Join(config.Directory, filepath.Clean("/"+relative))
		if info, statErr := os.Stat(filePath); statErr == nil && !info.IsDir() {
			for key, value := range config.headersFor(filePath) {
				c.Response().Header().Set(key, value)
			}
			if c.File(filePath) == nil {
				return
			}
		}

		for key, value := range config.headersFor(indexPath) {
			c.Response().Header().Set(key, value)
		}
		if c.File(indexPath) == nil {
			return
		}

		originalHandler(err, c)
	}

	return nil
}
