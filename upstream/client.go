// Package upstream talks to the camera service REST API on behalf of a caller
// identified by its personal access token.
package upstream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-errors/errors"
)

const DefaultBaseURL = "https://api.angelcam.com"

// Operation names, used as metric labels.
const (
	OpMe                = "me"
	OpSharedCameras     = "shared_cameras"
	OpSharedCamera      = "shared_camera"
	OpRecording         = "recording"
	OpRecordingTimeline = "recording_timeline"
	OpRecordingStream   = "recording_stream"
	OpPlay              = "play"
	OpPause             = "pause"
	OpSpeed             = "speed"
)

// Response is the raw upstream answer. Status handling is left to the caller.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

func (r *Response) IsNoContent() bool {
	return r.StatusCode == http.StatusNoContent
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout bounds every upstream round trip. Zero keeps requests unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			clone := *c.httpClient
			clone.Timeout = timeout
			c.httpClient = &clone
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Me checks the access token against the identity endpoint.
func (c *Client) Me(ctx context.Context, accessToken string) (*Response, error) {
	return c.do(ctx, OpMe, http.MethodGet, c.baseURL+"/v1/me/", accessToken, nil)
}

func (c *Client) SharedCameras(ctx context.Context, accessToken string) (*Response, error) {
	return c.do(ctx, OpSharedCameras, http.MethodGet, c.baseURL+"/v1/shared-cameras/", accessToken, nil)
}

func (c *Client) SharedCamera(ctx context.Context, accessToken string, cameraID int) (*Response, error) {
	return c.do(ctx, OpSharedCamera, http.MethodGet, c.cameraURL(strconv.Itoa(cameraID), ""), accessToken, nil)
}

func (c *Client) Recording(ctx context.Context, accessToken, cameraID string) (*Response, error) {
	return c.do(ctx, OpRecording, http.MethodGet, c.cameraURL(cameraID, "recording/"), accessToken, nil)
}

func (c *Client) RecordingTimeline(ctx context.Context, accessToken, cameraID, start, end string) (*Response, error) {
	query := url.Values{}
	query.Set("start", start)
	query.Set("end", end)

	target := c.cameraURL(cameraID, "recording/timeline/") + "?" + query.Encode()
	return c.do(ctx, OpRecordingTimeline, http.MethodGet, target, accessToken, nil)
}

func (c *Client) RecordingStream(ctx context.Context, accessToken, cameraID, start string) (*Response, error) {
	query := url.Values{}
	query.Set("start", start)

	target := c.cameraURL(cameraID, "recording/stream/") + "?" + query.Encode()
	return c.do(ctx, OpRecordingStream, http.MethodGet, target, accessToken, nil)
}

// PlayStream resumes a recording stream on the recording server at domain.
func (c *Client) PlayStream(ctx context.Context, accessToken, domain, streamID string) (*Response, error) {
	return c.do(ctx, OpPlay, http.MethodPost, controlURL(domain, streamID, "play"), accessToken, nil)
}

// PauseStream pauses a recording stream on the recording server at domain.
func (c *Client) PauseStream(ctx context.Context, accessToken, domain, streamID string) (*Response, error) {
	return c.do(ctx, OpPause, http.MethodPost, controlURL(domain, streamID, "pause"), accessToken, nil)
}

type speedRequest struct {
	Speed int `json:"speed"`
}

// SetStreamSpeed changes the playback speed. The recording server expects a
// GET carrying a JSON body.
func (c *Client) SetStreamSpeed(ctx context.Context, accessToken, domain, streamID string, speed int) (*Response, error) {
	body, err := sonic.Marshal(speedRequest{Speed: speed})
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return c.do(ctx, OpSpeed, http.MethodGet, controlURL(domain, streamID, "speed"), accessToken, body)
}

func (c *Client) cameraURL(cameraID, suffix string) string {
	return c.baseURL + "/v1/shared-cameras/" + url.PathEscape(cameraID) + "/" + suffix
}

func controlURL(domain, streamID, action string) string {
	return "https://" + domain + "/recording/streams/" + url.PathEscape(streamID) + "/" + action + "/"
}

func (c *Client) do(ctx context.Context, operation, method, target, accessToken string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.WrapPrefix(err, operation+": cannot build upstream request", 0)
	}
	req.Header.Set("Authorization", "PersonalAccessToken "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		observe(operation, "error", time.Since(started))
		return nil, errors.WrapPrefix(err, operation+": upstream request failed", 0)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	observe(operation, strconv.Itoa(res.StatusCode), time.Since(started))
	if err != nil {
		return nil, errors.WrapPrefix(err, operation+": cannot read upstream response", 0)
	}

	return &Response{StatusCode: res.StatusCode, Body: payload}, nil
}
