// Package cameras exposes the camera service resources of the caller behind
// the session token.
package cameras

import (
	"encoding/json"
	"math"
	"net/http"

	rest "github.com/xompass/vsaas-camera-proxy"
	"github.com/xompass/vsaas-camera-proxy/http_errors"
	"github.com/xompass/vsaas-camera-proxy/schema"
	"github.com/xompass/vsaas-camera-proxy/upstream"
)

const (
	msgCameraListFailed  = "Failed to retrieve camera list"
	msgCameraFailed      = "Failed to fetch camera data from external service"
	msgTimelineFailed    = "Failed to retrieve timeline data"
	msgStreamFailed      = "Failed to retrieve stream data"
	msgRecordingFailed   = "Failed to retrieve recording data"
	msgPlayFailed        = "Failed to play the recording"
	msgPauseFailed       = "Failed to pause the recording"
	msgSpeedFailed       = "Failed to update the playback speed"
	msgTimelineParams    = "Start and end parameters are required."
	msgStreamStartParam  = "Start parameter is required."
	domainRule           = "hostname_port|hostname"
	cameraIDParam        = "id"
	domainParam          = "domain"
	streamIDParam        = "stream_id"
	startParam           = "start"
	endParam             = "end"
	speedNegativeMessage = "Speed must be a non-negative value."
	speedTooLargeMessage = "Ensure this value is less than or equal to 9223372036854775807."
	msgRequired          = "This field is required."
	speedFieldName       = "speed"
)

// maxSpeed is 2^63, the first float64 that no longer fits an int64.
const maxSpeed = float64(math.MaxInt64)

type Controller struct {
	upstream *upstream.Client
}

func NewController(client *upstream.Client) *Controller {
	return &Controller{upstream: client}
}

// cameraID only routes digit ids; anything else is a 404.
func cameraID() rest.Param {
	return rest.NewPathParam(cameraIDParam, rest.PathParamTypeInt, true).WithPattern(`^[0-9]+$`)
}

// recordingCameraID is forwarded as given.
func recordingCameraID() rest.Param {
	return rest.NewPathParam(cameraIDParam, rest.PathParamTypeString, true)
}

func controlParams() []rest.Param {
	return []rest.Param{
		rest.NewPathParam(domainParam, rest.PathParamTypeString, true).WithRule(domainRule),
		rest.NewPathParam(streamIDParam, rest.PathParamTypeString, true),
	}
}

func (c *Controller) Endpoints() []*rest.Endpoint {
	return []*rest.Endpoint{
		{
			Name:       "camera-list",
			Method:     rest.MethodGET,
			Path:       "/cameras/",
			ActionType: rest.ActionTypeRead,
			Handler:    c.List,
		},
		{
			Name:       "camera",
			Method:     rest.MethodGET,
			Path:       "/camera/:id",
			ActionType: rest.ActionTypeRead,
			Accepts:    []rest.Param{cameraID()},
			Handler:    c.Detail,
		},
		{
			Name:       "camera-recording-timeline",
			Method:     rest.MethodGET,
			Path:       "/camera/:id/recording/timeline/",
			ActionType: rest.ActionTypeRead,
			Accepts: []rest.Param{
				recordingCameraID(),
				rest.NewQueryParam(startParam, rest.QueryParamTypeString),
				rest.NewQueryParam(endParam, rest.QueryParamTypeString),
			},
			Handler: c.Timeline,
		},
		{
			Name:       "camera-recording-stream",
			Method:     rest.MethodGET,
			Path:       "/camera/:id/recording/stream",
			ActionType: rest.ActionTypeRead,
			Accepts: []rest.Param{
				recordingCameraID(),
				rest.NewQueryParam(startParam, rest.QueryParamTypeString),
			},
			Handler: c.Stream,
		},
		{
			Name:       "camera-recording-info",
			Method:     rest.MethodGET,
			Path:       "/camera/:id/recording/info",
			ActionType: rest.ActionTypeRead,
			Accepts:    []rest.Param{recordingCameraID()},
			Handler:    c.RecordingInfo,
		},
		{
			Name:       "recording-play",
			Method:     rest.MethodGET,
			Path:       "/recording/:domain/:stream_id/play",
			ActionType: rest.ActionTypeUpdate,
			Accepts:    controlParams(),
			Handler:    c.Play,
		},
		{
			Name:       "recording-pause",
			Method:     rest.MethodGET,
			Path:       "/recording/:domain/:stream_id/pause",
			ActionType: rest.ActionTypeUpdate,
			Accepts:    controlParams(),
			Handler:    c.Pause,
		},
		{
			Name:       "recording-speed",
			Method:     rest.MethodGET,
			Path:       "/recording/:domain/:stream_id/speed",
			ActionType: rest.ActionTypeUpdate,
			Accepts:    controlParams(),
			BodyParams: func() any { return &SpeedRequest{} },
			Handler:    c.Speed,
		},
	}
}

// accessToken is only called behind the authentication gate.
func accessToken(ctx *rest.EndpointContext) string {
	token, _ := ctx.AccessToken()
	return token
}

// respondValidated validates a successful upstream payload. Payloads that do
// not match the schema are answered with the field errors instead.
func respondValidated(ctx *rest.EndpointContext, s *schema.Schema, res *upstream.Response) error {
	result, err := s.Validate(res.Body)
	if err != nil {
		return err
	}
	return respondResult(ctx, result)
}

func respondResult(ctx *rest.EndpointContext, result schema.Result) error {
	if !result.Valid() {
		return http_errors.ValidationError(result.Errors)
	}
	return ctx.JSON(result.Value)
}

func upstreamFailure(res *upstream.Response, message string) error {
	return http_errors.NewErrorResponse(res.StatusCode, message)
}

func (c *Controller) List(ctx *rest.EndpointContext) error {
	res, err := c.upstream.SharedCameras(ctx.Context(), accessToken(ctx))
	if err != nil {
		return err
	}
	if !res.IsOK() {
		return upstreamFailure(res, msgCameraListFailed)
	}
	return respondValidated(ctx, schema.CameraList, res)
}

// Detail answers 400 for every upstream failure, whatever status the camera
// service returned.
func (c *Controller) Detail(ctx *rest.EndpointContext) error {
	res, err := c.upstream.SharedCamera(ctx.Context(), accessToken(ctx), ctx.PathInt(cameraIDParam))
	if err != nil {
		return err
	}
	if !res.IsOK() {
		return http_errors.BadRequestError(msgCameraFailed).WithKey(http_errors.KeyError)
	}

	result, err := schema.ValidateCamera(res.Body)
	if err != nil {
		return err
	}
	return respondResult(ctx, result)
}

func (c *Controller) Timeline(ctx *rest.EndpointContext) error {
	start, end := ctx.QueryString(startParam), ctx.QueryString(endParam)
	if start == "" || end == "" {
		return http_errors.BadRequestError(msgTimelineParams)
	}

	res, err := c.upstream.RecordingTimeline(ctx.Context(), accessToken(ctx), ctx.PathString(cameraIDParam), start, end)
	if err != nil {
		return err
	}
	if !res.IsOK() {
		return upstreamFailure(res, msgTimelineFailed)
	}
	return respondValidated(ctx, schema.Timeline, res)
}

func (c *Controller) Stream(ctx *rest.EndpointContext) error {
	start := ctx.QueryString(startParam)
	if start == "" {
		return http_errors.BadRequestError(msgStreamStartParam)
	}

	res, err := c.upstream.RecordingStream(ctx.Context(), accessToken(ctx), ctx.PathString(cameraIDParam), start)
	if err != nil {
		return err
	}
	if !res.IsOK() {
		return upstreamFailure(res, msgStreamFailed)
	}
	return respondValidated(ctx, schema.StreamDescriptor, res)
}

func (c *Controller) RecordingInfo(ctx *rest.EndpointContext) error {
	res, err := c.upstream.Recording(ctx.Context(), accessToken(ctx), ctx.PathString(cameraIDParam))
	if err != nil {
		return err
	}
	if !res.IsOK() {
		return upstreamFailure(res, msgRecordingFailed)
	}
	return respondValidated(ctx, schema.RecordingInfo, res)
}

type statusResponse struct {
	Status string `json:"status"`
}

func (c *Controller) Play(ctx *rest.EndpointContext) error {
	res, err := c.upstream.PlayStream(ctx.Context(), accessToken(ctx), ctx.PathString(domainParam), ctx.PathString(streamIDParam))
	if err != nil {
		return err
	}
	if !res.IsNoContent() {
		return upstreamFailure(res, msgPlayFailed)
	}
	return ctx.JSON(statusResponse{Status: "playing"}, http.StatusOK)
}

func (c *Controller) Pause(ctx *rest.EndpointContext) error {
	res, err := c.upstream.PauseStream(ctx.Context(), accessToken(ctx), ctx.PathString(domainParam), ctx.PathString(streamIDParam))
	if err != nil {
		return err
	}
	if !res.IsNoContent() {
		return upstreamFailure(res, msgPauseFailed)
	}
	return ctx.JSON(statusResponse{Status: "paused"}, http.StatusOK)
}

// SpeedRequest is the playback speed body. Speed is kept raw so that numeric
// strings coerce the same way Float schema fields do.
type SpeedRequest struct {
	Speed json.RawMessage `json:"speed"`
	value int
}

func (r *SpeedRequest) Validate(ctx *rest.EndpointContext) error {
	if len(r.Speed) == 0 {
		return speedError(msgRequired)
	}

	speed, message := schema.ParseNumber(r.Speed)
	switch {
	case message != "":
		return speedError(message)
	case speed < 0:
		return speedError(speedNegativeMessage)
	case speed >= maxSpeed:
		return speedError(speedTooLargeMessage)
	}

	r.value = int(speed)
	return nil
}

func speedError(message string) error {
	return http_errors.ValidationError(map[string][]string{speedFieldName: {message}})
}

type speedResponse struct {
	Success string `json:"success"`
}

func (c *Controller) Speed(ctx *rest.EndpointContext) error {
	body := ctx.ParsedBody.(*SpeedRequest)

	res, err := c.upstream.SetStreamSpeed(ctx.Context(), accessToken(ctx), ctx.PathString(domainParam), ctx.PathString(streamIDParam), body.value)
	if err != nil {
		return err
	}
	if !res.IsOK() {
		return upstreamFailure(res, msgSpeedFailed)
	}
	return ctx.JSON(speedResponse{Success: "true"})
}
