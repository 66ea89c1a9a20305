package schema

import (
	"github.com/go-errors/errors"
	"github.com/valyala/fastjson"
)

var Snapshot = &Schema{
	Name: "Snapshot",
	Fields: []Field{
		{Name: "url", Kind: URL},
		{Name: "created_at", Kind: DateTime},
	},
}

var CameraStream = &Schema{
	Name: "CameraStream",
	Fields: []Field{
		{Name: "format", Kind: String, MaxLength: 50},
		{Name: "url", Kind: URL},
	},
}

var Application = &Schema{
	Name: "Application",
	Fields: []Field{
		{Name: "code", Kind: String, MaxLength: 50},
	},
}

var Owner = &Schema{
	Name: "Owner",
	Fields: []Field{
		{Name: "email", Kind: Email},
		{Name: "first_name", Kind: String, MaxLength: 100},
		{Name: "last_name", Kind: String, MaxLength: 100},
	},
}

var Camera = &Schema{
	Name: "Camera",
	Fields: []Field{
		{Name: "id", Kind: Integer},
		{Name: "name", Kind: String, MaxLength: 255},
		{Name: "type", Kind: String, MaxLength: 50},
		{Name: "snapshot", Kind: Nested, Schema: Snapshot},
		{Name: "status", Kind: String, MaxLength: 50},
		{Name: "live_snapshot", Kind: URL},
		{Name: "streams", Kind: Nested, Schema: CameraStream, Many: true},
		{Name: "applications", Kind: Nested, Schema: Application, Many: true, Optional: true},
		{Name: "owner", Kind: Nested, Schema: Owner},
		{Name: "has_recording", Kind: Boolean},
		{Name: "has_notifications", Kind: Boolean},
		{Name: "audio_enabled", Kind: Boolean},
		{Name: "low_latency_enabled", Kind: Boolean},
	},
}

var CameraList = &Schema{
	Name: "CameraList",
	Fields: []Field{
		{Name: "count", Kind: Integer},
		{Name: "next", Kind: URL, Nullable: true},
		{Name: "previous", Kind: URL, Nullable: true},
		{Name: "results", Kind: Nested, Schema: Camera, Many: true},
	},
}

var Segment = &Schema{
	Name: "Segment",
	Fields: []Field{
		{Name: "start", Kind: DateTime},
		{Name: "end", Kind: DateTime},
	},
}

var Timeline = &Schema{
	Name: "Timeline",
	Fields: []Field{
		{Name: "start", Kind: DateTime},
		{Name: "end", Kind: DateTime},
		{Name: "segments", Kind: Nested, Schema: Segment, Many: true},
	},
}

var RecordingInfo = &Schema{
	Name: "RecordingInfo",
	Fields: []Field{
		{Name: "status", Kind: String},
		{Name: "retention", Kind: String},
		{Name: "deactivated_at", Kind: DateTime, Nullable: true},
		{Name: "recording_start", Kind: DateTime},
		{Name: "recording_end", Kind: DateTime},
	},
}

var StreamControls = &Schema{
	Name: "StreamControls",
	Fields: []Field{
		{Name: "base_url", Kind: URL},
		{Name: "play", Kind: URL},
		{Name: "pause", Kind: URL},
		{Name: "speed", Kind: URL},
	},
}

var StreamDescriptor = &Schema{
	Name: "StreamDescriptor",
	Fields: []Field{
		{Name: "format", Kind: String},
		{Name: "url", Kind: URL},
		{Name: "stream_info", Kind: URL},
		{Name: "stream_controls", Kind: Nested, Schema: StreamControls},
	},
}

// PlayableFormats are the stream formats the camera detail view keeps.
var PlayableFormats = map[string]bool{
	"mjpeg": true,
	"mp4":   true,
}

// ValidateCamera validates a camera detail payload after dropping every stream
// whose format is not playable. A missing streams list becomes an empty one.
func ValidateCamera(data []byte) (Result, error) {
	parser := parserPool.Get()
	defer parserPool.Put(parser)

	value, err := parser.ParseBytes(data)
	if err != nil {
		return Result{}, errors.WrapPrefix(err, "Camera: upstream payload is not valid JSON", 0)
	}

	if value.Type() == fastjson.TypeObject {
		var arena fastjson.Arena
		value.Set("streams", filterStreams(&arena, value.Get("streams")))
	}

	return Camera.ValidateValue(value), nil
}

func filterStreams(arena *fastjson.Arena, streams *fastjson.Value) *fastjson.Value {
	filtered := arena.NewArray()
	if streams == nil || streams.Type() != fastjson.TypeArray {
		return filtered
	}

	kept := 0
	for _, stream := range streams.GetArray() {
		if PlayableFormats[string(stream.GetStringBytes("format"))] {
			filtered.SetArrayItem(kept, stream)
			kept++
		}
	}
	return filtered
}
