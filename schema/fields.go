package schema

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/valyala/fastjson"
)

const (
	msgRequired         = "This field is required."
	msgNull             = "This field may not be null."
	msgBlank            = "This field may not be blank."
	msgString           = "Not a valid string."
	msgInteger          = "A valid integer is required."
	msgFloat            = "A valid number is required."
	msgBoolean          = "Must be a valid boolean."
	msgURL              = "Enter a valid URL."
	msgEmail            = "Enter a valid email address."
	msgDateTime         = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."
	dateTimeLayout      = "2006-01-02T15:04:05Z07:00"
	dateTimeLayoutMicro = "2006-01-02T15:04:05.000000Z07:00"
)

var validate = validator.New()

var trailingZeroDecimal = regexp.MustCompile(`\.0*\s*$`)

// isoDateTime is the only datetime shape accepted from upstream payloads.
// A missing zone means UTC.
var isoDateTime = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})[T ](\d{1,2}):(\d{1,2})(?::(\d{1,2})(?:[.,](\d{1,6})\d{0,6})?)?\s*(Z|[+-]\d{2}(?::?\d{2})?)?$`)

var urlSchemes = []string{"http://", "https://", "ftp://", "ftps://"}

var trueValues = map[string]bool{
	"t": true, "T": true, "y": true, "Y": true, "yes": true, "Yes": true, "YES": true,
	"true": true, "True": true, "TRUE": true, "on": true, "On": true, "ON": true, "1": true,
}

var falseValues = map[string]bool{
	"f": true, "F": true, "n": true, "N": true, "no": true, "No": true, "NO": true,
	"false": true, "False": true, "FALSE": true, "off": true, "Off": true, "OFF": true, "0": true,
}

// convert coerces a non-null scalar to the field kind. A non-empty message
// means the value was rejected.
func convert(f Field, raw *fastjson.Value) (any, string) {
	switch f.Kind {
	case String:
		return toString(f, raw)
	case URL:
		value, message := toString(f, raw)
		if message != "" {
			return nil, message
		}
		if !isURL(value.(string)) {
			return nil, msgURL
		}
		return value, ""
	case Email:
		value, message := toString(f, raw)
		if message != "" {
			return nil, message
		}
		if validate.Var(value, "email") != nil {
			return nil, msgEmail
		}
		return value, ""
	case Integer:
		return toInteger(raw)
	case Float:
		return toFloat(raw)
	case Boolean:
		return toBoolean(raw)
	case DateTime:
		return toDateTime(raw)
	default:
		return nil, "Unsupported field kind."
	}
}

func toString(f Field, raw *fastjson.Value) (any, string) {
	var value string
	switch raw.Type() {
	case fastjson.TypeString:
		value = string(raw.GetStringBytes())
	case fastjson.TypeNumber:
		value = raw.String()
	default:
		return nil, msgString
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil, msgBlank
	}
	if f.MaxLength > 0 && utf8.RuneCountInString(value) > f.MaxLength {
		return nil, "Ensure this field has no more than " + strconv.Itoa(f.MaxLength) + " characters."
	}
	return value, ""
}

func isURL(value string) bool {
	lower := strings.ToLower(value)
	for _, scheme := range urlSchemes {
		if strings.HasPrefix(lower, scheme) {
			return validate.Var(value, "url") == nil
		}
	}
	return false
}

func toInteger(raw *fastjson.Value) (any, string) {
	switch raw.Type() {
	case fastjson.TypeNumber:
		if n, err := raw.Int64(); err == nil {
			return n, ""
		}
		if strings.ContainsAny(raw.String(), "eE") {
			return nil, msgInteger
		}
		f, err := raw.Float64()
		if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, msgInteger
		}
		return int64(f), ""
	case fastjson.TypeString:
		text := trailingZeroDecimal.ReplaceAllString(strings.TrimSpace(string(raw.GetStringBytes())), "")
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, msgInteger
		}
		return n, ""
	default:
		return nil, msgInteger
	}
}

func toFloat(raw *fastjson.Value) (any, string) {
	var (
		f   float64
		err error
	)
	switch raw.Type() {
	case fastjson.TypeNumber:
		f, err = raw.Float64()
	case fastjson.TypeString:
		f, err = strconv.ParseFloat(strings.TrimSpace(string(raw.GetStringBytes())), 64)
	default:
		return nil, msgFloat
	}
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, msgFloat
	}
	return f, ""
}

// ParseNumber coerces a single JSON value the way Float fields do. The
// message is empty when the value was accepted.
func ParseNumber(data []byte) (float64, string) {
	parser := parserPool.Get()
	defer parserPool.Put(parser)

	raw, err := parser.ParseBytes(data)
	if err != nil {
		return 0, msgFloat
	}
	if raw.Type() == fastjson.TypeNull {
		return 0, msgNull
	}

	value, message := toFloat(raw)
	if message != "" {
		return 0, message
	}
	return value.(float64), ""
}

// ParseString coerces a single JSON value the way String fields do: numbers
// keep their literal text and surrounding whitespace is trimmed. A maxLength
// of zero means no limit.
func ParseString(data []byte, maxLength int) (string, string) {
	parser := parserPool.Get()
	defer parserPool.Put(parser)

	raw, err := parser.ParseBytes(data)
	if err != nil {
		return "", msgString
	}
	if raw.Type() == fastjson.TypeNull {
		return "", msgNull
	}

	value, message := toString(Field{MaxLength: maxLength}, raw)
	if message != "" {
		return "", message
	}
	return value.(string), ""
}

func toBoolean(raw *fastjson.Value) (any, string) {
	switch raw.Type() {
	case fastjson.TypeTrue:
		return true, ""
	case fastjson.TypeFalse:
		return false, ""
	case fastjson.TypeNumber:
		switch raw.String() {
		case "1":
			return true, ""
		case "0":
			return false, ""
		}
	case fastjson.TypeString:
		text := string(raw.GetStringBytes())
		if trueValues[text] {
			return true, ""
		}
		if falseValues[text] {
			return false, ""
		}
	}
	return nil, msgBoolean
}

func toDateTime(raw *fastjson.Value) (any, string) {
	if raw.Type() != fastjson.TypeString {
		return nil, msgDateTime
	}

	parsed, ok := parseDateTime(strings.TrimSpace(string(raw.GetStringBytes())))
	if !ok {
		return nil, msgDateTime
	}
	return FormatDateTime(parsed), ""
}

// parseDateTime accepts only the isoDateTime shape with every component in
// range.
func parseDateTime(value string) (time.Time, bool) {
	m := isoDateTime.FindStringSubmatch(value)
	if m == nil {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second := 0
	if m[6] != "" {
		second, _ = strconv.Atoi(m[6])
	}
	micro := 0
	if m[7] != "" {
		micro, _ = strconv.Atoi(m[7] + strings.Repeat("0", 6-len(m[7])))
	}
	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}

	location := time.UTC
	if zone := m[8]; zone != "" && zone != "Z" {
		zoneHours, _ := strconv.Atoi(zone[1:3])
		zoneMinutes := 0
		if tail := strings.TrimPrefix(zone[3:], ":"); tail != "" {
			zoneMinutes, _ = strconv.Atoi(tail)
		}
		if zoneHours > 23 || zoneMinutes > 59 {
			return time.Time{}, false
		}
		offset := (zoneHours*60 + zoneMinutes) * 60
		if zone[0] == '-' {
			offset = -offset
		}
		location = time.FixedZone("", offset)
	}

	parsed := time.Date(year, time.Month(month), day, hour, minute, second, micro*int(time.Microsecond), location)
	if parsed.Day() != day {
		return time.Time{}, false
	}
	return parsed, true
}

// FormatDateTime renders t in UTC, with microseconds only when present.
func FormatDateTime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		return t.Format(dateTimeLayoutMicro)
	}
	return t.Format(dateTimeLayout)
}
