package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// InvalidParamError reports a missing or malformed tool parameter.
type InvalidParamError struct {
	Param  string
	Reason string
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

// Params are the caller-supplied tool arguments as decoded from JSON.
type Params map[string]interface{}

// String returns the string value of key, or def when absent or empty.
func (p Params) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &InvalidParamError{Param: key, Reason: "must be a string"}
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// Int returns the positive integer value of key, or def when absent.
// JSON numbers and numeric strings are accepted.
func (p Params) Int(key string, def int64) (int64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}

	var n int64
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) {
			return 0, &InvalidParamError{Param: key, Reason: "must be an integer"}
		}
		n = int64(x)
	case int:
		n = int64(x)
	case int64:
		n = x
	case json.Number:
		if parsed, err := x.Int64(); err == nil {
			n = parsed
			break
		}
		f, err := x.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, &InvalidParamError{Param: key, Reason: "must be an integer"}
		}
		n = int64(f)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, &InvalidParamError{Param: key, Reason: "must be an integer"}
		}
		n = parsed
	default:
		return 0, &InvalidParamError{Param: key, Reason: "must be an integer"}
	}

	if n <= 0 {
		return 0, &InvalidParamError{Param: key, Reason: "must be positive"}
	}
	return n, nil
}

// Strings returns the string list of key, or def when absent or empty.
// A comma separated string is accepted as a list.
func (p Params) Strings(key string, def []string) ([]string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}

	var out []string
	switch x := v.(type) {
	case []string:
		out = x
	case []interface{}:
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, &InvalidParamError{Param: key, Reason: "must be a list of strings"}
			}
			out = append(out, s)
		}
	case string:
		for _, part := range strings.Split(x, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	default:
		return nil, &InvalidParamError{Param: key, Reason: "must be a list of strings"}
	}

	if len(out) == 0 {
		return def, nil
	}
	return out, nil
}

// PropertyName returns the property_id parameter in "properties/<id>" form.
func (p Params) PropertyName() (string, error) {
	id, err := p.String("property_id", "")
	if err != nil {
		return "", err
	}
	return NormalizeProperty(id)
}

// NormalizeProperty accepts "123" or "properties/123" and returns the latter.
func NormalizeProperty(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &InvalidParamError{Param: "property_id", Reason: "is required"}
	}
	if !strings.HasPrefix(id, "properties/") {
		id = "properties/" + id
	}
	if id == "properties/" {
		return "", &InvalidParamError{Param: "property_id", Reason: "is required"}
	}
	return id, nil
}

// Default report window.
const (
	DefaultStartDate = "30daysAgo"
	DefaultEndDate   = "today"
)

// DateRange returns start_date and end_date, defaulting to the last 30 days.
func (p Params) DateRange() (string, string, error) {
	start, err := p.String("start_date", DefaultStartDate)
	if err != nil {
		return "", "", err
	}
	end, err := p.String("end_date", DefaultEndDate)
	if err != nil {
		return "", "", err
	}
	return start, end, nil
}

// ParseDateRange converts the shorthand "7d", "30d", "90d" (any "<n>d") or
// "YYYY-MM-DD,YYYY-MM-DD" into API start and end dates. Any other value
// means the last 30 days.
func ParseDateRange(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultStartDate, DefaultEndDate, nil
	}

	if start, end, ok := strings.Cut(s, ","); ok {
		start, end = strings.TrimSpace(start), strings.TrimSpace(end)
		if start == "" || end == "" {
			return "", "", &InvalidParamError{Param: "date_range", Reason: "custom range must be start,end"}
		}
		return start, end, nil
	}

	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err == nil && n > 0 {
			return fmt.Sprintf("%ddaysAgo", n), DefaultEndDate, nil
		}
	}
	return DefaultStartDate, DefaultEndDate, nil
}
