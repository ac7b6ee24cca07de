// Package providers implements the per-network adapters: endpoint templates,
// field-name mappings and payload parsers for each supported station network.
package providers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"meteostations.app/pkg/errors"
)

// timestamp layouts seen across the supported networks; layouts without an
// offset are read as UTC
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.NewPayloadParseError(fmt.Sprintf("unparseable timestamp %q", raw), nil)
}

// toFloat reads a scalar JSON value as a float, tolerating string-encoded
// numbers; nil means missing or non-numeric
func toFloat(v interface{}) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return &f
		}
	case int:
		f := float64(x)
		return &f
	}
	return nil
}

// scalarString renders a scalar JSON value as a stable identifier string
func scalarString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
