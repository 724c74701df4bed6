package plex

import (
	"fmt"
	"strconv"
	"strings"
)

// The legacy plex.tv endpoints serve XML-derived JSON where ids and flags
// arrive as strings, numbers, or booleans depending on server age. These
// helpers normalize scalar values before comparison.

func asString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		// JSON numbers decode as float64; ids are integral.
		return strconv.FormatInt(int64(value), 10)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

func asBool(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case float64:
		return value != 0
	case string:
		lowered := strings.ToLower(strings.TrimSpace(value))
		return lowered == "1" || lowered == "true" || lowered == "yes"
	default:
		return false
	}
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if value := asString(m[key]); value != "" {
			return value
		}
	}
	return ""
}
