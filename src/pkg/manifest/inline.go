package manifest

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// FormatKey renders a TOML key, quoting it unless it is a valid bare key.
func FormatKey(key string) string {
	line, err := encodeEntry(key, true)
	if err != nil {
		return FormatString(key)
	}
	return strings.TrimSuffix(line, " = true")
}

// FormatString renders s as a TOML basic string.
func FormatString(s string) string {
	v, err := encodeScalar(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return v
}

// FormatInline renders a decoded TOML value on a single line: arrays as
// `[ a, b ]`, tables as `{ k = v, ... }` with keys in sorted order.
func FormatInline(value interface{}) string {
	var b strings.Builder
	appendInline(&b, value)
	return b.String()
}

func appendInline(b *strings.Builder, value interface{}) {
	switch v := value.(type) {
	case map[string]interface{}:
		if len(v) == 0 {
			b.WriteString("{}")
			return
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("{ ")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(FormatKey(k))
			b.WriteString(" = ")
			appendInline(b, v[k])
		}
		b.WriteString(" }")
	case []map[string]interface{}:
		items := make([]interface{}, len(v))
		for i := range v {
			items[i] = v[i]
		}
		appendInline(b, items)
	case []interface{}:
		if len(v) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteString("[ ")
		for i, item := range v {
			if i > 0 {
				b.WriteString(", ")
			}
			appendInline(b, item)
		}
		b.WriteString(" ]")
	case []string:
		items := make([]interface{}, len(v))
		for i := range v {
			items[i] = v[i]
		}
		appendInline(b, items)
	default:
		b.WriteString(formatScalar(v))
	}
}

func formatScalar(value interface{}) string {
	v, err := encodeScalar(value)
	if err != nil {
		logger.WithField("value", value).WithField("error", err).Debug("Not a TOML scalar, rendering as string")
		return FormatString(fmt.Sprint(value))
	}
	return v
}

const scalarKey = "v"

// encodeScalar renders one value with the toml encoder, which only accepts
// tables at the top level.
func encodeScalar(value interface{}) (string, error) {
	line, err := encodeEntry(scalarKey, value)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(line, scalarKey+" = "), nil
}

// encodeEntry encodes the single-entry table {key = value} and returns its line.
func encodeEntry(key string, value interface{}) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]interface{}{key: value}); err != nil {
		return "", err
	}
	line := strings.TrimSuffix(buf.String(), "\n")
	if line == "" || strings.Contains(line, "\n") {
		return "", fmt.Errorf("%T does not encode to a single TOML line", value)
	}
	return line, nil
}
