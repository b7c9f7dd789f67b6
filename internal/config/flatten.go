package config

import (
	"fmt"
	"strconv"
	"strings"
)

// secretKeys lists the dot keys whose values are masked on display.
var secretKeys = map[string]bool{
	"openai.api_key":       true,
	"s3.secret_access_key": true,
}

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten turns {"s3": {"bucket": "b"}} into {"s3.bucket": "b"}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if section, ok := v.(map[string]any); ok {
				walk(k, section)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten. A scalar sitting where a section is
// needed is replaced by the section.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		node := out
		for {
			head, rest, nested := strings.Cut(key, ".")
			if !nested {
				node[head] = v
				break
			}
			section, ok := node[head].(map[string]any)
			if !ok {
				section = make(map[string]any)
				node[head] = section
			}
			node, key = section, rest
		}
	}
	return out
}

// MaskSecrets returns a copy of flat with non-empty secrets shown as
// "***" plus their last four characters.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		if s, ok := v.(string); ok && secretKeys[k] && s != "" {
			out[k] = "***" + s[max(0, len(s)-4):]
		}
	}
	return out
}

// schema maps every settable dot key to its default value, which also
// fixes the JSON type the key accepts.
func schema() map[string]any {
	m, err := ToMap(defaults())
	if err != nil {
		panic(fmt.Sprintf("config schema: %v", err))
	}
	return Flatten(m)
}

// coerce converts a command-line value to the type key holds in Config.
// String keys take the value verbatim, so a numeric bucket name stays a
// string.
func coerce(key, value string) (any, error) {
	def, ok := schema()[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	switch def.(type) {
	case string:
		return value, nil
	case bool:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false, got %q", key, value)
		}
		return b, nil
	case float64:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s expects a whole number, got %q", key, value)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%s cannot be set from the command line", key)
	}
}
