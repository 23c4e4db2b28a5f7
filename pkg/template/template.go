// Package template provides variable substitution for step configuration.
// Step config values may reference execution variables with {{name}} tokens;
// tokens that do not resolve are left as literal text rather than failing.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// Render substitutes {{name}} tokens in the input against the variable map.
// Dotted names traverse nested maps. Unresolved tokens are returned verbatim.
func Render(input string, variables map[string]any) string {
	return tokenPattern.ReplaceAllStringFunc(input, func(token string) string {
		name := tokenPattern.FindStringSubmatch(token)[1]

		value, ok := lookup(variables, name)
		if !ok {
			return token
		}

		return stringify(value)
	})
}

// RenderValue applies Render to every string found in a config value,
// recursing through maps and slices. Non-string leaves pass through.
func RenderValue(value any, variables map[string]any) any {
	switch v := value.(type) {
	case string:
		return Render(v, variables)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = RenderValue(item, variables)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = RenderValue(item, variables)
		}

		return out
	default:
		return value
	}
}

// RenderConfig renders a full step config map against the variables.
func RenderConfig(config map[string]any, variables map[string]any) map[string]any {
	rendered := RenderValue(config, variables)

	out, ok := rendered.(map[string]any)
	if !ok {
		return config
	}

	return out
}

// HasTokens reports whether the input contains any {{name}} token.
func HasTokens(input string) bool {
	return tokenPattern.MatchString(input)
}

func lookup(variables map[string]any, name string) (any, bool) {
	if variables == nil {
		return nil, false
	}

	parts := strings.Split(name, ".")

	var current any = variables

	for _, part := range parts {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = asMap[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}
