// Package mailtemplate substitutes {{name}} placeholders in subjects and
// HTML bodies.
package mailtemplate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Render replaces every {{name}} in tmpl with the stringified value of
// data[name]. Missing and nil values render empty, arrays are joined with
// ", " and newlines become <br>. Text outside placeholders is unchanged.
func Render(tmpl string, data map[string]interface{}) string {
	return placeholderRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderRegex.FindStringSubmatch(match)[1]
		v, ok := data[name]
		if !ok {
			return ""
		}
		return strings.ReplaceAll(Stringify(v), "\n", "<br>")
	})
}

// Stringify converts a template value to its display form
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case json.Number:
		return t.String()
	case []string:
		return strings.Join(t, ", ")
	case []interface{}:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = Stringify(item)
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// Variables returns the distinct placeholder names used in the given
// templates, sorted.
func Variables(templates ...string) []string {
	seen := make(map[string]struct{})
	for _, tmpl := range templates {
		for _, m := range placeholderRegex.FindAllStringSubmatch(tmpl, -1) {
			seen[m[1]] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DataFromJSON turns any JSON-serializable record into template data keyed
// by its JSON field names.
func DataFromJSON(record interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode template data: %w", err)
	}
	data := make(map[string]interface{})
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("failed to decode template data: %w", err)
	}
	return data, nil
}
