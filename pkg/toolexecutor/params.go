package toolexecutor

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xeipuuv/gojsonschema"
)

// labelOverrides fixes words that should stay upper case in parameter labels
var labelOverrides = map[string]string{
	"Api":  "API",
	"Id":   "ID",
	"Ids":  "IDs",
	"Url":  "URL",
	"Uri":  "URI",
	"Http": "HTTP",
	"Json": "JSON",
	"Xml":  "XML",
	"Sql":  "SQL",
	"Ui":   "UI",
}

// jsonTypes are the parameter types the schema check understands
var jsonTypes = map[string]bool{
	"string": true, "number": true, "integer": true,
	"boolean": true, "object": true, "array": true,
}

// FormatParameterLabel turns camelCase, snake_case or kebab-case names into Title Case words
func FormatParameterLabel(name string) string {
	words := splitWords(name)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		word := string(runes)
		if override, ok := labelOverrides[word]; ok {
			word = override
		}
		words[i] = word
	}
	return strings.Join(words, " ")
}

func splitWords(name string) []string {
	var words []string
	var current []rune
	runes := []rune(name)

	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = nil
		}
	}

	for i, r := range runes {
		if r == '_' || r == '-' || r == ' ' || r == '.' {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(current) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()
	return words
}

// cloneParams deep copies maps and slices so the caller's parameters are never mutated
func cloneParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneParams(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// applyDefaults fills absent parameters from their declared defaults
func applyDefaults(d *Descriptor, params map[string]interface{}) {
	for _, p := range d.Parameters {
		if p.Default == nil {
			continue
		}
		if _, ok := params[p.Name]; !ok {
			params[p.Name] = cloneValue(p.Default)
		}
	}
}

func isEmptyValue(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

func effectiveVisibility(p Parameter) Visibility {
	if p.Visibility == "" {
		return VisibilityUserOrLLM
	}
	return p.Visibility
}

// validateRequired checks required user-or-llm parameters after user and agent
// values have been merged. User-only parameters were validated upstream.
func validateRequired(d *Descriptor, params map[string]interface{}) error {
	for _, p := range d.Parameters {
		if !p.Required || effectiveVisibility(p) != VisibilityUserOrLLM {
			continue
		}
		if isEmptyValue(params[p.Name]) {
			return newError(KindValidation, d.ID,
				fmt.Sprintf("%s is missing required parameter: %s", d.DisplayName(), FormatParameterLabel(p.Name)), nil)
		}
	}
	return nil
}

// compileTypeSchema builds a schema checking the declared JSON types of parameters
func compileTypeSchema(d *Descriptor) (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{})
	for _, p := range d.Parameters {
		if jsonTypes[p.Type] {
			properties[p.Name] = map[string]interface{}{"type": p.Type}
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": true,
		"properties":           properties,
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

// validateTypes checks supplied user-or-llm values against the compiled type schema
func validateTypes(d *Descriptor, schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	supplied := make(map[string]interface{})
	for _, p := range d.Parameters {
		if effectiveVisibility(p) != VisibilityUserOrLLM || !jsonTypes[p.Type] {
			continue
		}
		if v, ok := params[p.Name]; ok && !isEmptyValue(v) {
			supplied[p.Name] = v
		}
	}
	if len(supplied) == 0 {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(supplied))
	if err != nil {
		return newError(KindValidation, d.ID, fmt.Sprintf("%s received parameters that could not be checked: %v", d.DisplayName(), err), err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return newError(KindValidation, d.ID,
			fmt.Sprintf("%s has an invalid value for %s: %s", d.DisplayName(), FormatParameterLabel(first.Field()), first.Description()), nil)
	}
	return nil
}
