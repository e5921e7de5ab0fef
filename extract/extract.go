// Package extract turns free-text model output into validated JSON values.
// Models routinely wrap JSON in markdown code fences or run out of output
// tokens mid-structure; this package strips the wrappers, distinguishes
// truncated output from malformed output, and checks caller-supplied
// structural requirements. All functions are pure.
package extract

import (
	"fmt"
	"strings"

	"github.com/paideia-ai/paideia/pkg/aierr"
	"github.com/paideia-ai/paideia/provider"
	"github.com/tidwall/gjson"
)

const fence = "```"

// Extract strips formatting wrappers from raw model output, verifies the text
// is structurally complete for the expected shape, parses it, and returns the
// parsed value.
//
// The order is deliberate: truncation is checked before parsing, because a
// parse failure on genuinely truncated input calls for a different remedy
// (smaller output) than malformed-but-complete input (a prompt mismatch).
//
// Failures are classified: aierr.CodeTruncatedOutput when the trimmed text
// does not end with the closing bracket matching its opening character,
// aierr.CodeMalformedOutput when complete text fails to parse, and
// aierr.CodeSchemaValidation when the parsed value has the wrong shape.
func Extract(raw string, shape provider.Shape) (gjson.Result, error) {
	text := StripFences(raw)

	if shape == provider.ShapeFreeText {
		return gjson.Result{}, nil
	}

	if text == "" {
		return gjson.Result{}, aierr.Truncated("output is empty after stripping wrappers")
	}

	if err := checkComplete(text); err != nil {
		return gjson.Result{}, err
	}

	if !gjson.Valid(text) {
		return gjson.Result{}, aierr.Malformed("output is complete but does not parse as JSON")
	}

	parsed := gjson.Parse(text)
	switch shape {
	case provider.ShapeJSONObject:
		if !parsed.IsObject() {
			return gjson.Result{}, aierr.SchemaViolation("", fmt.Sprintf("expected a JSON object, got %s", parsed.Type))
		}
	case provider.ShapeJSONArray:
		if !parsed.IsArray() {
			return gjson.Result{}, aierr.SchemaViolation("", fmt.Sprintf("expected a JSON array, got %s", parsed.Type))
		}
	}

	return parsed, nil
}

// StripFences removes a leading markdown code fence (with or without a
// language tag) and its trailing counterpart. Text without fences passes
// through unchanged apart from whitespace trimming.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, fence) {
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			// "```json\n" or bare "```\n": drop through the first newline
			text = text[idx+1:]
		} else {
			text = strings.TrimPrefix(text, fence)
		}
	}

	text = strings.TrimSpace(text)
	if strings.HasSuffix(text, fence) {
		text = strings.TrimSuffix(text, fence)
		text = strings.TrimSpace(text)
	}

	return text
}

// checkComplete verifies the text ends with the closing bracket matching its
// opening character. Text that opens with neither bracket is left for the
// parser to reject.
func checkComplete(text string) error {
	var closing byte
	switch text[0] {
	case '{':
		closing = '}'
	case '[':
		closing = ']'
	default:
		return nil
	}

	if text[len(text)-1] != closing {
		return aierr.Truncated(fmt.Sprintf("output opens with %q but does not end with %q, likely cut off by the output token limit", text[0], closing))
	}
	return nil
}

// RequireFields verifies that every named field exists on the parsed value.
// Paths use gjson syntax, so nested requirements like "grade.score" work.
func RequireFields(parsed gjson.Result, fields ...string) error {
	for _, field := range fields {
		if !parsed.Get(field).Exists() {
			return aierr.SchemaViolation(field, fmt.Sprintf("required field %q is missing", field))
		}
	}
	return nil
}

// RequireEach verifies that every element of the array at path carries all the
// named fields. An empty path applies the check to parsed itself.
func RequireEach(parsed gjson.Result, path string, fields ...string) error {
	arr := parsed
	if path != "" {
		arr = parsed.Get(path)
		if !arr.Exists() {
			return aierr.SchemaViolation(path, fmt.Sprintf("required array %q is missing", path))
		}
	}
	if !arr.IsArray() {
		return aierr.SchemaViolation(path, fmt.Sprintf("expected %q to be an array, got %s", path, arr.Type))
	}

	var violation error
	arr.ForEach(func(idx, elem gjson.Result) bool {
		for _, field := range fields {
			if !elem.Get(field).Exists() {
				violation = aierr.SchemaViolation(
					fmt.Sprintf("%s.%d.%s", path, int(idx.Int()), field),
					fmt.Sprintf("element %d is missing required field %q", int(idx.Int()), field),
				)
				return false
			}
		}
		return true
	})
	return violation
}
