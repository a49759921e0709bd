package tester

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// lookupPath walks a dot-separated path into a decoded JSON value. A numeric
// segment indexes into an array. A missing value is reported via ok, not as
// an error.
func lookupPath(value any, path string) (any, bool) {
	if strings.TrimSpace(path) == "" {
		return value, true
	}

	cursor := value
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			continue
		}
		if idx, err := strconv.Atoi(seg); err == nil {
			arr, ok := cursor.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			cursor = arr[idx]
			continue
		}
		obj, ok := cursor.(map[string]any)
		if !ok {
			return nil, false
		}
		cursor, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cursor, true
}

// assertJSONValue evaluates one assertion against a decoded JSON value.
// A malformed regex is a configuration error, not a failed assertion.
func assertJSONValue(actual any, a JSONAssertion, index int) (AssertionReport, error) {
	label := fmt.Sprintf("json_assertion_%d", index+1)
	found, exists := lookupPath(actual, a.Path)

	if a.Exists != nil && *a.Exists != exists {
		return AssertionReport{
			Name:   label,
			Passed: false,
			Message: fmt.Sprintf("path '%s' existence mismatch: expected %t got %t",
				a.Path, *a.Exists, exists),
		}, nil
	}

	if !exists {
		passed := a.Exists != nil && !*a.Exists
		return AssertionReport{
			Name:    label,
			Passed:  passed,
			Message: fmt.Sprintf("path '%s' not found", a.Path),
		}, nil
	}

	if a.Equals != nil && !jsonEqual(found, a.Equals) {
		return AssertionReport{
			Name:   label,
			Passed: false,
			Message: fmt.Sprintf("path '%s' expected %s, got %s",
				a.Path, jsonText(a.Equals), jsonText(found)),
		}, nil
	}

	if a.Contains != "" {
		text := valueToText(found)
		if !strings.Contains(text, a.Contains) {
			return AssertionReport{
				Name:   label,
				Passed: false,
				Message: fmt.Sprintf("path '%s' missing substring '%s' in '%s'",
					a.Path, a.Contains, text),
			}, nil
		}
	}

	if a.Regex != "" {
		re, err := regexp.Compile(a.Regex)
		if err != nil {
			return AssertionReport{}, fmt.Errorf("invalid regex '%s' for path '%s': %w", a.Regex, a.Path, err)
		}
		text := valueToText(found)
		if !re.MatchString(text) {
			return AssertionReport{
				Name:   label,
				Passed: false,
				Message: fmt.Sprintf("path '%s' regex '%s' did not match '%s'",
					a.Path, a.Regex, text),
			}, nil
		}
	}

	return AssertionReport{
		Name:    label,
		Passed:  true,
		Message: fmt.Sprintf("path '%s' assertion passed", a.Path),
	}, nil
}

// assertHeaderValue evaluates one assertion against response headers.
// Header names match case-insensitively.
func assertHeaderValue(headers http.Header, a HeaderAssertion, index int) (AssertionReport, error) {
	label := fmt.Sprintf("header_assertion_%d", index+1)
	value := headers.Get(a.Name)
	exists := len(headers.Values(a.Name)) > 0

	if a.Exists != nil && *a.Exists != exists {
		return AssertionReport{
			Name:   label,
			Passed: false,
			Message: fmt.Sprintf("header '%s' existence mismatch expected %t got %t",
				a.Name, *a.Exists, exists),
		}, nil
	}

	if !exists {
		passed := a.Exists != nil && !*a.Exists
		return AssertionReport{
			Name:    label,
			Passed:  passed,
			Message: fmt.Sprintf("header '%s' not found", a.Name),
		}, nil
	}

	if a.Equals != "" && value != a.Equals {
		return AssertionReport{
			Name:   label,
			Passed: false,
			Message: fmt.Sprintf("header '%s' expected '%s' got '%s'",
				a.Name, a.Equals, value),
		}, nil
	}

	if a.Contains != "" && !strings.Contains(value, a.Contains) {
		return AssertionReport{
			Name:   label,
			Passed: false,
			Message: fmt.Sprintf("header '%s' missing substring '%s' in '%s'",
				a.Name, a.Contains, value),
		}, nil
	}

	if a.Regex != "" {
		re, err := regexp.Compile(a.Regex)
		if err != nil {
			return AssertionReport{}, fmt.Errorf("invalid header regex '%s' for '%s': %w", a.Regex, a.Name, err)
		}
		if !re.MatchString(value) {
			return AssertionReport{
				Name:   label,
				Passed: false,
				Message: fmt.Sprintf("header '%s' regex '%s' did not match '%s'",
					a.Name, a.Regex, value),
			}, nil
		}
	}

	return AssertionReport{
		Name:    label,
		Passed:  true,
		Message: fmt.Sprintf("header '%s' assertion passed", a.Name),
	}, nil
}

// valueToText renders a value for substring and regex checks: strings are
// bare, everything else is canonical JSON.
func valueToText(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return jsonText(value)
}

func jsonText(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(raw)
}

// jsonEqual compares two values after JSON normalization so YAML-decoded
// expectations (ints, map[string]any) match JSON-decoded actuals (float64).
func jsonEqual(a, b any) bool {
	return reflect.DeepEqual(jsonNormalize(a), jsonNormalize(b))
}

func jsonNormalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
