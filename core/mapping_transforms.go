package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TransformFunc rewrites a raw source value before it is coerced to the
// field's declared kind. Returning an error makes the payload malformed.
type TransformFunc func(raw any) (any, error)

var namedTransforms = map[string]TransformFunc{
	"identity":          IdentityTransform,
	"trim":              TrimTransform,
	"lowercase":         LowercaseTransform,
	"uppercase":         UppercaseTransform,
	"negate_bool":       NegateBoolTransform,
	"epoch_to_rfc3339":  EpochSecondsTransform,
	"string_identifier": StringIdentifierTransform,
}

// LookupTransform returns the transform registered under name.
func LookupTransform(name string) (TransformFunc, bool) {
	transform, ok := namedTransforms[normalizeTransformName(name)]
	return transform, ok
}

// TransformNames lists the registered transform names in sorted order.
func TransformNames() []string {
	return sortedKeys(namedTransforms)
}

func normalizeTransformName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, "-", "_")
}

func IdentityTransform(raw any) (any, error) {
	return raw, nil
}

func TrimTransform(raw any) (any, error) {
	text, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	return strings.TrimSpace(text), nil
}

func LowercaseTransform(raw any) (any, error) {
	text, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	return strings.ToLower(strings.TrimSpace(text)), nil
}

func UppercaseTransform(raw any) (any, error) {
	text, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	return strings.ToUpper(strings.TrimSpace(text)), nil
}

// NegateBoolTransform flips a boolean source such as "is_archived".
func NegateBoolTransform(raw any) (any, error) {
	switch value := raw.(type) {
	case bool:
		return !value, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true":
			return false, nil
		case "false":
			return true, nil
		}
	}
	return nil, fmt.Errorf("expected boolean, got %T", raw)
}

// EpochSecondsTransform turns whole epoch seconds into an RFC 3339 UTC string.
// Fractional seconds are rejected rather than truncated.
func EpochSecondsTransform(raw any) (any, error) {
	seconds, err := wholeNumber(raw)
	if err != nil {
		return nil, err
	}
	return time.Unix(seconds, 0).UTC().Format(time.RFC3339), nil
}

// StringIdentifierTransform renders numeric identifiers as strings so ids
// above 2^53 keep their digits when the payload carries them as strings.
func StringIdentifierTransform(raw any) (any, error) {
	switch value := raw.(type) {
	case string:
		return strings.TrimSpace(value), nil
	case json.Number:
		return wholeNumberText(value.String())
	case float64:
		if value != float64(int64(value)) {
			return nil, fmt.Errorf("identifier %v is not whole", value)
		}
		return strconv.FormatInt(int64(value), 10), nil
	case int:
		return strconv.Itoa(value), nil
	case int64:
		return strconv.FormatInt(value, 10), nil
	}
	return nil, fmt.Errorf("expected identifier, got %T", raw)
}

func wholeNumber(raw any) (int64, error) {
	switch value := raw.(type) {
	case float64:
		if value != float64(int64(value)) {
			return 0, fmt.Errorf("expected whole number, got %v", value)
		}
		return int64(value), nil
	case int:
		return int64(value), nil
	case int64:
		return value, nil
	case json.Number:
		return value.Int64()
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected whole number, got %q", value)
		}
		return parsed, nil
	}
	return 0, fmt.Errorf("expected whole number, got %T", raw)
}

func wholeNumberText(text string) (string, error) {
	text = strings.TrimSpace(text)
	for _, r := range text {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("identifier %q is not whole", text)
		}
	}
	if text == "" {
		return "", fmt.Errorf("identifier is empty")
	}
	return text, nil
}
