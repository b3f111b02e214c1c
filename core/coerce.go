package core

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// maxExactInteger is the largest integer a float64 holds without rounding.
const maxExactInteger = 1 << 53

var (
	camelBoundary    = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	separatorPattern = regexp.MustCompile(`[\s-]+`)
)

// StandardizeKey converts a provider key to the snake_case form used for
// source lookups: camelCase is split, whitespace and hyphens become "_",
// brackets are dropped and "." becomes "_".
func StandardizeKey(key string) string {
	key = strings.TrimSpace(key)
	key = camelBoundary.ReplaceAllString(key, "${1}_${2}")
	key = separatorPattern.ReplaceAllString(key, "_")
	key = strings.NewReplacer("(", "", ")", "", ".", "_").Replace(key)
	return strings.ToLower(key)
}

// DecodePayload parses a JSON object, keeping numbers as json.Number.
func DecodePayload(raw []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, fmt.Errorf("core: payload is empty")
	}
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.UseNumber()
	var out any
	if err := decoder.Decode(&out); err != nil {
		return nil, fmt.Errorf("core: payload is not valid json: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("core: payload has trailing data")
	}
	object, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("core: payload must be a json object")
	}
	return object, nil
}

// FlattenPayload flattens nested objects into standardized keys.
// Arrays are kept as leaf values.
func FlattenPayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	flattenInto(out, "", payload)
	return out
}

func flattenInto(out map[string]any, prefix string, node map[string]any) {
	for _, key := range sortedKeys(node) {
		path := StandardizeKey(key)
		if prefix != "" {
			path = prefix + "_" + path
		}
		if nested, ok := node[key].(map[string]any); ok && len(nested) > 0 {
			flattenInto(out, path, nested)
			continue
		}
		if _, exists := out[path]; exists {
			continue
		}
		out[path] = node[key]
	}
}

// CoerceValue converts a decoded JSON value to the declared kind. Values that
// cannot be represented exactly are rejected.
func CoerceValue(raw any, kind ValueKind) (Value, error) {
	if raw == nil {
		return Null(), nil
	}
	switch kind {
	case KindString:
		return coerceString(raw)
	case KindNumber:
		return coerceNumber(raw)
	case KindTimestamp:
		return coerceTimestamp(raw)
	case KindBool:
		return coerceBool(raw)
	default:
		return Value{}, fmt.Errorf("core: unsupported value kind %q", kind)
	}
}

func coerceString(raw any) (Value, error) {
	switch typed := raw.(type) {
	case string:
		return String(norm.NFC.String(typed)), nil
	case json.Number:
		return String(typed.String()), nil
	case float64:
		return String(strconv.FormatFloat(typed, 'f', -1, 64)), nil
	case int:
		return String(strconv.Itoa(typed)), nil
	case int64:
		return String(strconv.FormatInt(typed, 10)), nil
	default:
		return Value{}, fmt.Errorf("core: expected string, got %s", describe(raw))
	}
}

func coerceNumber(raw any) (Value, error) {
	switch typed := raw.(type) {
	case json.Number:
		return parseExactNumber(typed.String())
	case string:
		candidate := strings.TrimSpace(typed)
		if candidate == "" {
			return Value{}, fmt.Errorf("core: expected number, got empty string")
		}
		return parseExactNumber(candidate)
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return Value{}, fmt.Errorf("core: number is not finite")
		}
		return Number(typed), nil
	case int:
		return parseExactNumber(strconv.Itoa(typed))
	case int64:
		return parseExactNumber(strconv.FormatInt(typed, 10))
	default:
		return Value{}, fmt.Errorf("core: expected number, got %s", describe(raw))
	}
}

func parseExactNumber(text string) (Value, error) {
	if integer, err := strconv.ParseInt(text, 10, 64); err == nil {
		if integer > maxExactInteger || integer < -maxExactInteger {
			return Value{}, fmt.Errorf("core: integer %s exceeds exact number range", text)
		}
		return Number(float64(integer)), nil
	}
	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Value{}, fmt.Errorf("core: %q is not a number", text)
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return Value{}, fmt.Errorf("core: %q is not a finite number", text)
	}
	if isWholeNumber(parsed) && math.Abs(parsed) > maxExactInteger {
		return Value{}, fmt.Errorf("core: number %s exceeds exact number range", text)
	}
	return Number(parsed), nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func coerceTimestamp(raw any) (Value, error) {
	switch typed := raw.(type) {
	case json.Number:
		return epochTimestamp(typed.String())
	case float64:
		return epochTimestamp(strconv.FormatFloat(typed, 'f', -1, 64))
	case int64:
		return epochTimestamp(strconv.FormatInt(typed, 10))
	case int:
		return epochTimestamp(strconv.Itoa(typed))
	case time.Time:
		return Timestamp(typed), nil
	case string:
		candidate := strings.TrimSpace(typed)
		if candidate == "" {
			return Value{}, fmt.Errorf("core: expected timestamp, got empty string")
		}
		if _, err := strconv.ParseFloat(candidate, 64); err == nil {
			return epochTimestamp(candidate)
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, candidate); err == nil {
				return Timestamp(parsed), nil
			}
		}
		return Value{}, fmt.Errorf("core: %q is not a recognized timestamp", candidate)
	default:
		return Value{}, fmt.Errorf("core: expected timestamp, got %s", describe(raw))
	}
}

// epochTimestamp reads epoch seconds; values past year 33658 in seconds are
// taken as milliseconds.
func epochTimestamp(text string) (Value, error) {
	seconds, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return Value{}, fmt.Errorf("core: %q is not an epoch timestamp", text)
	}
	if math.Abs(seconds) >= 1e12 {
		seconds = seconds / 1000
	}
	whole, frac := math.Modf(seconds)
	return Timestamp(time.Unix(int64(whole), int64(math.Round(frac*1e9)))), nil
}

func coerceBool(raw any) (Value, error) {
	switch typed := raw.(type) {
	case bool:
		return Bool(typed), nil
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return Value{}, fmt.Errorf("core: %q is not a boolean", typed)
	default:
		return Value{}, fmt.Errorf("core: expected boolean, got %s", describe(raw))
	}
}

func describe(raw any) string {
	switch raw.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case json.Number, float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case string:
		return "string"
	default:
		return fmt.Sprintf("%T", raw)
	}
}
