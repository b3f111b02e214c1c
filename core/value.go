package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type ValueKind string

const (
	KindNull      ValueKind = "null"
	KindString    ValueKind = "string"
	KindNumber    ValueKind = "number"
	KindTimestamp ValueKind = "timestamp"
	KindBool      ValueKind = "bool"
)

// Value is a typed canonical field value. A missing map entry in
// CanonicalRecord.Fields means "absent"; Null() is an explicit null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	ts   time.Time
	b    bool
}

func Null() Value {
	return Value{kind: KindNull}
}

func String(value string) Value {
	return Value{kind: KindString, str: value}
}

func Number(value float64) Value {
	return Value{kind: KindNumber, num: value}
}

func Timestamp(value time.Time) Value {
	return Value{kind: KindTimestamp, ts: value.UTC()}
}

func Bool(value bool) Value {
	return Value{kind: KindBool, b: value}
}

func (v Value) Kind() ValueKind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

func (v Value) IsNull() bool {
	return v.Kind() == KindNull
}

func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) AsTime() (time.Time, bool) {
	return v.ts, v.kind == KindTimestamp
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Truncate drops timestamp precision below p. Non-timestamp values are returned as is.
func (v Value) Truncate(p time.Duration) Value {
	if v.kind != KindTimestamp || p <= 0 {
		return v
	}
	return Timestamp(v.ts.Truncate(p))
}

// Equal is null-safe: two nulls are equal, a null never equals a non-null.
func (v Value) Equal(other Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}
	switch v.Kind() {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindTimestamp:
		return v.ts.Equal(other.ts)
	case KindBool:
		return v.b == other.b
	default:
		return false
	}
}

// Interface returns the plain Go value used in JSON bodies and notifications.
func (v Value) Interface() any {
	switch v.Kind() {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindTimestamp:
		return v.ts.Format(time.RFC3339Nano)
	case KindBool:
		return v.b
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind() {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindTimestamp:
		return v.ts.Format(time.RFC3339Nano)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "null"
	}
}

type valueEnvelope struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	envelope := valueEnvelope{Kind: v.Kind()}
	if v.Kind() != KindNull {
		payload, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, err
		}
		envelope.Value = payload
	}
	return json.Marshal(envelope)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var envelope valueEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	switch envelope.Kind {
	case KindNull, "":
		*v = Null()
	case KindString:
		var s string
		if err := json.Unmarshal(envelope.Value, &s); err != nil {
			return fmt.Errorf("core: decode string value: %w", err)
		}
		*v = String(s)
	case KindNumber:
		var n float64
		if err := json.Unmarshal(envelope.Value, &n); err != nil {
			return fmt.Errorf("core: decode number value: %w", err)
		}
		*v = Number(n)
	case KindTimestamp:
		var raw string
		if err := json.Unmarshal(envelope.Value, &raw); err != nil {
			return fmt.Errorf("core: decode timestamp value: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("core: decode timestamp value: %w", err)
		}
		*v = Timestamp(parsed)
	case KindBool:
		var b bool
		if err := json.Unmarshal(envelope.Value, &b); err != nil {
			return fmt.Errorf("core: decode bool value: %w", err)
		}
		*v = Bool(b)
	default:
		return fmt.Errorf("core: unknown value kind %q", envelope.Kind)
	}
	return nil
}

func isWholeNumber(value float64) bool {
	return !math.IsInf(value, 0) && !math.IsNaN(value) && value == math.Trunc(value)
}
