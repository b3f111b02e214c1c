package core

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// LocalDateTime derives a local date ("2006-01-02") and clock time
// ("15:04:05") from a timestamp field and an IANA zone field. A null
// timestamp clears both derived fields; a missing zone leaves them untouched.
func LocalDateTime(atField, zoneField, dateField, clockField string) EnrichFunc {
	return func(_ context.Context, fields map[string]Value, _ map[string]any) error {
		at, ok := fields[atField]
		if !ok {
			return nil
		}
		if at.IsNull() {
			fields[dateField] = Null()
			fields[clockField] = Null()
			return nil
		}
		zone, ok := fields[zoneField]
		if !ok || zone.IsNull() {
			return nil
		}
		name, _ := zone.AsString()
		name = strings.TrimSpace(name)
		if name == "" {
			return nil
		}
		location, err := time.LoadLocation(name)
		if err != nil {
			return MalformedPayloadError(
				fmt.Sprintf("core: unknown timezone %q", name),
				map[string]any{"field": zoneField},
			)
		}
		instant, _ := at.AsTime()
		local := instant.In(location)
		fields[dateField] = String(local.Format(time.DateOnly))
		fields[clockField] = String(local.Format(time.TimeOnly))
		return nil
	}
}

// FlagDeleted sets "deleted" from an event type field. Delete events keep
// only the listed fields so they never overwrite stored values.
func FlagDeleted(eventField string, isDelete func(eventType string) bool, keep ...string) EnrichFunc {
	keepSet := make(map[string]struct{}, len(keep)+2)
	for _, name := range keep {
		keepSet[name] = struct{}{}
	}
	keepSet[eventField] = struct{}{}
	keepSet["deleted"] = struct{}{}
	return func(_ context.Context, fields map[string]Value, _ map[string]any) error {
		value, ok := fields[eventField]
		if !ok || value.IsNull() || isDelete == nil {
			return nil
		}
		eventType, _ := value.AsString()
		deleted := isDelete(eventType)
		fields["deleted"] = Bool(deleted)
		if !deleted {
			return nil
		}
		for name := range fields {
			if _, kept := keepSet[name]; !kept {
				delete(fields, name)
			}
		}
		return nil
	}
}

// JoinFields fills target with the non-empty string parts joined by a space,
// when at least one part was sent.
func JoinFields(target string, parts ...string) EnrichFunc {
	return func(_ context.Context, fields map[string]Value, _ map[string]any) error {
		present := false
		words := make([]string, 0, len(parts))
		for _, name := range parts {
			value, ok := fields[name]
			if !ok {
				continue
			}
			present = true
			if text, isString := value.AsString(); isString && strings.TrimSpace(text) != "" {
				words = append(words, strings.TrimSpace(text))
			}
		}
		if !present {
			return nil
		}
		if len(words) == 0 {
			fields[target] = Null()
			return nil
		}
		fields[target] = String(strings.Join(words, " "))
		return nil
	}
}
