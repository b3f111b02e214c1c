package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FieldMapping binds one canonical field to provider source paths.
// Sources are tried in order; the first present one wins.
type FieldMapping struct {
	Target    string
	Sources   []string
	Type      ValueKind
	Required  bool
	SkipNull  bool
	Transform TransformFunc
	// TransformName selects a registered transform when Transform is nil.
	TransformName string
}

// PrepareFunc rewrites the flattened source before keys and fields are resolved.
type PrepareFunc func(source map[string]any)

// EnrichFunc derives or adjusts canonical fields after the mapped ones are set.
type EnrichFunc func(ctx context.Context, fields map[string]Value, source map[string]any) error

type MappingSpec struct {
	ProviderID string
	Entity     EntityType
	// KeySources identify the record; each must resolve to a non-empty string or number.
	KeySources    []string
	EventIDSource string
	Prepare       []PrepareFunc
	Fields        []FieldMapping
	Enrich        []EnrichFunc
}

// MappingNormalizer is a declarative Normalizer driven by a MappingSpec.
type MappingNormalizer struct {
	spec   MappingSpec
	schema EntitySchema
	now    func() time.Time
}

type MappingOption func(*MappingNormalizer)

func WithMappingClock(now func() time.Time) MappingOption {
	return func(n *MappingNormalizer) {
		if now != nil {
			n.now = now
		}
	}
}

func NewMappingNormalizer(spec MappingSpec, opts ...MappingOption) (*MappingNormalizer, error) {
	spec.ProviderID = normalizeProviderID(spec.ProviderID)
	if spec.ProviderID == "" {
		return nil, fmt.Errorf("core: mapping provider id is required")
	}
	schema, ok := SchemaFor(spec.Entity)
	if !ok {
		return nil, fmt.Errorf("core: mapping entity %q is unknown", spec.Entity)
	}
	if len(spec.KeySources) == 0 {
		return nil, fmt.Errorf("core: mapping %s/%s has no key sources", spec.ProviderID, spec.Entity)
	}
	targets := make(map[string]struct{}, len(spec.Fields))
	spec.Fields = append([]FieldMapping(nil), spec.Fields...)
	for i, field := range spec.Fields {
		def, known := schema.Field(field.Target)
		if !known {
			return nil, fmt.Errorf("core: mapping target %q is not a %s field", field.Target, spec.Entity)
		}
		if field.Type != "" && field.Type != def.Type {
			return nil, fmt.Errorf("core: mapping target %q declares %s, schema has %s", field.Target, field.Type, def.Type)
		}
		if len(field.Sources) == 0 {
			return nil, fmt.Errorf("core: mapping target %q has no sources", field.Target)
		}
		if field.Transform == nil && strings.TrimSpace(field.TransformName) != "" {
			transform, found := LookupTransform(field.TransformName)
			if !found {
				return nil, fmt.Errorf("core: mapping target %q uses unknown transform %q", field.Target, field.TransformName)
			}
			spec.Fields[i].Transform = transform
		}
		if _, duplicate := targets[field.Target]; duplicate {
			return nil, fmt.Errorf("core: mapping target %q is mapped twice", field.Target)
		}
		targets[field.Target] = struct{}{}
	}
	normalizer := &MappingNormalizer{
		spec:   spec,
		schema: schema,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(normalizer)
		}
	}
	return normalizer, nil
}

func (n *MappingNormalizer) Spec() MappingSpec {
	if n == nil {
		return MappingSpec{}
	}
	return n.spec
}

func (n *MappingNormalizer) Normalize(
	ctx context.Context,
	raw []byte,
	entity EntityType,
	providerID string,
) (CanonicalRecord, error) {
	if n == nil {
		return CanonicalRecord{}, fmt.Errorf("core: mapping normalizer is nil")
	}
	if entity != n.spec.Entity || normalizeProviderID(providerID) != n.spec.ProviderID {
		return CanonicalRecord{}, UnsupportedProviderError(providerID, entity)
	}
	payload, err := DecodePayload(raw)
	if err != nil {
		return CanonicalRecord{}, MalformedPayloadError(err.Error(), nil)
	}
	source := FlattenPayload(payload)
	for _, prepare := range n.spec.Prepare {
		if prepare != nil {
			prepare(source)
		}
	}

	externalID, err := n.externalID(source)
	if err != nil {
		return CanonicalRecord{}, err
	}

	fields := make(map[string]Value, len(n.spec.Fields))
	for _, mapping := range n.spec.Fields {
		value, present, mapErr := n.mapField(mapping, source)
		if mapErr != nil {
			return CanonicalRecord{}, mapErr
		}
		if present {
			fields[mapping.Target] = value
		}
	}
	for _, enrich := range n.spec.Enrich {
		if enrich == nil {
			continue
		}
		if err := enrich(ctx, fields, source); err != nil {
			if ErrorKindOf(err) == ErrorKindMalformedPayload {
				return CanonicalRecord{}, err
			}
			return CanonicalRecord{}, MalformedPayloadError(err.Error(), nil)
		}
	}
	for name, value := range fields {
		fields[name] = value.Truncate(n.schema.precision(name))
	}

	record := CanonicalRecord{
		EntityType:     entity,
		NaturalKey:     NaturalKey(n.spec.ProviderID, entity, externalID),
		Fields:         fields,
		SourceProvider: n.spec.ProviderID,
		ReceivedAt:     n.now().UTC(),
		RawPayload:     append([]byte(nil), raw...),
	}
	if n.spec.EventIDSource != "" {
		if eventID, ok := lookupSource(source, []string{n.spec.EventIDSource}); ok && eventID != nil {
			if value, coerceErr := coerceString(eventID); coerceErr == nil {
				record.SourceEventID, _ = value.AsString()
			}
		}
	}
	return record, nil
}

func (n *MappingNormalizer) externalID(source map[string]any) (string, error) {
	parts := make([]string, 0, len(n.spec.KeySources))
	for _, path := range n.spec.KeySources {
		raw, ok := lookupSource(source, []string{path})
		if !ok || raw == nil {
			return "", MalformedPayloadError(
				fmt.Sprintf("core: identifying field %q is missing", path),
				map[string]any{"field": path},
			)
		}
		value, err := coerceString(raw)
		if err != nil {
			return "", MalformedPayloadError(
				fmt.Sprintf("core: identifying field %q: %v", path, err),
				map[string]any{"field": path},
			)
		}
		text, _ := value.AsString()
		text = strings.TrimSpace(text)
		if text == "" {
			return "", MalformedPayloadError(
				fmt.Sprintf("core: identifying field %q is empty", path),
				map[string]any{"field": path},
			)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, ":"), nil
}

func (n *MappingNormalizer) mapField(mapping FieldMapping, source map[string]any) (Value, bool, error) {
	raw, ok := lookupSource(source, mapping.Sources)
	if !ok {
		if mapping.Required {
			return Value{}, false, MalformedPayloadError(
				fmt.Sprintf("core: required field %q is missing", mapping.Target),
				map[string]any{"field": mapping.Target},
			)
		}
		return Value{}, false, nil
	}
	if raw == nil {
		if mapping.Required {
			return Value{}, false, MalformedPayloadError(
				fmt.Sprintf("core: required field %q is null", mapping.Target),
				map[string]any{"field": mapping.Target},
			)
		}
		if mapping.SkipNull {
			return Value{}, false, nil
		}
		return Null(), true, nil
	}
	if mapping.Transform != nil {
		transformed, err := mapping.Transform(raw)
		if err != nil {
			return Value{}, false, MalformedPayloadError(
				fmt.Sprintf("core: field %q: %v", mapping.Target, err),
				map[string]any{"field": mapping.Target},
			)
		}
		raw = transformed
	}
	kind := mapping.Type
	if kind == "" {
		def, _ := n.schema.Field(mapping.Target)
		kind = def.Type
	}
	value, err := CoerceValue(raw, kind)
	if err != nil {
		return Value{}, false, MalformedPayloadError(
			fmt.Sprintf("core: field %q: %v", mapping.Target, err),
			map[string]any{"field": mapping.Target},
		)
	}
	return value, true, nil
}

func lookupSource(source map[string]any, paths []string) (any, bool) {
	for _, path := range paths {
		value, ok := source[StandardizeKey(path)]
		if ok {
			return value, true
		}
	}
	return nil, false
}

// LookupSource resolves the first present path in a flattened payload.
func LookupSource(source map[string]any, paths ...string) (any, bool) {
	return lookupSource(source, paths)
}

// NaturalKey builds the deterministic identity of a record.
func NaturalKey(providerID string, entity EntityType, externalID string) string {
	return normalizeProviderID(providerID) + ":" + strings.ToLower(string(entity)) + ":" + externalID
}

// StripPrefixes removes a leading prefix from flattened keys. A stripped key
// never overwrites one that is already present.
func StripPrefixes(prefixes ...string) PrepareFunc {
	return func(source map[string]any) {
		for _, key := range sortedKeys(source) {
			for _, prefix := range prefixes {
				prefix = StandardizeKey(prefix)
				if prefix == "" || !strings.HasPrefix(key, prefix) || key == prefix {
					continue
				}
				stripped := strings.TrimPrefix(key, prefix)
				if _, exists := source[stripped]; !exists {
					source[stripped] = source[key]
				}
				break
			}
		}
	}
}

// RenameSources copies flattened keys to new names, keeping the originals.
func RenameSources(renames map[string]string) PrepareFunc {
	return func(source map[string]any) {
		for _, from := range sortedKeys(renames) {
			value, ok := source[StandardizeKey(from)]
			if !ok {
				continue
			}
			to := StandardizeKey(renames[from])
			if _, exists := source[to]; !exists {
				source[to] = value
			}
		}
	}
}
