package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// StrategyRegistry is the normalizer strategy table keyed by (provider, entity).
// It is filled during setup and read-only afterwards.
type StrategyRegistry struct {
	mu          sync.RWMutex
	normalizers map[NormalizerKey]Normalizer
}

func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{normalizers: make(map[NormalizerKey]Normalizer)}
}

func normalizeProviderID(providerID string) string {
	return strings.ToLower(strings.TrimSpace(providerID))
}

func (r *StrategyRegistry) Register(providerID string, entity EntityType, normalizer Normalizer) error {
	if r == nil {
		return fmt.Errorf("core: strategy registry is nil")
	}
	if normalizer == nil {
		return fmt.Errorf("core: normalizer is nil")
	}
	id := normalizeProviderID(providerID)
	if id == "" {
		return fmt.Errorf("core: provider id is required")
	}
	if !entity.Valid() {
		return fmt.Errorf("core: unknown entity type %q", entity)
	}
	key := NormalizerKey{ProviderID: id, EntityType: entity}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.normalizers[key]; exists {
		return fmt.Errorf("core: normalizer already registered: %s/%s", id, entity)
	}
	r.normalizers[key] = normalizer
	return nil
}

func (r *StrategyRegistry) Lookup(providerID string, entity EntityType) (Normalizer, bool) {
	if r == nil {
		return nil, false
	}
	id := normalizeProviderID(providerID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	normalizer, ok := r.normalizers[NormalizerKey{ProviderID: id, EntityType: entity}]
	r.mu.RUnlock()
	return normalizer, ok
}

func (r *StrategyRegistry) List() []NormalizerKey {
	if r == nil {
		return []NormalizerKey{}
	}
	r.mu.RLock()
	keys := make([]NormalizerKey, 0, len(r.normalizers))
	for key := range r.normalizers {
		keys = append(keys, key)
	}
	r.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProviderID != keys[j].ProviderID {
			return keys[i].ProviderID < keys[j].ProviderID
		}
		return keys[i].EntityType < keys[j].EntityType
	})
	return keys
}

// RegisterProvider registers every normalizer a provider ships.
func RegisterProvider(registry NormalizerRegistry, provider Provider) error {
	if registry == nil {
		return fmt.Errorf("core: normalizer registry is nil")
	}
	if provider == nil {
		return fmt.Errorf("core: provider is nil")
	}
	normalizers := provider.Normalizers()
	if len(normalizers) == 0 {
		return fmt.Errorf("core: provider %q has no normalizers", provider.ID())
	}
	entities := make([]string, 0, len(normalizers))
	for entity := range normalizers {
		entities = append(entities, string(entity))
	}
	sort.Strings(entities)
	for _, entity := range entities {
		if err := registry.Register(provider.ID(), EntityType(entity), normalizers[EntityType(entity)]); err != nil {
			return err
		}
	}
	return nil
}
