package ingest

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-hr-ingest/core"
	"github.com/goliatone/go-hr-ingest/webhooks"
)

// ProviderPack is a named set of providers shipped outside this module.
type ProviderPack struct {
	Name      string
	Providers []core.Provider
	// Webhooks are optional templates for the pack's providers.
	Webhooks []webhooks.ProviderWebhookTemplate
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks lets downstream modules contribute providers, webhook
// templates and command/query bundles before the service is built.
type ExtensionHooks struct {
	mu sync.RWMutex

	providerPacks map[string]ProviderPack
	bundles       map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		providerPacks: map[string]ProviderPack{},
		bundles:       map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterProviderPack(pack ProviderPack) error {
	if h == nil {
		return fmt.Errorf("ingest: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("ingest: provider pack name is required")
	}
	if len(pack.Providers) == 0 {
		return fmt.Errorf("ingest: provider pack %q has no providers", name)
	}
	for _, provider := range pack.Providers {
		if provider == nil {
			return fmt.Errorf("ingest: provider pack %q contains nil provider", name)
		}
	}

	normalized := ProviderPack{
		Name:      name,
		Providers: append([]core.Provider(nil), pack.Providers...),
		Webhooks:  append([]webhooks.ProviderWebhookTemplate(nil), pack.Webhooks...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.providerPacks[name]; exists {
		return fmt.Errorf("ingest: provider pack %q already registered", name)
	}
	h.providerPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("ingest: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("ingest: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("ingest: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("ingest: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyProviderPacks registers every pack provider's normalizers.
func (h *ExtensionHooks) ApplyProviderPacks(registry core.NormalizerRegistry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("ingest: normalizer registry is required")
	}
	for _, pack := range h.ProviderPacks() {
		for _, provider := range pack.Providers {
			if err := core.RegisterProvider(registry, provider); err != nil {
				return fmt.Errorf("ingest: provider pack %q: %w", pack.Name, err)
			}
		}
	}
	return nil
}

// ServiceOptions returns a WithProviders option covering every pack, so pack
// providers also contribute their target selectors.
func (h *ExtensionHooks) ServiceOptions() []Option {
	if h == nil {
		return nil
	}
	providers := []core.Provider{}
	for _, pack := range h.ProviderPacks() {
		providers = append(providers, pack.Providers...)
	}
	if len(providers) == 0 {
		return nil
	}
	return []Option{core.WithProviders(providers...)}
}

// FacadeOptions returns the webhook templates contributed by packs.
func (h *ExtensionHooks) FacadeOptions() []FacadeOption {
	if h == nil {
		return nil
	}
	templates := []webhooks.ProviderWebhookTemplate{}
	for _, pack := range h.ProviderPacks() {
		templates = append(templates, pack.Webhooks...)
	}
	if len(templates) == 0 {
		return nil
	}
	return []FacadeOption{WithWebhookTemplates(templates...)}
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("ingest: command/query service is required")
	}

	h.mu.RLock()
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(factories))
	for _, name := range sortedNames(factories) {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) ProviderPacks() []ProviderPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ProviderPack, 0, len(h.providerPacks))
	for _, name := range sortedNames(h.providerPacks) {
		pack := h.providerPacks[name]
		out = append(out, ProviderPack{
			Name:      pack.Name,
			Providers: append([]core.Provider(nil), pack.Providers...),
			Webhooks:  append([]webhooks.ProviderWebhookTemplate(nil), pack.Webhooks...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedNames(h.bundles)
}

func sortedNames[V any](in map[string]V) []string {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
