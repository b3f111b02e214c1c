package core

import "context"

// ConfigTargetSelector routes every change of an entity type to the targets
// listed for it in Config.Notification.Targets.
type ConfigTargetSelector struct {
	Config Config
}

func (s ConfigTargetSelector) SelectTargets(_ context.Context, record CanonicalRecord, _ WriteResult) []string {
	return s.Config.TargetsFor(record.EntityType)
}

// ProviderTargetSelector delegates to a per-provider selector and falls back
// to Default for providers without one.
type ProviderTargetSelector struct {
	Default   TargetSelector
	Providers map[string]TargetSelector
}

func (s ProviderTargetSelector) SelectTargets(ctx context.Context, record CanonicalRecord, result WriteResult) []string {
	if selector, ok := s.Providers[normalizeProviderID(record.SourceProvider)]; ok && selector != nil {
		return selector.SelectTargets(ctx, record, result)
	}
	if s.Default == nil {
		return []string{}
	}
	return s.Default.SelectTargets(ctx, record, result)
}
