// Package core contains the canonical ingest domain (entity types, typed field
// values, canonical records) and the webhook pipeline that drives a provider
// payload through normalization, reconciliation, persistence and downstream
// notification. Storage and transport adapters depend on this package; core must
// not depend on provider-specific or store-specific packages.
package core
