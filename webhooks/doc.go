// Package webhooks verifies inbound provider webhooks and hands them to the
// ingest service.
//
// Dedupe is optional. When a DeliveryLedger is configured, each delivery
// follows the claim lifecycle
// pending/retry_ready -> processing -> processed|dead,
// so a retryable ingest failure is released for retry instead of being
// deduped as processed. A redelivery of a processed delivery is ingested again
// and answered by the reconciler; a dead delivery gets a terminal failure and
// one still under lease gets a retryable 409.
package webhooks
