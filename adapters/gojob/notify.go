package gojob

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-hr-ingest/core"
)

const (
	paramTarget = "target"
	paramEvent  = "event"
)

// NotificationMessage builds the queued job for one (event, target) pair.
// The idempotency key matches the notification ledger key so a replayed
// event collapses onto the same job.
func NotificationMessage(event core.NotificationEvent, target string, dedupPolicy string) (*core.JobExecutionMessage, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("gojob: notification target is required")
	}
	encoded, err := eventToParameters(event)
	if err != nil {
		return nil, err
	}
	return &core.JobExecutionMessage{
		JobID:      JobIDNotify,
		ScriptPath: ScriptPathNotify,
		Parameters: map[string]any{
			paramTarget: target,
			paramEvent:  encoded,
		},
		IdempotencyKey: core.NotificationIdempotencyKey(event.SourceEventID, target),
		DedupPolicy:    strings.TrimSpace(dedupPolicy),
	}, nil
}

// NotificationFromMessage decodes a job built by NotificationMessage.
func NotificationFromMessage(msg *core.JobExecutionMessage) (core.NotificationEvent, string, error) {
	if msg == nil {
		return core.NotificationEvent{}, "", fmt.Errorf("gojob: execution message is required")
	}
	if msg.JobID != JobIDNotify {
		return core.NotificationEvent{}, "", fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	target, _ := msg.Parameters[paramTarget].(string)
	if strings.TrimSpace(target) == "" {
		return core.NotificationEvent{}, "", fmt.Errorf("gojob: notification job %q has no target", msg.IdempotencyKey)
	}
	raw, err := json.Marshal(msg.Parameters[paramEvent])
	if err != nil {
		return core.NotificationEvent{}, "", fmt.Errorf("gojob: encode event parameters: %w", err)
	}
	var event core.NotificationEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return core.NotificationEvent{}, "", fmt.Errorf("gojob: decode event parameters: %w", err)
	}
	return event, target, nil
}

func eventToParameters(event core.NotificationEvent) (map[string]any, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("gojob: encode notification event: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("gojob: decode notification event: %w", err)
	}
	return out, nil
}

// QueuedTarget is a notification target that hands the event to a job queue
// instead of calling the downstream processor inline. A successful enqueue
// counts as a successful notification.
type QueuedTarget struct {
	id          string
	enqueuer    core.JobEnqueuer
	dedupPolicy string
}

func NewQueuedTarget(id string, enqueuer core.JobEnqueuer) *QueuedTarget {
	return &QueuedTarget{id: strings.TrimSpace(id), enqueuer: enqueuer, dedupPolicy: "drop"}
}

// WithDedupPolicy overrides the go-job deduplication policy ("drop" by default).
func (t *QueuedTarget) WithDedupPolicy(policy string) *QueuedTarget {
	if t != nil {
		t.dedupPolicy = strings.TrimSpace(policy)
	}
	return t
}

func (t *QueuedTarget) ID() string {
	if t == nil {
		return ""
	}
	return t.id
}

func (t *QueuedTarget) Invoke(ctx context.Context, event core.NotificationEvent) error {
	if t == nil || t.enqueuer == nil {
		return fmt.Errorf("gojob: queued target is not configured")
	}
	msg, err := NotificationMessage(event, t.id, t.dedupPolicy)
	if err != nil {
		return err
	}
	return t.enqueuer.Enqueue(ctx, msg)
}

// NotificationConsumer drains queued notification jobs and delivers them
// through a notifier holding the real downstream targets.
type NotificationConsumer struct {
	dequeuer core.JobDequeuer
	notifier core.Notifier
	logger   core.Logger

	mu       sync.Mutex
	attempts map[string]int
}

func NewNotificationConsumer(dequeuer core.JobDequeuer, notifier core.Notifier, logger core.Logger) *NotificationConsumer {
	return &NotificationConsumer{
		dequeuer: dequeuer,
		notifier: notifier,
		logger:   logger,
		attempts: map[string]int{},
	}
}

// ProcessNext handles one delivery. Malformed jobs are dead-lettered, failed
// targets are nacked for requeue within the dequeuer's retry policy.
func (c *NotificationConsumer) ProcessNext(ctx context.Context) (core.NotificationOutcome, error) {
	if c == nil || c.dequeuer == nil || c.notifier == nil {
		return core.NotificationOutcome{}, fmt.Errorf("gojob: notification consumer is not configured")
	}
	delivery, err := c.dequeuer.Dequeue(ctx)
	if err != nil {
		return core.NotificationOutcome{}, err
	}
	if delivery == nil {
		return core.NotificationOutcome{}, fmt.Errorf("gojob: dequeuer returned no delivery")
	}

	msg := delivery.Message()
	event, target, err := NotificationFromMessage(msg)
	if err != nil {
		c.log().Error("dropping malformed notification job", "error", err)
		if nackErr := delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: err.Error()}); nackErr != nil {
			return core.NotificationOutcome{}, nackErr
		}
		return core.NotificationOutcome{}, err
	}

	outcomes := c.notifier.Notify(ctx, event, []string{target})
	outcome := core.NotificationOutcome{Target: target, Error: "target not invoked"}
	if len(outcomes) > 0 {
		outcome = outcomes[0]
	}
	if outcome.Success {
		c.forget(msg.IdempotencyKey)
		return outcome, delivery.Ack(ctx)
	}

	attempt := c.bump(msg.IdempotencyKey)
	c.log().Warn("notification job failed",
		"target", target,
		"event_id", event.SourceEventID,
		"attempt", attempt,
		"error", outcome.Error,
	)
	attempting, ok := delivery.(attemptNacker)
	if !ok {
		return outcome, delivery.Nack(ctx, core.JobNackOptions{Requeue: true, Reason: outcome.Error})
	}
	policy := attempting.Policy()
	opts := core.JobNackOptions{Requeue: true, Delay: policy.Backoff(attempt), Reason: outcome.Error}
	if policy.Exhausted(attempt) {
		c.forget(msg.IdempotencyKey)
	}
	return outcome, attempting.NackForAttempt(ctx, opts, attempt)
}

// attemptNacker is a delivery that applies a retry policy per attempt.
type attemptNacker interface {
	Policy() RetryPolicy
	NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error
}

func (c *NotificationConsumer) bump(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[key]++
	return c.attempts[key]
}

func (c *NotificationConsumer) forget(key string) {
	c.mu.Lock()
	delete(c.attempts, key)
	c.mu.Unlock()
}

func (c *NotificationConsumer) log() core.Logger {
	if c.logger == nil {
		return nopLogger{}
	}
	return c.logger
}

type nopLogger struct{}

func (nopLogger) Trace(string, ...any) {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Fatal(string, ...any) {}
func (n nopLogger) WithContext(context.Context) core.Logger {
	return n
}

var _ core.Target = (*QueuedTarget)(nil)
