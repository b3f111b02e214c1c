package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FanoutNotifier invokes every target concurrently, each under its own timeout.
// One target failing or stalling never affects the others.
type FanoutNotifier struct {
	mu      sync.RWMutex
	targets map[string]Target
	timeout time.Duration
}

func NewFanoutNotifier(timeout time.Duration, targets ...Target) (*FanoutNotifier, error) {
	if timeout <= 0 {
		timeout = DefaultTargetTimeout
	}
	notifier := &FanoutNotifier{
		targets: make(map[string]Target, len(targets)),
		timeout: timeout,
	}
	for _, target := range targets {
		if err := notifier.Register(target); err != nil {
			return nil, err
		}
	}
	return notifier, nil
}

func (n *FanoutNotifier) Register(target Target) error {
	if n == nil {
		return fmt.Errorf("core: notifier is nil")
	}
	if target == nil {
		return fmt.Errorf("core: target is nil")
	}
	id := strings.TrimSpace(target.ID())
	if id == "" {
		return fmt.Errorf("core: target id is required")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.targets[id]; exists {
		return fmt.Errorf("core: target already registered: %s", id)
	}
	n.targets[id] = target
	return nil
}

func (n *FanoutNotifier) Timeout() time.Duration {
	if n == nil {
		return DefaultTargetTimeout
	}
	return n.timeout
}

// Notify returns one outcome per target id, in the order given.
func (n *FanoutNotifier) Notify(ctx context.Context, event NotificationEvent, targets []string) []NotificationOutcome {
	outcomes := make([]NotificationOutcome, len(targets))
	if len(targets) == 0 {
		return outcomes
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var wg sync.WaitGroup
	for i, id := range targets {
		id = strings.TrimSpace(id)
		target, ok := n.lookup(id)
		if !ok {
			outcomes[i] = NotificationOutcome{Target: id, Error: "core: unknown notification target " + id}
			continue
		}
		wg.Add(1)
		go func(i int, id string, target Target) {
			defer wg.Done()
			outcomes[i] = n.invoke(ctx, id, target, event)
		}(i, id, target)
	}
	wg.Wait()
	return outcomes
}

func (n *FanoutNotifier) lookup(id string) (Target, bool) {
	if n == nil || id == "" {
		return nil, false
	}
	n.mu.RLock()
	target, ok := n.targets[id]
	n.mu.RUnlock()
	return target, ok
}

func (n *FanoutNotifier) invoke(ctx context.Context, id string, target Target, event NotificationEvent) NotificationOutcome {
	callCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- fmt.Errorf("core: target panicked: %v", recovered)
			}
		}()
		done <- target.Invoke(callCtx, event)
	}()

	select {
	case err := <-done:
		if err != nil {
			return NotificationOutcome{Target: id, Error: err.Error()}
		}
		return NotificationOutcome{Target: id, Success: true}
	case <-callCtx.Done():
		return NotificationOutcome{
			Target: id,
			Error:  fmt.Sprintf("core: target timed out after %s", n.timeout),
		}
	}
}
