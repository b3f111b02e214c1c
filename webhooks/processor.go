package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

// Request is one raw webhook as received by a transport.
type Request struct {
	ProviderID string
	EntityType core.EntityType
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// Result wraps the ingest response with delivery bookkeeping.
type Result struct {
	Response   core.Response
	DeliveryID string
	Deduped    bool
}

type DeliveryRecord struct {
	ID            string
	ClaimID       string
	ProviderID    string
	DeliveryID    string
	Status        string
	Attempts      int
	LastError     string
	LastErrorKind core.ErrorKind
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type DeliveryLedger interface {
	Claim(
		ctx context.Context,
		providerID string,
		deliveryID string,
		payload []byte,
		lease time.Duration,
	) (DeliveryRecord, bool, error)
	Get(ctx context.Context, providerID string, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type Verifier interface {
	Verify(ctx context.Context, req Request) error
}

// DeliveryIDExtractor returns the provider delivery id, or "" when the
// request carries none.
type DeliveryIDExtractor func(req Request) (string, error)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

type Processor struct {
	Verifier    Verifier
	Ledger      DeliveryLedger
	Ingester    core.Ingester
	ExtractID   DeliveryIDExtractor
	RetryPolicy RetryPolicy
	ClaimLease  time.Duration
	MaxAttempts int
	Now         func() time.Time
}

// NewProcessor builds a processor; verifier and ledger may be nil.
func NewProcessor(verifier Verifier, ledger DeliveryLedger, ingester core.Ingester) *Processor {
	return &Processor{
		Verifier:    verifier,
		Ledger:      ledger,
		Ingester:    ingester,
		ExtractID:   DefaultDeliveryIDExtractor,
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  30 * time.Second,
		MaxAttempts: 8,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if p == nil || p.Ingester == nil {
		return Result{}, fmt.Errorf("webhooks: processor requires an ingester")
	}

	providerID := strings.TrimSpace(req.ProviderID)
	if providerID == "" {
		return Result{}, fmt.Errorf("webhooks: provider id is required")
	}
	req.ProviderID = providerID

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			return Result{Response: rejectedResponse(err)}, err
		}
	}

	extractor := p.ExtractID
	if extractor == nil {
		extractor = DefaultDeliveryIDExtractor
	}
	// An unreadable body is left for ingest to classify.
	deliveryID, err := extractor(req)
	if err != nil {
		deliveryID = ""
	}
	deliveryID = strings.TrimSpace(deliveryID)

	if p.Ledger == nil || deliveryID == "" {
		response := p.ingest(ctx, req, deliveryID)
		return Result{Response: response, DeliveryID: deliveryID}, nil
	}

	delivery, claimed, err := p.Ledger.Claim(ctx, providerID, deliveryID, req.Body, p.claimLease())
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		return Result{
			Response:   p.settledResponse(ctx, req, deliveryID, delivery),
			DeliveryID: deliveryID,
			Deduped:    true,
		}, nil
	}

	response := p.ingest(ctx, req, deliveryID)
	result := Result{Response: response, DeliveryID: deliveryID}
	if failure := response.Body.Error; failure != nil && failure.Retryable {
		retryErr := fmt.Errorf("webhooks: ingest returned retryable status %d: %w", response.StatusCode, response.Err())
		nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
		if failErr := p.Ledger.Fail(ctx, delivery.ClaimID, retryErr, nextAttemptAt, p.maxAttempts()); failErr != nil {
			return result, failErr
		}
		return result, retryErr
	}

	// Non-retryable failures are settled too; replaying a malformed payload
	// cannot succeed.
	if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
		return result, err
	}
	return result, nil
}

func (p *Processor) ingest(ctx context.Context, req Request, deliveryID string) core.Response {
	return p.Ingester.Ingest(ctx, core.IngestRequest{
		ProviderID: req.ProviderID,
		EntityType: req.EntityType,
		RawPayload: req.Body,
		EventID:    deliveryID,
		Metadata:   req.Metadata,
	})
}

// DefaultDeliveryIDExtractor reads event_id or delivery_id metadata, then
// common delivery headers. A request without one is processed undeduped.
func DefaultDeliveryIDExtractor(req Request) (string, error) {
	if req.Metadata != nil {
		for _, key := range []string{"event_id", "delivery_id"} {
			if value := metadataString(req.Metadata, key); value != "" {
				return value, nil
			}
		}
	}
	for _, key := range []string{"X-Event-Id", "X-Delivery-Id", "X-Request-Id"} {
		if value := headerValue(req.Headers, key); value != "" {
			return value, nil
		}
	}
	return "", nil
}

func rejectedResponse(err error) core.Response {
	return failureResponse(http.StatusUnauthorized, ErrorKindUnauthorized, err.Error(), false)
}

// settledResponse answers a delivery the ledger would not hand out. A
// processed delivery is ingested again so the reconciler reports NO_OP with
// the stored record id.
func (p *Processor) settledResponse(
	ctx context.Context,
	req Request,
	deliveryID string,
	delivery DeliveryRecord,
) core.Response {
	switch delivery.Status {
	case DeliveryStatusProcessed:
		return p.ingest(ctx, req, deliveryID)
	case DeliveryStatusDead:
		kind := delivery.LastErrorKind
		if kind == "" {
			kind = core.ErrorKindInternal
		}
		message := fmt.Sprintf("webhooks: delivery %q exhausted %d attempts", deliveryID, delivery.Attempts)
		if delivery.LastError != "" {
			message += ": " + delivery.LastError
		}
		return failureResponse(http.StatusUnprocessableEntity, kind, message, false)
	default:
		return failureResponse(
			http.StatusConflict,
			ErrorKindDeliveryInProgress,
			fmt.Sprintf("webhooks: delivery %q is being processed", deliveryID),
			true,
		)
	}
}

func failureResponse(status int, kind core.ErrorKind, message string, retryable bool) core.Response {
	return core.Response{
		StatusCode: status,
		Body: core.ResponseBody{
			ChangedFields: []string{},
			Notifications: []core.NotificationOutcome{},
			State:         core.StateFailed,
			Error: &core.ResponseError{
				Kind:      kind,
				Message:   message,
				Retryable: retryable,
			},
		},
	}
}

const (
	// ErrorKindUnauthorized marks a webhook rejected before ingest.
	ErrorKindUnauthorized core.ErrorKind = "UNAUTHORIZED"
	// ErrorKindDeliveryInProgress marks a redelivery that arrived while
	// another claim on the same delivery id still holds its lease.
	ErrorKindDeliveryInProgress core.ErrorKind = "DELIVERY_IN_PROGRESS"
)

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return 30 * time.Second
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 8
}

func metadataString(metadata map[string]any, key string) string {
	raw, ok := metadata[key]
	if !ok || raw == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
