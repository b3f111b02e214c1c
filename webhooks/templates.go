package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-hr-ingest/core"
)

type ProviderWebhookTemplate struct {
	ProviderID string
	Verifier   Verifier
	Extractor  DeliveryIDExtractor
}

// Processor builds a processor that verifies and extracts with the template.
func (t ProviderWebhookTemplate) Processor(ledger DeliveryLedger, ingester core.Ingester) *Processor {
	processor := NewProcessor(t.Verifier, ledger, ingester)
	if t.Extractor != nil {
		processor.ExtractID = t.Extractor
	}
	return processor
}

type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req Request) error {
	header := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if header == "" {
		return fmt.Errorf("webhooks: %s signature header is required", strings.TrimSpace(v.Header))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	signature := strings.TrimPrefix(header, strings.TrimSpace(v.Prefix))
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	var decoded []byte
	var err error
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err = base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode base64 signature: %w", err)
		}
	default:
		decoded, err = hex.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode hex signature: %w", err)
		}
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}

type HeaderTokenVerifier struct {
	Header string
	Token  string
}

func (v HeaderTokenVerifier) Verify(_ context.Context, req Request) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("webhooks: verification token is required")
	}
	actual := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if actual == "" {
		return fmt.Errorf("webhooks: %s verification header is required", strings.TrimSpace(v.Header))
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("webhooks: verification token mismatch")
	}
	return nil
}

// ProviderVerifiers dispatches on the request provider. Providers without an
// entry are accepted unverified.
type ProviderVerifiers map[string]Verifier

func (v ProviderVerifiers) Verify(ctx context.Context, req Request) error {
	for providerID, verifier := range v {
		if verifier != nil && strings.EqualFold(providerID, strings.TrimSpace(req.ProviderID)) {
			return verifier.Verify(ctx, req)
		}
	}
	return nil
}

func HeaderDeliveryIDExtractor(headers ...string) DeliveryIDExtractor {
	keys := append([]string(nil), headers...)
	return func(req Request) (string, error) {
		for _, key := range keys {
			if value := strings.TrimSpace(headerValue(req.Headers, key)); value != "" {
				return value, nil
			}
		}
		return "", nil
	}
}

// BodyDeliveryIDExtractor reads the first present field from the JSON body.
// Field names match after flattening and snake_case standardization.
func BodyDeliveryIDExtractor(fields ...string) DeliveryIDExtractor {
	keys := make([]string, 0, len(fields))
	for _, field := range fields {
		keys = append(keys, core.StandardizeKey(field))
	}
	return func(req Request) (string, error) {
		if len(req.Body) == 0 {
			return "", nil
		}
		payload, err := core.DecodePayload(req.Body)
		if err != nil {
			return "", core.MalformedPayloadError(fmt.Sprintf("webhooks: decode body for delivery id: %v", err), nil)
		}
		flat := core.FlattenPayload(payload)
		for _, key := range keys {
			raw, ok := flat[key]
			if !ok || raw == nil {
				continue
			}
			switch typed := raw.(type) {
			case string:
				if value := strings.TrimSpace(typed); value != "" {
					return value, nil
				}
			case json.Number:
				return typed.String(), nil
			}
		}
		return "", nil
	}
}

func ChainDeliveryIDExtractors(extractors ...DeliveryIDExtractor) DeliveryIDExtractor {
	list := append([]DeliveryIDExtractor(nil), extractors...)
	return func(req Request) (string, error) {
		var lastErr error
		for _, extractor := range list {
			if extractor == nil {
				continue
			}
			deliveryID, err := extractor(req)
			if err == nil && strings.TrimSpace(deliveryID) != "" {
				return strings.TrimSpace(deliveryID), nil
			}
			if err != nil {
				lastErr = err
			}
		}
		if lastErr != nil {
			return "", lastErr
		}
		return "", nil
	}
}

// NewConnecteamWebhookTemplate checks a shared token and dedupes on the
// payload request id.
func NewConnecteamWebhookTemplate(token string) ProviderWebhookTemplate {
	var verifier Verifier
	if strings.TrimSpace(token) != "" {
		verifier = HeaderTokenVerifier{
			Header: "X-Webhook-Token",
			Token:  strings.TrimSpace(token),
		}
	}
	return ProviderWebhookTemplate{
		ProviderID: "connecteam",
		Verifier:   verifier,
		Extractor: ChainDeliveryIDExtractors(
			HeaderDeliveryIDExtractor("X-Request-Id"),
			BodyDeliveryIDExtractor("requestId"),
		),
	}
}

func NewEvereeWebhookTemplate(secret string) ProviderWebhookTemplate {
	var verifier Verifier
	if strings.TrimSpace(secret) != "" {
		verifier = HeaderHMACVerifier{
			Header:   "X-Everee-Signature",
			Prefix:   "sha256=",
			Secret:   strings.TrimSpace(secret),
			Encoding: "hex",
		}
	}
	return ProviderWebhookTemplate{
		ProviderID: "everee",
		Verifier:   verifier,
		Extractor: ChainDeliveryIDExtractors(
			HeaderDeliveryIDExtractor("X-Everee-Event-Id"),
			BodyDeliveryIDExtractor("id"),
		),
	}
}

func NewWorkdayWebhookTemplate(secret string) ProviderWebhookTemplate {
	var verifier Verifier
	if strings.TrimSpace(secret) != "" {
		verifier = HeaderHMACVerifier{
			Header:   "X-Workday-Signature",
			Secret:   strings.TrimSpace(secret),
			Encoding: "base64",
		}
	}
	return ProviderWebhookTemplate{
		ProviderID: "workday",
		Verifier:   verifier,
		Extractor: ChainDeliveryIDExtractors(
			HeaderDeliveryIDExtractor("X-Workday-Transaction-Id"),
			BodyDeliveryIDExtractor("transactionId", "eventId"),
		),
	}
}
