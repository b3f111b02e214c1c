package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrorKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"malformed", MalformedPayloadError("core: bad", nil), ErrorKindMalformedPayload},
		{"unsupported", UnsupportedProviderError("x", EntityWorker), ErrorKindUnsupportedProvider},
		{"conflict", PersistenceConflictError("core: stale", nil), ErrorKindPersistenceConflict},
		{"unavailable", PersistenceUnavailableError(errors.New("dial"), nil), ErrorKindPersistenceUnavailable},
		{"notification", NotificationFailure(errors.New("timeout"), "payroll"), ErrorKindNotificationFailed},
		{"wrapped sentinel", fmt.Errorf("store: %w", ErrPersistenceConflict), ErrorKindPersistenceConflict},
		{"plain", errors.New("boom"), ErrorKindInternal},
	}
	for _, tc := range cases {
		if got := ErrorKindOf(tc.err); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
	if ErrorKindOf(nil) != "" {
		t.Fatalf("expected empty kind for nil error")
	}
}

func TestErrorKind_StatusAndRetry(t *testing.T) {
	cases := map[ErrorKind]struct {
		status    int
		retryable bool
	}{
		ErrorKindMalformedPayload:       {http.StatusBadRequest, false},
		ErrorKindUnsupportedProvider:    {http.StatusBadRequest, false},
		ErrorKindPersistenceConflict:    {http.StatusConflict, true},
		ErrorKindPersistenceUnavailable: {http.StatusServiceUnavailable, true},
		ErrorKindInternal:               {http.StatusInternalServerError, true},
	}
	for kind, want := range cases {
		if got := kind.StatusCode(); got != want.status {
			t.Fatalf("%s: expected status %d, got %d", kind, want.status, got)
		}
		if got := kind.Retryable(); got != want.retryable {
			t.Fatalf("%s: expected retryable %v", kind, want.retryable)
		}
	}
}

func TestTaxonomyErrorsCarryTextCodes(t *testing.T) {
	var rich *goerrors.Error
	if !goerrors.As(MalformedPayloadError("core: bad", map[string]any{"field": "x"}), &rich) {
		t.Fatalf("expected go-errors envelope")
	}
	if rich.TextCode != IngestErrorMalformedPayload {
		t.Fatalf("expected %s, got %s", IngestErrorMalformedPayload, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected code 400, got %d", rich.Code)
	}
}

func TestDefaultErrorMapper(t *testing.T) {
	mapped := defaultErrorMapper(fmt.Errorf("wrap: %w", ErrPersistenceUnavailable))
	if mapped == nil || mapped.TextCode != IngestErrorPersistenceUnavailable {
		t.Fatalf("expected unavailable text code, got %+v", mapped)
	}
	mapped = defaultErrorMapper(errors.New("boom"))
	if mapped == nil || mapped.Code == 0 || mapped.TextCode == "" {
		t.Fatalf("expected internal envelope, got %+v", mapped)
	}
}
