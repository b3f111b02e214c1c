package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

type ErrorKind string

const (
	ErrorKindMalformedPayload       ErrorKind = "MALFORMED_PAYLOAD"
	ErrorKindUnsupportedProvider    ErrorKind = "UNSUPPORTED_PROVIDER"
	ErrorKindPersistenceConflict    ErrorKind = "PERSISTENCE_CONFLICT"
	ErrorKindPersistenceUnavailable ErrorKind = "PERSISTENCE_UNAVAILABLE"
	ErrorKindNotificationFailed     ErrorKind = "NOTIFICATION_FAILED"
	ErrorKindInternal               ErrorKind = "INTERNAL"
)

const (
	IngestErrorMalformedPayload       = "INGEST_MALFORMED_PAYLOAD"
	IngestErrorUnsupportedProvider    = "INGEST_UNSUPPORTED_PROVIDER"
	IngestErrorPersistenceConflict    = "INGEST_PERSISTENCE_CONFLICT"
	IngestErrorPersistenceUnavailable = "INGEST_PERSISTENCE_UNAVAILABLE"
	IngestErrorNotificationFailed     = "INGEST_NOTIFICATION_FAILED"
	IngestErrorInternal               = "INGEST_INTERNAL_ERROR"
	// IngestErrorBadInput marks command and query messages rejected before ingest.
	IngestErrorBadInput = "INGEST_BAD_INPUT"
)

// Sentinels let stores and targets signal a kind with plain fmt.Errorf("%w").
var (
	ErrMalformedPayload       = errors.New("core: malformed payload")
	ErrUnsupportedProvider    = errors.New("core: unsupported provider")
	ErrPersistenceConflict    = errors.New("core: persistence conflict")
	ErrPersistenceUnavailable = errors.New("core: persistence unavailable")
	ErrNotificationFailed     = errors.New("core: notification failed")
)

type errorSpec struct {
	category goerrors.Category
	status   int
	textCode string
	sentinel error
}

var errorSpecs = map[ErrorKind]errorSpec{
	ErrorKindMalformedPayload: {
		category: goerrors.CategoryBadInput,
		status:   http.StatusBadRequest,
		textCode: IngestErrorMalformedPayload,
		sentinel: ErrMalformedPayload,
	},
	ErrorKindUnsupportedProvider: {
		category: goerrors.CategoryBadInput,
		status:   http.StatusBadRequest,
		textCode: IngestErrorUnsupportedProvider,
		sentinel: ErrUnsupportedProvider,
	},
	ErrorKindPersistenceConflict: {
		category: goerrors.CategoryConflict,
		status:   http.StatusConflict,
		textCode: IngestErrorPersistenceConflict,
		sentinel: ErrPersistenceConflict,
	},
	ErrorKindPersistenceUnavailable: {
		category: goerrors.CategoryExternal,
		status:   http.StatusServiceUnavailable,
		textCode: IngestErrorPersistenceUnavailable,
		sentinel: ErrPersistenceUnavailable,
	},
	ErrorKindNotificationFailed: {
		category: goerrors.CategoryExternal,
		status:   http.StatusBadGateway,
		textCode: IngestErrorNotificationFailed,
		sentinel: ErrNotificationFailed,
	},
	ErrorKindInternal: {
		category: goerrors.CategoryInternal,
		status:   http.StatusInternalServerError,
		textCode: IngestErrorInternal,
	},
}

func newIngestError(kind ErrorKind, message string, metadata map[string]any) *goerrors.Error {
	spec, ok := errorSpecs[kind]
	if !ok {
		spec = errorSpecs[ErrorKindInternal]
	}
	var err *goerrors.Error
	if spec.sentinel != nil {
		err = goerrors.Wrap(spec.sentinel, spec.category, message)
	} else {
		err = goerrors.New(message, spec.category)
	}
	err = err.WithCode(spec.status).WithTextCode(spec.textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func wrapIngestError(source error, kind ErrorKind, message string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return newIngestError(kind, message, metadata)
	}
	spec, ok := errorSpecs[kind]
	if !ok {
		spec = errorSpecs[ErrorKindInternal]
	}
	err := goerrors.Wrap(source, spec.category, message).
		WithCode(spec.status).
		WithTextCode(spec.textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func MalformedPayloadError(message string, metadata map[string]any) error {
	return newIngestError(ErrorKindMalformedPayload, message, metadata)
}

func UnsupportedProviderError(providerID string, entity EntityType) error {
	return newIngestError(
		ErrorKindUnsupportedProvider,
		"core: no normalizer registered for provider "+strings.TrimSpace(providerID)+" and entity "+string(entity),
		map[string]any{"provider_id": providerID, "entity_type": string(entity)},
	)
}

func PersistenceConflictError(message string, metadata map[string]any) error {
	return newIngestError(ErrorKindPersistenceConflict, message, metadata)
}

func PersistenceUnavailableError(source error, metadata map[string]any) error {
	return wrapIngestError(source, ErrorKindPersistenceUnavailable, "core: record store unavailable", metadata)
}

func NotificationFailure(source error, target string) error {
	return wrapIngestError(source, ErrorKindNotificationFailed, "core: notification target "+target+" failed", map[string]any{
		"target": target,
	})
}

// ErrorKindOf classifies err. Unknown errors are INTERNAL.
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		for kind, spec := range errorSpecs {
			if rich.TextCode == spec.textCode {
				return kind
			}
		}
	}
	for _, kind := range []ErrorKind{
		ErrorKindMalformedPayload,
		ErrorKindUnsupportedProvider,
		ErrorKindPersistenceConflict,
		ErrorKindPersistenceUnavailable,
		ErrorKindNotificationFailed,
	} {
		if errors.Is(err, errorSpecs[kind].sentinel) {
			return kind
		}
	}
	return ErrorKindInternal
}

// Retryable reports whether redelivering the same payload could succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindPersistenceConflict, ErrorKindPersistenceUnavailable, ErrorKindInternal:
		return true
	default:
		return false
	}
}

func (k ErrorKind) StatusCode() int {
	if spec, ok := errorSpecs[k]; ok {
		return spec.status
	}
	return http.StatusInternalServerError
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}
	kind := ErrorKindOf(err)
	if kind != ErrorKindInternal {
		return wrapIngestError(err, kind, err.Error(), nil)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	if mapped == nil {
		return wrapIngestError(err, ErrorKindInternal, err.Error(), nil)
	}
	if mapped.Code == 0 {
		mapped.Code = http.StatusInternalServerError
	}
	if strings.TrimSpace(mapped.TextCode) == "" {
		mapped.TextCode = IngestErrorInternal
	}
	return mapped
}
