package command

import (
	"context"
	"errors"
	"net/http"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hr-ingest/core"
)

func TestIngestCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	ingester := &stubIngester{response: core.Response{
		StatusCode: http.StatusOK,
		Body: core.ResponseBody{
			RecordID: "rec_1",
			Created:  true,
			Decision: core.DecisionCreate,
			State:    core.StateDone,
		},
	}}
	cmd := NewIngestCommand(ingester)
	collector := gocmd.NewResult[core.Response]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	msg := IngestMessage{Request: core.IngestRequest{
		ProviderID: "connecteam",
		EntityType: core.EntityTimesheet,
		RawPayload: []byte(`{"requestId":"r1"}`),
	}}
	if err := cmd.Execute(ctx, msg); err != nil {
		t.Fatalf("execute ingest: %v", err)
	}
	if ingester.last.ProviderID != "connecteam" {
		t.Fatalf("expected request to be forwarded, got %+v", ingester.last)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Body.RecordID != "rec_1" || !result.Succeeded() {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestIngestCommand_ReturnsClassifiedFailure(t *testing.T) {
	ingester := &stubIngester{response: core.Response{
		StatusCode: http.StatusConflict,
		Body: core.ResponseBody{
			State: core.StateFailed,
			Error: &core.ResponseError{Kind: core.ErrorKindPersistenceConflict, Message: "stale"},
		},
	}}
	collector := gocmd.NewResult[core.Response]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := NewIngestCommand(ingester).Execute(ctx, IngestMessage{})
	if !errors.Is(err, core.ErrPersistenceConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if result, ok := collector.Load(); !ok || result.StatusCode != http.StatusConflict {
		t.Fatalf("expected failed response to be stored, got %#v", result)
	}
}

func TestIngestMessage_Validate(t *testing.T) {
	valid := IngestMessage{Request: core.IngestRequest{
		ProviderID: "everee",
		EntityType: core.EntityWorker,
		RawPayload: []byte(`{}`),
	}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid message: %v", err)
	}

	cases := map[string]IngestMessage{
		"provider": {Request: core.IngestRequest{EntityType: core.EntityWorker, RawPayload: []byte(`{}`)}},
		"entity":   {Request: core.IngestRequest{ProviderID: "everee", EntityType: "PAYSLIP", RawPayload: []byte(`{}`)}},
		"payload":  {Request: core.IngestRequest{ProviderID: "everee", EntityType: core.EntityWorker}},
	}
	for name, msg := range cases {
		err := msg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%s: expected go-errors envelope, got %T", name, err)
		}
		if rich.Category != goerrors.CategoryValidation || rich.TextCode != core.IngestErrorBadInput {
			t.Fatalf("%s: unexpected envelope %q %q", name, rich.Category, rich.TextCode)
		}
	}
	if (IngestMessage{}).Type() != TypeIngest {
		t.Fatalf("unexpected message type")
	}
}

func TestIngestCommand_NilIngesterReturnsRichError(t *testing.T) {
	var cmd *IngestCommand
	err := cmd.Execute(context.Background(), IngestMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

type stubIngester struct {
	response core.Response
	last     core.IngestRequest
}

func (s *stubIngester) Ingest(_ context.Context, req core.IngestRequest) core.Response {
	s.last = req
	return s.response
}
