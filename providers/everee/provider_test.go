package everee

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
)

var testNow = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

const workedShiftWebhook = `{
	"id": "evt_100",
	"type": "worked-shift.created",
	"timestamp": 1709550000,
	"data": {
		"object": {
			"workedShiftId": 5512,
			"worker": {"workerId": "w-77", "externalWorkerId": "9001", "fullName": "Ana Lima"},
			"shiftStartAt": {"effectivePunchAt": "2024-03-04T08:00:00Z"},
			"shiftEndAt": {"effectivePunchAt": "2024-03-04T16:15:00Z"},
			"legalWorkTimeZone": "America/Los_Angeles",
			"effectiveHourlyPayRate": {"amount": 21.5, "currency": "USD"},
			"note": " site b "
		}
	}
}`

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	provider, err := New(Config{Clock: func() time.Time { return testNow }})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider
}

func normalize(t *testing.T, entity core.EntityType, payload string) core.CanonicalRecord {
	t.Helper()
	normalizer := newTestProvider(t).Normalizers()[entity]
	record, err := normalizer.Normalize(context.Background(), []byte(payload), entity, ProviderID)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return record
}

func TestTimesheet_WorkedShiftWebhook(t *testing.T) {
	record := normalize(t, core.EntityTimesheet, workedShiftWebhook)
	if record.NaturalKey != "everee:timesheet:5512" {
		t.Fatalf("unexpected natural key %q", record.NaturalKey)
	}
	if record.SourceEventID != "evt_100" {
		t.Fatalf("expected envelope id as event id, got %q", record.SourceEventID)
	}
	if worker, _ := record.Fields["worker_ref"].AsString(); worker != "w-77" {
		t.Fatalf("unexpected worker_ref %q", worker)
	}
	if rate, _ := record.Fields["pay_rate"].AsNumber(); rate != 21.5 {
		t.Fatalf("unexpected pay rate %v", rate)
	}
	if note, _ := record.Fields["note"].AsString(); note != "site b" {
		t.Fatalf("unexpected note %q", note)
	}
	if date, _ := record.Fields["shift_start_date"].AsString(); date != "2024-03-04" {
		t.Fatalf("unexpected shift start date %q", date)
	}
	if clock, _ := record.Fields["shift_start_time"].AsString(); clock != "00:00:00" {
		t.Fatalf("unexpected shift start time %q", clock)
	}
	if deleted, _ := record.Fields["deleted"].AsBool(); deleted {
		t.Fatalf("expected created shift not to be deleted")
	}
}

func TestTimesheet_EpochShapeAndDelete(t *testing.T) {
	record := normalize(t, core.EntityTimesheet, `{
		"workedShiftId": "5512",
		"workerId": "w-77",
		"event_type": "worked-shift.deleted",
		"shiftStartEpochSeconds": 1709539200,
		"note": "gone"
	}`)
	if deleted, _ := record.Fields["deleted"].AsBool(); !deleted {
		t.Fatalf("expected deleted=true")
	}
	if record.Has("start_at") || record.Has("note") {
		t.Fatalf("expected delete to carry identity only, got %v", record.Fields)
	}
}

func TestWorker_WebhookObject(t *testing.T) {
	record := normalize(t, core.EntityWorker, `{
		"id": "evt_7",
		"type": "worker.updated",
		"timestamp": 1709550000,
		"data": {"object": {
			"workerId": "w-77",
			"externalWorkerId": "9001",
			"firstName": "Ana",
			"lastName": "Lima",
			"email": "ANA@EXAMPLE.COM",
			"payType": "HOURLY",
			"payRate": {"amount": 20},
			"hireDate": "2023-01-09",
			"terminationDate": null,
			"approvalGroupName": "Crew B"
		}}
	}`)
	if record.NaturalKey != "everee:worker:w-77" {
		t.Fatalf("unexpected natural key %q", record.NaturalKey)
	}
	if name, _ := record.Fields["full_name"].AsString(); name != "Ana Lima" {
		t.Fatalf("unexpected full name %q", name)
	}
	if payType, _ := record.Fields["pay_type"].AsString(); payType != "hourly" {
		t.Fatalf("unexpected pay type %q", payType)
	}
	if rate, _ := record.Fields["pay_rate"].AsNumber(); rate != 20 {
		t.Fatalf("unexpected pay rate %v", rate)
	}
	if active, _ := record.Fields["is_active"].AsBool(); !active {
		t.Fatalf("expected worker without termination to be active")
	}
	if hired, _ := record.Fields["hire_date"].AsTime(); !hired.Equal(time.Date(2023, 1, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected hire date %v", hired)
	}
	if updated, _ := record.Fields["source_updated_at"].AsTime(); !updated.Equal(time.Unix(1709550000, 0).UTC()) {
		t.Fatalf("expected event timestamp as source_updated_at, got %v", updated)
	}
}

func TestIsDeleteEvent(t *testing.T) {
	if !IsDeleteEvent("Worked-Shift.Deleted") || IsDeleteEvent("worked-shift.created") {
		t.Fatalf("unexpected delete classification")
	}
}
